// Package metrics exports store and async-load activity to Prometheus.
//
// A Collector is both a state.Observer and an asyncstate.LoadObserver:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg))
//
//	store := state.New(state.WithObserver(m))
//	users, _ := asyncstate.Bind[[]User](store, "users", asyncstate.WithLoadObserver(m))
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// Metrics are not labelled by key; keys are application defined and
// unbounded.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/sharedstate/pkg/asyncstate"
	"github.com/vango-dev/sharedstate/pkg/state"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "sharedstate").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for load duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the load duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "sharedstate",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records store and load events.
type Collector struct {
	entries       prometheus.Gauge
	sets          *prometheus.CounterVec
	notifications prometheus.Counter
	subscribers   prometheus.Gauge
	loadsStarted  prometheus.Counter
	loads         *prometheus.CounterVec
	loadDuration  prometheus.Histogram

	// perKey remembers each key's last subscriber count so the total gauge can
	// be adjusted by the difference.
	perKey *keyCounts
}

var (
	_ state.Observer          = (*Collector)(nil)
	_ asyncstate.LoadObserver = (*Collector)(nil)
)

// New creates a Collector and registers its metrics. Registering two
// Collectors with the same registry and namespace panics, as promauto does.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "entries",
			Help:        "Number of keys in the store",
			ConstLabels: config.ConstLabels,
		}),

		sets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sets_total",
			Help:        "Total number of writes by result (changed or unchanged)",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of change notifications delivered to listeners",
			ConstLabels: config.ConstLabels,
		}),

		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscribers",
			Help:        "Number of listeners subscribed across all keys",
			ConstLabels: config.ConstLabels,
		}),

		loadsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_loads_started_total",
			Help:        "Total number of async loads started",
			ConstLabels: config.ConstLabels,
		}),

		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_loads_total",
			Help:        "Total number of settled async loads by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		loadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_load_duration_seconds",
			Help:        "Async load duration in seconds, from start to settle",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		perKey: newKeyCounts(),
	}
}

// EntryCreated implements state.Observer.
func (c *Collector) EntryCreated(string) {
	c.entries.Inc()
}

// ValueSet implements state.Observer.
func (c *Collector) ValueSet(_ string, _ uint64, changed bool) {
	result := "unchanged"
	if changed {
		result = "changed"
	}
	c.sets.WithLabelValues(result).Inc()
}

// Notified implements state.Observer.
func (c *Collector) Notified(_ string, n int) {
	c.notifications.Add(float64(n))
}

// SubscribersChanged implements state.Observer.
func (c *Collector) SubscribersChanged(key string, count int) {
	c.subscribers.Add(float64(c.perKey.swap(key, count)))
}

// LoadStarted implements asyncstate.LoadObserver.
func (c *Collector) LoadStarted(string, uint64) {
	c.loadsStarted.Inc()
}

// LoadSettled implements asyncstate.LoadObserver.
func (c *Collector) LoadSettled(_ string, outcome asyncstate.Outcome, elapsed time.Duration) {
	c.loads.WithLabelValues(string(outcome)).Inc()
	if outcome != asyncstate.OutcomeDiscarded {
		c.loadDuration.Observe(elapsed.Seconds())
	}
}
