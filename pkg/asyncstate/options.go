package asyncstate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "github.com/vango-dev/sharedstate/asyncstate"

// Option configures an Async handle.
type Option func(*config)

type config struct {
	ctx       context.Context
	timeout   time.Duration
	tracer    trace.Tracer
	observers []LoadObserver
}

// WithContext sets the parent context for loads started through the handle.
// Default: context.Background().
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithTimeout bounds each load. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTracer sets the tracer used for load spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

// WithLoadObserver adds an observer of load starts and settlements.
func WithLoadObserver(obs LoadObserver) Option {
	return func(c *config) {
		if obs != nil {
			c.observers = append(c.observers, obs)
		}
	}
}

func applyOptions(opts []Option) config {
	c := config{ctx: context.Background()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(defaultTracerName)
	}
	return c
}

// Outcome is how a load finished.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeError     Outcome = "error"
	OutcomeDiscarded Outcome = "discarded" // superseded by a newer generation
)

// LoadObserver is notified when a load starts and after it settles.
// LoadStarted runs synchronously in Observe, before the load goroutine.
// LoadSettled runs inside the store's dispatcher, after the result is stored.
type LoadObserver interface {
	LoadStarted(key string, generation uint64)
	LoadSettled(key string, outcome Outcome, elapsed time.Duration)
}

// LoadObserverFunc adapts a settle callback to a LoadObserver.
type LoadObserverFunc func(key string, outcome Outcome, elapsed time.Duration)

// LoadStarted does nothing.
func (f LoadObserverFunc) LoadStarted(string, uint64) {}

// LoadSettled calls f.
func (f LoadObserverFunc) LoadSettled(key string, outcome Outcome, elapsed time.Duration) {
	f(key, outcome, elapsed)
}
