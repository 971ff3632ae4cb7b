package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "sharedstate.json"

	// DefaultAddr is the default inspector listen address.
	DefaultAddr = "localhost:7070"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultMetricsNamespace is the default Prometheus namespace.
	DefaultMetricsNamespace = "sharedstate"

	// DefaultEventFormat is the default /events encoding.
	DefaultEventFormat = "json"

	// DefaultTick is the default interval of the serve demo's mutations.
	DefaultTick = Duration(time.Second)
)

var (
	// ErrInvalid is wrapped by every Validate failure.
	ErrInvalid = errors.New("config: invalid configuration")
)

// Config is the binary's configuration.
type Config struct {
	// Addr is the inspector listen address.
	Addr string `json:"addr,omitempty" env:"SHAREDSTATE_ADDR"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty" env:"SHAREDSTATE_LOG_LEVEL"`

	// LogFormat is text or json.
	LogFormat string `json:"logFormat,omitempty" env:"SHAREDSTATE_LOG_FORMAT"`

	// MetricsNamespace prefixes exported metrics.
	MetricsNamespace string `json:"metricsNamespace,omitempty" env:"SHAREDSTATE_METRICS_NAMESPACE"`

	// EventFormat is the default /events encoding: json or msgpack.
	EventFormat string `json:"eventFormat,omitempty" env:"SHAREDSTATE_EVENT_FORMAT"`

	// Tick is how often the serve demo mutates its store.
	Tick Duration `json:"tick,omitempty" env:"SHAREDSTATE_TICK"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// Duration is a time.Duration written as a string such as "500ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		Addr:             DefaultAddr,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		MetricsNamespace: DefaultMetricsNamespace,
		EventFormat:      DefaultEventFormat,
		Tick:             DefaultTick,
	}
}

// Load reads sharedstate.json from dir if it exists, then applies the
// environment and validates.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := New()
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads the configuration file at path, which must exist, then
// applies the environment and validates.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.configPath = path

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if err := ParseEnv(c); err != nil {
		return err
	}
	c.applyDefaults()
	return c.Validate()
}

// ParseEnv overrides fields of target from the environment.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Path returns the path where the config was loaded from, or "".
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = DefaultMetricsNamespace
	}
	if c.EventFormat == "" {
		c.EventFormat = DefaultEventFormat
	}
	if c.Tick == 0 {
		c.Tick = DefaultTick
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := c.level(); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q (want text or json)", ErrInvalid, c.LogFormat)
	}
	switch c.EventFormat {
	case "json", "msgpack":
	default:
		return fmt.Errorf("%w: event format %q (want json or msgpack)", ErrInvalid, c.EventFormat)
	}
	if c.Tick < 0 {
		return fmt.Errorf("%w: negative tick %s", ErrInvalid, time.Duration(c.Tick))
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
