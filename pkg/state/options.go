package state

import "log/slog"

// Option configures a Store.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	observers  observers
	dispatcher Dispatcher
}

// WithLogger sets the logger used for store diagnostics.
// If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver adds an Observer. It may be given more than once; observers
// are called in the order they were added.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithDispatcher sets the Dispatcher used by Store.Dispatch.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) {
		o.dispatcher = d
	}
}

// Dispatcher runs work on the UI's event loop.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(fn func()) { fn() }

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.dispatcher == nil {
		o.dispatcher = inlineDispatcher{}
	}
	return o
}
