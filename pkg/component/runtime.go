package component

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/vango-dev/sharedstate/pkg/asyncstate"
	"github.com/vango-dev/sharedstate/pkg/state"
)

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger    *slog.Logger
	storeOpts []state.Option
	asyncOpts []asyncstate.Option
}

// WithLogger sets the runtime logger. It is also handed to the store.
// If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) {
		o.logger = logger
	}
}

// WithStoreOptions passes options to the runtime's store.
// A dispatcher given here is replaced by the runtime itself.
func WithStoreOptions(opts ...state.Option) Option {
	return func(o *runtimeOptions) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// WithAsyncOptions passes options to every async hook.
func WithAsyncOptions(opts ...asyncstate.Option) Option {
	return func(o *runtimeOptions) {
		o.asyncOpts = append(o.asyncOpts, opts...)
	}
}

// Runtime owns a store and the mounted component tree.
type Runtime struct {
	store     *state.Store
	logger    *slog.Logger
	asyncOpts []asyncstate.Option

	// turn serializes event handling, rendering and async completions.
	turn sync.Mutex

	roots []*Instance

	dirtyMu sync.Mutex
	dirty   []*Instance

	// loads tracks async loads that started but have not settled.
	loadsMu sync.Mutex
	loads   int
	settled chan struct{}
}

// NewRuntime creates a Runtime with an empty store.
func NewRuntime(opts ...Option) *Runtime {
	var o runtimeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := &Runtime{
		logger:  o.logger,
		settled: make(chan struct{}),
	}

	storeOpts := append([]state.Option{state.WithLogger(o.logger)}, o.storeOpts...)
	storeOpts = append(storeOpts, state.WithDispatcher(r))
	r.store = state.New(storeOpts...)

	r.asyncOpts = append([]asyncstate.Option{asyncstate.WithLoadObserver(loadTracker{r})}, o.asyncOpts...)
	return r
}

// Store returns the runtime's store.
func (r *Runtime) Store() *state.Store {
	return r.store
}

// Dispatch runs fn as one turn and then re-renders dirty instances.
// It must not be called from inside a turn.
func (r *Runtime) Dispatch(fn func()) {
	r.turn.Lock()
	defer r.turn.Unlock()
	fn()
	r.flush()
}

// Act is an alias for Dispatch, for event code.
func (r *Runtime) Act(fn func()) {
	r.Dispatch(fn)
}

// Mount creates and renders an instance tree for c as a new root.
func (r *Runtime) Mount(c *Component) *Instance {
	var inst *Instance
	r.Dispatch(func() {
		inst = r.mount(c, nil)
		r.roots = append(r.roots, inst)
	})
	return inst
}

// Unmount removes inst and its descendants. Their subscriptions are closed,
// so later changes never reach them.
func (r *Runtime) Unmount(inst *Instance) {
	r.Dispatch(func() {
		if inst.parent != nil {
			inst.parent.removeChild(inst)
		} else {
			for i, root := range r.roots {
				if root == inst {
					r.roots = append(r.roots[:i], r.roots[i+1:]...)
					break
				}
			}
		}
		inst.unmount()
	})
}

// Trigger runs the handler inst registered for event during its last render.
// It reports whether a handler was found.
func (r *Runtime) Trigger(inst *Instance, event string) bool {
	found := false
	r.Dispatch(func() {
		if fn, ok := inst.handler(event); ok {
			found = true
			fn()
		}
	})
	return found
}

// Refresh re-renders inst regardless of whether anything it reads changed.
func (r *Runtime) Refresh(inst *Instance) {
	r.Dispatch(func() {
		inst.forced = true
		r.enqueue(inst)
	})
}

// Find returns the first mounted instance named name, depth first.
func (r *Runtime) Find(name string) *Instance {
	r.turn.Lock()
	defer r.turn.Unlock()
	for _, root := range r.roots {
		if inst := root.find(name); inst != nil {
			return inst
		}
	}
	return nil
}

// Wait blocks until every async load started by a hook has settled and its
// re-renders are done, or ctx ends.
func (r *Runtime) Wait(ctx context.Context) error {
	for {
		r.loadsMu.Lock()
		n, ch := r.loads, r.settled
		r.loadsMu.Unlock()

		if n == 0 {
			// Let the turn that settled the last load finish flushing.
			r.turn.Lock()
			r.turn.Unlock()

			r.loadsMu.Lock()
			n = r.loads
			r.loadsMu.Unlock()
			if n == 0 {
				return nil
			}
			continue
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Render writes the mounted tree as HTML.
func (r *Runtime) Render(ctx context.Context, w io.Writer) error {
	r.turn.Lock()
	defer r.turn.Unlock()
	for _, root := range r.roots {
		if err := root.tree().Render(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// HTML returns the mounted tree as an HTML string.
func (r *Runtime) HTML() string {
	var buf bytes.Buffer
	if err := r.Render(context.Background(), &buf); err != nil {
		r.logger.Error("render tree", "error", err)
	}
	return buf.String()
}

// Component returns the mounted tree as a templ component, so it can be
// served with templ.Handler.
func (r *Runtime) Component() templ.Component {
	return templ.ComponentFunc(r.Render)
}

func (r *Runtime) mount(c *Component, parent *Instance) *Instance {
	inst := newInstance(r, c, parent)
	inst.render()
	for _, child := range c.Children {
		inst.children = append(inst.children, r.mount(child, inst))
	}
	return inst
}

func (r *Runtime) enqueue(inst *Instance) {
	r.dirtyMu.Lock()
	defer r.dirtyMu.Unlock()
	if inst.dirty {
		return
	}
	inst.dirty = true
	r.dirty = append(r.dirty, inst)
}

// flush re-renders dirty instances until none remain. Must be called with
// the turn held.
func (r *Runtime) flush() {
	for {
		r.dirtyMu.Lock()
		queue := r.dirty
		r.dirty = nil
		for _, inst := range queue {
			inst.dirty = false
		}
		r.dirtyMu.Unlock()

		if len(queue) == 0 {
			return
		}
		for _, inst := range queue {
			if inst.mounted && inst.stale() {
				inst.render()
			}
		}
	}
}

func (r *Runtime) loadStarted() {
	r.loadsMu.Lock()
	r.loads++
	r.loadsMu.Unlock()
}

func (r *Runtime) loadSettled() {
	r.loadsMu.Lock()
	r.loads--
	close(r.settled)
	r.settled = make(chan struct{})
	r.loadsMu.Unlock()
}

type loadTracker struct {
	r *Runtime
}

func (t loadTracker) LoadStarted(string, uint64) { t.r.loadStarted() }

func (t loadTracker) LoadSettled(string, asyncstate.Outcome, time.Duration) { t.r.loadSettled() }
