package component

import (
	"github.com/vango-dev/sharedstate/pkg/asyncstate"
	"github.com/vango-dev/sharedstate/pkg/state"
)

// Ctx is handed to Render. It is valid only during that render.
type Ctx struct {
	inst *Instance
}

// Instance returns the instance being rendered.
func (c *Ctx) Instance() *Instance {
	return c.inst
}

// Runtime returns the owning runtime.
func (c *Ctx) Runtime() *Runtime {
	return c.inst.runtime
}

// RenderCount returns the render count including the current render.
func (c *Ctx) RenderCount() int {
	return c.inst.renders
}

// Handle registers fn as the handler for event until the next render.
// Handlers run as their own turn via Runtime.Trigger.
func (c *Ctx) Handle(event string, fn func()) {
	if c.inst.handlers == nil {
		c.inst.handlers = make(map[string]func())
	}
	c.inst.handlers[event] = fn
}

// Setter writes a shared entry.
type Setter[T any] struct {
	entry *state.Entry[T]
}

// Set stores v.
func (s Setter[T]) Set(v T) {
	s.entry.SetValue(v)
}

// Update stores fn(previous).
func (s Setter[T]) Update(fn func(T) T) {
	s.entry.Update(fn)
}

// Apply stores the result of u.
func (s Setter[T]) Apply(u state.Update[T]) {
	s.entry.Set(u)
}

// HookOption configures a state hook.
type HookOption func(*hookOptions)

type hookOptions struct {
	listening bool
}

// Listening controls whether the component re-renders when the entry
// changes. It is evaluated on every render. Default: true.
func Listening(on bool) HookOption {
	return func(o *hookOptions) {
		o.listening = on
	}
}

// hookListener is the identity a single hook subscribes with. Hooks of one
// instance subscribe independently, so closing one never drops another.
type hookListener struct {
	id   uint64
	inst *Instance
}

func newHookListener(inst *Instance) *hookListener {
	return &hookListener{id: state.NextID(), inst: inst}
}

func (l *hookListener) ID() uint64 { return l.id }

func (l *hookListener) MarkDirty() { l.inst.MarkDirty() }

type globalHook[T any] struct {
	entry    *state.Entry[T]
	sub      *state.Subscription
	listener *hookListener
}

// UseGlobalState returns the current value of key and a Setter for it. The
// first lookup of key anywhere in the store decides its initial value.
//
// It panics if key is empty or already holds a different type, like any
// other misuse of a hook.
func UseGlobalState[T any](c *Ctx, key string, init T, opts ...HookOption) (T, Setter[T]) {
	h := useGlobal(c, key, func(s *state.Store) (*state.Entry[T], error) {
		return state.Lookup(s, key, init)
	}, opts)
	return h.entry.Get(), Setter[T]{entry: h.entry}
}

// UseGlobalStateUnset is UseGlobalState for a key that may have no value
// yet. ok is false until something sets the entry; v is then the zero value.
func UseGlobalStateUnset[T any](c *Ctx, key string, opts ...HookOption) (v T, ok bool, set Setter[T]) {
	h := useGlobal(c, key, func(s *state.Store) (*state.Entry[T], error) {
		return state.LookupUnset[T](s, key)
	}, opts)
	v, ok = h.entry.Load()
	return v, ok, Setter[T]{entry: h.entry}
}

func useGlobal[T any](c *Ctx, key string, lookup func(*state.Store) (*state.Entry[T], error), opts []HookOption) *globalHook[T] {
	o := hookOptions{listening: true}
	for _, opt := range opts {
		opt(&o)
	}

	inst := c.inst
	raw, idx := inst.slot()
	h, _ := raw.(*globalHook[T])
	if raw != nil && h == nil {
		panic("component: hook order changed in " + inst.comp.Name)
	}

	if h != nil && h.entry.Key() != key {
		// The key changed between renders: move the subscription.
		h.sub.Close()
		h.entry = nil
	}
	if h == nil || h.entry == nil {
		entry, err := lookup(inst.runtime.store)
		if err != nil {
			panic(err)
		}
		if h == nil {
			h = &globalHook[T]{listener: newHookListener(inst)}
			inst.setSlot(idx, h)
			inst.onCleanup(func() { h.sub.Close() })
		}
		h.entry, h.sub = entry, state.NewSubscription(entry, h.listener)
	}

	h.sub.Sync(o.listening)

	// Version first: a change racing with this read causes an extra render,
	// never a missed one.
	inst.observe(idx, h.entry, h.entry.Version())
	return h
}

type asyncHook[T any] struct {
	async    *asyncstate.Async[T]
	sub      *state.Subscription
	listener *hookListener
}

// UseAsyncGlobalState observes the async key, starting loader once per
// generation. The component re-renders when the load settles.
func UseAsyncGlobalState[T any](c *Ctx, key string, loader asyncstate.Loader[T]) asyncstate.Result[T] {
	inst := c.inst
	raw, idx := inst.slot()
	h, _ := raw.(*asyncHook[T])
	if raw != nil && h == nil {
		panic("component: hook order changed in " + inst.comp.Name)
	}

	if h != nil && h.async.Name() != key {
		h.sub.Close()
		h.async = nil
	}
	if h == nil || h.async == nil {
		a, err := asyncstate.Bind[T](inst.runtime.store, key, inst.runtime.asyncOpts...)
		if err != nil {
			panic(err)
		}
		if h == nil {
			h = &asyncHook[T]{listener: newHookListener(inst)}
			inst.setSlot(idx, h)
			inst.onCleanup(func() { h.sub.Close() })
		}
		h.async, h.sub = a, state.NewSubscription(a, h.listener)
	}

	h.sub.Sync(true)
	inst.observe(idx, h.async, h.async.Version())
	return h.async.Observe(loader)
}
