package component

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/vango-dev/sharedstate/pkg/state"
)

// Component describes a node of the UI tree.
type Component struct {
	// Name identifies instances in Find and in rendered output.
	Name string

	// Render produces the component's own content. Hooks must be called in
	// the same order on every render.
	Render func(c *Ctx) templ.Component

	// Children are mounted under the component.
	Children []*Component
}

// Instance is a mounted Component. Every mounted instance has its own
// identity; mounting the same Component again yields a different Instance.
// Each hook subscribes with a listener of its own that marks the instance
// dirty.
type Instance struct {
	id      uint64
	comp    *Component
	runtime *Runtime

	parent   *Instance
	children []*Instance

	// Render state. Guarded by the runtime's turn.
	slots    []any
	slotIdx  int
	cleanups []func()
	handlers map[string]func()
	observed map[int]observation
	output   templ.Component
	renders  int
	mounted  bool
	forced   bool

	// dirty is guarded by the runtime's dirtyMu.
	dirty bool
}

// observation is the version of an entry seen by a hook slot in the last
// render.
type observation struct {
	entry   state.Subscribable
	version uint64
}

func newInstance(r *Runtime, c *Component, parent *Instance) *Instance {
	return &Instance{
		id:       state.NextID(),
		comp:     c,
		runtime:  r,
		parent:   parent,
		observed: make(map[int]observation),
		mounted:  true,
	}
}

// ID implements state.Listener.
func (i *Instance) ID() uint64 {
	return i.id
}

// MarkDirty implements state.Listener. The instance re-renders at the end of
// the current turn if an entry it observed has a newer version.
func (i *Instance) MarkDirty() {
	i.runtime.enqueue(i)
}

// Name returns the component name.
func (i *Instance) Name() string {
	return i.comp.Name
}

// RenderCount returns how many times the instance has rendered.
func (i *Instance) RenderCount() int {
	i.runtime.turn.Lock()
	defer i.runtime.turn.Unlock()
	return i.renders
}

// Mounted reports whether the instance is still mounted.
func (i *Instance) Mounted() bool {
	i.runtime.turn.Lock()
	defer i.runtime.turn.Unlock()
	return i.mounted
}

// Children returns the mounted child instances.
func (i *Instance) Children() []*Instance {
	i.runtime.turn.Lock()
	defer i.runtime.turn.Unlock()
	return append([]*Instance(nil), i.children...)
}

// stale reports whether a render is needed: forced, or some observed entry
// moved past the version the last render saw.
func (i *Instance) stale() bool {
	if i.forced {
		return true
	}
	for _, obs := range i.observed {
		if obs.entry.Version() != obs.version {
			return true
		}
	}
	return false
}

func (i *Instance) render() {
	i.slotIdx = 0
	i.forced = false
	i.handlers = nil
	i.renders++

	ctx := &Ctx{inst: i}
	if i.comp.Render != nil {
		i.output = i.comp.Render(ctx)
	}
	i.runtime.logger.Debug("component rendered", "component", i.comp.Name, "renders", i.renders)
}

// observe records the version of e seen by the hook at slot idx during the
// current render. A hook that moves to another key replaces its own entry.
func (i *Instance) observe(idx int, e state.Subscribable, version uint64) {
	i.observed[idx] = observation{entry: e, version: version}
}

func (i *Instance) handler(event string) (func(), bool) {
	fn, ok := i.handlers[event]
	return fn, ok
}

// slot returns the hook state for the current hook position, or nil on the
// first render.
func (i *Instance) slot() (any, int) {
	idx := i.slotIdx
	i.slotIdx++
	if idx < len(i.slots) {
		return i.slots[idx], idx
	}
	return nil, idx
}

func (i *Instance) setSlot(idx int, v any) {
	if idx != len(i.slots) {
		panic(fmt.Sprintf("component: hook order changed in %q at slot %d", i.comp.Name, idx))
	}
	i.slots = append(i.slots, v)
}

func (i *Instance) onCleanup(fn func()) {
	i.cleanups = append(i.cleanups, fn)
}

func (i *Instance) removeChild(child *Instance) {
	for idx, c := range i.children {
		if c == child {
			i.children = append(i.children[:idx], i.children[idx+1:]...)
			return
		}
	}
}

// unmount disposes children first, then runs cleanups in reverse order.
func (i *Instance) unmount() {
	if !i.mounted {
		return
	}
	for idx := len(i.children) - 1; idx >= 0; idx-- {
		i.children[idx].unmount()
	}
	i.children = nil

	for idx := len(i.cleanups) - 1; idx >= 0; idx-- {
		i.cleanups[idx]()
	}
	i.cleanups = nil
	i.handlers = nil
	i.mounted = false
	i.runtime.logger.Debug("component unmounted", "component", i.comp.Name)
}

func (i *Instance) find(name string) *Instance {
	if i.comp.Name == name {
		return i
	}
	for _, c := range i.children {
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// tree renders the instance's last output followed by its children inside a
// wrapper element.
func (i *Instance) tree() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<div data-component="%s" data-renders="%d">`,
			templ.EscapeString(i.comp.Name), i.renders); err != nil {
			return err
		}
		if i.output != nil {
			if err := i.output.Render(ctx, w); err != nil {
				return err
			}
		}
		for _, c := range i.children {
			if err := c.tree().Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}
