package state

import "sync/atomic"

// Listener is anything that can be notified when an entry changes.
// Components implement it to schedule a re-render.
type Listener interface {
	// MarkDirty notifies the listener that an entry it subscribes to changed.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// An entry holds at most one subscription per ID.
	ID() uint64
}

var idCounter uint64

// NextID returns a process-unique identifier for a new Listener.
func NextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

type funcListener struct {
	id uint64
	fn func()
}

func (l *funcListener) MarkDirty() { l.fn() }
func (l *funcListener) ID() uint64 { return l.id }

// ListenerFunc adapts fn to a Listener with a fresh identity.
// Two calls with the same function produce two distinct listeners.
func ListenerFunc(fn func()) Listener {
	return &funcListener{id: NextID(), fn: fn}
}
