package state

import (
	"reflect"
	"sync"
)

// record is the type-erased storage behind an Entry.
type record struct {
	key   string
	typ   reflect.Type
	store *Store

	// mu protects everything below.
	mu      sync.RWMutex
	value   any
	set     bool
	version uint64
	subs    []Listener
	equal   func(a, b any) bool
}

func (r *record) equals(a, b any) bool {
	if r.equal != nil {
		return r.equal(a, b)
	}
	return identical(a, b)
}

func (r *record) info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Info{
		Key:         r.key,
		Type:        r.typ.String(),
		Set:         r.set,
		Version:     r.version,
		Subscribers: len(r.subs),
		Value:       r.value,
	}
}

// subscribe adds l unless a listener with the same ID is present.
func (r *record) subscribe(l Listener) {
	if l == nil {
		return
	}

	r.mu.Lock()
	lid := l.ID()
	for _, existing := range r.subs {
		if existing.ID() == lid {
			r.mu.Unlock()
			return
		}
	}
	r.subs = append(r.subs, l)
	n := len(r.subs)
	r.mu.Unlock()

	r.store.observer.SubscribersChanged(r.key, n)
}

// unsubscribe removes the listener with l's ID, if present.
func (r *record) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	r.mu.Lock()
	lid := l.ID()
	removed := false
	for i, existing := range r.subs {
		if existing.ID() == lid {
			// Order doesn't matter
			r.subs[i] = r.subs[len(r.subs)-1]
			r.subs[len(r.subs)-1] = nil
			r.subs = r.subs[:len(r.subs)-1]
			removed = true
			break
		}
	}
	n := len(r.subs)
	r.mu.Unlock()

	if removed {
		r.store.observer.SubscribersChanged(r.key, n)
	}
}

func (r *record) subscribed(l Listener) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lid := l.ID()
	for _, existing := range r.subs {
		if existing.ID() == lid {
			return true
		}
	}
	return false
}

// Entry is the typed handle for one key of a Store.
// Entries for the same key share state; copying an *Entry is cheap.
type Entry[T any] struct {
	rec *record
}

// Key returns the entry's key.
func (e *Entry[T]) Key() string {
	return e.rec.key
}

// Load returns the current value and whether one has been set.
func (e *Entry[T]) Load() (T, bool) {
	e.rec.mu.RLock()
	defer e.rec.mu.RUnlock()
	return e.load()
}

// load must be called with rec.mu held.
func (e *Entry[T]) load() (T, bool) {
	var zero T
	if !e.rec.set {
		return zero, false
	}
	return as[T](e.rec.value), true
}

// as converts a stored value back to T. A nil interface becomes T's zero value.
func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// Get returns the current value, or the zero value when unset.
func (e *Entry[T]) Get() T {
	v, _ := e.Load()
	return v
}

// Version returns the number of changes applied to the entry.
// It starts at zero and increases by one on every write that changes the value.
func (e *Entry[T]) Version() uint64 {
	e.rec.mu.RLock()
	defer e.rec.mu.RUnlock()
	return e.rec.version
}

// Subscribers returns the number of listeners currently subscribed.
func (e *Entry[T]) Subscribers() int {
	e.rec.mu.RLock()
	defer e.rec.mu.RUnlock()
	return len(e.rec.subs)
}

// Set applies u. If the resulting value differs from the current one, the
// value is stored, the version incremented, and every listener subscribed at
// that moment is marked dirty. Listeners are notified after the entry lock is
// released, in the calling goroutine.
//
// An updater runs with the entry locked and must not use the same entry.
func (e *Entry[T]) Set(u Update[T]) {
	r := e.rec
	r.mu.Lock()
	old, ok := e.load()
	next := u.apply(old)
	changed := !ok || !r.equals(any(old), any(next))
	var subs []Listener
	if changed {
		r.value = any(next)
		r.set = true
		r.version++
		subs = make([]Listener, len(r.subs))
		copy(subs, r.subs)
	}
	version := r.version
	r.mu.Unlock()

	r.store.observer.ValueSet(r.key, version, changed)
	if !changed {
		return
	}

	for _, l := range subs {
		l.MarkDirty()
	}
	r.store.observer.Notified(r.key, len(subs))
}

// SetValue is shorthand for Set(Value(v)).
func (e *Entry[T]) SetValue(v T) {
	e.Set(Value(v))
}

// Update is shorthand for Set(Func(fn)).
func (e *Entry[T]) Update(fn func(T) T) {
	e.Set(Func(fn))
}

// Mutate replaces the value with fn(current, set) without notifying
// listeners or changing the version. It is meant for bookkeeping carried in
// the value that must not by itself cause a re-render. fn runs with the entry
// locked.
func (e *Entry[T]) Mutate(fn func(T, bool) T) {
	r := e.rec
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := e.load()
	r.value = any(fn(old, ok))
	r.set = true
}

// Subscribe adds l to the entry's listeners. Adding the same listener twice
// has no effect.
func (e *Entry[T]) Subscribe(l Listener) {
	e.rec.subscribe(l)
}

// Unsubscribe removes l from the entry's listeners.
func (e *Entry[T]) Unsubscribe(l Listener) {
	e.rec.unsubscribe(l)
}

// IsSubscribed reports whether l is currently subscribed.
func (e *Entry[T]) IsSubscribed(l Listener) bool {
	return e.rec.subscribed(l)
}

// WithEquals configures the equality used by Set for this key.
// It applies to every Entry handle sharing the key.
func (e *Entry[T]) WithEquals(fn func(a, b T) bool) *Entry[T] {
	e.rec.mu.Lock()
	e.rec.equal = func(a, b any) bool {
		return fn(as[T](a), as[T](b))
	}
	e.rec.mu.Unlock()
	return e
}
