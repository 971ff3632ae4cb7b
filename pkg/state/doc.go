// Package state provides a keyed store of shared values with change
// notification.
//
// A Store maps string keys to entries. The first lookup of a key creates its
// entry with the caller's initial value; later lookups return the same entry
// and ignore their initial value. Entries are never removed.
//
// Writing an entry compares the new value with the current one. When they
// differ the entry's version is incremented and every subscribed Listener is
// marked dirty. Equal writes are silent.
//
// Usage:
//
//	store := state.New(state.WithLogger(logger))
//
//	counter, err := state.Lookup(store, "counter", 0)
//	if err != nil {
//	    return err
//	}
//
//	sub := state.NewSubscription(counter, component)
//	sub.Sync(true)      // every render
//	defer sub.Close()   // on unmount
//
//	counter.Set(state.Func(func(n int) int { return n + 1 }))
//
// Integration:
// The store performs no scheduling of its own. Listeners are marked dirty
// synchronously in the goroutine that performed the write, and the UI layer
// decides when to re-render. Work completing on other goroutines should be
// routed through Store.Dispatch so it re-enters the UI's event loop.
package state
