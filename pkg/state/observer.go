package state

// Observer receives store events for instrumentation.
// Methods are called outside of any entry lock and must not block.
type Observer interface {
	// EntryCreated is called once per key when its entry is first created.
	EntryCreated(key string)

	// ValueSet is called for every write. changed is false for equal writes.
	ValueSet(key string, version uint64, changed bool)

	// Notified is called after a change was delivered to n listeners.
	Notified(key string, n int)

	// SubscribersChanged is called when an entry's listener count changes.
	SubscribersChanged(key string, count int)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the methods you need.
type NopObserver struct{}

func (NopObserver) EntryCreated(string) {}
func (NopObserver) ValueSet(string, uint64, bool) {}
func (NopObserver) Notified(string, int) {}
func (NopObserver) SubscribersChanged(string, int) {}

type observers []Observer

func (o observers) EntryCreated(key string) {
	for _, obs := range o {
		obs.EntryCreated(key)
	}
}

func (o observers) ValueSet(key string, version uint64, changed bool) {
	for _, obs := range o {
		obs.ValueSet(key, version, changed)
	}
}

func (o observers) Notified(key string, n int) {
	for _, obs := range o {
		obs.Notified(key, n)
	}
}

func (o observers) SubscribersChanged(key string, count int) {
	for _, obs := range o {
		obs.SubscribersChanged(key, count)
	}
}
