package state

// Subscribable is anything a Listener can be attached to. *Entry[T]
// implements it for every T.
type Subscribable interface {
	Key() string
	Version() uint64
	Subscribe(Listener)
	Unsubscribe(Listener)
}

// Subscription ties one listener to one entry across a component's lifetime.
//
// Call Sync on every render with the component's current listening flag and
// Close when the component unmounts. Listening is re-evaluated on each Sync,
// so a component can stop and resume receiving changes.
//
// A Subscription is owned by a single component and is not safe for
// concurrent use.
type Subscription struct {
	entry    Subscribable
	listener Listener
	active   bool
	closed   bool
}

// NewSubscription creates an inactive Subscription of l to e.
func NewSubscription(e Subscribable, l Listener) *Subscription {
	return &Subscription{entry: e, listener: l}
}

// Sync subscribes the listener when listening is true and unsubscribes it when
// false. It has no effect after Close.
func (s *Subscription) Sync(listening bool) {
	if s.closed {
		return
	}
	if listening {
		s.entry.Subscribe(s.listener)
	} else {
		s.entry.Unsubscribe(s.listener)
	}
	s.active = listening
}

// Close unsubscribes the listener. Subsequent calls do nothing.
func (s *Subscription) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.active = false
	s.entry.Unsubscribe(s.listener)
}

// Active reports whether the last Sync subscribed the listener.
func (s *Subscription) Active() bool {
	return s.active
}

// Closed reports whether Close has been called.
func (s *Subscription) Closed() bool {
	return s.closed
}

// Key returns the key of the subscribed entry.
func (s *Subscription) Key() string {
	return s.entry.Key()
}

// Version returns the subscribed entry's current version.
func (s *Subscription) Version() uint64 {
	return s.entry.Version()
}
