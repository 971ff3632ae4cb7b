package inspect

import (
	"sync"
	"time"

	"github.com/vango-dev/sharedstate/pkg/state"
)

// EventKind says what happened to an entry.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventSet         EventKind = "set"
	EventSubscribers EventKind = "subscribers"
)

// Event is one store change as sent on the /events feed.
type Event struct {
	Kind        EventKind `json:"kind" msgpack:"kind"`
	Key         string    `json:"key" msgpack:"key"`
	Version     uint64    `json:"version,omitempty" msgpack:"version,omitempty"`
	Changed     bool      `json:"changed,omitempty" msgpack:"changed,omitempty"`
	Subscribers int       `json:"subscribers,omitempty" msgpack:"subscribers,omitempty"`
	Time        time.Time `json:"time" msgpack:"time"`
}

// Hub fans store events out to feed clients. It is a state.Observer; pass it
// to state.WithObserver when creating the store.
//
// Broadcasting never blocks the store. A client whose buffer is full is
// dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*feed]struct{}
	buffer  int
	now     func() time.Time
}

var _ state.Observer = (*Hub)(nil)

type feed struct {
	ch   chan Event
	once sync.Once
}

func (f *feed) close() {
	f.once.Do(func() { close(f.ch) })
}

// NewHub creates a Hub whose clients buffer up to buffer events.
// If buffer <= 0, 64 is used.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		clients: make(map[*feed]struct{}),
		buffer:  buffer,
		now:     time.Now,
	}
}

// Subscribe registers a client. The returned channel is closed when cancel
// is called or the client falls behind.
func (h *Hub) Subscribe() (events <-chan Event, cancel func()) {
	f := &feed{ch: make(chan Event, h.buffer)}
	h.mu.Lock()
	h.clients[f] = struct{}{}
	h.mu.Unlock()

	return f.ch, func() {
		h.mu.Lock()
		delete(h.clients, f)
		h.mu.Unlock()
		f.close()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev Event) {
	ev.Time = h.now()

	h.mu.Lock()
	defer h.mu.Unlock()
	for f := range h.clients {
		select {
		case f.ch <- ev:
		default:
			delete(h.clients, f)
			f.close()
		}
	}
}

// EntryCreated implements state.Observer.
func (h *Hub) EntryCreated(key string) {
	h.broadcast(Event{Kind: EventCreated, Key: key})
}

// ValueSet implements state.Observer. Equal writes are not broadcast.
func (h *Hub) ValueSet(key string, version uint64, changed bool) {
	if !changed {
		return
	}
	h.broadcast(Event{Kind: EventSet, Key: key, Version: version, Changed: true})
}

// Notified implements state.Observer.
func (h *Hub) Notified(string, int) {}

// SubscribersChanged implements state.Observer.
func (h *Hub) SubscribersChanged(key string, count int) {
	h.broadcast(Event{Kind: EventSubscribers, Key: key, Subscribers: count})
}
