package state

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
)

// Store maps keys to entries. The zero value is not usable; create one with New.
//
// A Store is owned by the application's composition root and handed to
// whatever needs shared state. Entries live as long as the Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record

	logger     *slog.Logger
	observer   observers
	dispatcher Dispatcher
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	o := applyOptions(opts)
	return &Store{
		records:    make(map[string]*record),
		logger:     o.logger,
		observer:   o.observers,
		dispatcher: o.dispatcher,
	}
}

// Lookup returns the entry for key, creating it with init if the key has not
// been seen. An existing entry keeps its value; init is ignored.
func Lookup[T any](s *Store, key string, init T) (*Entry[T], error) {
	rec, err := s.lookup(key, reflect.TypeFor[T](), init, true)
	if err != nil {
		return nil, err
	}
	return &Entry[T]{rec: rec}, nil
}

// LookupUnset is like Lookup but a newly created entry holds no value.
func LookupUnset[T any](s *Store, key string) (*Entry[T], error) {
	rec, err := s.lookup(key, reflect.TypeFor[T](), nil, false)
	if err != nil {
		return nil, err
	}
	return &Entry[T]{rec: rec}, nil
}

// MustLookup is like Lookup but panics on error.
func MustLookup[T any](s *Store, key string, init T) *Entry[T] {
	e, err := Lookup(s, key, init)
	if err != nil {
		panic(err)
	}
	return e
}

func (s *Store) lookup(key string, typ reflect.Type, init any, set bool) (*record, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		rec, ok = s.records[key]
		if !ok {
			rec = &record{
				key:   key,
				typ:   typ,
				value: init,
				set:   set,
				store: s,
			}
			s.records[key] = rec
		}
		s.mu.Unlock()

		if !ok {
			s.logger.Debug("state entry created", "key", key, "type", typ.String(), "set", set)
			s.observer.EntryCreated(key)
			return rec, nil
		}
	}

	if rec.typ != typ {
		s.logger.Debug("state type mismatch", "key", key, "have", rec.typ.String(), "want", typ.String())
		return nil, fmt.Errorf("%w: key %q holds %s, not %s", ErrTypeMismatch, key, rec.typ, typ)
	}
	return rec, nil
}

// Has reports whether key has an entry.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Info describes an entry at a point in time.
type Info struct {
	Key         string
	Type        string
	Set         bool
	Version     uint64
	Subscribers int
	Value       any
}

// Snapshot returns the current Info for key.
func (s *Store) Snapshot(key string) (Info, bool) {
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, false
	}
	return rec.info(), true
}

// Snapshots returns Info for every entry, sorted by key.
func (s *Store) Snapshots() []Info {
	keys := s.Keys()
	infos := make([]Info, 0, len(keys))
	for _, k := range keys {
		if info, ok := s.Snapshot(k); ok {
			infos = append(infos, info)
		}
	}
	return infos
}

// Dispatch runs fn through the configured Dispatcher.
// Without one, fn runs immediately in the calling goroutine.
func (s *Store) Dispatch(fn func()) {
	s.dispatcher.Dispatch(fn)
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}
