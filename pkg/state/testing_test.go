package state

import "sync"

// countingListener records how many times it was marked dirty.
type countingListener struct {
	id    uint64
	mu    sync.Mutex
	count int
}

func newCountingListener() *countingListener {
	return &countingListener{id: NextID()}
}

func (l *countingListener) MarkDirty() {
	l.mu.Lock()
	l.count++
	l.mu.Unlock()
}

func (l *countingListener) ID() uint64 { return l.id }

func (l *countingListener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// recordingObserver captures observer calls.
type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	created  []string
	changed  int
	skipped  int
	notified int
}

func (o *recordingObserver) EntryCreated(key string) {
	o.mu.Lock()
	o.created = append(o.created, key)
	o.mu.Unlock()
}

func (o *recordingObserver) ValueSet(_ string, _ uint64, changed bool) {
	o.mu.Lock()
	if changed {
		o.changed++
	} else {
		o.skipped++
	}
	o.mu.Unlock()
}

func (o *recordingObserver) Notified(_ string, n int) {
	o.mu.Lock()
	o.notified += n
	o.mu.Unlock()
}
