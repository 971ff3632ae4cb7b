package metrics

import "sync"

type keyCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

func newKeyCounts() *keyCounts {
	return &keyCounts{counts: make(map[string]int)}
}

// swap stores count for key and returns the difference from the previous
// count.
func (k *keyCounts) swap(key string, count int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	delta := count - k.counts[key]
	k.counts[key] = count
	return delta
}
