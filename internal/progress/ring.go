package progress

import "sync"

// ring is a fixed-capacity circular buffer holding the most recent
// items, overwriting the oldest when full.
type ring[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.count) % len(r.items)
	r.items[tail] = item
	if r.count < len(r.items) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.items)
	}
}

// snapshot returns the buffered items oldest first.
func (r *ring[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.items[(r.head+i)%len(r.items)])
	}
	return out
}
