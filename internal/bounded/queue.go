// Package bounded provides a fixed-capacity FIFO used for monitor
// ring buffers and console history. When full, appending evicts the
// oldest element, so the container never grows past its capacity.
package bounded

import (
	"sync"

	"github.com/eapache/queue"
)

// Queue is a capacity-capped FIFO. It is safe for concurrent use; the
// lock is held only for the duration of a single append/evict or a
// copy-out, keeping hold times bounded.
type Queue[T any] struct {
	mu       sync.Mutex
	q        *queue.Queue
	capacity int
}

// New creates a bounded queue with the given capacity.
// Capacity values below 1 are treated as 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		q:        queue.New(),
		capacity: capacity,
	}
}

// Append adds an element, evicting the oldest when at capacity.
// Returns the evicted element and true when an eviction happened.
func (b *Queue[T]) Append(v T) (evicted T, wasFull bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.q.Length() >= b.capacity {
		evicted = b.q.Remove().(T)
		wasFull = true
	}
	b.q.Add(v)
	return evicted, wasFull
}

// Len returns the current number of elements.
func (b *Queue[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Length()
}

// Capacity returns the configured capacity.
func (b *Queue[T]) Capacity() int {
	return b.capacity
}

// Items returns all elements oldest-first.
func (b *Queue[T]) Items() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, b.q.Length())
	for i := 0; i < b.q.Length(); i++ {
		out[i] = b.q.Get(i).(T)
	}
	return out
}

// Latest returns up to n of the most recent elements, oldest-first.
// n <= 0 returns all elements.
func (b *Queue[T]) Latest(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	length := b.q.Length()
	if n <= 0 || n > length {
		n = length
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = b.q.Get(length - n + i).(T)
	}
	return out
}

// Clear removes all elements.
func (b *Queue[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.q = queue.New()
}
