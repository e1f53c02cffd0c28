// Package queue provides a minimal blocking FIFO for handing work between
// goroutines inside one process. It is unrelated to the shared-memory
// channels; nothing here crosses a process boundary.
package queue

import "sync"

// Queue is an unbounded FIFO with blocking Pop. Stop wakes every blocked
// consumer; once stopped and drained, Pop returns the zero value.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	running bool
}

func New[T any]() *Queue[T] {
	q := &Queue[T]{running: true}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues item and wakes one waiting consumer.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is stopped. After Stop,
// remaining items are still drained in order; an empty stopped queue yields
// the zero value immediately.
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && q.running {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// Stop flips the queue into draining mode and wakes all blocked consumers.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.cond.Broadcast()
}
