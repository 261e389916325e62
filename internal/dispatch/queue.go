package dispatch

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded, goroutine-safe FIFO. Push never blocks; Pop waits
// up to a timeout so consumers can check for shutdown between items.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	onLen  func(int)
}

// New creates and returns a new Queue instance.
func New[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// OnLen registers a hook called with the queue length after every change
func (q *Queue[T]) OnLen(fn func(int)) {
	q.mu.Lock()
	q.onLen = fn
	q.mu.Unlock()
}

// Push adds an element to the end of the queue.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	n, hook := len(q.items), q.onLen
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	if hook != nil {
		hook(n)
	}
}

// TryPop removes and returns the front element without waiting.
// The boolean is false if the queue was empty.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		var zero T
		return zero, false
	}
	item := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	n, hook := len(q.items), q.onLen
	q.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return item, true
}

// Pop returns the front element, waiting up to timeout for one to arrive.
// It returns false on timeout or when ctx is done.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	if item, ok := q.TryPop(); ok {
		return item, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-timer.C:
			return q.TryPop()
		case <-q.notify:
			if item, ok := q.TryPop(); ok {
				return item, true
			}
		}
	}
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
