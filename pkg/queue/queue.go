// Package queue provides a bounded in-process FIFO with blocking
// backpressure for producers and a clean shutdown signal for consumers.
package queue

import (
	"errors"
	"sync"
	"time"
)

// ErrFull is returned when an enqueue times out waiting for capacity.
var ErrFull = errors.New("queue: full")

// ErrClosed is returned when enqueueing into a closed queue.
var ErrClosed = errors.New("queue: closed")

// Bounded is a fixed-capacity FIFO. Enqueue blocks when full, Dequeue blocks
// when empty; Close wakes all waiters so consumers can exit cleanly.
type Bounded[T any] struct {
	mu     sync.Mutex
	items  []T
	cap    int
	closed bool

	notFull  chan struct{}
	notEmpty chan struct{}
}

// NewBounded creates a queue with the given capacity (minimum 1).
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		cap:      capacity,
		notFull:  make(chan struct{}, 1),
		notEmpty: make(chan struct{}, 1),
	}
}

// Enqueue appends item, blocking while the queue is full. A zero timeout
// blocks indefinitely; otherwise ErrFull is returned once timeout elapses.
func (q *Bounded[T]) Enqueue(item T, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if len(q.items) < q.cap {
			q.items = append(q.items, item)
			q.mu.Unlock()
			q.signal(q.notEmpty)
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.notFull:
		case <-deadline:
			return ErrFull
		}
	}
}

// Dequeue removes the oldest item, blocking while the queue is empty.
// ok is false once the queue is closed and drained.
func (q *Bounded[T]) Dequeue() (item T, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item = q.items[0]
			q.items = q.items[1:]
			closed := q.closed
			q.mu.Unlock()
			q.signal(q.notFull)
			if !closed {
				// other consumers may still have work
				q.signal(q.notEmpty)
			}
			return item, true
		}
		if q.closed {
			q.mu.Unlock()
			// wake any sibling consumer also blocked on notEmpty
			q.signal(q.notEmpty)
			var zero T
			return zero, false
		}
		q.mu.Unlock()

		<-q.notEmpty
	}
}

// Len returns the current number of queued items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the fixed capacity.
func (q *Bounded[T]) Cap() int { return q.cap }

// Close stops accepting new items. Queued items remain dequeueable; once
// drained, Dequeue returns ok=false.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal(q.notEmpty)
	q.signal(q.notFull)
}

func (q *Bounded[T]) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
