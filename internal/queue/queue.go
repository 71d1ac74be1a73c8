// Package queue provides an unbounded FIFO used to hand engine events from a
// producer goroutine to a single consumer.
//
// A Queue drains before it reports the end of the stream: after CloseWrite,
// Pop keeps returning buffered items and only then io.EOF. Discard drops
// everything still buffered and closes the queue immediately.
package queue

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Push after the queue was closed.
var ErrClosed = errors.New("queue: closed")

// Queue is a thread-safe unbounded FIFO with close-then-drain semantics.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	err    error
	wake   chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{wake: make(chan struct{})}
}

// Push appends v to the queue.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.signalLocked()
	return nil
}

// Pop removes and returns the oldest item, blocking until one is available,
// the queue is closed and drained, or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			err := q.err
			q.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return zero, err
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// CloseWrite marks the end of input. Buffered items remain readable.
func (q *Queue[T]) CloseWrite() error {
	return q.CloseWithError(nil)
}

// CloseWithError closes the queue; once drained, Pop returns err (io.EOF if
// err is nil). Only the first close takes effect.
func (q *Queue[T]) CloseWithError(err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.err = err
	q.signalLocked()
	return nil
}

// Discard drops all buffered items and closes the queue.
func (q *Queue[T]) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.closed = true
	q.signalLocked()
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether the queue no longer accepts items.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) signalLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}
