// Package queue implements BoundedQueue: an MPSC FIFO with a fixed capacity,
// separate sender/receiver handles, and an observable drop counter. Every
// queue registers itself with the StatsRegistry before any handle is handed
// to a producer, per the "every allocation must register a countable"
// invariant.
package queue

import (
	"context"
	"sync/atomic"

	"deepflow.io/agent/internal/stats"
)

// Queue is a bounded, multi-producer single-consumer FIFO of T. The zero
// value is not usable; use New.
type Queue[T any] struct {
	name    string
	index   string
	ch      chan T
	dropped atomic.Int64
	pushed  atomic.Int64
	popped  atomic.Int64
}

// New creates a Queue of the given capacity and registers it with reg under
// (name, index) — reg may be nil in tests that don't care about stats
// wiring. Returns an error if registration fails (the pair is already taken).
func New[T any](reg *stats.Registry, name, index string, capacity int) (*Queue[T], error) {
	q := &Queue[T]{name: name, index: index, ch: make(chan T, capacity)}
	if reg != nil {
		if err := reg.Register(name, index, q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Send enqueues an item without blocking; if the queue is full the item is
// dropped and the drop counter incremented. This matches the teacher's
// never-block-the-producer sender discipline — a full queue signals backlog,
// not a reason to stall capture.
func (q *Queue[T]) Send(item T) {
	select {
	case q.ch <- item:
		q.pushed.Add(1)
	default:
		q.dropped.Add(1)
	}
}

// Recv blocks until an item is available or ctx is cancelled.
func (q *Queue[T]) Recv(ctx context.Context) (T, bool) {
	select {
	case item := <-q.ch:
		q.popped.Add(1)
		return item, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Dropped returns the cumulative number of items dropped for being full.
func (q *Queue[T]) Dropped() int64 {
	return q.dropped.Load()
}

// Snapshot implements stats.Countable.
func (q *Queue[T]) Snapshot() map[string]int64 {
	return map[string]int64{
		"len":     int64(q.Len()),
		"dropped": q.dropped.Load(),
		"pushed":  q.pushed.Load(),
		"popped":  q.popped.Load(),
	}
}
