package netsync

import "sync/atomic"

// Inbox is a bounded queue between room callbacks and the frame loop.
// Push never blocks: when the queue is full the oldest entry is discarded.
type Inbox[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

func NewInbox[T any](size int) *Inbox[T] {
	if size < 1 {
		size = 1
	}
	return &Inbox[T]{ch: make(chan T, size)}
}

func (q *Inbox[T]) Push(v T) {
	for {
		select {
		case q.ch <- v:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Drain hands every entry queued at call time to fn and returns how many it handled
func (q *Inbox[T]) Drain(fn func(T)) int {
	n := len(q.ch)
	for i := 0; i < n; i++ {
		select {
		case v := <-q.ch:
			fn(v)
		default:
			return i
		}
	}
	return n
}

// Dropped counts entries discarded because the queue was full
func (q *Inbox[T]) Dropped() uint64 {
	return q.dropped.Load()
}
