// File: core/concurrency/ring.go
// Package concurrency provides the lock-free plumbing under the hub:
// bounded rings for worker-local task queues, an unbounded MPSC queue for
// selector task injection, the shared executor pool, and the per-transport
// lane sequencer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingQueue is a bounded MPMC queue using per-cell sequence numbers,
// based on the pattern by Dmitry Vyukov.

package concurrency

import "sync/atomic"

const cacheLinePad = 64

// RingQueue is a bounded multi-producer/multi-consumer queue. Capacity is
// rounded up to a power of two.
type RingQueue[T any] struct {
	head  uint64
	_     [cacheLinePad]byte
	tail  uint64
	_     [cacheLinePad]byte
	mask  uint64
	cells []ringCell[T]
}

type ringCell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// NewRingQueue creates a queue holding at least capacity items.
func NewRingQueue[T any](capacity int) *RingQueue[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &RingQueue[T]{
		mask:  uint64(size - 1),
		cells: make([]ringCell[T], size),
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

// Enqueue adds val; returns false if the queue is full.
func (q *RingQueue[T]) Enqueue(val T) bool {
	for {
		tail := atomic.LoadUint64(&q.tail)
		c := &q.cells[tail&q.mask]
		seq := c.sequence.Load()
		switch dif := int64(seq) - int64(tail); {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				c.data = val
				c.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false // full
		}
		// tail moved, retry
	}
}

// Dequeue removes and returns an item; ok is false if the queue is empty.
func (q *RingQueue[T]) Dequeue() (item T, ok bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		c := &q.cells[head&q.mask]
		seq := c.sequence.Load()
		switch dif := int64(seq) - int64(head+1); {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				item = c.data
				var zero T
				c.data = zero
				c.sequence.Store(head + q.mask + 1)
				return item, true
			}
		case dif < 0:
			var zero T
			return zero, false // empty
		}
		// head moved, retry
	}
}
