// File: core/concurrency/mpsc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// MPSC is an unbounded multi-producer/single-consumer intrusive FIFO,
// the linked cousin of the bounded RingQueue. Any goroutine may Push;
// only one goroutine may Pop. The hub uses it to inject selector tasks
// from arbitrary threads into the selector goroutine.

package concurrency

import "sync/atomic"

type mpscNode[T any] struct {
	next atomic.Pointer[mpscNode[T]]
	val  T
}

// MPSC is an unbounded lock-free FIFO with a single consumer.
type MPSC[T any] struct {
	head atomic.Pointer[mpscNode[T]] // producers append here
	tail *mpscNode[T]                // consumer-owned stub
}

// NewMPSC creates an empty queue.
func NewMPSC[T any]() *MPSC[T] {
	stub := new(mpscNode[T])
	q := new(MPSC[T])
	q.head.Store(stub)
	q.tail = stub
	return q
}

// Push appends val. Safe from any goroutine; never blocks, never fails.
func (q *MPSC[T]) Push(val T) {
	n := &mpscNode[T]{val: val}
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// Pop removes the oldest item. Must only be called from the single
// consumer goroutine. ok is false when the queue is empty or a producer
// has swapped head but not yet linked its node; the consumer simply
// retries on its next pass.
func (q *MPSC[T]) Pop() (item T, ok bool) {
	next := q.tail.next.Load()
	if next == nil {
		var zero T
		return zero, false
	}
	q.tail = next
	item = next.val
	var zero T
	next.val = zero
	return item, true
}
