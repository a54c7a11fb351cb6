// File: core/concurrency/lane.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lane serializes submissions for one transport over the shared executor.
// Tasks of one lane run one at a time in submission order; distinct lanes
// make independent progress on the pool.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/chunkmux/api"
)

// Lane is a single-lane sequencer over an api.Executor.
//
// It is a two-state machine: idle (no drainer scheduled) and running (one
// drainer owns the pending queue). Submit appends and, when idle,
// schedules exactly one pool task that drains in order until empty.
type Lane struct {
	exec api.Executor

	mu      sync.Mutex
	pending *queue.Queue
	running bool
}

// NewLane creates a lane bound to exec.
func NewLane(exec api.Executor) *Lane {
	return &Lane{
		exec:    exec,
		pending: queue.New(),
	}
}

// Submit enqueues task behind all previously submitted tasks of this
// lane. Returns the executor's error when the pool is closed; the task
// stays pending in that case and runs if the lane is kicked again.
func (l *Lane) Submit(task func()) error {
	l.mu.Lock()
	l.pending.Add(task)
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	if err := l.exec.Submit(l.drain); err != nil {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *Lane) drain() {
	for {
		l.mu.Lock()
		if l.pending.Length() == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		task := l.pending.Remove().(func())
		l.mu.Unlock()
		task()
	}
}
