// File: core/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines, using lock-free
// worker-local queues with an unbounded shared overflow queue. Submit
// never blocks, so the selector goroutine can hand off work without
// stalling the readiness loop.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/chunkmux/api"
)

const localQueueCap = 1024

// Executor manages a pool of worker goroutines.
type Executor struct {
	locals []*RingQueue[func()]

	overflowMu sync.Mutex
	overflow   *queue.Queue

	next    atomic.Uint64
	closeCh chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
	log     *zap.Logger
}

var _ api.Executor = (*Executor)(nil)

// NewExecutor creates an Executor with the given number of workers.
// Zero or negative means one worker per CPU.
func NewExecutor(numWorkers int, logger *zap.Logger) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		locals:   make([]*RingQueue[func()], numWorkers),
		overflow: queue.New(),
		closeCh:  make(chan struct{}),
		log:      logger,
	}
	for i := range e.locals {
		e.locals[i] = NewRingQueue[func()](localQueueCap)
	}
	for i := 0; i < numWorkers; i++ {
		e.wg.Add(1)
		go e.work(i)
	}
	return e
}

// Submit enqueues a task without blocking. Returns ErrExecutorClosed
// after Close.
func (e *Executor) Submit(task func()) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	idx := e.next.Add(1) % uint64(len(e.locals))
	if e.locals[idx].Enqueue(task) {
		return nil
	}
	e.overflowMu.Lock()
	e.overflow.Add(task)
	e.overflowMu.Unlock()
	return nil
}

// NumWorkers returns the worker count.
func (e *Executor) NumWorkers() int {
	return len(e.locals)
}

// Close shuts the executor down and waits for the workers to exit.
// Queued tasks that have not started are discarded.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
		e.wg.Wait()
	}
}

func (e *Executor) work(id int) {
	defer e.wg.Done()
	local := e.locals[id]
	for {
		select {
		case <-e.closeCh:
			return
		default:
		}
		if task, ok := local.Dequeue(); ok {
			e.run(task)
			continue
		}
		if task, ok := e.stealOverflow(); ok {
			e.run(task)
			continue
		}
		// Help a sibling before going idle.
		if task, ok := e.stealLocal(id); ok {
			e.run(task)
			continue
		}
		time.Sleep(time.Millisecond)
	}
}

func (e *Executor) stealOverflow() (func(), bool) {
	e.overflowMu.Lock()
	defer e.overflowMu.Unlock()
	if e.overflow.Length() == 0 {
		return nil, false
	}
	return e.overflow.Remove().(func()), true
}

func (e *Executor) stealLocal(self int) (func(), bool) {
	for i := range e.locals {
		if i == self {
			continue
		}
		if task, ok := e.locals[i].Dequeue(); ok {
			return task, true
		}
	}
	return nil, false
}

func (e *Executor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("task panicked", zap.Any("panic", r))
		}
	}()
	task()
}
