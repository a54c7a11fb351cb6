// File: core/concurrency/lane_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLanePreservesOrder(t *testing.T) {
	exec := NewExecutor(4, zap.NewNop())
	defer exec.Close()

	lane := NewLane(exec)
	const n = 1000

	var mu sync.Mutex
	var got []int
	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, lane.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == n
	})
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestLaneNeverRunsConcurrently(t *testing.T) {
	exec := NewExecutor(8, zap.NewNop())
	defer exec.Close()

	lane := NewLane(exec)
	var active, maxActive, done int32
	const n = 500
	for i := 0; i < n; i++ {
		require.NoError(t, lane.Submit(func() {
			cur := atomic.AddInt32(&active, 1)
			if cur > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, cur)
			}
			atomic.AddInt32(&active, -1)
			atomic.AddInt32(&done, 1)
		}))
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&done) == n })
	require.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestLanesProgressIndependently(t *testing.T) {
	exec := NewExecutor(4, zap.NewNop())
	defer exec.Close()

	slow := NewLane(exec)
	fast := NewLane(exec)

	release := make(chan struct{})
	require.NoError(t, slow.Submit(func() { <-release }))

	var fastDone atomic.Bool
	require.NoError(t, fast.Submit(func() { fastDone.Store(true) }))

	// The fast lane completes while the slow lane is stalled.
	waitFor(t, func() bool { return fastDone.Load() })
	close(release)
}

func TestLaneSubmitAfterExecutorClose(t *testing.T) {
	exec := NewExecutor(2, zap.NewNop())
	exec.Close()

	lane := NewLane(exec)
	err := lane.Submit(func() {})
	require.ErrorIs(t, err, ErrExecutorClosed)
}

func TestExecutorRunsSubmittedTasks(t *testing.T) {
	exec := NewExecutor(3, zap.NewNop())
	defer exec.Close()
	require.Equal(t, 3, exec.NumWorkers())

	var done int32
	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, exec.Submit(func() { atomic.AddInt32(&done, 1) }))
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&done) == n })
}

func TestExecutorContainsPanics(t *testing.T) {
	exec := NewExecutor(1, zap.NewNop())
	defer exec.Close()

	require.NoError(t, exec.Submit(func() { panic("boom") }))
	var ok atomic.Bool
	require.NoError(t, exec.Submit(func() { ok.Store(true) }))
	waitFor(t, func() bool { return ok.Load() })
}
