// File: core/concurrency/mpsc_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMPSCSingleProducerOrder(t *testing.T) {
	q := NewMPSC[int]()
	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Pop()
	require.False(t, ok)
}

func TestMPSCManyProducers(t *testing.T) {
	const producers = 8
	const perProducer = 10000

	q := NewMPSC[int]()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(pid*perProducer + i)
			}
		}(p)
	}

	lastSeen := make([]int, producers)
	for i := range lastSeen {
		lastSeen[i] = -1
	}
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < producers*perProducer {
			v, ok := q.Pop()
			if !ok {
				runtime.Gosched()
				continue
			}
			pid, seq := v/perProducer, v%perProducer
			// Per-producer FIFO must hold even under contention.
			if seq <= lastSeen[pid] {
				t.Errorf("producer %d went backwards: %d after %d", pid, seq, lastSeen[pid])
				return
			}
			lastSeen[pid] = seq
			received++
		}
	}()

	wg.Wait()
	<-done
	require.Equal(t, producers*perProducer, received)
}

func TestRingQueueFullAndEmpty(t *testing.T) {
	q := NewRingQueue[int](4)
	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(i))
	}
	require.False(t, q.Enqueue(99))
	for i := 0; i < 4; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Dequeue()
	require.False(t, ok)
}
