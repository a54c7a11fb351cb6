// File: api/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor contract for parallel task dispatch.

package api

// Executor abstracts the shared worker pool that runs receiver callbacks.
type Executor interface {
	// Submit schedules task for execution. Returns an error if the
	// executor has been closed.
	Submit(task func()) error

	// NumWorkers returns the current number of active worker routines.
	NumWorkers() int
}
