// File: errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for the chunkmux package.

package chunkmux

import "errors"

var (
	// ErrHubClosed indicates the hub's selector was closed. Transports
	// still registered at that point are aborted with this error.
	ErrHubClosed = errors.New("chunkmux: hub closed")

	// ErrHubNotRunning is returned by the builder when a selectable
	// transport is requested before Run has entered the selector loop.
	ErrHubNotRunning = errors.New("chunkmux: hub is not currently running")

	// ErrAlreadyRunning is returned by Run when the selector loop is
	// already being driven by another goroutine.
	ErrAlreadyRunning = errors.New("chunkmux: hub is already running")
)
