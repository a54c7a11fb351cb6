// File: internal/poller/poller.go
// Package poller implements the readiness selector under the hub: an
// epoll-backed interest registry with an eventfd wakeup channel, plus
// non-blocking read/write adapters over raw file descriptors.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The selector mirrors the Java NIO model the remoting protocol was
// designed against: keys carry an interest set and an attachment, all
// registration state is mutated from the single selecting goroutine, and
// Close wakes a blocked Select which then returns ErrSelectorClosed.

package poller

import "errors"

// Interest is the readiness interest bitset of a Key.
type Interest uint32

const (
	// Read interest: the attachment wants bytes from the descriptor.
	Read Interest = 1 << iota
	// Write interest: the attachment has bytes for the descriptor.
	Write
)

// Event is one readiness notification returned by Select.
type Event struct {
	Key      *Key
	Readable bool
	Writable bool
}

var (
	// ErrSelectorClosed is returned by Select and registration calls
	// once the selector has been closed.
	ErrSelectorClosed = errors.New("poller: selector closed")

	// ErrUnsupportedPlatform is returned by Open on systems without an
	// epoll-style readiness facility.
	ErrUnsupportedPlatform = errors.New("poller: unsupported platform")
)
