// File: doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package chunkmux multiplexes many chunked command streams over a
// single readiness selector goroutine.
//
// A transport carries length-prefixed chunks; the hub pumps bytes
// between descriptors and per-transport FIFOs, reassembles chunks into
// whole command packets, and delivers each transport's packets in wire
// order through a dedicated lane on a shared worker pool. Backpressure
// is per transport: writers block on the write FIFO's hard cap, readers
// are throttled by the selector's interest set.
package chunkmux
