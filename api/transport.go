// File: api/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport surface exposed to the remoting layer.

package api

import "context"

// Transport is one registered connection of the hub: a framed,
// bidirectional command stream.
type Transport interface {
	// WriteBlock fragments packet into chunks and queues them on the
	// write buffer. It blocks while the buffer is full and fails with
	// ErrInterrupted when ctx is cancelled during the wait; any chunks
	// already queued stay queued and will be transmitted.
	//
	// Chunks of a single WriteBlock are contiguous on the wire. Callers
	// sharing one transport must serialize WriteBlock externally.
	WriteBlock(ctx context.Context, packet []byte) error

	// Setup installs the owning endpoint and the receiver, then enables
	// reading. It must be called exactly once, before any packet can be
	// delivered.
	Setup(ep Endpoint, r Receiver)

	// CloseWrite closes the write buffer. Queued bytes still flush;
	// once drained, the selector loop half-closes the write handle.
	CloseWrite() error

	// CloseRead asks the selector loop to half-close the read handle
	// and close the read buffer.
	CloseRead() error

	// RemoteCapability returns the opaque capability token negotiated
	// with the peer at construction time.
	RemoteCapability() Capability
}

// Capability is the token describing what the remote side supports.
// The hub only inspects the chunking bit; everything else is opaque
// payload for the remoting layer.
type Capability interface {
	// SupportsChunking reports whether the peer understands the
	// chunked binary framing this hub speaks.
	SupportsChunking() bool
}
