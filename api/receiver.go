// File: api/receiver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Consumer-side contracts for reassembled command packets.

package api

// Receiver consumes whole command packets reassembled from the chunk
// stream of one transport.
//
// Handle is called once per packet, in wire arrival order. Terminate is
// called at most once; after it, no further callbacks occur for this
// transport. Neither method is ever invoked on the selector goroutine;
// both are dispatched through the transport's lane on the shared
// executor, so a slow Handle only stalls its own transport.
type Receiver interface {
	Handle(packet []byte)
	Terminate(err error)
}

// Endpoint is the owning remoting channel of a transport. The transport
// keeps a back-reference to it solely for terminal notifications; it is
// a relation, not an ownership edge.
type Endpoint interface {
	// IsClosing reports whether the endpoint already initiated a local
	// close. A peer EOF observed while closing is expected and is not
	// reported as an error.
	IsClosing() bool

	// Terminate tears the endpoint down after an unexpected terminal
	// event such as a peer EOF.
	Terminate(err error)
}
