// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the contracts between the chunkmux hub and its
// collaborators: the receiver that consumes reassembled command packets,
// the executor pool that runs receiver callbacks, the endpoint that owns
// a transport, and the transport surface itself.
//
// The hub never depends on concrete collaborator types; everything it
// talks to outside its own selector goroutine goes through this package.
package api
