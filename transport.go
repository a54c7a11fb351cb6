// File: transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection state of the hub: the read and write FIFOs, the single
// receiver, the per-transport lane, and the half-close plumbing. The two
// concrete variants differ only in how many descriptors back the stream:
// monoTransport drives one duplex socket, dualTransport a distinct
// read/write pair.

package chunkmux

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/chunkmux/api"
	"github.com/momentics/chunkmux/core/buffer"
	"github.com/momentics/chunkmux/core/concurrency"
	"github.com/momentics/chunkmux/core/protocol"
	"github.com/momentics/chunkmux/internal/poller"
)

const (
	readBufInitial  = 16 * 1024
	readBufLimit    = math.MaxInt32
	writeBufInitial = 16 * 1024
	writeBufLimit   = 256 * 1024
)

// nioTransport is the selector loop's view of a registered transport.
// The embedded api.Transport methods may be called from any goroutine; of
// the methods declared here, every one except base, rr and ww is
// selector-goroutine only.
type nioTransport interface {
	api.Transport

	base() *transport
	rr() buffer.ByteSource
	ww() buffer.ByteSink
	reregister() error
	closeR() error
	closeW() error
	isRopen() bool
	isWopen() bool
	abort(cause error)
}

type endpointRef struct{ ep api.Endpoint }
type receiverRef struct{ r api.Receiver }

// transport is the variant-independent half of a hub transport.
type transport struct {
	hub       *Hub
	remoteCap api.Capability

	// rb pools bytes read from the descriptor but not yet handed to the
	// receiver. A command has no size restriction, so it may grow to the
	// hard cap to accommodate a single packet in its entirety.
	rb *buffer.Fifo
	// wb pools bytes queued by WriteBlock but not yet written out.
	wb *buffer.Fifo

	// lane serializes receiver callbacks of this transport on the shared
	// executor.
	lane *concurrency.Lane

	recv       atomic.Pointer[receiverRef]
	endpoint   atomic.Pointer[endpointRef]
	terminated atomic.Bool

	// self points at the concrete variant so base methods can reach the
	// selector-side operations.
	self nioTransport
}

func (t *transport) init(h *Hub, cap api.Capability, self nioTransport) {
	t.hub = h
	t.remoteCap = cap
	t.rb = buffer.New(readBufInitial, readBufLimit)
	t.wb = buffer.New(writeBufInitial, writeBufLimit)
	t.lane = concurrency.NewLane(h.exec)
	t.self = self
}

func (t *transport) base() *transport { return t }

func (t *transport) loadReceiver() api.Receiver {
	if ref := t.recv.Load(); ref != nil {
		return ref.r
	}
	return nil
}

func (t *transport) loadEndpoint() api.Endpoint {
	if ref := t.endpoint.Load(); ref != nil {
		return ref.ep
	}
	return nil
}

func (t *transport) aborted() bool { return t.terminated.Load() }

// WriteBlock fragments packet into chunks of at most the hub frame size
// and queues them on wb. Each chunk is scheduled for transmission as soon
// as it is queued; the last chunk clears the has-more bit.
func (t *transport) WriteBlock(ctx context.Context, packet []byte) error {
	frameSize := t.hub.FrameSize()
	pos := 0
	for {
		n := min(frameSize, len(packet)-pos)
		hasMore := pos+n < len(packet)
		hdr := protocol.Pack(n, hasMore)
		if _, err := t.wb.Write(ctx, hdr[:]); err != nil {
			return fmt.Errorf("chunkmux: write block: %w", err)
		}
		if _, err := t.wb.Write(ctx, packet[pos:pos+n]); err != nil {
			return fmt.Errorf("chunkmux: write block: %w", err)
		}
		t.scheduleReregister()
		pos += n
		if !hasMore {
			return nil
		}
	}
}

// Setup installs the owning endpoint and the receiver, then schedules a
// re-registration so reads become possible. Exactly once.
func (t *transport) Setup(ep api.Endpoint, r api.Receiver) {
	if r == nil {
		panic("chunkmux: Setup with nil receiver")
	}
	if !t.recv.CompareAndSwap(nil, &receiverRef{r: r}) {
		panic("chunkmux: Setup called twice")
	}
	t.endpoint.Store(&endpointRef{ep: ep})
	t.scheduleReregister() // ready to read bytes now
}

// CloseWrite closes wb; once the selector loop drains it, the write side
// of the descriptor is half-closed.
func (t *transport) CloseWrite() error {
	t.wb.Close()
	t.scheduleReregister()
	return nil
}

// CloseRead schedules a selector task that half-closes the read side.
func (t *transport) CloseRead() error {
	t.hub.ScheduleSelectorTask(func() error { return t.self.closeR() })
	return nil
}

// RemoteCapability returns the token negotiated at construction.
func (t *transport) RemoteCapability() api.Capability { return t.remoteCap }

// wantsToRead reports that rb has room and a receiver is installed.
func (t *transport) wantsToRead() bool {
	return t.loadReceiver() != nil && t.rb.Writable() != 0
}

// wantsToWrite reports that wb has bytes queued, or is closed and must
// still be observed by the loop so the write side gets half-closed.
func (t *transport) wantsToWrite() bool {
	return t.wb.Readable() != 0
}

// abort closes both halves, ignoring I/O errors, and terminates the
// receiver with a wrapping error. Selector goroutine only.
func (t *transport) abort(cause error) {
	t.hub.assertSelectorGoroutine()
	if err := multierr.Append(t.self.closeR(), t.self.closeW()); err != nil {
		t.hub.log.Debug("abort close", zap.Error(err))
	}
	t.terminate(fmt.Errorf("chunkmux: transport aborted: %w", cause))
}

// terminate delivers the terminal receiver callback at most once,
// sequenced behind every packet already dispatched, and drops the
// endpoint back-reference.
func (t *transport) terminate(err error) {
	if !t.terminated.CompareAndSwap(false, true) {
		return
	}
	t.endpoint.Store(&endpointRef{})
	r := t.loadReceiver()
	if r == nil {
		return
	}
	if serr := t.lane.Submit(func() { r.Terminate(err) }); serr != nil {
		t.hub.log.Warn("failed to dispatch terminate", zap.Error(serr))
	}
}

// scheduleReregister asks the selector goroutine to recompute the
// interest set.
func (t *transport) scheduleReregister() {
	t.hub.ScheduleSelectorTask(func() error { return t.self.reregister() })
}

// interest recomputes the selector interest set from buffer and
// half-close state.
func (t *transport) interest() poller.Interest {
	var in poller.Interest
	if t.wantsToRead() && t.self.isRopen() {
		in |= poller.Read
	}
	if t.wantsToWrite() && t.self.isWopen() {
		in |= poller.Write
	}
	return in
}
