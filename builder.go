// File: builder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ChannelBuilder turns a pair of byte streams into a hub transport. The
// selector path needs raw descriptors, so the builder probes the streams
// for one; anything it cannot select on is handed to the caller-supplied
// fallback factory, which the hub does not manage.

package chunkmux

import (
	"fmt"
	"io"
	"syscall"

	"go.uber.org/zap"

	"github.com/momentics/chunkmux/api"
	"github.com/momentics/chunkmux/internal/poller"
)

// Mode is the negotiated framing mode of a channel.
type Mode int

const (
	// ModeBinary frames commands as chunked binary packets. The only
	// mode the selector path speaks.
	ModeBinary Mode = iota
	// ModeText is a legacy escape hatch; always served by the fallback.
	ModeText
)

// FallbackFactory builds a transport for streams the hub cannot select
// on. The resulting transport services its own I/O.
type FallbackFactory func(r io.Reader, w io.Writer, mode Mode, cap api.Capability) (api.Transport, error)

// ChannelBuilder adds channels to a hub.
type ChannelBuilder struct {
	hub      *Hub
	name     string
	fallback FallbackFactory
}

// NewChannelBuilder returns a builder that registers new transports with
// this hub, falling back to fallback for non-selectable streams.
func (h *Hub) NewChannelBuilder(name string, fallback FallbackFactory) *ChannelBuilder {
	return &ChannelBuilder{hub: h, name: name, fallback: fallback}
}

// Transport builds a transport for the given stream pair. When both
// streams expose a descriptor, the mode is binary and the peer advertises
// chunk support, the hub takes over their I/O: one shared descriptor
// yields a mono transport, distinct descriptors a dual one. The hub must
// already be running.
func (b *ChannelBuilder) Transport(r io.Reader, w io.Writer, mode Mode, cap api.Capability) (api.Transport, error) {
	rfd, rok := selectableFD(r)
	wfd, wok := selectableFD(w)

	if rok && wok && mode == ModeBinary && cap != nil && cap.SupportsChunking() {
		if !b.hub.Running() {
			return nil, ErrHubNotRunning
		}
		var t nioTransport
		if rfd == wfd {
			if err := prepareFDs(rfd); err != nil {
				return nil, err
			}
			t = newMonoTransport(b.hub, rfd, cap)
		} else {
			if err := prepareFDs(rfd, wfd); err != nil {
				return nil, err
			}
			t = newDualTransport(b.hub, rfd, wfd, cap)
		}
		t.base().scheduleReregister()
		b.hub.log.Debug("transport registered",
			zap.String("channel", b.name),
			zap.Bool("mono", rfd == wfd))
		return t, nil
	}

	if b.fallback == nil {
		return nil, fmt.Errorf("chunkmux: channel %q: streams are not selectable and no fallback factory is configured", b.name)
	}
	return b.fallback(r, w, mode, cap)
}

func prepareFDs(fds ...int) error {
	for _, fd := range fds {
		if err := poller.SetNonblock(fd); err != nil {
			return fmt.Errorf("chunkmux: set nonblocking on fd %d: %w", fd, err)
		}
	}
	return nil
}

// selectableFD extracts the descriptor behind a stream, if any. Streams
// built on *os.File or anything exposing syscall.Conn qualify; from here
// on the hub owns the descriptor's readiness.
func selectableFD(v any) (int, bool) {
	if v == nil {
		return -1, false
	}
	if f, ok := v.(interface{ Fd() uintptr }); ok {
		return int(f.Fd()), true
	}
	if sc, ok := v.(syscall.Conn); ok {
		raw, err := sc.SyscallConn()
		if err != nil {
			return -1, false
		}
		fd := -1
		if err := raw.Control(func(u uintptr) { fd = int(u) }); err != nil {
			return -1, false
		}
		return fd, fd >= 0
	}
	return -1, false
}
