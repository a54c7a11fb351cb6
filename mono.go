// File: mono.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// monoTransport drives a single duplex descriptor. Half-close goes
// through two shutdown strategies so closing one direction leaves the
// other live; the key is cancelled and the descriptor closed only when
// both are gone.

package chunkmux

import (
	"go.uber.org/multierr"

	"github.com/momentics/chunkmux/api"
	"github.com/momentics/chunkmux/core/buffer"
	"github.com/momentics/chunkmux/internal/poller"
)

type monoTransport struct {
	transport

	fd  int
	key *poller.Key

	// Shutdown strategies for each direction; nil once that half is
	// closed.
	rdShut func() error
	wrShut func() error
}

func newMonoTransport(h *Hub, fd int, cap api.Capability) *monoTransport {
	t := &monoTransport{fd: fd}
	t.transport.init(h, cap, t)
	t.rdShut = func() error { return poller.ShutdownRead(fd) }
	t.wrShut = func() error { return poller.ShutdownWrite(fd) }
	return t
}

func (t *monoTransport) rr() buffer.ByteSource { return poller.FDSource{FD: t.fd} }
func (t *monoTransport) ww() buffer.ByteSink   { return poller.FDSink{FD: t.fd} }

func (t *monoTransport) isRopen() bool { return t.rdShut != nil }
func (t *monoTransport) isWopen() bool { return t.wrShut != nil }

func (t *monoTransport) closeR() error {
	t.hub.assertSelectorGoroutine()
	if t.rdShut == nil {
		return nil
	}
	err := t.rdShut()
	t.rdShut = nil
	t.rb.Close() // no more data will enter rb, so signal EOF
	return multierr.Append(err, t.maybeCancelKey())
}

func (t *monoTransport) closeW() error {
	t.hub.assertSelectorGoroutine()
	if t.wrShut == nil {
		return nil
	}
	err := t.wrShut()
	t.wrShut = nil
	t.wb.Close() // wb will not accept incoming data any more
	return multierr.Append(err, t.maybeCancelKey())
}

func (t *monoTransport) reregister() error {
	t.hub.assertSelectorGoroutine()
	if t.fd < 0 {
		return nil
	}
	if t.key == nil {
		key, err := t.hub.sel.Register(t.fd, t.interest(), t)
		if err != nil {
			return err
		}
		t.key = key
		return nil
	}
	return t.key.SetInterest(t.interest())
}

// maybeCancelKey drops the selector registration and closes the
// descriptor once both halves are shut; otherwise it narrows the
// interest set to the surviving direction.
func (t *monoTransport) maybeCancelKey() error {
	if t.rdShut != nil || t.wrShut != nil {
		return t.reregister()
	}
	var err error
	if t.key != nil {
		err = t.key.Cancel()
		t.key = nil
	}
	err = multierr.Append(err, poller.CloseFD(t.fd))
	t.fd = -1
	return err
}
