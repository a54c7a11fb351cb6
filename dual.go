// File: dual.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// dualTransport drives two distinct descriptors, one per direction, such
// as the two ends of a pipe pair. Each side has its own key and is closed
// outright; there is no half-close to negotiate.

package chunkmux

import (
	"go.uber.org/multierr"

	"github.com/momentics/chunkmux/api"
	"github.com/momentics/chunkmux/core/buffer"
	"github.com/momentics/chunkmux/internal/poller"
)

type dualTransport struct {
	transport

	rfd, wfd   int
	rkey, wkey *poller.Key
}

func newDualTransport(h *Hub, rfd, wfd int, cap api.Capability) *dualTransport {
	t := &dualTransport{rfd: rfd, wfd: wfd}
	t.transport.init(h, cap, t)
	return t
}

func (t *dualTransport) rr() buffer.ByteSource { return poller.FDSource{FD: t.rfd} }
func (t *dualTransport) ww() buffer.ByteSink   { return poller.FDSink{FD: t.wfd} }

func (t *dualTransport) isRopen() bool { return t.rfd >= 0 }
func (t *dualTransport) isWopen() bool { return t.wfd >= 0 }

func (t *dualTransport) closeR() error {
	t.hub.assertSelectorGoroutine()
	if t.rfd < 0 {
		return nil
	}
	var err error
	if t.rkey != nil {
		err = t.rkey.Cancel()
		t.rkey = nil
	}
	err = multierr.Append(err, poller.CloseFD(t.rfd))
	t.rfd = -1
	t.rb.Close() // no more data will enter rb, so signal EOF
	return err
}

func (t *dualTransport) closeW() error {
	t.hub.assertSelectorGoroutine()
	if t.wfd < 0 {
		return nil
	}
	var err error
	if t.wkey != nil {
		err = t.wkey.Cancel()
		t.wkey = nil
	}
	err = multierr.Append(err, poller.CloseFD(t.wfd))
	t.wfd = -1
	t.wb.Close() // wb will not accept incoming data any more
	return err
}

func (t *dualTransport) reregister() error {
	t.hub.assertSelectorGoroutine()
	var err error
	if t.isRopen() {
		var in poller.Interest
		if t.wantsToRead() {
			in = poller.Read
		}
		if t.rkey == nil {
			t.rkey, err = t.hub.sel.Register(t.rfd, in, t)
		} else {
			err = t.rkey.SetInterest(in)
		}
		if err != nil {
			return err
		}
	}
	if t.isWopen() {
		var in poller.Interest
		if t.wantsToWrite() {
			in = poller.Write
		}
		if t.wkey == nil {
			t.wkey, err = t.hub.sel.Register(t.wfd, in, t)
		} else {
			err = t.wkey.SetInterest(in)
		}
	}
	return err
}
