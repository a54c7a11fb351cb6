// File: hub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Hub is the switch board of many chunked command streams through one
// readiness selector. N worker goroutines attend to M transports with the
// help of a single selector goroutine: the loop pumps bytes between the
// descriptors and the per-transport FIFOs, reassembles length-prefixed
// chunks into whole command packets, and dispatches them in arrival order
// through each transport's lane.
//
// Call Run from a dedicated goroutine after constructing the hub; it
// blocks until Close.

package chunkmux

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/petermattis/goid"
	"go.uber.org/zap"

	"github.com/momentics/chunkmux/api"
	"github.com/momentics/chunkmux/core/concurrency"
	"github.com/momentics/chunkmux/core/protocol"
	"github.com/momentics/chunkmux/internal/poller"
)

// Hub multiplexes registered transports over one selector goroutine.
type Hub struct {
	sel  *poller.Selector
	exec api.Executor
	log  *zap.Logger

	// tasks carries work that must run synchronously with the selector:
	// registration changes, half-closes, interest updates. It is the only
	// way other goroutines mutate selector state.
	tasks *concurrency.MPSC[func() error]

	frameSize    atomic.Int32
	loopID       atomic.Int64
	gen          uint64
	state        atomic.Value // string, diagnostics only
	eventCap     int
	selectedHook func(*poller.Key)
}

// NewHub creates an idle hub whose receiver callbacks run on exec. Call
// Run to start attending to transports.
func NewHub(exec api.Executor, opts ...Option) (*Hub, error) {
	sel, err := poller.Open()
	if err != nil {
		return nil, err
	}
	h := &Hub{
		sel:      sel,
		exec:     exec,
		log:      zap.NewNop(),
		tasks:    concurrency.NewMPSC[func() error](),
		eventCap: 256,
	}
	h.frameSize.Store(protocol.DefaultFrameSize)
	h.state.Store("chunkmux idle")
	for _, opt := range opts {
		if err := opt(h); err != nil {
			sel.Close()
			return nil, err
		}
	}
	return h, nil
}

// SetFrameSize changes the maximum per-chunk payload length for packets
// framed from now on. Must be in (0, 32767].
func (h *Hub) SetFrameSize(sz int) error {
	if err := validFrameSize(sz); err != nil {
		return err
	}
	h.frameSize.Store(int32(sz))
	return nil
}

// FrameSize returns the current per-chunk payload cap.
func (h *Hub) FrameSize() int { return int(h.frameSize.Load()) }

// Running reports whether a goroutine is inside Run.
func (h *Hub) Running() bool { return h.loopID.Load() != 0 }

// State returns the diagnostic loop descriptor, refreshed every selector
// iteration with the live key count and generation counter. No program
// logic may depend on it.
func (h *Hub) State() string { return h.state.Load().(string) }

// ScheduleSelectorTask enqueues task for execution on the selector
// goroutine and wakes the selector. Safe from any goroutine; failures are
// logged, not propagated, so one bad task cannot kill the loop.
func (h *Hub) ScheduleSelectorTask(task func() error) {
	h.tasks.Push(task)
	h.sel.Wakeup()
}

// Close shuts the selector down. A blocked Run observes the closed
// selector, aborts every registered transport with ErrHubClosed, and
// returns.
func (h *Hub) Close() error {
	return h.sel.Close()
}

// Run attends to the transports of the hub. It blocks until Close is
// called, a selector-level I/O error occurs, or a panic escapes a
// selector task; per-transport failures abort only that transport.
func (h *Hub) Run() error {
	if !h.loopID.CompareAndSwap(0, goid.Get()) {
		return ErrAlreadyRunning
	}
	defer h.loopID.Store(0)
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("unexpected shutdown of the selector goroutine", zap.Any("panic", r))
			h.abortAll(fmt.Errorf("chunkmux: selector goroutine panicked: %v", r))
			panic(r)
		}
	}()

	events := make([]poller.Event, h.eventCap)
	for {
		h.drainTasks()

		h.gen++
		h.state.Store(fmt.Sprintf("chunkmux keys=%d gen=%d", h.sel.KeyCount(), h.gen))

		n, err := h.sel.Select(events)
		if err != nil {
			if errors.Is(err, poller.ErrSelectorClosed) {
				h.abortAll(ErrHubClosed)
				return nil
			}
			h.log.Warn("failed to select", zap.Error(err))
			h.abortAll(err)
			return err
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			t, ok := ev.Key.Attachment().(nioTransport)
			if !ok {
				if h.selectedHook != nil {
					h.selectedHook(ev.Key)
				}
				continue
			}
			h.service(t, ev)
		}
	}
}

func (h *Hub) drainTasks() {
	for {
		task, ok := h.tasks.Pop()
		if !ok {
			return
		}
		if err := task(); err != nil {
			h.log.Warn("failed to process selector task", zap.Error(err))
		}
	}
}

// service pumps one transport for one readiness event. Errors are
// contained: the transport is aborted and the loop moves on.
func (h *Hub) service(t nioTransport, ev poller.Event) {
	b := t.base()
	if ev.Readable && ev.Key.Valid() {
		if err := h.serviceRead(t); err != nil {
			h.log.Warn("communication problem", zap.Int("fd", ev.Key.FD()), zap.Error(err))
			t.abort(err)
			return
		}
		if b.aborted() {
			return
		}
	}
	if ev.Writable && ev.Key.Valid() {
		n, err := b.wb.Send(t.ww())
		if err != nil {
			h.log.Warn("communication problem", zap.Int("fd", ev.Key.FD()), zap.Error(err))
			t.abort(err)
			return
		}
		if n < 0 {
			// Queued bytes are fully flushed and the buffer is closed.
			if err := t.closeW(); err != nil {
				h.log.Warn("failed to close write side", zap.Error(err))
				t.abort(err)
				return
			}
		}
	}
	if err := t.reregister(); err != nil {
		h.log.Warn("failed to update interest set", zap.Error(err))
		t.abort(err)
	}
}

func (h *Hub) serviceRead(t nioTransport) error {
	b := t.base()
	n, err := b.rb.Receive(t.rr())
	if err != nil {
		return err
	}
	if n == -1 {
		if err := t.closeR(); err != nil {
			return err
		}
	}

	if err := h.reassemble(t); err != nil {
		return err
	}

	if b.rb.Writable() == 0 && b.rb.Readable() > 0 {
		// The buffer hit its hard cap without a complete packet in view.
		// Abort to avoid an infinite hang.
		err := fmt.Errorf("chunkmux: command buffer overflow: read %d bytes but still too small for a single command", b.rb.Readable())
		h.log.Warn("command buffer overflow", zap.Int("readable", b.rb.Readable()))
		t.abort(err)
		return nil
	}

	if b.rb.Closed() {
		// EOF. Sequence it behind every packet already dispatched; an
		// endpoint that initiated the close expects it and is not told.
		ep := b.loadEndpoint()
		if err := b.lane.Submit(func() {
			if ep != nil && !ep.IsClosing() {
				ep.Terminate(errors.New("chunkmux: unexpected EOF from peer"))
			}
		}); err != nil {
			h.log.Warn("failed to dispatch EOF event", zap.Error(err))
		}
	}
	return nil
}

// reassemble scans rb for complete packets without consuming speculatively
// and dispatches each one through the transport's lane. A partial packet
// stays in rb intact for the next readiness event.
func (h *Hub) reassemble(t nioTransport) error {
	b := t.base()
	recv := b.loadReceiver()
	if recv == nil {
		return nil
	}

	var hdr [protocol.HeaderLen]byte
	pos, packetSize := 0, 0
	for {
		if b.rb.Peek(pos, hdr[:]) < protocol.HeaderLen {
			return nil // not enough buffered to parse the next header
		}
		head, err := protocol.Parse(hdr[:])
		if err != nil {
			return err
		}
		pos += protocol.HeaderLen + head.Length()
		packetSize += head.Length()
		if !head.Last() || pos > b.rb.Readable() {
			continue // packet still incomplete, keep scanning
		}

		// The whole packet is buffered: consume it chunk by chunk.
		packet := make([]byte, packetSize)
		rptr := 0
		for {
			if b.rb.ReadNonBlocking(hdr[:]) != protocol.HeaderLen {
				return errors.New("chunkmux: truncated chunk header")
			}
			head, err = protocol.Parse(hdr[:])
			if err != nil {
				return err
			}
			c := head.Length()
			if b.rb.ReadNonBlocking(packet[rptr:rptr+c]) != c {
				return errors.New("chunkmux: truncated chunk payload")
			}
			rptr += c
			if head.Last() {
				break
			}
		}

		pkt := packet
		if err := b.lane.Submit(func() { recv.Handle(pkt) }); err != nil {
			h.log.Warn("failed to dispatch packet", zap.Error(err))
		}
		pos, packetSize = 0, 0
	}
}

// abortAll tears down every registered transport. Selector goroutine only.
func (h *Hub) abortAll(cause error) {
	seen := make(map[nioTransport]struct{})
	h.sel.Each(func(k *poller.Key) {
		if t, ok := k.Attachment().(nioTransport); ok {
			seen[t] = struct{}{}
		}
	})
	for t := range seen {
		t.abort(cause)
	}
}

// assertSelectorGoroutine guards the selector-thread-only operations. It
// fails loudly on misuse instead of corrupting registration state.
func (h *Hub) assertSelectorGoroutine() {
	if goid.Get() != h.loopID.Load() {
		panic("chunkmux: selector-thread-only operation invoked off the selector goroutine")
	}
}
