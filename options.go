// File: options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for hub construction.

package chunkmux

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/momentics/chunkmux/core/protocol"
	"github.com/momentics/chunkmux/internal/poller"
)

// Option configures a Hub at construction time.
type Option func(*Hub) error

// WithLogger sets the hub logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Hub) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		h.log = logger
		return nil
	}
}

// WithFrameSize sets the maximum per-chunk payload length the hub frames
// outgoing packets with. Must be in (0, 32767].
func WithFrameSize(sz int) Option {
	return func(h *Hub) error {
		return h.SetFrameSize(sz)
	}
}

// WithEventCapacity sets how many readiness events one selector pass can
// carry. The default is 256.
func WithEventCapacity(n int) Option {
	return func(h *Hub) error {
		if n <= 0 {
			return fmt.Errorf("chunkmux: event capacity must be positive, got %d", n)
		}
		h.eventCap = n
		return nil
	}
}

// WithSelectedHook installs a callback for readiness events whose key
// attachment is not a hub transport, so embedders can register foreign
// descriptors with the hub selector.
func WithSelectedHook(hook func(*poller.Key)) Option {
	return func(h *Hub) error {
		h.selectedHook = hook
		return nil
	}
}

func validFrameSize(sz int) error {
	if sz <= 0 || sz > protocol.MaxChunkPayload {
		return fmt.Errorf("chunkmux: frame size must be in (0, %d], got %d", protocol.MaxChunkPayload, sz)
	}
	return nil
}
