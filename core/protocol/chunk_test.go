// File: core/protocol/chunk_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/chunkmux/core/protocol"
)

func TestPackParseRoundTrip(t *testing.T) {
	for _, hasMore := range []bool{false, true} {
		for n := 0; n <= protocol.MaxChunkPayload; n++ {
			b := protocol.Pack(n, hasMore)
			h, err := protocol.Parse(b[:])
			require.NoError(t, err)
			require.Equal(t, n, h.Length())
			require.Equal(t, !hasMore, h.Last())
		}
	}
}

func TestPackWireLayout(t *testing.T) {
	// Final chunk of length 2, as it appears on the wire.
	b := protocol.Pack(2, false)
	assert.Equal(t, [2]byte{0x80, 0x02}, b)

	// Intermediate chunk of length 4.
	b = protocol.Pack(4, true)
	assert.Equal(t, [2]byte{0x00, 0x04}, b)

	// Zero-length terminator is legal.
	b = protocol.Pack(0, false)
	assert.Equal(t, [2]byte{0x80, 0x00}, b)
}

func TestParseShortHeader(t *testing.T) {
	_, err := protocol.Parse([]byte{0x80})
	assert.Error(t, err)

	_, err = protocol.Parse(nil)
	assert.Error(t, err)
}

func TestPackRejectsOversizedChunk(t *testing.T) {
	assert.Panics(t, func() { protocol.Pack(protocol.MaxChunkPayload+1, false) })
	assert.Panics(t, func() { protocol.Pack(-1, true) })
}
