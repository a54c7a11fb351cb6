// File: builder_test.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package chunkmux

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/chunkmux/api"
)

func TestBuilderFallsBackForNonSelectableStreams(t *testing.T) {
	h := startHub(t)

	called := false
	fallback := func(r io.Reader, w io.Writer, mode Mode, cap api.Capability) (api.Transport, error) {
		called = true
		return nil, nil
	}
	b := h.NewChannelBuilder("buffered", fallback)
	_, err := b.Transport(&bytes.Buffer{}, &bytes.Buffer{}, ModeBinary, testCap{chunking: true})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestBuilderFallsBackWithoutChunkSupport(t *testing.T) {
	h := startHub(t)
	local, _ := sockFiles(t)

	called := false
	fallback := func(r io.Reader, w io.Writer, mode Mode, cap api.Capability) (api.Transport, error) {
		called = true
		return nil, nil
	}
	b := h.NewChannelBuilder("legacy", fallback)
	_, err := b.Transport(local, local, ModeBinary, testCap{chunking: false})
	require.NoError(t, err)
	assert.True(t, called)

	called = false
	_, err = b.Transport(local, local, ModeText, testCap{chunking: true})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestBuilderErrorsWithoutFallback(t *testing.T) {
	h := startHub(t)
	b := h.NewChannelBuilder("nofallback", nil)
	_, err := b.Transport(&bytes.Buffer{}, &bytes.Buffer{}, ModeBinary, testCap{chunking: true})
	require.Error(t, err)
}

func TestBuilderRequiresRunningHub(t *testing.T) {
	exec := newTestExecutor(t)
	h, err := NewHub(exec)
	require.NoError(t, err)
	defer h.Close()

	local, _ := sockFiles(t)
	b := h.NewChannelBuilder("early", nil)
	_, err = b.Transport(local, local, ModeBinary, testCap{chunking: true})
	require.ErrorIs(t, err, ErrHubNotRunning)
}

func TestBuilderPicksMonoForSharedDescriptor(t *testing.T) {
	h := startHub(t)
	local, _ := sockFiles(t)
	b := h.NewChannelBuilder("mono", nil)
	tr, err := b.Transport(local, local, ModeBinary, testCap{chunking: true})
	require.NoError(t, err)
	assert.IsType(t, &monoTransport{}, tr)
}

func TestDualTransportOverPipes(t *testing.T) {
	h := startHub(t)

	inR, inW, err := os.Pipe() // peer -> hub
	require.NoError(t, err)
	outR, outW, err := os.Pipe() // hub -> peer
	require.NoError(t, err)
	t.Cleanup(func() {
		runtime.KeepAlive(inR)
		runtime.KeepAlive(outW)
		inW.Close()
		outR.Close()
	})

	b := h.NewChannelBuilder("pipes", nil)
	tr, err := b.Transport(inR, outW, ModeBinary, testCap{chunking: true})
	require.NoError(t, err)
	assert.IsType(t, &dualTransport{}, tr)

	recv := newTestReceiver()
	tr.Setup(newTestEndpoint(), recv)

	_, err = inW.Write(wire(8192, []byte("through the pipe")))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(recv.snapshot()) == 1 },
		2*time.Second, time.Millisecond)
	require.Equal(t, "through the pipe", string(recv.snapshot()[0]))
}

func TestFrameSizeValidation(t *testing.T) {
	h := startHub(t)
	require.NoError(t, h.SetFrameSize(1))
	require.NoError(t, h.SetFrameSize(32767))
	require.Error(t, h.SetFrameSize(0))
	require.Error(t, h.SetFrameSize(-5))
	require.Error(t, h.SetFrameSize(32768))

	_, err := NewHub(newTestExecutor(t), WithFrameSize(40000))
	require.Error(t, err)
}
