// File: internal/poller/handle_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking descriptor adapters. These implement the byte source and
// sink shapes the Fifo moves data through, mapping EAGAIN to "no progress"
// and a zero-length read to EOF.

package poller

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// FDSource adapts a readable non-blocking descriptor to buffer.ByteSource.
type FDSource struct {
	FD int
}

// ReadNonBlocking reads into p. Returns (0, nil) when the descriptor has
// nothing right now and io.EOF once the peer has closed its write side.
func (s FDSource) ReadNonBlocking(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Read(s.FD, p)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, nil
	case err != nil:
		return 0, os.NewSyscallError("read", err)
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

// FDSink adapts a writable non-blocking descriptor to buffer.ByteSink.
type FDSink struct {
	FD int
}

// WriteNonBlocking writes p. Returns (0, nil) when the descriptor cannot
// accept bytes right now.
func (s FDSink) WriteNonBlocking(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Write(s.FD, p)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, nil
	case err != nil:
		return 0, os.NewSyscallError("write", err)
	}
	return n, nil
}

// SetNonblock switches fd to non-blocking mode.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// ShutdownRead half-closes the receive direction of a connected socket.
// A peer that is already gone is not an error.
func ShutdownRead(fd int) error {
	return shutdown(fd, unix.SHUT_RD)
}

// ShutdownWrite half-closes the send direction of a connected socket.
func ShutdownWrite(fd int) error {
	return shutdown(fd, unix.SHUT_WR)
}

func shutdown(fd, how int) error {
	err := unix.Shutdown(fd, how)
	if err == unix.ENOTCONN {
		return nil
	}
	if err != nil {
		return os.NewSyscallError("shutdown", err)
	}
	return nil
}

// CloseFD closes the descriptor.
func CloseFD(fd int) error {
	if err := unix.Close(fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
