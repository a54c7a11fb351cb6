// File: internal/poller/selector_stub.go
//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub selector for platforms without epoll. Open fails; the types exist
// so the hub compiles everywhere and callers fall back to non-selector
// transports.

package poller

// Key is one registered descriptor.
type Key struct{}

func (k *Key) FD() int                    { return -1 }
func (k *Key) Attachment() any            { return nil }
func (k *Key) Interest() Interest         { return 0 }
func (k *Key) Valid() bool                { return false }
func (k *Key) SetInterest(Interest) error { return ErrUnsupportedPlatform }
func (k *Key) Cancel() error              { return nil }

// Selector is unavailable on this platform.
type Selector struct{}

// Open reports that no readiness facility exists here.
func Open() (*Selector, error) { return nil, ErrUnsupportedPlatform }

func (s *Selector) Register(int, Interest, any) (*Key, error) { return nil, ErrUnsupportedPlatform }
func (s *Selector) KeyCount() int                             { return 0 }
func (s *Selector) Each(func(*Key))                           {}
func (s *Selector) Select([]Event) (int, error)               { return 0, ErrUnsupportedPlatform }
func (s *Selector) Wakeup()                                   {}
func (s *Selector) Close() error                              { return nil }

// FDSource adapts a readable non-blocking descriptor.
type FDSource struct{ FD int }

func (s FDSource) ReadNonBlocking([]byte) (int, error) { return 0, ErrUnsupportedPlatform }

// FDSink adapts a writable non-blocking descriptor.
type FDSink struct{ FD int }

func (s FDSink) WriteNonBlocking([]byte) (int, error) { return 0, ErrUnsupportedPlatform }

func SetNonblock(int) error   { return ErrUnsupportedPlatform }
func ShutdownRead(int) error  { return ErrUnsupportedPlatform }
func ShutdownWrite(int) error { return ErrUnsupportedPlatform }
func CloseFD(int) error       { return ErrUnsupportedPlatform }
