// File: internal/poller/selector_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll implementation of the selector. Level-triggered on purpose:
// the hub recomputes each key's interest set after every service pass, so
// edge-triggered draining discipline would buy nothing and cost bugs.

package poller

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Key is one registered descriptor: its interest set and attachment.
// All mutation happens on the selecting goroutine.
type Key struct {
	fd         int
	interest   Interest
	attachment any
	sel        *Selector
	registered bool // currently in the epoll interest list
	cancelled  bool
}

// FD returns the registered descriptor.
func (k *Key) FD() int { return k.fd }

// Attachment returns the value attached at registration.
func (k *Key) Attachment() any { return k.attachment }

// Interest returns the current interest set.
func (k *Key) Interest() Interest { return k.interest }

// Valid reports whether the key is still registered with a live selector.
func (k *Key) Valid() bool {
	return !k.cancelled && !k.sel.closed.Load()
}

// SetInterest replaces the interest set. An empty set removes the
// descriptor from the epoll list without cancelling the key, since epoll
// cannot mask EPOLLHUP and a dead peer would otherwise spin the loop.
func (k *Key) SetInterest(in Interest) error {
	if k.cancelled {
		return nil
	}
	if k.sel.closed.Load() {
		return ErrSelectorClosed
	}
	k.interest = in
	switch {
	case in == 0 && k.registered:
		if err := unix.EpollCtl(k.sel.epfd, unix.EPOLL_CTL_DEL, k.fd, nil); err != nil {
			return fmt.Errorf("poller: epoll del fd %d: %w", k.fd, err)
		}
		k.registered = false
	case in != 0 && !k.registered:
		ev := unix.EpollEvent{Events: epollEvents(in), Fd: int32(k.fd)}
		if err := unix.EpollCtl(k.sel.epfd, unix.EPOLL_CTL_ADD, k.fd, &ev); err != nil {
			return fmt.Errorf("poller: epoll add fd %d: %w", k.fd, err)
		}
		k.registered = true
	case in != 0:
		ev := unix.EpollEvent{Events: epollEvents(in), Fd: int32(k.fd)}
		if err := unix.EpollCtl(k.sel.epfd, unix.EPOLL_CTL_MOD, k.fd, &ev); err != nil {
			return fmt.Errorf("poller: epoll mod fd %d: %w", k.fd, err)
		}
	}
	return nil
}

// Cancel removes the key from the selector. Idempotent; safe after the
// selector has been closed.
func (k *Key) Cancel() error {
	if k.cancelled {
		return nil
	}
	k.cancelled = true
	delete(k.sel.keys, k.fd)
	if k.registered && !k.sel.closed.Load() {
		k.registered = false
		if err := unix.EpollCtl(k.sel.epfd, unix.EPOLL_CTL_DEL, k.fd, nil); err != nil {
			return fmt.Errorf("poller: epoll del fd %d: %w", k.fd, err)
		}
	}
	return nil
}

// Selector multiplexes readiness over registered keys. Select must only
// be called from one goroutine; Wakeup and Close are safe from any.
type Selector struct {
	epfd   int
	wakefd int

	keys     map[int]*Key // selecting-goroutine owned
	epEvents []unix.EpollEvent

	closed    atomic.Bool
	selecting atomic.Bool
	release   sync.Once
}

// Open creates a selector with its wakeup eventfd already registered.
func Open() (*Selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("poller: epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("poller: eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(epfd)
		unix.Close(wakefd)
		return nil, fmt.Errorf("poller: register wakeup: %w", err)
	}
	return &Selector{
		epfd:     epfd,
		wakefd:   wakefd,
		keys:     make(map[int]*Key),
		epEvents: make([]unix.EpollEvent, 256),
	}, nil
}

// Register adds fd with the given interest and attachment. Registering a
// descriptor that already has a key updates it in place and returns the
// existing key. Selecting-goroutine only.
func (s *Selector) Register(fd int, in Interest, attachment any) (*Key, error) {
	if s.closed.Load() {
		return nil, ErrSelectorClosed
	}
	if k, ok := s.keys[fd]; ok {
		k.attachment = attachment
		return k, k.SetInterest(in)
	}
	k := &Key{fd: fd, attachment: attachment, sel: s}
	s.keys[fd] = k
	if err := k.SetInterest(in); err != nil {
		delete(s.keys, fd)
		return nil, err
	}
	return k, nil
}

// KeyCount returns the number of live keys. Selecting-goroutine only.
func (s *Selector) KeyCount() int { return len(s.keys) }

// Each visits a snapshot of the live keys, so the callback may cancel
// them. Selecting-goroutine only.
func (s *Selector) Each(f func(*Key)) {
	snapshot := make([]*Key, 0, len(s.keys))
	for _, k := range s.keys {
		snapshot = append(snapshot, k)
	}
	for _, k := range snapshot {
		f(k)
	}
}

// Select blocks until at least one key is ready or Wakeup is called, and
// fills events with readiness notifications filtered by each key's
// interest set. Returns ErrSelectorClosed once Close has been called.
func (s *Selector) Select(events []Event) (int, error) {
	for {
		if s.closed.Load() {
			s.releaseFDs()
			return 0, ErrSelectorClosed
		}
		s.selecting.Store(true)
		n, err := unix.EpollWait(s.epfd, s.epEvents, -1)
		s.selecting.Store(false)
		if s.closed.Load() {
			s.releaseFDs()
			return 0, ErrSelectorClosed
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EBADF {
				s.releaseFDs()
				return 0, ErrSelectorClosed
			}
			return 0, fmt.Errorf("poller: epoll wait: %w", err)
		}

		out := 0
		for i := 0; i < n && out < len(events); i++ {
			fd := int(s.epEvents[i].Fd)
			if fd == s.wakefd {
				s.drainWakeup()
				continue
			}
			k := s.keys[fd]
			if k == nil || k.cancelled {
				continue
			}
			flags := s.epEvents[i].Events
			hang := flags&(unix.EPOLLERR|unix.EPOLLHUP) != 0
			ev := Event{
				Key:      k,
				Readable: k.interest&Read != 0 && (flags&unix.EPOLLIN != 0 || hang),
				Writable: k.interest&Write != 0 && (flags&unix.EPOLLOUT != 0 || hang),
			}
			if ev.Readable || ev.Writable {
				events[out] = ev
				out++
			}
		}
		return out, nil
	}
}

// Wakeup unblocks a pending or upcoming Select. Safe from any goroutine.
func (s *Selector) Wakeup() {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	_, _ = unix.Write(s.wakefd, one[:]) // counter overflow still wakes
}

// Close marks the selector closed and wakes the selecting goroutine,
// which observes the flag and returns ErrSelectorClosed. When nothing is
// blocked in Select, the descriptors are released immediately.
func (s *Selector) Close() error {
	s.closed.Store(true)
	s.Wakeup()
	if !s.selecting.Load() {
		s.releaseFDs()
	}
	return nil
}

func (s *Selector) releaseFDs() {
	s.release.Do(func() {
		unix.Close(s.epfd)
		unix.Close(s.wakefd)
	})
}

func (s *Selector) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(s.wakefd, buf[:]); err != nil {
			return
		}
	}
}

func epollEvents(in Interest) uint32 {
	var ev uint32
	if in&Read != 0 {
		ev |= unix.EPOLLIN
	}
	if in&Write != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}
