//go:build linux
// +build linux

// File: lowlevel/poll/epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) poller. Level-triggered on purpose: receive loops drain
// frames incrementally across readiness events, and level triggering
// re-arms automatically while unread bytes remain.

package poll

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-link/api"
)

const epollBatch = 64

// Epoll multiplexes many sockets through one epoll instance.
type Epoll struct {
	epfd  int
	socks map[int]api.Socket // fd -> socket
	tags  map[int]int        // fd -> tag
	ready []int              // fds from the last kernel wait, not yet handed out
	evs   []unix.EpollEvent
}

var _ api.Poller = (*Epoll)(nil)

// NewEpoll creates an empty epoll poller.
func NewEpoll() (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Epoll{
		epfd:  epfd,
		socks: make(map[int]api.Socket),
		tags:  make(map[int]int),
		evs:   make([]unix.EpollEvent, epollBatch),
	}, nil
}

// Add registers a socket for EPOLLIN readiness under a tag.
func (p *Epoll) Add(s api.Socket, tag int) error {
	fd := s.FD()
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	p.socks[fd] = s
	p.tags[fd] = tag
	return nil
}

// Remove drops a socket and reports how many remain registered.
func (p *Epoll) Remove(s api.Socket) (int, error) {
	fd := s.FD()
	if _, ok := p.socks[fd]; !ok {
		return len(p.socks), nil
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return len(p.socks), fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	delete(p.socks, fd)
	delete(p.tags, fd)
	return len(p.socks), nil
}

// Wait blocks until some registered socket is readable. Events gathered by
// one epoll_wait are handed out one socket per Wait.
func (p *Epoll) Wait() (api.Socket, int, error) {
	for {
		for len(p.ready) > 0 {
			fd := p.ready[0]
			p.ready = p.ready[1:]
			if s, ok := p.socks[fd]; ok {
				return s, p.tags[fd], nil
			}
			// Removed after the event was queued; skip.
		}
		if len(p.socks) == 0 {
			return nil, 0, fmt.Errorf("%w: no sockets registered", api.ErrTransportClosed)
		}

		n, err := unix.EpollWait(p.epfd, p.evs, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			p.ready = append(p.ready, int(p.evs[i].Fd))
		}
	}
}

// Close releases the epoll descriptor. Registered sockets stay open.
func (p *Epoll) Close() error {
	return unix.Close(p.epfd)
}
