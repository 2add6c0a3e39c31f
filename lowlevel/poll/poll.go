// File: lowlevel/poll/poll.go
//go:build unix

// Package poll implements the readiness multiplexers behind api.Poller.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Two strategies exist. The epoll poller (Linux) parks one worker on many
// sockets, so a handful of workers can serve hundreds of inbound channels.
// The portable PollSet leans on poll(2) and is used in the one-socket-per-
// worker layout on platforms without epoll. Both hand out readiness one
// socket per Wait call so receive loops stay shape-identical across
// strategies.
//
// Pollers are single-owner: exactly one worker loop drives each instance,
// so no internal locking is needed.

package poll

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-link/api"
)

// PollSet waits for readability with poll(2) over the registered set.
type PollSet struct {
	socks map[int]api.Socket // fd -> socket
	tags  map[int]int        // fd -> tag
	ready []int              // fds from the last kernel wait, not yet handed out
}

var _ api.Poller = (*PollSet)(nil)

// NewPollSet creates an empty poll(2) based poller.
func NewPollSet() *PollSet {
	return &PollSet{
		socks: make(map[int]api.Socket),
		tags:  make(map[int]int),
	}
}

// Add registers a socket under a tag.
func (p *PollSet) Add(s api.Socket, tag int) error {
	p.socks[s.FD()] = s
	p.tags[s.FD()] = tag
	return nil
}

// Remove drops a socket and reports how many remain registered.
func (p *PollSet) Remove(s api.Socket) (int, error) {
	delete(p.socks, s.FD())
	delete(p.tags, s.FD())
	return len(p.socks), nil
}

// Wait blocks until some registered socket is readable. Events gathered by
// one poll(2) call are handed out one socket per Wait.
func (p *PollSet) Wait() (api.Socket, int, error) {
	for {
		for len(p.ready) > 0 {
			fd := p.ready[0]
			p.ready = p.ready[1:]
			if s, ok := p.socks[fd]; ok {
				return s, p.tags[fd], nil
			}
			// Socket was removed after the event was queued; skip.
		}
		if len(p.socks) == 0 {
			return nil, 0, fmt.Errorf("%w: no sockets registered", api.ErrTransportClosed)
		}

		fds := make([]unix.PollFd, 0, len(p.socks))
		for fd := range p.socks {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		}
		n, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			continue
		}
		for _, pfd := range fds {
			// HUP and ERR surface as readability so the read loop can
			// observe EOF or the hard error itself.
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				p.ready = append(p.ready, int(pfd.Fd))
			}
		}
	}
}

// Close releases poller state. Registered sockets stay open.
func (p *PollSet) Close() error {
	p.socks = map[int]api.Socket{}
	p.tags = map[int]int{}
	p.ready = nil
	return nil
}
