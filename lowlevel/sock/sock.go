// File: lowlevel/sock/sock.go
//go:build unix

// Package sock implements api.Socket over raw descriptors.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The transport keeps byte-level control of every connection: blocking
// sockets with explicit partial-write loops on the send side, non-blocking
// sockets driven by readiness polling on the receive side. net.Conn hides
// exactly the knobs this needs (descriptors for epoll registration,
// O_NONBLOCK toggling, EAGAIN visibility), so sockets are built directly
// on golang.org/x/sys/unix. IPv4 only, matching the wire peers.

package sock

import (
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-link/api"
)

// TCPSocket is a raw AF_INET stream socket.
type TCPSocket struct {
	fd     int
	closed atomic.Bool
}

var _ api.Socket = (*TCPSocket)(nil)

// NewTCP creates a blocking TCP socket with Nagle disabled.
func NewTCP() (*TCPSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return &TCPSocket{fd: fd}, nil
}

// Connect establishes an outbound connection to host:port.
func (s *TCPSocket) Connect(host string, port int) error {
	sa, err := sockaddr(host, port)
	if err != nil {
		return err
	}
	if err := unix.Connect(s.fd, sa); err != nil {
		return fmt.Errorf("connect %s:%d: %w", host, port, err)
	}
	return nil
}

// Bind binds the socket to host:port with SO_REUSEADDR so restarts do not
// trip over TIME_WAIT remnants.
func (s *TCPSocket) Bind(host string, port int) error {
	sa, err := sockaddr(host, port)
	if err != nil {
		return err
	}
	_ = unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(s.fd, sa); err != nil {
		return fmt.Errorf("bind %s:%d: %w", host, port, err)
	}
	return nil
}

// Listen marks the socket passive.
func (s *TCPSocket) Listen(backlog int) error {
	if err := unix.Listen(s.fd, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Accept takes one pending connection. The returned socket is blocking
// and has Nagle disabled; callers flip it non-blocking themselves.
func (s *TCPSocket) Accept() (api.Socket, string, int, error) {
	for {
		nfd, sa, err := unix.Accept(s.fd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, "", 0, fmt.Errorf("accept: %w", err)
		}
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		host, port := peer(sa)
		return &TCPSocket{fd: nfd}, host, port, nil
	}
}

// Send writes up to len(p) bytes, restarting on EINTR. Callers loop on the
// returned count to drain large frames.
func (s *TCPSocket) Send(p []byte) (int, error) {
	for {
		n, err := unix.Write(s.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("send: %w", err)
		}
		return n, nil
	}
}

// Receive reads up to len(p) bytes. A dry non-blocking read reports
// api.ErrWouldBlock; an orderly peer close reports io.EOF.
func (s *TCPSocket) Receive(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, api.ErrWouldBlock
		}
		if err != nil {
			return 0, fmt.Errorf("recv: %w", err)
		}
		if n == 0 && len(p) > 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// SetNonblock toggles O_NONBLOCK.
func (s *TCPSocket) SetNonblock(nonblock bool) error {
	return unix.SetNonblock(s.fd, nonblock)
}

// Close releases the descriptor. Extra calls are no-ops.
func (s *TCPSocket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return unix.Close(s.fd)
}

// FD exposes the descriptor for readiness registration.
func (s *TCPSocket) FD() int {
	return s.fd
}

// LocalAddr reports the bound address, resolving kernel-assigned ports
// after a Bind to port 0.
func (s *TCPSocket) LocalAddr() (string, int, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return "", 0, fmt.Errorf("getsockname: %w", err)
	}
	host, port := peer(sa)
	return host, port, nil
}

// sockaddr resolves host:port into an IPv4 socket address. Hostnames are
// looked up and the first IPv4 answer wins.
func sockaddr(host string, port int) (*unix.SockaddrInet4, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", host, err)
		}
		for _, cand := range ips {
			if cand.To4() != nil {
				ip = cand
				break
			}
		}
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("resolve %q: no IPv4 address", host)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

func peer(sa unix.Sockaddr) (string, int) {
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return net.IP(in4.Addr[:]).String(), in4.Port
	}
	return "", 0
}
