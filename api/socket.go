// File: api/socket.go
// Author: momentics <momentics@gmail.com>
//
// Socket abstracts a stream socket at the readiness level, below net.Conn:
// raw descriptors, explicit non-blocking mode, and no hidden buffering, so
// worker loops and pollers stay in full control of every byte.

package api

// Socket is a full-duplex stream socket backed by an OS file descriptor.
type Socket interface {
	// Connect establishes an outbound connection to host:port.
	Connect(host string, port int) error

	// Bind binds the socket to a local host:port.
	Bind(host string, port int) error

	// Listen marks the socket as passive with the given backlog.
	Listen(backlog int) error

	// Accept takes one pending connection and reports the peer address.
	Accept() (conn Socket, host string, port int, err error)

	// Send writes up to len(p) bytes and reports how many were written.
	// Short writes are legal; callers loop until the buffer is drained.
	Send(p []byte) (int, error)

	// Receive reads up to len(p) bytes. On a non-blocking socket with no
	// data pending it returns (0, ErrWouldBlock). An orderly peer close
	// yields (0, io.EOF).
	Receive(p []byte) (int, error)

	// SetNonblock toggles O_NONBLOCK on the descriptor.
	SetNonblock(nonblock bool) error

	// Close releases the descriptor. Safe to call more than once.
	Close() error

	// FD exposes the underlying descriptor for readiness registration.
	FD() int
}
