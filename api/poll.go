// File: api/poll.go
// Author: momentics <momentics@gmail.com>
//
// Poller abstracts "wait until one of these sockets is readable" so receive
// loops are independent of the underlying readiness mechanism (epoll on
// Linux, portable poll(2) elsewhere).

package api

// PollStrategy selects the readiness mechanism a Receiver's workers use.
type PollStrategy string

const (
	// PollStrategyEpoll multiplexes many sockets per worker through an
	// epoll instance. Linux only.
	PollStrategyEpoll PollStrategy = "epoll"

	// PollStrategyPerChannel dedicates one worker to one socket and waits
	// with plain poll(2). Portable; forces worker count == channel count.
	PollStrategyPerChannel PollStrategy = "per-channel"
)

// Poller waits for readability over a registered set of sockets.
// Implementations are not safe for concurrent use; each worker loop owns
// exactly one Poller.
type Poller interface {
	// Add registers a socket under an integer tag (the channel id).
	Add(s Socket, tag int) error

	// Remove drops a socket from the set and reports how many sockets
	// remain registered.
	Remove(s Socket) (remaining int, err error)

	// Wait blocks until some registered socket is readable and returns
	// it together with its tag. Readiness events queued by one kernel
	// wait are handed out one socket per call.
	Wait() (s Socket, tag int, err error)

	// Close releases poller resources. Registered sockets stay open.
	Close() error
}
