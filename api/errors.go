// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across the hioload-link library.

package api

import "fmt"

// Common errors used across the library.
var (
	// ErrWouldBlock reports that a non-blocking socket read found no data.
	// It is a flow-control signal, not a failure.
	ErrWouldBlock = fmt.Errorf("operation would block")

	// ErrQueueFull reports that a non-blocking enqueue found the queue's
	// byte budget exhausted.
	ErrQueueFull = fmt.Errorf("message queue is full")

	// ErrQueueEmpty reports that a non-blocking dequeue found nothing.
	ErrQueueEmpty = fmt.Errorf("message queue is empty")

	// ErrQueueClosed reports that every producer has signalled completion
	// and the queue has been drained; no further messages will appear.
	ErrQueueClosed = fmt.Errorf("message queue is closed")

	// ErrConnectFailed reports that the connect retry budget was exhausted
	// before every registered peer accepted a connection.
	ErrConnectFailed = fmt.Errorf("connect failed after retries")

	// ErrInvalidArgument reports a caller-supplied value the transport
	// cannot work with.
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// ErrTransportClosed reports use of a Sender or Receiver outside its
	// connected lifetime.
	ErrTransportClosed = fmt.Errorf("transport is closed")
)
