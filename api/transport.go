// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Sender and Receiver are the two halves of the point-to-point message
// transport. A Sender owns N outbound channels to listening peers; a
// Receiver accepts N inbound channels and hands completed payloads to the
// application. Payloads are opaque; framing, ordering per channel, and
// worker-thread fan-out are the transport's business.

package api

// Sender is the outbound half of the transport.
//
// Lifecycle: AddReceiver for every destination, then Connect once, then any
// number of Send calls from any goroutine, then Finalize exactly once.
type Sender interface {
	// AddReceiver registers a destination channel. addr has the form
	// "socket://host:port"; chanID is the non-negative logical channel id.
	// Must be called before Connect. Malformed input is a configuration
	// error and aborts the process.
	AddReceiver(addr string, chanID int)

	// Connect dials every registered destination, retrying each one on a
	// fixed ladder. On success the worker loops are running and Send may
	// be called. On failure no workers are started and every socket
	// opened so far is closed again.
	Connect() error

	// Send queues msg for delivery on channel chanID. It blocks while the
	// channel's queue is over its byte budget and returns once the
	// payload is accepted (not once it is on the wire). Messages to the
	// same channel leave the wire in Send order.
	Send(msg Message, chanID int) error

	// Finalize drains every outbound queue, sends the end-of-stream frame
	// on every channel, stops the workers and closes the sockets.
	Finalize() error
}

// Receiver is the inbound half of the transport.
//
// Lifecycle: Wait once, then Recv/RecvFrom from consumer goroutines, then
// Finalize exactly once.
type Receiver interface {
	// Wait binds addr, listens, and accepts exactly numSenders
	// connections. Channel ids are assigned by accept order (0-based).
	// When Wait returns nil the receive workers are running.
	Wait(addr string, numSenders int) error

	// Recv blocks until any channel has a completed message and returns
	// it with its channel id. Successive calls scan channels round-robin
	// from where the previous call left off, so one busy channel cannot
	// starve the rest.
	Recv() (msg Message, chanID int, err error)

	// RecvFrom blocks until the given channel has a completed message.
	RecvFrom(chanID int) (Message, error)

	// Finalize waits for every channel queue to drain, stops the
	// workers and closes all accepted sockets and the listener.
	Finalize() error
}
