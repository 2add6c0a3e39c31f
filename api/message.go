// File: api/message.go
// Author: momentics <momentics@gmail.com>
//
// Message is the unit of transfer: an opaque byte payload plus routing
// metadata. The transport never inspects or copies Data beyond moving it
// across the wire.

package api

// Message carries one payload through the transport.
//
// On the sending side ChanID names the destination channel and is stamped
// by Sender.Send. On the receiving side it names the channel the payload
// arrived on. Data is never empty: zero-length frames are reserved for the
// transport's own end-of-stream signalling and are not representable here.
type Message struct {
	// Data holds the payload bytes. len(Data) is the payload size.
	Data []byte

	// ChanID is the logical channel the message is addressed to
	// (sender side) or arrived on (receiver side).
	ChanID int

	// Release, when non-nil, is invoked exactly once after the owner is
	// done with Data: the transport calls it once the payload is fully
	// written to the wire; consumers of received messages call it to
	// recycle the buffer. Data must not be touched afterwards.
	Release func()
}

// Free invokes the release hook, if any, and drops it so a second call
// is a no-op.
func (m *Message) Free() {
	if m.Release != nil {
		m.Release()
		m.Release = nil
	}
}
