// File: transport/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-channel frame reassembly. A non-blocking socket can run dry at any
// byte, including inside the 8-byte header, so every channel carries a
// recvContext that survives across readiness events: partial header bytes
// and partial payload bytes are both kept until the frame completes.

package transport

import (
	"fmt"

	"github.com/momentics/hioload-link/api"
	"github.com/momentics/hioload-link/core/wire"
	"github.com/momentics/hioload-link/pool"
)

// recvStatus reports how far advance() got on one readiness event.
type recvStatus int

const (
	// recvAgain: the socket ran dry mid-frame; wait for the next event.
	recvAgain recvStatus = iota
	// recvComplete: one payload frame is fully reassembled.
	recvComplete
	// recvEndOfStream: the peer sent its zero-length closing frame.
	recvEndOfStream
)

const sizeUnknown = -1

// recvContext is the resumable reassembly state for one channel.
type recvContext struct {
	hdr     [wire.HeaderSize]byte
	hdrRead int

	size int64 // payload size; sizeUnknown until the header completes
	read int64 // payload bytes received so far
	buf  []byte
}

func newRecvContext() *recvContext {
	return &recvContext{size: sizeUnknown}
}

// advance pulls whatever the socket has buffered and folds it into the
// context. It returns recvComplete with the reassembled message, or
// recvAgain when the socket runs dry mid-frame, or recvEndOfStream when
// the closing frame arrives. Any returned error is a hard transport error:
// an EOF here means the peer vanished without its end-of-stream frame.
func (c *recvContext) advance(s api.Socket, bp *pool.BufPool, maxFrame int64) (recvStatus, api.Message, error) {
	for {
		if c.size == sizeUnknown {
			n, err := s.Receive(c.hdr[c.hdrRead:])
			if err == api.ErrWouldBlock {
				return recvAgain, api.Message{}, nil
			}
			if err != nil {
				return recvAgain, api.Message{}, err
			}
			c.hdrRead += n
			if c.hdrRead < wire.HeaderSize {
				continue
			}

			size := wire.Header(c.hdr[:])
			c.hdrRead = 0
			if size == wire.EndOfStream {
				return recvEndOfStream, api.Message{}, nil
			}
			if size < 0 {
				return recvAgain, api.Message{}, fmt.Errorf("corrupted stream: negative frame size %d", size)
			}
			if maxFrame > 0 && size > maxFrame {
				return recvAgain, api.Message{}, fmt.Errorf("frame of %d bytes exceeds limit of %d", size, maxFrame)
			}
			c.size = size
			c.read = 0
			c.buf = bp.Get(int(size))
		}

		n, err := s.Receive(c.buf[c.read:])
		if err == api.ErrWouldBlock {
			return recvAgain, api.Message{}, nil
		}
		if err != nil {
			return recvAgain, api.Message{}, err
		}
		c.read += int64(n)
		if c.read < c.size {
			continue
		}

		data := c.buf
		msg := api.Message{
			Data:    data,
			Release: func() { bp.Put(data) },
		}
		c.size = sizeUnknown
		c.read = 0
		c.buf = nil
		return recvComplete, msg, nil
	}
}
