// Package wire
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame header codec for the link. Every payload travels as one frame:
// an 8-byte signed length in the machine's native byte order, followed by
// exactly that many payload bytes. A length of zero is the end-of-stream
// marker; it carries no payload and never reaches the application. Both
// ends of a link must share the same byte order: the header crosses the
// wire bit-for-bit, with no portable re-encoding.

package wire

import "encoding/binary"

// HeaderSize is the fixed width of the length prefix in bytes.
const HeaderSize = 8

// EndOfStream is the header value that closes a channel.
const EndOfStream int64 = 0

// PutHeader writes the payload length into b[:HeaderSize].
func PutHeader(b []byte, size int64) {
	binary.NativeEndian.PutUint64(b[:HeaderSize], uint64(size))
}

// Header reads the payload length from b[:HeaderSize]. Negative values
// mean the stream is corrupted; callers must not allocate from them.
func Header(b []byte) int64 {
	return int64(binary.NativeEndian.Uint64(b[:HeaderSize]))
}

// AppendHeader appends the encoded length to dst and returns the
// extended slice.
func AppendHeader(dst []byte, size int64) []byte {
	var hdr [HeaderSize]byte
	PutHeader(hdr[:], size)
	return append(dst, hdr[:]...)
}
