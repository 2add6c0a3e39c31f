// File: transport/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package transport implements a point-to-point message link for moving
// opaque byte payloads between the processes of a distributed computation.
//
// One process creates a Sender, registers every destination under a small
// integer channel id, and connects. The peer process creates a Receiver
// that accepts exactly that many connections; channel ids on the receive
// side follow accept order. Payloads travel as native-endian length-prefixed
// frames over plain TCP, FIFO per channel, with no cross-channel ordering.
//
// Channels are multiplexed over a bounded group of worker loops, pinned by
// channel id so per-channel ordering survives any worker count. The send
// side runs blocking sockets with explicit partial-write loops; the receive
// side runs non-blocking sockets behind a readiness poller (epoll on Linux,
// poll(2) in the one-worker-per-channel fallback) with per-channel
// resumable frame reassembly, so one stalled peer never blocks the rest of
// its worker's channels.
//
// Shutdown is cooperative: Sender.Finalize drains the outbound queues,
// emits a zero-length end-of-stream frame on every channel and only then
// closes sockets; Receiver.Finalize waits for consumers to drain the
// inbound queues before tearing its side down. The end-of-stream frame is
// transport-internal and never surfaces as a message.
package transport
