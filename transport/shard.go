// File: transport/shard.go
// Author: momentics <momentics@gmail.com>
//
// Channel-to-worker routing. Both halves of the link derive the worker
// group for a channel from the same function, so a channel's messages
// always flow through one send loop and one receive loop and per-channel
// FIFO order needs no further coordination.

package transport

// shard maps a channel id onto one of `groups` worker loops. chanID is
// non-negative and groups is at least 1; both are validated upstream.
func shard(chanID, groups int) int {
	return chanID % groups
}
