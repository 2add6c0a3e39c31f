// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory recycling for the receive path of hioload-link.
// Inbound frame payloads are pooled by capacity so steady-state traffic
// allocates nothing; consumers hand buffers back through Message.Free.
// See bufpool.go for implementation details.
package pool
