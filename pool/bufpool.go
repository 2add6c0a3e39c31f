// File: pool/bufpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Recycled payload buffers for the receive path. Frame sizes vary wildly
// (a heartbeat is a few bytes, a tensor block is megabytes), so the pool
// recycles by capacity instead of pinning one slab size: a recycled buffer
// is reused when it is big enough and dropped for the GC when it is not.

package pool

import "sync"

// BufPool hands out byte slices of exact requested length backed by
// recycled capacity. Safe for concurrent use.
type BufPool struct {
	p sync.Pool
}

// NewBufPool creates an empty pool.
func NewBufPool() *BufPool {
	return &BufPool{}
}

// Get returns a slice of length n. The bytes are not zeroed; callers
// overwrite the full length.
func (bp *BufPool) Get(n int) []byte {
	if v := bp.p.Get(); v != nil {
		buf := *(v.(*[]byte))
		if cap(buf) >= n {
			return buf[:n]
		}
		// Too small for this frame; let the GC take it and grow.
	}
	return make([]byte, n)
}

// Put recycles a buffer obtained from Get. The caller must not touch the
// slice afterwards.
func (bp *BufPool) Put(b []byte) {
	if cap(b) == 0 {
		return
	}
	b = b[:cap(b)]
	bp.p.Put(&b)
}
