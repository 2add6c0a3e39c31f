// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Signalling primitives shared by the transport's worker loops.
// Semaphore is a plain counting semaphore where Post may run ahead of
// Wait by any margin: workers Post once per completed message, consumers
// Wait once per Recv, in either order.

package concurrency

import "sync"

// Semaphore is a counting semaphore. The zero value is ready to use with
// an initial count of zero.
type Semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int64
}

// NewSemaphore returns a semaphore holding `initial` permits.
func NewSemaphore(initial int64) *Semaphore {
	s := &Semaphore{count: initial}
	return s
}

// Wait blocks until a permit is available and takes it.
func (s *Semaphore) Wait() {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}

// Post releases one permit, waking a waiter if any.
func (s *Semaphore) Post() {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	s.count++
	s.cond.Signal()
	s.mu.Unlock()
}

// Value reports the number of available permits.
func (s *Semaphore) Value() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
