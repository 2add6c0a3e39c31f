// Package queue
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded message queue between transport API calls and worker loops.
// The queue is bounded by payload bytes, not element count: a channel that
// carries many small messages and a channel that carries one huge tensor
// block get the same memory ceiling. Backpressure is delivered by blocking
// the producer inside Add until consumers free budget.
//
// Close semantics follow the producer-counting model: every producer
// announces completion through SignalFinished(id); once all have, the queue
// stops accepting messages and consumers drain what is left before seeing
// ErrQueueClosed.

package queue

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-link/api"
)

// MessageQueue is a byte-bounded FIFO of api.Message values.
// All methods are safe for concurrent use.
type MessageQueue struct {
	mu       sync.Mutex
	notFull  sync.Cond
	notEmpty sync.Cond
	drained  sync.Cond

	ring     *queue.Queue // FIFO backing store
	capacity int64        // byte budget
	used     int64        // bytes currently queued

	producers int
	finished  map[int]struct{}
}

// New creates a queue with the given byte budget shared by `producers`
// distinct producers. producers below 1 is treated as 1.
func New(capacity int64, producers int) *MessageQueue {
	if producers < 1 {
		producers = 1
	}
	q := &MessageQueue{
		ring:      queue.New(),
		capacity:  capacity,
		producers: producers,
		finished:  make(map[int]struct{}, producers),
	}
	q.notFull.L = &q.mu
	q.notEmpty.L = &q.mu
	q.drained.L = &q.mu
	return q
}

// Add appends msg to the queue. With block set it waits while the byte
// budget is exhausted; otherwise it returns ErrQueueFull immediately.
// Once every producer has signalled completion Add returns ErrQueueClosed.
// Empty payloads and payloads larger than the whole budget are invalid.
func (q *MessageQueue) Add(msg api.Message, block bool) error {
	size := int64(len(msg.Data))
	if size <= 0 || size > q.capacity {
		return fmt.Errorf("%w: payload of %d bytes does not fit a %d byte queue",
			api.ErrInvalidArgument, size, q.capacity)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closedLocked() {
			return api.ErrQueueClosed
		}
		if q.used+size <= q.capacity {
			break
		}
		if !block {
			return api.ErrQueueFull
		}
		q.notFull.Wait()
	}
	q.ring.Add(msg)
	q.used += size
	q.notEmpty.Signal()
	return nil
}

// Remove pops the oldest message. With block set it waits for one to
// arrive; otherwise it returns ErrQueueEmpty immediately. After the queue
// is closed and drained it returns ErrQueueClosed.
func (q *MessageQueue) Remove(block bool) (api.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.ring.Length() == 0 {
		if q.closedLocked() {
			return api.Message{}, api.ErrQueueClosed
		}
		if !block {
			return api.Message{}, api.ErrQueueEmpty
		}
		q.notEmpty.Wait()
	}
	msg := q.ring.Remove().(api.Message)
	q.used -= int64(len(msg.Data))
	// Broadcast: waiting producers carry different payload sizes, and the
	// one woken by Signal might still not fit.
	q.notFull.Broadcast()
	if q.ring.Length() == 0 {
		q.drained.Broadcast()
	}
	return msg, nil
}

// Empty reports whether no messages are queued right now.
func (q *MessageQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length() == 0
}

// EmptyAndNoMoreAdd reports whether the queue is drained and closed:
// nothing queued and no producer left to add more.
func (q *MessageQueue) EmptyAndNoMoreAdd() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length() == 0 && q.closedLocked()
}

// SignalFinished records that producer id will add no further messages.
// When the last producer signals, blocked Add and Remove callers wake up
// with ErrQueueClosed (Remove only after the queue drains).
func (q *MessageQueue) SignalFinished(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finished[id] = struct{}{}
	if q.closedLocked() {
		q.notEmpty.Broadcast()
		q.notFull.Broadcast()
	}
}

// WaitEmpty blocks until the queue holds no messages. It does not stop
// producers from adding afterwards; callers sequence it with
// SignalFinished for shutdown.
func (q *MessageQueue) WaitEmpty() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.ring.Length() > 0 {
		q.drained.Wait()
	}
}

// Len reports the number of queued messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length()
}

func (q *MessageQueue) closedLocked() bool {
	return len(q.finished) >= q.producers
}
