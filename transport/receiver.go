// File: transport/receiver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Inbound half of the link. Wait accepts one connection per sender and
// assigns channel ids in accept order. Worker loops own disjoint socket
// subsets and park in a readiness poller; every completed frame lands in
// its channel's queue and bumps one shared semaphore, which is the only
// coupling between worker loops and the consumer-facing Recv calls.

package transport

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-link/api"
	"github.com/momentics/hioload-link/core/addr"
	"github.com/momentics/hioload-link/core/concurrency"
	"github.com/momentics/hioload-link/core/queue"
	"github.com/momentics/hioload-link/lowlevel/poll"
	"github.com/momentics/hioload-link/lowlevel/sock"
	"github.com/momentics/hioload-link/pool"
)

// Receiver is the inbound endpoint of the link.
type Receiver struct {
	cfg Config
	log *zap.Logger
	met *recvMetrics
	bp  *pool.BufPool

	stage atomic.Int32
	ctl   sync.Mutex // serializes Wait and Finalize

	listener *sock.TCPSocket
	bound    atomic.Value // endpoint string, set once listening

	conns  []api.Socket // by channel id, in accept order
	queues map[int]*queue.MessageQueue
	sem    *concurrency.Semaphore
	wg     sync.WaitGroup

	mu     sync.Mutex // guards the Recv scan cursor
	order  []int      // channel ids in scan order
	cursor int
}

var _ api.Receiver = (*Receiver)(nil)

// NewReceiver creates a Receiver with the given configuration. A nil cfg
// uses defaults.
func NewReceiver(cfg *Config) *Receiver {
	c := cfg.normalized()
	return &Receiver{
		cfg:    c,
		log:    c.Logger.Named("receiver"),
		met:    newRecvMetrics(c.Metrics),
		bp:     pool.NewBufPool(),
		queues: make(map[int]*queue.MessageQueue),
		sem:    concurrency.NewSemaphore(0),
	}
}

// Wait binds the endpoint, listens and accepts exactly numSenders
// connections, assigning channel ids in accept order. On success the
// receive workers are running. A failed accept closes everything opened
// so far and returns the error; malformed endpoints and bind/listen
// failures are configuration errors and abort the process.
func (r *Receiver) Wait(endpoint string, numSenders int) error {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	if r.stage.Load() != stageCreated {
		return fmt.Errorf("%w: Wait on a started receiver", api.ErrTransportClosed)
	}
	host, port, err := addr.Parse(endpoint)
	if err != nil {
		r.log.Fatal("bad listen endpoint", zap.String("endpoint", endpoint), zap.Error(err))
	}
	if numSenders < 0 {
		r.log.Fatal("negative sender count", zap.Int("senders", numSenders))
	}

	ln, err := sock.NewTCP()
	if err != nil {
		r.log.Fatal("listener socket", zap.Error(err))
	}
	if err := ln.Bind(host, port); err != nil {
		r.log.Fatal("cannot bind", zap.String("endpoint", endpoint), zap.Error(err))
	}
	if err := ln.Listen(r.cfg.ListenBacklog); err != nil {
		r.log.Fatal("cannot listen", zap.String("endpoint", endpoint), zap.Error(err))
	}
	r.listener = ln
	boundHost, boundPort, err := ln.LocalAddr()
	if err != nil {
		r.log.Fatal("cannot resolve bound address", zap.Error(err))
	}
	// Published before accepting so callers can discover a kernel-assigned
	// port while Wait is still blocked on incoming senders.
	r.bound.Store(addr.Format(boundHost, boundPort))
	r.log.Info("listening",
		zap.String("host", boundHost),
		zap.Int("port", boundPort),
		zap.Int("senders", numSenders))

	for id := 0; id < numSenders; id++ {
		conn, peerHost, peerPort, err := ln.Accept()
		if err != nil {
			r.log.Warn("accept failed", zap.Int("chan", id), zap.Error(err))
			r.abortWait()
			return fmt.Errorf("accept sender %d: %w", id, err)
		}
		if err := conn.SetNonblock(true); err != nil {
			r.log.Fatal("cannot set socket non-blocking", zap.Int("chan", id), zap.Error(err))
		}
		r.conns = append(r.conns, conn)
		r.queues[id] = queue.New(r.cfg.QueueCapacity, 1)
		r.order = append(r.order, id)
		r.log.Info("accepted",
			zap.Int("chan", id),
			zap.String("host", peerHost),
			zap.Int("port", peerPort))
	}

	groups := r.cfg.workerCount(numSenders)
	for g := 0; g < groups; g++ {
		p, err := poll.New(r.cfg.PollStrategy)
		if err != nil {
			r.log.Fatal("cannot create poller", zap.Error(err))
		}
		owned := 0
		for id := 0; id < numSenders; id++ {
			if shard(id, groups) != g {
				continue
			}
			if err := p.Add(r.conns[id], id); err != nil {
				r.log.Fatal("cannot register socket", zap.Int("chan", id), zap.Error(err))
			}
			owned++
		}
		r.wg.Add(1)
		go r.recvLoop(g, p, owned)
	}

	r.stage.Store(stageConnected)
	return nil
}

// abortWait unwinds a partially completed Wait.
func (r *Receiver) abortWait() {
	for _, c := range r.conns {
		_ = c.Close()
	}
	if r.listener != nil {
		_ = r.listener.Close()
	}
	r.conns = nil
	r.order = nil
	r.listener = nil
	r.queues = make(map[int]*queue.MessageQueue)
}

// Addr reports the bound endpoint once Wait has started listening; handy
// when the configured port was 0. Empty until then.
func (r *Receiver) Addr() string {
	if v, ok := r.bound.Load().(string); ok {
		return v
	}
	return ""
}

// Recv blocks until any channel holds a completed message. The scan
// cursor persists across calls, so consecutive Recvs continue round-robin
// from just past the last hit instead of favoring low channel ids.
func (r *Receiver) Recv() (api.Message, int, error) {
	if r.stage.Load() != stageConnected {
		return api.Message{}, 0, api.ErrTransportClosed
	}
	// One permit per queued message, across all channels.
	r.sem.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		for i := 0; i < len(r.order); i++ {
			idx := r.cursor
			r.cursor = (r.cursor + 1) % len(r.order)
			id := r.order[idx]
			msg, err := r.queues[id].Remove(false)
			if errors.Is(err, api.ErrQueueEmpty) {
				continue
			}
			if err != nil {
				return api.Message{}, id, err
			}
			r.met.consumed()
			return msg, id, nil
		}
		// The permit guarantees a message exists somewhere; it just has
		// not landed in a scanned queue yet.
		runtime.Gosched()
	}
}

// RecvFrom blocks until the given channel holds a completed message.
// It draws from the same global semaphore as Recv, so mixing both styles
// concurrently can leave a Recv briefly re-scanning for its message.
// Unknown channel ids are configuration errors and abort the process.
func (r *Receiver) RecvFrom(chanID int) (api.Message, error) {
	if r.stage.Load() != stageConnected {
		return api.Message{}, api.ErrTransportClosed
	}
	q, ok := r.queues[chanID]
	if !ok {
		r.log.Fatal("unknown channel", zap.Int("chan", chanID))
	}
	r.sem.Wait()
	msg, err := q.Remove(true)
	if err != nil {
		return api.Message{}, err
	}
	r.met.consumed()
	return msg, nil
}

// Finalize waits for consumers to drain every channel queue, stops the
// worker loops and closes all sockets, accepted ones first, listener
// last. Extra calls are no-ops.
func (r *Receiver) Finalize() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	if r.stage.Swap(stageFinalized) != stageConnected {
		return nil
	}

	for _, id := range r.order {
		q := r.queues[id]
		q.WaitEmpty()
		// Each queue has exactly one producer, its channel's receive
		// loop; the channel id doubles as the producer id.
		q.SignalFinished(id)
	}
	r.wg.Wait()

	var err error
	for _, c := range r.conns {
		err = multierr.Append(err, c.Close())
	}
	if r.listener != nil {
		err = multierr.Append(err, r.listener.Close())
	}
	r.log.Info("finalized")
	return err
}

// recvLoop drives frame reassembly for the sockets registered on p.
// It exits once every owned socket has been retired, either by the peer's
// end-of-stream frame or by its queue closing during shutdown.
func (r *Receiver) recvLoop(g int, p api.Poller, owned int) {
	defer r.wg.Done()
	defer p.Close()
	if r.cfg.LockOSThread {
		runtime.LockOSThread()
	}
	log := r.log.With(zap.Int("worker", g))

	ctxs := make(map[int]*recvContext, owned)
	remaining := owned
	for remaining > 0 {
		sk, id, err := p.Wait()
		if err != nil {
			log.Fatal("poll failed", zap.Error(err))
		}

		q := r.queues[id]
		if q.EmptyAndNoMoreAdd() {
			// Consumer side already finalized this channel; whatever the
			// socket has pending is no longer wanted.
			remaining, _ = p.Remove(sk)
			continue
		}

		ctx := ctxs[id]
		if ctx == nil {
			ctx = newRecvContext()
			ctxs[id] = ctx
		}
		st, msg, err := ctx.advance(sk, r.bp, r.cfg.MaxFrameSize)
		if err != nil {
			// Includes EOF without a preceding end-of-stream frame: the
			// peer vanished mid-protocol and the stream state is gone.
			log.Fatal("receive failed", zap.Int("chan", id), zap.Error(err))
		}
		switch st {
		case recvAgain:
			// Socket ran dry mid-frame; the context resumes on the next
			// readiness event.
		case recvEndOfStream:
			r.met.endOfStream()
			log.Debug("end of stream", zap.Int("chan", id))
			remaining, _ = p.Remove(sk)
		case recvComplete:
			msg.ChanID = id
			if err := q.Add(msg, true); err != nil {
				if errors.Is(err, api.ErrQueueClosed) {
					// Finalize closed the queue while this frame was in
					// flight; drop it and retire the socket.
					msg.Free()
					remaining, _ = p.Remove(sk)
					continue
				}
				log.Fatal("inbound queue rejected frame",
					zap.Int("chan", id),
					zap.Int("bytes", len(msg.Data)),
					zap.Error(err))
			}
			r.met.frameReceived(len(msg.Data))
			r.sem.Post()
		}
	}
	log.Debug("receive loop done")
}
