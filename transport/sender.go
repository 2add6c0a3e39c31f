// File: transport/sender.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Outbound half of the link. Send enqueues onto the worker group that owns
// the destination channel; each worker loop owns its sockets exclusively
// and drains its queue onto the wire with blocking writes. Teardown is
// queue-driven: once the queue closes, a loop writes the zero-length
// end-of-stream frame on every socket it owns and exits.

package transport

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-link/api"
	"github.com/momentics/hioload-link/core/addr"
	"github.com/momentics/hioload-link/core/queue"
	"github.com/momentics/hioload-link/core/wire"
	"github.com/momentics/hioload-link/lowlevel/sock"
)

const (
	stageCreated int32 = iota
	stageConnected
	stageFinalized
)

type endpoint struct {
	host string
	port int
}

// Sender is the outbound endpoint of the link.
type Sender struct {
	cfg Config
	log *zap.Logger
	met *sendMetrics

	stage atomic.Int32
	ctl   sync.Mutex // serializes Connect and Finalize

	dests  map[int]endpoint      // channel id -> destination
	groups int
	queues []*queue.MessageQueue // one per worker group
	socks  []map[int]api.Socket  // per group: channel id -> socket
	wg     sync.WaitGroup
}

var _ api.Sender = (*Sender)(nil)

// NewSender creates a Sender with the given configuration. A nil cfg uses
// defaults.
func NewSender(cfg *Config) *Sender {
	c := cfg.normalized()
	return &Sender{
		cfg:   c,
		log:   c.Logger.Named("sender"),
		met:   newSendMetrics(c.Metrics),
		dests: make(map[int]endpoint),
	}
}

// AddReceiver registers a destination channel. Malformed endpoints,
// negative ids and registration after Connect are configuration errors
// and abort the process.
func (s *Sender) AddReceiver(dest string, chanID int) {
	if s.stage.Load() != stageCreated {
		s.log.Fatal("AddReceiver after Connect", zap.Int("chan", chanID))
	}
	if chanID < 0 {
		s.log.Fatal("negative channel id", zap.Int("chan", chanID), zap.String("endpoint", dest))
	}
	host, port, err := addr.Parse(dest)
	if err != nil {
		s.log.Fatal("bad receiver endpoint", zap.String("endpoint", dest), zap.Error(err))
	}
	s.ctl.Lock()
	s.dests[chanID] = endpoint{host: host, port: port}
	s.ctl.Unlock()
}

// Connect dials every registered destination and starts the worker loops.
// It is all-or-nothing: when any destination stays unreachable past the
// retry budget, every socket opened so far is closed and no loop starts.
func (s *Sender) Connect() error {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.stage.Load() != stageCreated {
		return fmt.Errorf("%w: Connect on a started sender", api.ErrTransportClosed)
	}
	if len(s.dests) == 0 {
		return fmt.Errorf("%w: no receivers registered", api.ErrInvalidArgument)
	}

	ids := make([]int, 0, len(s.dests))
	for id := range s.dests {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	s.groups = s.cfg.workerCount(len(ids))
	s.socks = make([]map[int]api.Socket, s.groups)
	for g := range s.socks {
		s.socks[g] = make(map[int]api.Socket)
	}

	for _, id := range ids {
		dst := s.dests[id]
		sk, err := s.dial(dst.host, dst.port)
		if err != nil {
			s.closeSockets()
			s.socks = nil
			return err
		}
		s.socks[shard(id, s.groups)][id] = sk
		s.log.Info("connected",
			zap.Int("chan", id),
			zap.String("host", dst.host),
			zap.Int("port", dst.port))
	}

	s.queues = make([]*queue.MessageQueue, s.groups)
	for g := 0; g < s.groups; g++ {
		s.queues[g] = queue.New(s.cfg.QueueCapacity, 1)
		s.wg.Add(1)
		go s.sendLoop(g, s.socks[g], s.queues[g])
	}
	s.stage.Store(stageConnected)
	return nil
}

// dial runs the retry ladder for one destination. Every attempt uses a
// fresh socket; the pause between attempts goes through the configured
// clock so tests can compress the ladder.
func (s *Sender) dial(host string, port int) (api.Socket, error) {
	for attempt := 1; attempt <= s.cfg.MaxConnectAttempts; attempt++ {
		sk, err := sock.NewTCP()
		if err != nil {
			return nil, err
		}
		if err = sk.Connect(host, port); err == nil {
			return sk, nil
		}
		_ = sk.Close()
		s.met.retried()
		if attempt%s.cfg.ConnectLogEvery == 0 {
			s.log.Info("still trying to connect",
				zap.String("host", host),
				zap.Int("port", port),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		s.cfg.Clock.Sleep(s.cfg.ConnectRetryInterval)
	}
	return nil, fmt.Errorf("%w: %s:%d not reachable after %d attempts",
		api.ErrConnectFailed, host, port, s.cfg.MaxConnectAttempts)
}

// Send queues msg for channel chanID. It blocks while the worker queue is
// over its byte budget and returns once the payload is accepted. Empty
// payloads, negative ids and unregistered channels are configuration
// errors and abort the process.
func (s *Sender) Send(msg api.Message, chanID int) error {
	if s.stage.Load() != stageConnected {
		return api.ErrTransportClosed
	}
	if len(msg.Data) == 0 {
		s.log.Fatal("empty payload", zap.Int("chan", chanID))
	}
	if chanID < 0 {
		s.log.Fatal("negative channel id", zap.Int("chan", chanID))
	}
	if _, ok := s.dests[chanID]; !ok {
		s.log.Fatal("channel not registered", zap.Int("chan", chanID))
	}
	msg.ChanID = chanID
	if err := s.queues[shard(chanID, s.groups)].Add(msg, true); err != nil {
		return err
	}
	s.met.queued()
	return nil
}

// Finalize drains the outbound queues, closes every channel with an
// end-of-stream frame and releases the sockets. It blocks until all
// queued messages are on the wire. Extra calls are no-ops.
func (s *Sender) Finalize() error {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.stage.Swap(stageFinalized) != stageConnected {
		return nil
	}

	// Queues have exactly one producer (the Send side as a whole), so the
	// producer id is always zero.
	for _, q := range s.queues {
		q.WaitEmpty()
		q.SignalFinished(0)
	}
	s.wg.Wait()

	err := s.closeSockets()
	s.log.Info("finalized")
	return err
}

func (s *Sender) closeSockets() error {
	var err error
	for _, group := range s.socks {
		for _, sk := range group {
			if sk != nil {
				err = multierr.Append(err, sk.Close())
			}
		}
	}
	return err
}

// sendLoop drains one queue onto the sockets of one worker group.
func (s *Sender) sendLoop(g int, socks map[int]api.Socket, q *queue.MessageQueue) {
	defer s.wg.Done()
	if s.cfg.LockOSThread {
		runtime.LockOSThread()
	}
	log := s.log.With(zap.Int("worker", g))

	for {
		msg, err := q.Remove(true)
		if errors.Is(err, api.ErrQueueClosed) {
			// Queue drained and closed: announce end-of-stream on every
			// owned channel, in id order for determinism.
			ids := make([]int, 0, len(socks))
			for id := range socks {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				if err := writeFrame(socks[id], nil); err != nil {
					log.Fatal("end-of-stream write failed", zap.Int("chan", id), zap.Error(err))
				}
			}
			log.Debug("send loop done", zap.Int("channels", len(ids)))
			return
		}
		if err != nil {
			log.Fatal("queue remove failed", zap.Error(err))
		}

		if err := writeFrame(socks[msg.ChanID], msg.Data); err != nil {
			log.Fatal("frame write failed",
				zap.Int("chan", msg.ChanID),
				zap.Int("bytes", len(msg.Data)),
				zap.Error(err))
		}
		s.met.frameSent(len(msg.Data))
		msg.Free()
	}
}

// writeFrame writes one length-prefixed frame. A nil payload produces the
// zero-length end-of-stream frame.
func writeFrame(sk api.Socket, payload []byte) error {
	var hdr [wire.HeaderSize]byte
	wire.PutHeader(hdr[:], int64(len(payload)))
	if err := writeFull(sk, hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return writeFull(sk, payload)
}

// writeFull loops until p is fully written; short writes resume where
// they stopped.
func writeFull(sk api.Socket, p []byte) error {
	for len(p) > 0 {
		n, err := sk.Send(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
