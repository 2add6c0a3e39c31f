// File: transport/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Immutable per-endpoint configuration. A Config is copied and normalized
// at construction time; zero values mean "use the default", so the zero
// Config is fully usable.

package transport

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-link/api"
	"github.com/momentics/hioload-link/lowlevel/poll"
)

// Config holds parameters immutable per Sender or Receiver.
type Config struct {
	MaxWorkers           int                   // Cap on worker loops; 0 means one loop per channel
	QueueCapacity        int64                 // Per-queue payload byte budget
	MaxConnectAttempts   int                   // Dial attempts per destination before giving up
	ConnectRetryInterval time.Duration         // Pause between dial attempts
	ConnectLogEvery      int                   // Progress log cadence, in attempts
	ListenBacklog        int                   // listen(2) backlog on the receive side
	PollStrategy         api.PollStrategy      // Readiness mechanism; empty means platform default
	MaxFrameSize         int64                 // Reject inbound frames above this size; 0 means no limit
	LockOSThread         bool                  // Pin each worker loop to an OS thread
	Logger               *zap.Logger           // Destination for transport logs; nil means silent
	Clock                clock.Clock           // Time source for retry pacing; nil means wall clock
	Metrics              prometheus.Registerer // Metrics registration target; nil disables metrics
}

// DefaultConfig returns the defaults used for every unset Config field.
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:           0,                      // one worker per channel
		QueueCapacity:        1 << 30,                // 1 GiB of queued payload per worker queue
		MaxConnectAttempts:   1000,                   // paired with the 5s interval: retry for ~83 minutes
		ConnectRetryInterval: 5 * time.Second,        // peers come up in any order; patience is cheap
		ConnectLogEvery:      200,                    // one progress line per ~1000s of retrying
		ListenBacklog:        1024,                   // whole cluster may dial one listener at once
		PollStrategy:         poll.DefaultStrategy(), // epoll where available
		MaxFrameSize:         0,                      // tensor blocks can be huge; no cap by default
	}
}

// normalized resolves zero fields against DefaultConfig and clamps the
// poll strategy to what the platform supports.
func (c *Config) normalized() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	def := DefaultConfig()
	if out.MaxWorkers < 0 {
		out.MaxWorkers = 0
	}
	if out.QueueCapacity <= 0 {
		out.QueueCapacity = def.QueueCapacity
	}
	if out.MaxConnectAttempts <= 0 {
		out.MaxConnectAttempts = def.MaxConnectAttempts
	}
	if out.ConnectRetryInterval <= 0 {
		out.ConnectRetryInterval = def.ConnectRetryInterval
	}
	if out.ConnectLogEvery <= 0 {
		out.ConnectLogEvery = def.ConnectLogEvery
	}
	if out.ListenBacklog <= 0 {
		out.ListenBacklog = def.ListenBacklog
	}
	if out.PollStrategy == "" {
		out.PollStrategy = def.PollStrategy
	}
	if out.MaxFrameSize < 0 {
		out.MaxFrameSize = 0
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.Clock == nil {
		out.Clock = clock.New()
	}
	if !poll.Supported(out.PollStrategy) {
		out.Logger.Warn("poll strategy not available on this platform, falling back",
			zap.String("requested", string(out.PollStrategy)),
			zap.String("fallback", string(poll.DefaultStrategy())))
		out.PollStrategy = poll.DefaultStrategy()
	}
	return out
}

// workerCount derives the number of worker loops for n channels.
// The per-channel strategy has no multi-socket wait, so it needs one loop
// per channel regardless of the configured cap.
func (c *Config) workerCount(n int) int {
	if n == 0 {
		return 0
	}
	if c.PollStrategy == api.PollStrategyPerChannel {
		return n
	}
	if c.MaxWorkers == 0 || c.MaxWorkers > n {
		return n
	}
	return c.MaxWorkers
}
