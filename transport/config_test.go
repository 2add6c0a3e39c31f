package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-link/api"
	"github.com/momentics/hioload-link/lowlevel/poll"
)

func TestDefaultConfig(t *testing.T) {
	def := DefaultConfig()
	require.Equal(t, 0, def.MaxWorkers)
	require.Equal(t, int64(1<<30), def.QueueCapacity)
	require.Equal(t, 1000, def.MaxConnectAttempts)
	require.Equal(t, 5*time.Second, def.ConnectRetryInterval)
	require.Equal(t, 200, def.ConnectLogEvery)
	require.Equal(t, poll.DefaultStrategy(), def.PollStrategy)
	require.Equal(t, int64(0), def.MaxFrameSize)
}

func TestNormalizedFillsZeroFields(t *testing.T) {
	var cfg *Config // nil config must work
	n := cfg.normalized()
	require.NotNil(t, n.Logger)
	require.NotNil(t, n.Clock)
	require.Equal(t, int64(1<<30), n.QueueCapacity)
	require.Equal(t, 1000, n.MaxConnectAttempts)
	require.Equal(t, poll.DefaultStrategy(), n.PollStrategy)

	n = (&Config{MaxWorkers: -3, QueueCapacity: -1, MaxFrameSize: -9}).normalized()
	require.Equal(t, 0, n.MaxWorkers)
	require.Equal(t, int64(1<<30), n.QueueCapacity)
	require.Equal(t, int64(0), n.MaxFrameSize)
}

func TestWorkerCount(t *testing.T) {
	epoll := Config{PollStrategy: api.PollStrategyEpoll}
	require.Equal(t, 8, epoll.workerCount(8), "0 means one worker per channel")
	epoll.MaxWorkers = 3
	require.Equal(t, 3, epoll.workerCount(8))
	require.Equal(t, 2, epoll.workerCount(2), "cap never exceeds channel count")
	require.Equal(t, 0, epoll.workerCount(0))

	perChan := Config{PollStrategy: api.PollStrategyPerChannel, MaxWorkers: 2}
	require.Equal(t, 8, perChan.workerCount(8), "per-channel strategy ignores the cap")
}
