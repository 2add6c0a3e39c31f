package transport_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-link/api"
	"github.com/momentics/hioload-link/lowlevel/sock"
	"github.com/momentics/hioload-link/transport"
)

// freePort grabs a kernel-assigned port and releases it again. The tiny
// reuse window is acceptable for loopback tests.
func freePort(t *testing.T) int {
	t.Helper()
	s, err := sock.NewTCP()
	require.NoError(t, err)
	require.NoError(t, s.Bind("127.0.0.1", 0))
	_, port, err := s.LocalAddr()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	return port
}

// fatalLogger panics instead of exiting the process so configuration
// error paths are assertable.
func fatalLogger() *zap.Logger {
	return zap.New(zapcore.NewNopCore(), zap.WithFatalHook(zapcore.WriteThenPanic))
}

func fastSenderCfg(t *testing.T) *transport.Config {
	return &transport.Config{
		MaxConnectAttempts:   2000,
		ConnectRetryInterval: 2 * time.Millisecond,
		Logger:               zaptest.NewLogger(t),
	}
}

func fastReceiverCfg(t *testing.T) *transport.Config {
	return &transport.Config{Logger: zaptest.NewLogger(t)}
}

// startLink wires one Sender to one Receiver over `channels` loopback
// connections. Channel i on the sending side maps to channel i on the
// receiving side because Connect dials channels in ascending order and
// accept order assigns receiver ids.
func startLink(t *testing.T, channels int, scfg, rcfg *transport.Config) (*transport.Sender, *transport.Receiver) {
	t.Helper()
	if scfg == nil {
		scfg = fastSenderCfg(t)
	}
	if rcfg == nil {
		rcfg = fastReceiverCfg(t)
	}
	ep := fmt.Sprintf("socket://127.0.0.1:%d", freePort(t))

	s := transport.NewSender(scfg)
	r := transport.NewReceiver(rcfg)

	var g errgroup.Group
	g.Go(func() error { return r.Wait(ep, channels) })
	for id := 0; id < channels; id++ {
		s.AddReceiver(ep, id)
	}
	require.NoError(t, s.Connect())
	require.NoError(t, g.Wait())
	return s, r
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestEndToEndHelloWorld(t *testing.T) {
	s, r := startLink(t, 2, nil, nil)

	require.NoError(t, s.Send(api.Message{Data: []byte("hello")}, 0))
	require.NoError(t, s.Send(api.Message{Data: []byte("world")}, 1))

	msg, err := r.RecvFrom(0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(msg.Data))
	msg.Free()
	msg.Free() // second release is a no-op

	msg, err = r.RecvFrom(1)
	require.NoError(t, err)
	require.Equal(t, "world", string(msg.Data))
	msg.Free()

	require.NoError(t, s.Finalize())
	require.NoError(t, r.Finalize())

	// Finalize is idempotent and later calls observe a closed transport.
	require.NoError(t, s.Finalize())
	require.NoError(t, r.Finalize())
	require.ErrorIs(t, s.Send(api.Message{Data: []byte("late")}, 0), api.ErrTransportClosed)
	_, _, err = r.Recv()
	require.ErrorIs(t, err, api.ErrTransportClosed)
	_, err = r.RecvFrom(0)
	require.ErrorIs(t, err, api.ErrTransportClosed)
}

func TestFIFOPerChannelAcrossWorkerCounts(t *testing.T) {
	for _, workers := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			const channels, per = 4, 100

			scfg := fastSenderCfg(t)
			scfg.MaxWorkers = workers
			rcfg := fastReceiverCfg(t)
			rcfg.MaxWorkers = workers
			s, r := startLink(t, channels, scfg, rcfg)

			var g errgroup.Group
			g.Go(func() error {
				for seq := 0; seq < per; seq++ {
					for id := 0; id < channels; id++ {
						payload := []byte{byte(id), byte(seq), byte(seq >> 8), 0xEE}
						if err := s.Send(api.Message{Data: payload}, id); err != nil {
							return err
						}
					}
				}
				return nil
			})

			next := make([]int, channels)
			for got := 0; got < channels*per; got++ {
				msg, id, err := r.Recv()
				require.NoError(t, err)
				require.Equal(t, byte(id), msg.Data[0])
				seq := int(msg.Data[1]) | int(msg.Data[2])<<8
				require.Equal(t, next[id], seq, "channel %d delivered out of order", id)
				next[id]++
				msg.Free()
			}

			require.NoError(t, g.Wait())
			require.NoError(t, s.Finalize())
			require.NoError(t, r.Finalize())
		})
	}
}

func TestRoundTripPayloadSizes(t *testing.T) {
	s, r := startLink(t, 1, nil, nil)
	sizes := []int{1, 7, 1 << 10, 64 << 10, 3 << 20}

	var g errgroup.Group
	g.Go(func() error {
		for _, size := range sizes {
			data := make([]byte, size)
			for i := range data {
				data[i] = byte(i*31 + 7)
			}
			if err := s.Send(api.Message{Data: data}, 0); err != nil {
				return err
			}
		}
		return nil
	})

	for _, size := range sizes {
		msg, id, err := r.Recv()
		require.NoError(t, err)
		require.Equal(t, 0, id)
		require.Len(t, msg.Data, size)
		want := make([]byte, size)
		for i := range want {
			want[i] = byte(i*31 + 7)
		}
		require.True(t, bytes.Equal(want, msg.Data), "payload of %d bytes corrupted in flight", size)
		msg.Free()
	}

	require.NoError(t, g.Wait())
	require.NoError(t, s.Finalize())
	require.NoError(t, r.Finalize())
}

func TestRecvRoundRobinAlternates(t *testing.T) {
	const per = 25
	reg := prometheus.NewRegistry()
	rcfg := fastReceiverCfg(t)
	rcfg.MaxWorkers = 1 // one loop serves both channels
	rcfg.Metrics = reg
	s, r := startLink(t, 2, nil, rcfg)

	for seq := 0; seq < per; seq++ {
		require.NoError(t, s.Send(api.Message{Data: []byte{0}}, 0))
		require.NoError(t, s.Send(api.Message{Data: []byte{1}}, 1))
	}
	// Let every frame land before consuming so both queues stay loaded
	// through the whole scan.
	require.Eventually(t, func() bool {
		return counterValue(t, reg, "hioload_link_recv_frames_total") == float64(2*per)
	}, 5*time.Second, 5*time.Millisecond)

	prev := -1
	for i := 0; i < 2*per; i++ {
		msg, id, err := r.Recv()
		require.NoError(t, err)
		require.Equal(t, byte(id), msg.Data[0])
		if prev >= 0 {
			require.NotEqual(t, prev, id, "scan must alternate between loaded channels")
		}
		prev = id
		msg.Free()
	}

	require.NoError(t, s.Finalize())
	require.NoError(t, r.Finalize())
}

func TestFanInTwoSenders(t *testing.T) {
	ep := fmt.Sprintf("socket://127.0.0.1:%d", freePort(t))
	r := transport.NewReceiver(fastReceiverCfg(t))

	var g errgroup.Group
	g.Go(func() error { return r.Wait(ep, 2) })

	sa := transport.NewSender(fastSenderCfg(t))
	sa.AddReceiver(ep, 0)
	require.NoError(t, sa.Connect())
	sb := transport.NewSender(fastSenderCfg(t))
	sb.AddReceiver(ep, 0)
	require.NoError(t, sb.Connect())
	require.NoError(t, g.Wait())

	require.NoError(t, sa.Send(api.Message{Data: []byte("from-a")}, 0))
	require.NoError(t, sb.Send(api.Message{Data: []byte("from-b")}, 0))

	got := map[string]int{}
	for i := 0; i < 2; i++ {
		msg, id, err := r.Recv()
		require.NoError(t, err)
		require.Contains(t, []int{0, 1}, id)
		got[string(msg.Data)] = id
		msg.Free()
	}
	require.Len(t, got, 2)
	require.Contains(t, got, "from-a")
	require.Contains(t, got, "from-b")

	require.NoError(t, sa.Finalize())
	require.NoError(t, sb.Finalize())
	require.NoError(t, r.Finalize())
}

func TestPerChannelStrategy(t *testing.T) {
	const channels = 3
	rcfg := fastReceiverCfg(t)
	rcfg.PollStrategy = api.PollStrategyPerChannel
	rcfg.MaxWorkers = 1 // ignored by this strategy; workers = channels
	s, r := startLink(t, channels, nil, rcfg)

	for id := 0; id < channels; id++ {
		require.NoError(t, s.Send(api.Message{Data: []byte{byte('a' + id)}}, id))
	}
	for i := 0; i < channels; i++ {
		msg, id, err := r.Recv()
		require.NoError(t, err)
		require.Equal(t, byte('a'+id), msg.Data[0])
		msg.Free()
	}

	require.NoError(t, s.Finalize())
	require.NoError(t, r.Finalize())
}

func TestConnectExhaustsRetryBudget(t *testing.T) {
	reg := prometheus.NewRegistry()
	scfg := fastSenderCfg(t)
	scfg.MaxConnectAttempts = 3
	scfg.ConnectRetryInterval = time.Millisecond
	scfg.Metrics = reg

	s := transport.NewSender(scfg)
	s.AddReceiver(fmt.Sprintf("socket://127.0.0.1:%d", freePort(t)), 0)
	err := s.Connect()
	require.ErrorIs(t, err, api.ErrConnectFailed)
	require.Equal(t, 3.0, counterValue(t, reg, "hioload_link_connect_retries_total"))

	// Nothing started, so shutdown has nothing to do.
	require.NoError(t, s.Finalize())
}

func TestConnectWaitsForLateListener(t *testing.T) {
	ep := fmt.Sprintf("socket://127.0.0.1:%d", freePort(t))
	s := transport.NewSender(fastSenderCfg(t))
	s.AddReceiver(ep, 0)
	r := transport.NewReceiver(fastReceiverCfg(t))

	var g errgroup.Group
	g.Go(func() error {
		time.Sleep(50 * time.Millisecond)
		return r.Wait(ep, 1)
	})

	require.NoError(t, s.Connect(), "retry ladder must absorb the late listener")
	require.NoError(t, g.Wait())

	require.NoError(t, s.Send(api.Message{Data: []byte("eventually")}, 0))
	msg, err := r.RecvFrom(0)
	require.NoError(t, err)
	require.Equal(t, "eventually", string(msg.Data))
	msg.Free()

	require.NoError(t, s.Finalize())
	require.NoError(t, r.Finalize())
}

func TestConnectRetryPacedByClock(t *testing.T) {
	mock := clock.NewMock()
	scfg := &transport.Config{
		MaxConnectAttempts:   3,
		ConnectRetryInterval: 5 * time.Second,
		Clock:                mock,
		Logger:               zaptest.NewLogger(t),
	}
	s := transport.NewSender(scfg)
	s.AddReceiver(fmt.Sprintf("socket://127.0.0.1:%d", freePort(t)), 0)

	done := make(chan error, 1)
	go func() { done <- s.Connect() }()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case err := <-done:
			require.ErrorIs(t, err, api.ErrConnectFailed)
			return
		case <-deadline:
			t.Fatal("Connect did not finish under the mock clock")
		default:
			// Drive the virtual retry pauses forward.
			mock.Add(5 * time.Second)
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func TestDiscoverAddrWhilstWaiting(t *testing.T) {
	r := transport.NewReceiver(fastReceiverCfg(t))

	var g errgroup.Group
	g.Go(func() error { return r.Wait("socket://127.0.0.1:0", 1) })

	var ep string
	require.Eventually(t, func() bool {
		ep = r.Addr()
		return ep != ""
	}, 2*time.Second, 2*time.Millisecond, "bound endpoint must be visible while Wait accepts")

	s := transport.NewSender(fastSenderCfg(t))
	s.AddReceiver(ep, 0)
	require.NoError(t, s.Connect())
	require.NoError(t, g.Wait())

	require.NoError(t, s.Send(api.Message{Data: []byte("found-you")}, 0))
	msg, err := r.RecvFrom(0)
	require.NoError(t, err)
	require.Equal(t, "found-you", string(msg.Data))
	msg.Free()

	require.NoError(t, s.Finalize())
	require.NoError(t, r.Finalize())
}

func TestConfigurationErrorsAbort(t *testing.T) {
	t.Run("sender", func(t *testing.T) {
		s := transport.NewSender(&transport.Config{Logger: fatalLogger()})
		require.Panics(t, func() { s.AddReceiver("tcp://127.0.0.1:1234", 0) })
		require.Panics(t, func() { s.AddReceiver("socket://127.0.0.1:1234", -1) })
	})

	t.Run("send validation", func(t *testing.T) {
		scfg := fastSenderCfg(t)
		scfg.Logger = fatalLogger()
		s, r := startLink(t, 1, scfg, nil)
		require.Panics(t, func() { _ = s.Send(api.Message{}, 0) }, "empty payload")
		require.Panics(t, func() { _ = s.Send(api.Message{Data: []byte("x")}, 7) }, "unregistered channel")

		require.NoError(t, s.Finalize())
		require.NoError(t, r.Finalize())
	})

	t.Run("receiver", func(t *testing.T) {
		r := transport.NewReceiver(&transport.Config{Logger: fatalLogger()})
		require.Panics(t, func() { _ = r.Wait("127.0.0.1:50051", 1) })
		require.Panics(t, func() { _ = r.Wait("socket://192.0.2.1:50051", 1) }, "bind to a non-local address")
	})
}
