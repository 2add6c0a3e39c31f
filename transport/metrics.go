// File: transport/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Optional Prometheus instrumentation. A nil registerer produces nil
// metrics, and every recording method is nil-safe, so the hot paths carry
// no conditionals beyond one pointer test.

package transport

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "hioload"
	metricsSubsystem = "link"
)

type sendMetrics struct {
	frames     prometheus.Counter
	bytes      prometheus.Counter
	retries    prometheus.Counter
	queueDepth prometheus.Gauge
}

func newSendMetrics(reg prometheus.Registerer) *sendMetrics {
	if reg == nil {
		return nil
	}
	m := &sendMetrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "sent_frames_total", Help: "Payload frames written to the wire.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "sent_bytes_total", Help: "Payload bytes written to the wire, headers excluded.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "connect_retries_total", Help: "Failed dial attempts across all destinations.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "send_queue_depth", Help: "Messages accepted by Send and not yet on the wire.",
		}),
	}
	reg.MustRegister(m.frames, m.bytes, m.retries, m.queueDepth)
	return m
}

func (m *sendMetrics) frameSent(payloadBytes int) {
	if m == nil {
		return
	}
	m.frames.Inc()
	m.bytes.Add(float64(payloadBytes))
	m.queueDepth.Dec()
}

func (m *sendMetrics) queued() {
	if m == nil {
		return
	}
	m.queueDepth.Inc()
}

func (m *sendMetrics) retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

type recvMetrics struct {
	frames     prometheus.Counter
	bytes      prometheus.Counter
	eos        prometheus.Counter
	queueDepth prometheus.Gauge
}

func newRecvMetrics(reg prometheus.Registerer) *recvMetrics {
	if reg == nil {
		return nil
	}
	m := &recvMetrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "recv_frames_total", Help: "Payload frames fully reassembled.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "recv_bytes_total", Help: "Payload bytes fully reassembled, headers excluded.",
		}),
		eos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "recv_eos_total", Help: "End-of-stream frames observed.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "recv_queue_depth", Help: "Messages reassembled and not yet consumed.",
		}),
	}
	reg.MustRegister(m.frames, m.bytes, m.eos, m.queueDepth)
	return m
}

func (m *recvMetrics) frameReceived(payloadBytes int) {
	if m == nil {
		return
	}
	m.frames.Inc()
	m.bytes.Add(float64(payloadBytes))
	m.queueDepth.Inc()
}

func (m *recvMetrics) consumed() {
	if m == nil {
		return
	}
	m.queueDepth.Dec()
}

func (m *recvMetrics) endOfStream() {
	if m == nil {
		return
	}
	m.eos.Inc()
}
