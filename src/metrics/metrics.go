// Package metrics exposes Prometheus collectors for the realtime client.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "realtime_client"

// Metrics holds the client's collectors.
type Metrics struct {
	ConnectionOpen         prometheus.Gauge
	FramesReceivedTotal    *prometheus.CounterVec
	FramesRejectedTotal    *prometheus.CounterVec
	FramesSentTotal        *prometheus.CounterVec
	HandlerDurationSeconds *prometheus.HistogramVec
	ClosuresTotal          *prometheus.CounterVec
	ReconnectAttemptsTotal prometheus.Counter
	ReconnectDelaySeconds  prometheus.Histogram
	Generations            prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_open",
			Help:      "Whether the current socket generation is open (1=open, 0=not open)",
		}),
		FramesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of valid inbound frames by message type",
		}, []string{"type"}),
		FramesRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Total number of inbound frames that failed validation, dispatch or handling",
		}, []string{"kind"}),
		FramesSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of outbound frames by message type",
		}, []string{"type"}),
		HandlerDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent in message handlers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		ClosuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closures_total",
			Help:      "Total number of socket closures by close code",
		}, []string{"code"}),
		ReconnectAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of scheduled reconnects",
		}),
		ReconnectDelaySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff delay applied before reconnecting",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of socket generations created",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ConnectionOpen,
			m.FramesReceivedTotal,
			m.FramesRejectedTotal,
			m.FramesSentTotal,
			m.HandlerDurationSeconds,
			m.ClosuresTotal,
			m.ReconnectAttemptsTotal,
			m.ReconnectDelaySeconds,
			m.Generations,
		)
	}
	return m
}

func (m *Metrics) SetOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.ConnectionOpen.Set(1)
	} else {
		m.ConnectionOpen.Set(0)
	}
}

func (m *Metrics) FrameReceived(msgType string) {
	if m == nil {
		return
	}
	m.FramesReceivedTotal.WithLabelValues(msgType).Inc()
}

func (m *Metrics) FrameRejected(kind string) {
	if m == nil {
		return
	}
	m.FramesRejectedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameSent(msgType string) {
	if m == nil {
		return
	}
	m.FramesSentTotal.WithLabelValues(msgType).Inc()
}

func (m *Metrics) ObserveHandler(msgType string, d time.Duration) {
	if m == nil {
		return
	}
	m.HandlerDurationSeconds.WithLabelValues(msgType).Observe(d.Seconds())
}

func (m *Metrics) Closed(code string) {
	if m == nil {
		return
	}
	m.ClosuresTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) ReconnectScheduled(delay time.Duration) {
	if m == nil {
		return
	}
	m.ReconnectAttemptsTotal.Inc()
	m.ReconnectDelaySeconds.Observe(delay.Seconds())
}

func (m *Metrics) GenerationStarted() {
	if m == nil {
		return
	}
	m.Generations.Inc()
}
