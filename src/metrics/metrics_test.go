package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetOpen(true)
	m.FrameReceived("pong")
	m.FrameRejected("malformed_message")
	m.FrameSent("ping")
	m.ObserveHandler("pong", time.Millisecond)
	m.Closed("1006")
	m.ReconnectScheduled(2 * time.Second)
	m.GenerationStarted()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 9)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceivedTotal.WithLabelValues("pong")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconnectAttemptsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClosuresTotal.WithLabelValues("1006")))
}

func TestSetOpenToggles(t *testing.T) {
	m := New(nil)
	m.SetOpen(true)
	m.SetOpen(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionOpen))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetOpen(true)
		m.FrameReceived("pong")
		m.FrameRejected("x")
		m.FrameSent("ping")
		m.ObserveHandler("pong", time.Second)
		m.Closed("1000")
		m.ReconnectScheduled(time.Second)
		m.GenerationStarted()
	})
}
