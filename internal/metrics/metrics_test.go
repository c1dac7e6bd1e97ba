package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMasterMetrics(t *testing.T) {

	assert := assert.New(t)

	reg := NewRegistry()
	m := NewMasterMetrics(reg)

	m.TCPAccepted.Inc()
	m.FrameTotal.WithLabelValues("write_multiple_registers", "ok").Inc()
	m.FrameTotal.WithLabelValues("write_multiple_registers", "ok").Inc()
	m.KnownSlavesGauge.Set(3)

	assert.Equal(1.0, testutil.ToFloat64(m.TCPAccepted))
	assert.Equal(2.0, testutil.ToFloat64(m.FrameTotal.WithLabelValues("write_multiple_registers", "ok")))
	assert.Equal(3.0, testutil.ToFloat64(m.KnownSlavesGauge))
}

func TestAgentMetricsIndependentRegistries(t *testing.T) {

	assert.NotPanics(t, func() {
		NewNopAgentMetrics()
		NewNopAgentMetrics()
	})
}
