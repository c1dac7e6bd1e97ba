package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// MasterMetrics instruments the Modbus listener and the fleet actor.
type MasterMetrics struct {
	TCPAccepted       prometheus.Counter
	TCPRejected       prometheus.Counter
	TCPActive         prometheus.Gauge
	TCPBytesReceived  prometheus.Counter
	FrameTotal        *prometheus.CounterVec // labels: function, result
	SnapshotsEmitted  *prometheus.CounterVec // labels: trigger=write|timer|power
	KnownSlavesGauge  prometheus.Gauge
	OnlineSlavesGauge prometheus.Gauge
	TotalPowerGauge   prometheus.Gauge
}

func NewMasterMetrics(reg prometheus.Registerer) *MasterMetrics {
	m := &MasterMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridfleet_tcp_accept_total",
			Help: "Total accepted Modbus TCP connections.",
		}),
		TCPRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridfleet_tcp_reject_total",
			Help: "Connections refused by the connection limit.",
		}),
		TCPActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridfleet_tcp_active",
			Help: "Currently open Modbus TCP connections.",
		}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridfleet_tcp_bytes_received_total",
			Help: "Total bytes received over Modbus TCP.",
		}),
		FrameTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridfleet_frame_total",
			Help: "Modbus frames handled by function code and result.",
		}, []string{"function", "result"}),
		SnapshotsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridfleet_snapshot_total",
			Help: "Snapshots emitted by trigger.",
		}, []string{"trigger"}),
		KnownSlavesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridfleet_slaves_known",
			Help: "Slaves with a telemetry record.",
		}),
		OnlineSlavesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridfleet_slaves_online",
			Help: "Slaves currently reported online.",
		}),
		TotalPowerGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridfleet_power_total",
			Help: "Sum of the power reported by every known slave.",
		}),
	}
	reg.MustRegister(m.TCPAccepted, m.TCPRejected, m.TCPActive, m.TCPBytesReceived, m.FrameTotal,
		m.SnapshotsEmitted, m.KnownSlavesGauge, m.OnlineSlavesGauge, m.TotalPowerGauge)
	return m
}

// AgentMetrics instruments a slave agent.
type AgentMetrics struct {
	ReportsTotal    *prometheus.CounterVec // labels: result=ok|error
	ConnectsTotal   *prometheus.CounterVec // labels: result=ok|error
	WriteDuration   prometheus.Histogram
	StateTransition *prometheus.CounterVec // labels: state
}

func NewAgentMetrics(reg prometheus.Registerer) *AgentMetrics {
	m := &AgentMetrics{
		ReportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridfleet_agent_reports_total",
			Help: "Telemetry reports sent to the master.",
		}, []string{"result"}),
		ConnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridfleet_agent_connects_total",
			Help: "Connection attempts to the master.",
		}, []string{"result"}),
		WriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridfleet_agent_write_seconds",
			Help:    "Duration of register writes to the master.",
			Buckets: prometheus.DefBuckets,
		}),
		StateTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridfleet_agent_state_transitions_total",
			Help: "Agent state transitions by target state.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.ReportsTotal, m.ConnectsTotal, m.WriteDuration, m.StateTransition)
	return m
}

// NewNopMasterMetrics returns metrics bound to a throwaway registry.
func NewNopMasterMetrics() *MasterMetrics {
	return NewMasterMetrics(prometheus.NewRegistry())
}

func NewNopAgentMetrics() *AgentMetrics {
	return NewAgentMetrics(prometheus.NewRegistry())
}
