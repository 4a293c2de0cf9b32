// Package metrics exposes the probe's drop/throughput counters to
// Prometheus. Counters are folded in by the coordinator once per snapshot,
// never on the per-packet hot path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every probe collector.
type Metrics struct {
	PacketsReceived  prometheus.Counter
	BytesReceived    prometheus.Counter
	ParseErrors      prometheus.Counter
	SampledOut       prometheus.Counter
	FlowsDropped     prometheus.Counter
	SnapshotsDropped prometheus.Counter
	AlertsFired      *prometheus.CounterVec

	BitsPerSecond    prometheus.Gauge
	PacketsPerSecond prometheus.Gauge
	MergedFlows      prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers the probe metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirrorscope_packets_received_total",
			Help: "Total mirrored datagrams received across all workers",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirrorscope_bytes_received_total",
			Help: "Total wire bytes received across all workers",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirrorscope_parse_errors_total",
			Help: "Total datagrams discarded by the wire parser",
		}),
		SampledOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirrorscope_sampled_out_total",
			Help: "Total parsed packets excluded by deterministic sampling",
		}),
		FlowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirrorscope_flows_dropped_total",
			Help: "Total flow updates dropped by full tables or probe limits",
		}),
		SnapshotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirrorscope_snapshots_dropped_total",
			Help: "Total worker snapshots dropped on a full coordinator channel",
		}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirrorscope_alerts_fired_total",
			Help: "Total alert notifications fired, by class",
		}, []string{"class"}),
		BitsPerSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mirrorscope_bits_per_second",
			Help: "Aggregate inner bandwidth over the last fast cycle",
		}),
		PacketsPerSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mirrorscope_packets_per_second",
			Help: "Aggregate packet rate over the last fast cycle",
		}),
		MergedFlows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mirrorscope_merged_flows",
			Help: "Distinct flows in the current report window",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.PacketsReceived, m.BytesReceived, m.ParseErrors, m.SampledOut,
		m.FlowsDropped, m.SnapshotsDropped, m.AlertsFired,
		m.BitsPerSecond, m.PacketsPerSecond, m.MergedFlows,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
