package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds Prometheus metrics for the connection registry, fan-out and heartbeat.
type RelayMetrics struct {
	ActiveConnections  prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	MessagesRelayed    prometheus.Counter
	BytesRelayed       prometheus.Counter
	SendFailures       *prometheus.CounterVec
	ProtocolViolations prometheus.Counter
	LifecycleMessages  *prometheus.CounterVec
	Evictions          prometheus.Counter
	HeartbeatSweeps    prometheus.Counter
	SweepDuration      prometheus.Histogram
	RejectedUpgrades   *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_connections",
			Help:      "Number of registered WebSocket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections_total",
			Help:      "Total number of connections that joined the relay.",
		}),
		MessagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_relayed_total",
			Help:      "Total number of binary payloads accepted for fan-out.",
		}),
		BytesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "bytes_relayed_total",
			Help:      "Total number of payload bytes accepted for fan-out.",
		}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "send_failures_total",
			Help:      "Per-recipient deliveries that were dropped, by reason.",
		}, []string{"reason"}),
		ProtocolViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "protocol_violations_total",
			Help:      "Total number of rejected non-binary frames.",
		}),
		LifecycleMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "lifecycle_messages_total",
			Help:      "Control envelopes constructed, by type.",
		}, []string{"type"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "evictions_total",
			Help:      "Connections terminated for missing a heartbeat.",
		}),
		HeartbeatSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "sweeps_total",
			Help:      "Total number of heartbeat sweeps.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of heartbeat sweeps in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		RejectedUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_upgrades_total",
			Help:      "Upgrade requests refused before the handshake, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.ConnectionsTotal,
		m.MessagesRelayed,
		m.BytesRelayed,
		m.SendFailures,
		m.ProtocolViolations,
		m.LifecycleMessages,
		m.Evictions,
		m.HeartbeatSweeps,
		m.SweepDuration,
		m.RejectedUpgrades,
	)
	return m
}
