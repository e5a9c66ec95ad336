package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wsbroker/internal/platform/correlation"
)

const DefaultHeartbeatInterval = 30 * time.Second

// Monitor probes every registered connection on a fixed period and evicts the
// ones that did not acknowledge the previous probe. A connection tolerates one
// missed heartbeat; eviction happens between one and two intervals after it
// stops answering.
type Monitor struct {
	hub      *Hub
	clock    clockwork.Clock
	interval time.Duration
}

// SweepResult summarises one heartbeat sweep.
type SweepResult struct {
	Evicted int
	Probed  int
}

func NewMonitor(hub *Hub, interval time.Duration, clock clockwork.Clock) *Monitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Monitor{hub: hub, clock: clock, interval: interval}
}

// Run sweeps every interval. It blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Heartbeat monitor started", "interval", m.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Heartbeat monitor stopped")
			return
		case <-ticker.Chan():
			m.Sweep(correlation.WithID(ctx, correlation.NewID()))
		}
	}
}

// Sweep evicts connections still Suspect from the previous sweep, then marks
// every survivor Suspect and pings it. The two phases must stay in this order.
func (m *Monitor) Sweep(ctx context.Context) SweepResult {
	start := m.clock.Now()
	var result SweepResult

	for _, conn := range m.hub.registry.Suspects() {
		if !m.hub.registry.EvictSuspect(conn) {
			continue
		}
		_ = conn.Terminate()
		m.hub.metrics.Evictions.Inc()
		slog.InfoContext(ctx, "Evicting unresponsive client", "client_id", conn.ID())
		m.hub.announceLeave(ctx, conn)
		result.Evicted++
	}

	for _, conn := range m.hub.registry.MarkAllSuspect() {
		if err := conn.Ping(); err != nil {
			slog.DebugContext(ctx, "Heartbeat probe not sent", "client_id", conn.ID(), "error", err)
		}
		result.Probed++
	}

	m.hub.metrics.HeartbeatSweeps.Inc()
	m.hub.metrics.SweepDuration.Observe(m.clock.Since(start).Seconds())

	slog.DebugContext(ctx, "Heartbeat sweep complete", "evicted", result.Evicted, "probed", result.Probed)
	return result
}
