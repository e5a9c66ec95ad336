package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/wsbroker/internal/adapter/metrics"
	"github.com/pscheid92/wsbroker/internal/domain"
)

// UnsupportedMessageText is the error envelope text sent for non-binary frames.
const UnsupportedMessageText = "Only binary messages are supported"

const shutdownReason = "Server shutting down"

// Hub routes inbound frames and announces membership changes.
type Hub struct {
	registry *Registry
	metrics  *metrics.RelayMetrics
	closing  atomic.Bool
}

// NewHub creates a hub over registry. A nil m records into a private registry.
func NewHub(registry *Registry, m *metrics.RelayMetrics) *Hub {
	if m == nil {
		m = metrics.NewRelayMetrics(prometheus.NewRegistry())
	}
	return &Hub{registry: registry, metrics: m}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	return h.registry.Size()
}

// Ready reports whether the hub still accepts connections.
func (h *Hub) Ready(_ context.Context) error {
	if h.closing.Load() {
		return domain.ErrShuttingDown
	}
	return nil
}

// Join registers conn, welcomes it and announces it to everyone else.
// On failure conn is terminated and never announced.
func (h *Hub) Join(ctx context.Context, conn domain.Connection) error {
	if h.closing.Load() {
		_ = conn.Terminate()
		return domain.ErrShuttingDown
	}

	if err := h.registry.Register(conn); err != nil {
		slog.ErrorContext(ctx, "Connection identity collision", "client_id", conn.ID(), "error", err)
		_ = conn.Terminate()
		return err
	}

	h.metrics.ConnectionsTotal.Inc()
	h.metrics.ActiveConnections.Set(float64(h.registry.Size()))

	h.send(ctx, conn, domain.NewWelcome(conn.ID(), h.registry.Size()))
	h.broadcast(ctx, conn, domain.NewJoin(conn.ID(), h.registry.Size()))

	slog.InfoContext(ctx, "Client connected", "client_id", conn.ID(), "client_count", h.registry.Size())
	return nil
}

// Leave deregisters conn and announces the departure to the remaining members.
// It reports false, and announces nothing, if conn was already gone.
func (h *Hub) Leave(ctx context.Context, conn domain.Connection) bool {
	if !h.registry.Deregister(conn) {
		return false
	}
	h.announceLeave(ctx, conn)
	return true
}

// Route dispatches one inbound frame. Binary payloads are relayed; anything
// else is answered with an error envelope to the sender alone.
func (h *Hub) Route(ctx context.Context, sender domain.Connection, frameType domain.FrameType, payload []byte) {
	if frameType != domain.BinaryFrame {
		h.metrics.ProtocolViolations.Inc()
		slog.DebugContext(ctx, "Rejected non-binary frame", "client_id", sender.ID(), "frame_type", frameType.String())
		h.send(ctx, sender, domain.NewError(UnsupportedMessageText))
		return
	}
	h.Relay(ctx, sender, payload)
}

// Relay delivers payload unmodified to every member except sender. Delivery is
// best-effort: a failed send is counted and skipped. payload is shared between
// recipients and must not be mutated afterwards.
func (h *Hub) Relay(ctx context.Context, sender domain.Connection, payload []byte) {
	h.metrics.MessagesRelayed.Inc()
	h.metrics.BytesRelayed.Add(float64(len(payload)))

	frame := domain.Frame{Type: domain.BinaryFrame, Data: payload}
	h.registry.ForEach(func(target domain.Connection) {
		if target == sender {
			return
		}
		h.deliver(ctx, target, frame)
	})
}

// Acknowledge records a probe acknowledgment (pong) from conn.
func (h *Hub) Acknowledge(conn domain.Connection) {
	h.registry.MarkAlive(conn)
}

// Shutdown refuses further joins and closes every registered connection with
// a going-away close frame. Closes run concurrently; Shutdown waits for all of them.
func (h *Hub) Shutdown(ctx context.Context) {
	h.closing.Store(true)

	conns := h.registry.Snapshot()
	slog.InfoContext(ctx, "Relay shutting down", "client_count", len(conns))

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Close(shutdownReason)
		}()
	}
	wg.Wait()

	slog.InfoContext(ctx, "Relay shutdown complete", "disconnected_clients", len(conns))
}

func (h *Hub) announceLeave(ctx context.Context, conn domain.Connection) {
	count := h.registry.Size()
	h.metrics.ActiveConnections.Set(float64(count))
	h.broadcast(ctx, nil, domain.NewLeave(conn.ID(), count))
	slog.InfoContext(ctx, "Client disconnected", "client_id", conn.ID(), "client_count", count)
}

// send delivers a control envelope to a single connection.
func (h *Hub) send(ctx context.Context, conn domain.Connection, msg any) {
	frame, ok := h.encode(ctx, msg)
	if !ok {
		return
	}
	h.deliver(ctx, conn, frame)
}

// broadcast delivers a control envelope to every member except exclude (may be nil).
func (h *Hub) broadcast(ctx context.Context, exclude domain.Connection, msg any) {
	frame, ok := h.encode(ctx, msg)
	if !ok {
		return
	}
	h.registry.ForEach(func(target domain.Connection) {
		if exclude != nil && target == exclude {
			return
		}
		h.deliver(ctx, target, frame)
	})
}

func (h *Hub) encode(ctx context.Context, msg any) (domain.Frame, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal control message", "error", err)
		return domain.Frame{}, false
	}
	h.metrics.LifecycleMessages.WithLabelValues(string(messageType(msg))).Inc()
	return domain.Frame{Type: domain.TextFrame, Data: data}, true
}

func (h *Hub) deliver(ctx context.Context, target domain.Connection, frame domain.Frame) {
	err := target.Send(frame)
	if err == nil {
		return
	}

	reason := "closed"
	if errors.Is(err, domain.ErrSendQueueFull) {
		reason = "queue_full"
	}
	h.metrics.SendFailures.WithLabelValues(reason).Inc()
	slog.DebugContext(ctx, "Dropped delivery", "client_id", target.ID(), "reason", reason)
}

func messageType(msg any) domain.MessageType {
	switch m := msg.(type) {
	case domain.LifecycleMessage:
		return m.Type
	case domain.ErrorMessage:
		return m.Type
	default:
		return "unknown"
	}
}
