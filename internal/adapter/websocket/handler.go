package websocket

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wsbroker/internal/adapter/metrics"
	"github.com/pscheid92/wsbroker/internal/domain"
)

// Hub is the relay the handler feeds accepted connections into.
type Hub interface {
	Router
	Join(ctx context.Context, conn domain.Connection) error
	Leave(ctx context.Context, conn domain.Connection) bool
}

// HandlerConfig carries the transport settings for accepted connections.
type HandlerConfig struct {
	AllowedOrigins  []string
	IsDevelopment   bool
	MaxMessageBytes int64
	SendQueueSize   int
}

// Handler upgrades HTTP requests to WebSocket connections and runs each one
// against the hub until it closes.
type Handler struct {
	hub      Hub
	limits   *ConnectionLimits
	upgrader websocket.Upgrader
	clock    clockwork.Clock
	metrics  *metrics.RelayMetrics
	cfg      HandlerConfig
}

func NewHandler(hub Hub, limits *ConnectionLimits, cfg HandlerConfig, clock clockwork.Clock, m *metrics.RelayMetrics) *Handler {
	return &Handler{
		hub:    hub,
		limits: limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AllowedOrigins, cfg.IsDevelopment),
		},
		clock:   clock,
		metrics: m,
		cfg:     cfg,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := clientIP(r)

	if h.limits != nil {
		ok, reason := h.limits.Acquire(ip)
		if !ok {
			h.reject(ctx, w, ip, reason)
			return
		}
		defer h.limits.Release()
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error response
		slog.DebugContext(ctx, "WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := NewConn(uuid.NewString(), wsConn, h.clock, h.cfg.SendQueueSize)
	if err := h.hub.Join(ctx, conn); err != nil {
		return
	}

	// read loop; blocks until the connection closes
	_ = conn.Serve(ctx, h.hub, h.cfg.MaxMessageBytes)

	h.hub.Leave(ctx, conn)
	_ = conn.Terminate()
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, ip string, reason LimitReason) {
	if h.metrics != nil {
		h.metrics.RejectedUpgrades.WithLabelValues(string(reason)).Inc()
	}
	slog.WarnContext(ctx, "Rejecting WebSocket connection", "remote_ip", ip, "reason", reason)

	status := http.StatusServiceUnavailable
	if reason == LimitReasonRate {
		status = http.StatusTooManyRequests
	}
	http.Error(w, http.StatusText(status), status)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
