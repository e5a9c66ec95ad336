package httpserver

import (
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wsbroker/internal/platform/config"
)

// --- Mock implementations ---

type mockRelay struct {
	clients atomic.Int64
}

func (m *mockRelay) ClientCount() int {
	return int(m.clients.Load())
}

// --- Test helpers ---

func newTestServer(t *testing.T, opts ...func(*Server)) *Server {
	t.Helper()

	clock := clockwork.NewFakeClock()
	srv := &Server{
		echo:      echo.New(),
		config:    &config.Config{Port: "0"},
		clock:     clock,
		relay:     &mockRelay{},
		startTime: clock.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

func withRelay(r relayStats) func(*Server) {
	return func(s *Server) {
		s.relay = r
	}
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withWebsocketHandler(h http.Handler) func(*Server) {
	return func(s *Server) {
		s.websocketHandler = h
	}
}

func withMetricsHandler(h http.Handler) func(*Server) {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// routed registers the routes after the options have been applied.
func routed(srv *Server) *Server {
	srv.registerRoutes()
	return srv
}
