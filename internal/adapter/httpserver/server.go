package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wsbroker/internal/adapter/metrics"
	"github.com/pscheid92/wsbroker/internal/platform/config"
)

// relayStats is the read-only view of the relay exposed over HTTP.
type relayStats interface {
	ClientCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	relay relayStats

	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

// Options carries the collaborators of the HTTP server. Nil handlers leave
// their routes unregistered.
type Options struct {
	Relay            relayStats
	WebsocketHandler http.Handler
	MetricsHandler   http.Handler
	HTTPMetrics      *metrics.HTTPMetrics
	HealthChecks     []HealthCheck
	Clock            clockwork.Clock
}

func NewServer(cfg *config.Config, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:             e,
		config:           cfg,
		clock:            clock,
		relay:            opts.Relay,
		websocketHandler: opts.WebsocketHandler,
		metricsHandler:   opts.MetricsHandler,
		httpMetrics:      opts.HTTPMetrics,
		healthChecks:     opts.HealthChecks,
		startTime:        clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
