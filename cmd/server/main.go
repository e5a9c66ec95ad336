package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wsbroker/internal/adapter/httpserver"
	"github.com/pscheid92/wsbroker/internal/adapter/metrics"
	"github.com/pscheid92/wsbroker/internal/adapter/websocket"
	"github.com/pscheid92/wsbroker/internal/platform/config"
	"github.com/pscheid92/wsbroker/internal/platform/logging"
	"github.com/pscheid92/wsbroker/internal/platform/version"
	"github.com/pscheid92/wsbroker/internal/relay"
)

// runGracefulShutdown waits for SIGINT/SIGTERM, then stops the heartbeat
// monitor, closes every client with a going-away frame and stops the server.
func runGracefulShutdown(cfg *config.Config, srv *httpserver.Server, hub *relay.Hub, stopMonitor context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("Shutdown signal received, cleaning up...", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		stopMonitor()
		hub.Shutdown(shutdownCtx)

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", append([]any{"env", cfg.AppEnv, "port", cfg.Port}, version.Get().LogAttrs()...)...)

	reg := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	hub := relay.NewHub(relay.NewRegistry(), relayMetrics)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	monitor := relay.NewMonitor(hub, cfg.HeartbeatInterval(), clock)
	go monitor.Run(monitorCtx)

	limits := websocket.NewConnectionLimits(int64(cfg.MaxConnections), cfg.ConnectionsPerSecond, cfg.ConnectionBurst, clock)
	wsHandler := websocket.NewHandler(hub, limits, websocket.HandlerConfig{
		AllowedOrigins:  cfg.AllowedOriginList(),
		IsDevelopment:   cfg.IsDevelopment(),
		MaxMessageBytes: cfg.MaxMessageBytes,
		SendQueueSize:   cfg.SendQueueSize,
	}, clock, relayMetrics)

	srv := httpserver.NewServer(cfg, httpserver.Options{
		Relay:            hub,
		WebsocketHandler: wsHandler,
		MetricsHandler:   metrics.Handler(reg),
		HTTPMetrics:      httpMetrics,
		HealthChecks: []httpserver.HealthCheck{
			{Name: "relay", Check: hub.Ready},
		},
		Clock: clock,
	})

	done := runGracefulShutdown(cfg, srv, hub, stopMonitor)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
