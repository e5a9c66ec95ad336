package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	HeartbeatIntervalMS int    `env:"HEARTBEAT_INTERVAL_MS" default:"30000"`
	AllowedOrigins      string `env:"ALLOWED_ORIGINS"`

	MaxConnections       int     `env:"MAX_CONNECTIONS" default:"10000"`
	ConnectionsPerSecond float64 `env:"CONNECTIONS_PER_SECOND" default:"10"`
	ConnectionBurst      int     `env:"CONNECTION_BURST" default:"20"`
	MaxMessageBytes      int64   `env:"MAX_MESSAGE_BYTES" default:"1048576"` // 1 MiB
	SendQueueSize        int     `env:"SEND_QUEUE_SIZE" default:"256"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment reports whether localhost origins are trusted.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// AllowedOriginList splits ALLOWED_ORIGINS on commas, dropping blanks.
func (c *Config) AllowedOriginList() []string {
	var origins []string
	for o := range strings.SplitSeq(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	positive := []struct {
		name  string
		value float64
	}{
		{"HEARTBEAT_INTERVAL_MS", float64(cfg.HeartbeatIntervalMS)},
		{"MAX_CONNECTIONS", float64(cfg.MaxConnections)},
		{"CONNECTIONS_PER_SECOND", cfg.ConnectionsPerSecond},
		{"CONNECTION_BURST", float64(cfg.ConnectionBurst)},
		{"MAX_MESSAGE_BYTES", float64(cfg.MaxMessageBytes)},
		{"SEND_QUEUE_SIZE", float64(cfg.SendQueueSize)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}

	if cfg.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return nil
}
