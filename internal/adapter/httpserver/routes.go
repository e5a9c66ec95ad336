package httpserver

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	statsRatePerSecond = 5
	statsBurst         = 10
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())

	s.registerHealthRoutes()

	s.echo.GET("/stats", s.handleStats, newRateLimiter(statsRatePerSecond, statsBurst))

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	if s.websocketHandler != nil {
		ws := echo.WrapHandler(s.websocketHandler)
		s.echo.GET("/", ws)
		s.echo.GET("/ws", ws)
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:    skipRequestLog,
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

// skipRequestLog drops probe traffic and WebSocket upgrades, whose lifetime is
// the whole connection and which are logged by the relay instead.
func skipRequestLog(c echo.Context) bool {
	req := c.Request()
	if strings.EqualFold(req.Header.Get(echo.HeaderUpgrade), "websocket") {
		return true
	}
	path := req.URL.Path
	return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/health/")
}
