package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type statsResponse struct {
	Clients int `json:"clients"`
}

func (s *Server) handleStats(c echo.Context) error {
	if s.relay == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "relay not available")
	}
	if err := c.JSON(http.StatusOK, statsResponse{Clients: s.relay.ClientCount()}); err != nil {
		return fmt.Errorf("failed to write stats response: %w", err)
	}
	return nil
}
