package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wsbroker/internal/platform/correlation"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandlingMiddleware turns handler errors into JSON error responses.
// Echo HTTP errors keep their status; anything else becomes a 500 and is logged.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			status := http.StatusInternalServerError
			message := "internal server error"

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
				if msg, ok := httpErr.Message.(string); ok {
					message = msg
				}
			}

			logError(c, status, err)

			if c.Response().Committed {
				return nil
			}
			if err := c.JSON(status, ErrorResponse{Error: message}); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, status int, err error) {
	attrs := []any{
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", status,
		"error", err,
	}

	ctx := c.Request().Context()
	switch {
	case status >= http.StatusInternalServerError:
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case status == http.StatusNotFound, status == http.StatusMethodNotAllowed:
		slog.DebugContext(ctx, "Not found", attrs...)
	default:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	}
}
