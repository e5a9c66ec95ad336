package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter limits requests per client IP with a token bucket. Rejected
// requests get a 429 JSON body and a Retry-After hint of one refill period.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	retryAfter := strconv.Itoa(retryAfterSeconds(ratePerSecond))

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			slog.DebugContext(c.Request().Context(), "Request rate limited", "remote_ip", identifier, "path", c.Path())
			c.Response().Header().Set("Retry-After", retryAfter)
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
		},
	})
}

func retryAfterSeconds(ratePerSecond float64) int {
	if ratePerSecond <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/ratePerSecond)))
}
