package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns a CheckOrigin function for the upgrader.
// Requests without an Origin header (non-browser clients) are always allowed.
// With no configured origins every origin is accepted; otherwise only the
// listed ones are, plus loopback origins when isDevelopment is true.
// Origins are compared after normalisation, so "https://Example.com:443"
// matches "https://example.com".
func NewCheckOrigin(allowedOrigins []string, isDevelopment bool) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if origin := normalizeOrigin(strings.TrimSpace(o)); origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		raw := r.Header.Get("Origin")
		if raw == "" || len(allowed) == 0 {
			return true
		}

		origin := normalizeOrigin(raw)
		if _, ok := allowed[origin]; ok && origin != "" {
			return true
		}

		if isDevelopment && isLoopbackOrigin(origin) {
			return true
		}

		slog.WarnContext(r.Context(), "WebSocket origin rejected", "origin", raw, "remote_addr", r.RemoteAddr)
		return false
	}
}

// normalizeOrigin reduces rawURL to lower-case scheme://host[:port], dropping
// the port when it is the scheme's default. It returns "" for URLs without a host.
func normalizeOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
