// Package metrics defines the Prometheus instruments of the relay and the
// HTTP surface. Every constructor registers on an injected registry so tests
// can use a fresh one.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wsbroker"

// NewRegistry creates a registry carrying the Go runtime, process and build
// info collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	return reg
}

// Handler serves reg in the text or OpenMetrics exposition format. Gathering
// errors are logged and the remaining metrics are still served.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:          slogErrorLogger{},
		ErrorHandling:     promhttp.ContinueOnError,
		Registry:          reg,
		EnableOpenMetrics: true,
	})
}

type slogErrorLogger struct{}

func (slogErrorLogger) Println(v ...any) {
	slog.Error("Metrics exposition failed", "error", fmt.Sprint(v...))
}
