package metrics

import (
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors, for processes that expose /metrics.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// HTTPHandler serves reg, or the default gatherer when reg is nil. Gathering
// errors are logged and the remaining metrics are still served.
func HTTPHandler(reg *prom.Registry) http.Handler {
	var g prom.Gatherer = prom.DefaultGatherer
	if reg != nil {
		g = reg
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}
