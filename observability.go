package leasefeed

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/leasefeed/internal/logging"
	"github.com/arloliu/leasefeed/internal/metrics"
)

// NewPrometheusMetrics creates a MetricsCollector exporting Prometheus metrics.
//
// Parameters:
//   - reg: Prometheus registerer (prometheus.DefaultRegisterer if nil)
//   - namespace: Metric namespace ("leasefeed" if empty)
//
// Returns:
//   - MetricsCollector: Prometheus-backed collector
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	proc, _ := leasefeed.NewProcessor(&cfg, nc, src, observers,
//	    leasefeed.WithMetrics(leasefeed.NewPrometheusMetrics(reg, "orders")))
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}

// NewSlogLogger adapts a slog.Logger to Logger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	return logging.NewSlog(logger)
}
