// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expirywatch_sweep_runs_total",
			Help: "Sweep runs by mode and result (ok, failed, locked)",
		},
		[]string{"mode", "result"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expirywatch_sweep_duration_seconds",
			Help:    "Wall time of a sweep run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"mode"},
	)

	ItemsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expirywatch_items_classified_total",
			Help: "Items reported by a sweep, by class (due, expired, imminent)",
		},
		[]string{"mode", "class"},
	)

	EmailsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expirywatch_emails_dispatched_total",
			Help: "Per-recipient delivery attempts by status (success, failed)",
		},
		[]string{"mode", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expirywatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordSweep records the outcome of one run.
func RecordSweep(mode, result string, took time.Duration) {
	SweepRuns.WithLabelValues(mode, result).Inc()
	SweepDuration.WithLabelValues(mode).Observe(took.Seconds())
}

func RecordClassified(mode string, due, expired, imminent int) {
	ItemsClassified.WithLabelValues(mode, "due").Add(float64(due))
	ItemsClassified.WithLabelValues(mode, "expired").Add(float64(expired))
	ItemsClassified.WithLabelValues(mode, "imminent").Add(float64(imminent))
}

func RecordDispatch(mode string, sent, failed int) {
	EmailsDispatched.WithLabelValues(mode, "success").Add(float64(sent))
	EmailsDispatched.WithLabelValues(mode, "failed").Add(float64(failed))
}

func RecordHTTPRequest(method, path, status string, took time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(took.Seconds())
}
