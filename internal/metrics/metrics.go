package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics holds the Prometheus instrumentation for the backtest API
// and CLI processes.
type RunMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	BarsProcessedTotal prometheus.Counter
	FillsTotal         *prometheus.CounterVec
	OrdersRejectedTotal prometheus.Counter

	StorePutDuration *prometheus.HistogramVec
	StoreErrors      *prometheus.CounterVec
}

// NewRunMetrics creates and registers every metric under namespace.
func NewRunMetrics(namespace string) *RunMetrics {
	if namespace == "" {
		namespace = "backtest"
	}

	return &RunMetrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of backtest runs started, by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of a completed backtest run",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
		),
		BarsProcessedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bars_processed_total",
				Help:      "Total number of bars driven across all runs",
			},
		),
		FillsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fills_total",
				Help:      "Total number of fills produced, by side",
			},
			[]string{"side"},
		),
		OrdersRejectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_rejected_total",
				Help:      "Total number of orders rejected by the execution engine",
			},
		),

		StorePutDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_put_duration_seconds",
				Help:      "Duration of persisting a completed run's results",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		StoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of results-store errors",
			},
			[]string{"operation"},
		),
	}
}
