// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransfersTotal counts transfer executions by terminal outcome and reason
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "Total number of transfer executions by outcome",
		},
		[]string{"outcome", "reason"},
	)

	// TransferDuration observes end-to-end transfer executor latency
	TransferDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transfer_duration_seconds",
			Help:    "Transfer executor latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// TransferAmounts observes transfer amounts in minor units
	TransferAmounts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transfer_amount_minor_units",
			Help:    "Transfer amounts in minor units",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
	)

	// IdempotentReplaysTotal counts replays resolved without side effects
	IdempotentReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotent_replays_total",
			Help: "Total number of transfer requests resolved by idempotent replay",
		},
		[]string{"status"},
	)

	// DatabaseConnectionsGauge tracks pool state (open, idle, in_use)
	DatabaseConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "database_connections",
			Help: "Database connection pool state",
		},
		[]string{"state"},
	)

	// StalePendingReapedTotal counts PENDING rows swept by the reconciler
	StalePendingReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_pending_reaped_total",
			Help: "Total number of stale PENDING transactions marked FAILED by the reconciler",
		},
	)
)

// RecordTransfer records one transfer execution outcome
func RecordTransfer(outcome, reason string, amount int64, seconds float64) {
	TransfersTotal.WithLabelValues(outcome, reason).Inc()
	TransferDuration.Observe(seconds)
	if amount > 0 {
		TransferAmounts.Observe(float64(amount))
	}
}
