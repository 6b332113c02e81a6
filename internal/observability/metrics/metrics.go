package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RefreshRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_requests_total",
			Help: "Total number of refresh rotation attempts.",
		},
	)

	RefreshSuccessTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_success_total",
			Help: "Total number of successful refresh rotations.",
		},
	)

	RefreshFailTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_fail_total",
			Help: "Total number of failed refresh rotations by reason.",
		},
		[]string{"reason"},
	)

	RefreshLatencyMS = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auth_refresh_latency_ms",
			Help:    "End-to-end refresh rotation latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 13),
		},
	)

	RefreshLockWaitMS = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auth_refresh_lock_wait_ms",
			Help:    "Time spent waiting on the refresh-token row lock in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"result"},
	)

	RevocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_revocations_total",
			Help: "Total number of session revocations by trigger.",
		},
		[]string{"trigger"},
	)

	CleanupRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_cleanup_rows_total",
			Help: "Rows touched by cleanup sweeps.",
		},
		[]string{"sweep", "entity"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		RefreshRequestsTotal,
		RefreshSuccessTotal,
		RefreshFailTotal,
		RefreshLatencyMS,
		RefreshLockWaitMS,
		LoginsTotal,
		RevocationsTotal,
		CleanupRowsTotal,
	)
}
