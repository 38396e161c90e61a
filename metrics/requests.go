package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsSent tracks sign_* requests issued by DApp clients, by type.
	RequestsSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "sent_total",
			Help:      "Total number of sign requests sent",
		},
		[]string{"type"}, // sign_message, sign_transaction, sign_all_transactions, send_transaction
	)

	// RequestsResolved tracks correlator terminal outcomes.
	RequestsResolved = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "resolved_total",
			Help:      "Total number of requests resolved, by terminal outcome",
		},
		[]string{"outcome"}, // success, error, timeout, session_closed
	)

	// RequestDuration tracks end-to-end request latency.
	RequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "duration_seconds",
			Help:      "Sign request round-trip duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"type"},
	)

	// WalletPendingRequests reports the wallet's single-flight pending
	// count, which must never exceed 1 (spec.md §8 property 8).
	WalletPendingRequests = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "pending_requests",
			Help:      "Number of sign requests currently pending at the wallet (0 or 1)",
		},
	)

	// ReconnectAttempts counts transport reconnect attempts, by role.
	ReconnectAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of transport reconnect attempts",
		},
		[]string{"role"},
	)
)
