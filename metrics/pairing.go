package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PairingsMinted counts DApp-side pairing URIs minted.
	PairingsMinted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "minted_total",
			Help:      "Total number of pairing URIs minted by DApp clients",
		},
	)

	// PeersBound counts successful peer public-key bindings, by role.
	PeersBound = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "peers_bound_total",
			Help:      "Total number of peer public keys bound",
		},
		[]string{"role"}, // dapp, wallet
	)

	// DecryptFailures counts envelope authentication failures.
	DecryptFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "decrypt_failures_total",
			Help:      "Total number of envelope decrypt/authentication failures",
		},
		[]string{"role"},
	)
)
