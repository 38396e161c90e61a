// Package metrics exposes Phoenix's Prometheus instrumentation, built
// the way the teacher's internal/metrics does: a private Registry and
// a namespace constant, with every counter/gauge/histogram registered
// via promauto.With(Registry) in its own file grouped by concern.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "phoenix"

// Registry is the private Prometheus registry every metric in this
// package registers against, so embedding applications can expose it
// (via Handler/StartServer) without colliding with prometheus.DefaultRegisterer.
var Registry = prometheus.NewRegistry()
