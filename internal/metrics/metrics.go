// Package metrics holds the portal's Prometheus collectors. They register with
// the default registry on import and are served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// GateDecisionsTotal counts authorization gate outcomes.
// Labels:
//   - outcome: "allowed", "superuser", "unauthenticated", "denied", "misconfigured", "error"
//   - namespace: application namespace of the protected route
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Authorization gate decisions by outcome and application namespace.",
	},
	[]string{"outcome", "namespace"},
)

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "inactive", "address_denied", "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts by result.",
	},
	[]string{"result"},
)

// OnlineUsers is refreshed by the presence sweeper.
var OnlineUsers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "online_users",
		Help:      "Users considered online at the last presence sweep.",
	},
)

var TouchErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "presence_touch_errors_total",
		Help:      "Failed last-activity updates.",
	},
)

// ModuleCacheTotal counts registry cache lookups.
// Label:
//   - result: "hit" or "miss"
var ModuleCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "module_cache_lookups_total",
		Help:      "Module registry cache lookups by result.",
	},
	[]string{"result"},
)

// HTTPRequestDuration observes handler latency.
// Labels:
//   - method: HTTP method
//   - route: chi route pattern, e.g. "/users/{id}"
//   - status: response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)
