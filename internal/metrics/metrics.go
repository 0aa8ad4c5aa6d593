// Package metrics holds the Prometheus collectors shared by the routing and
// navigation services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trailguide"

var (
	// RouteFetches counts routing engine requests by mode and outcome.
	// Outcome is "ok" or the routing error kind.
	RouteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "route_fetches_total",
		Help:      "Routing engine requests by mode and outcome.",
	}, []string{"mode", "outcome"})

	// RouteFetchDuration observes routing engine latency by mode
	RouteFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "route_fetch_duration_seconds",
		Help:      "Routing engine request latency.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
	}, []string{"mode"})

	// RouteCacheLookups counts route cache lookups by result (hit, miss)
	RouteCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "route_lookups_total",
		Help:      "Route cache lookups by result.",
	}, []string{"result"})

	// HybridLegs counts hybrid leg computations by outcome (direct, transfer, failed)
	HybridLegs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "routing",
		Name:      "hybrid_legs_total",
		Help:      "Hybrid leg computations by outcome.",
	}, []string{"outcome"})

	// NavigationEvents counts emitted navigation events by type
	NavigationEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "navigation",
		Name:      "events_total",
		Help:      "Navigation events emitted by type.",
	}, []string{"type"})

	// ActiveSessions is the number of open navigation sessions
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "navigation",
		Name:      "active_sessions",
		Help:      "Open navigation sessions.",
	})
)
