// Package metrics carries the provider-layer Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchRequests counts upstream calls by source, operation and outcome.
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chanscan",
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Upstream fetch attempts by source, operation and outcome.",
	}, []string{"source", "op", "outcome"})

	// Failovers counts escalations from one source to the next.
	Failovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chanscan",
		Subsystem: "fetch",
		Name:      "failovers_total",
		Help:      "Failovers from one source to the next, by abandoned source.",
	}, []string{"source"})

	// Cooldowns counts rate-limit cool-downs applied to sources.
	Cooldowns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chanscan",
		Subsystem: "fetch",
		Name:      "cooldowns_total",
		Help:      "Rate-limit cool-downs applied per source.",
	}, []string{"source"})

	// CacheHits counts manager-level cache hits by data kind.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chanscan",
		Subsystem: "fetch",
		Name:      "cache_hits_total",
		Help:      "Manager cache hits by data kind.",
	}, []string{"kind"})
)
