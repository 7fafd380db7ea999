package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by backend layer.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facade_cache_hits_total",
			Help: "Total number of cache entry store hits",
		},
		[]string{"layer"}, // "redis", "memory"
	)

	// cacheMisses tracks cache misses.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facade_cache_misses_total",
			Help: "Total number of cache entry store misses",
		},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facade_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set"
	)

	// breakerState exposes the backing store circuit breaker (0=closed, 1=open).
	breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facade_cache_breaker_open",
			Help: "Backing store circuit breaker state (0=closed, 1=open)",
		},
	)

	// breakerRejects counts operations rejected while the breaker is open.
	breakerRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facade_cache_breaker_rejects_total",
			Help: "Total number of operations rejected by the open circuit breaker",
		},
	)
)
