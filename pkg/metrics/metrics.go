// Package metrics documents the Prometheus metrics exposed by the façade.
// All metrics are defined in their respective packages (cache, upstream,
// enrich) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the façade.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - facade_cache_hits_total{layer} (Counter): Entry store hits by backend layer
//   - facade_cache_misses_total (Counter): Entry store misses
//   - facade_cache_errors_total{operation} (Counter): Cache operation errors
//   - facade_cache_breaker_open (Gauge): Backing store circuit breaker state
//   - facade_cache_breaker_rejects_total (Counter): Operations rejected while open
//
// Upstream Metrics (pkg/upstream):
//   - facade_upstream_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - facade_upstream_request_duration_seconds{endpoint} (Histogram): Request duration
//   - facade_upstream_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - facade_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - facade_304_responses_total (Counter): 304 Not Modified responses
//
// Enrichment Metrics (pkg/enrich):
//   - facade_venue_lookups_total (Counter): Venue lookup attempts after dedup and cache
//   - facade_venue_lookup_failures_total (Counter): Lookups resolved to an empty venue
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(facade_cache_hits_total[5m])) /
//   (sum(rate(facade_cache_hits_total[5m])) + sum(rate(facade_cache_misses_total[5m])))
//
//   # Stale-serve pressure (rate limits plus upstream errors)
//   rate(facade_upstream_errors_total{class=~"rate_limit|server"}[5m])
//
//   # Revalidation efficiency (how often the validator saves a full payload)
//   rate(facade_304_responses_total[5m]) / rate(facade_conditional_requests_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(facade_upstream_request_duration_seconds_bucket[5m]))
