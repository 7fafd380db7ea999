package enrich

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	venueLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facade_venue_lookups_total",
		Help: "Total venue lookup attempts (after dedup and cache)",
	})

	venueLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facade_venue_lookup_failures_total",
		Help: "Total venue lookups that failed and resolved to an empty venue",
	})
)
