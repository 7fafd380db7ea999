package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facade_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "facade_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facade_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"}) // "client", "server", "rate_limit", "network"

	conditionalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facade_conditional_requests_total",
		Help: "Total conditional requests sent with If-None-Match",
	})

	notModifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facade_304_responses_total",
		Help: "Total 304 Not Modified responses from upstreams",
	})
)
