package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initDispatchMetrics() {
	r.DispatchRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgraph_dispatch_requests_total",
			Help: "Outbound job submissions and uploads, by action and status",
		},
		[]string{"action", "status"},
	)

	r.DispatchRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentgraph_dispatch_request_duration_seconds",
			Help:    "Outbound request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
}
