package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initResearchMetrics() {
	r.ResearchJobsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_jobs_total",
			Help: "Research jobs by final status",
		},
		[]string{"status"},
	)

	r.ResearchJobsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "research_jobs_active",
			Help: "Research jobs currently running",
		},
	)

	r.AgentRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_runs_total",
			Help: "Agent runs by agent and status",
		},
		[]string{"agent", "status"},
	)

	r.AgentRunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_agent_run_duration_seconds",
			Help:    "Agent run latency in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"agent"},
	)

	r.BroadcastsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_broadcasts_total",
			Help: "agent_update frames broadcast, by transport",
		},
		[]string{"transport"},
	)

	r.PushClientsConnected = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "research_push_clients_connected",
			Help: "WebSocket push-channel clients currently connected",
		},
	)

	r.UploadsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_uploads_total",
			Help: "File uploads by storage backend and status",
		},
		[]string{"backend", "status"},
	)

	r.UploadSizeBytes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
}
