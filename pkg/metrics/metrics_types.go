package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for both binaries. Each process registers the
// full set; vectors it never touches export nothing.
type Registry struct {
	// Channel Metrics (client)
	EventsReceivedTotal     *prometheus.CounterVec
	EventsDroppedTotal      *prometheus.CounterVec
	ChannelReconnectsTotal  prometheus.Counter
	ChannelConnected        prometheus.Gauge
	EventLogLength          prometheus.Gauge

	// Simulation Metrics (client)
	GenerationsTotal      prometheus.Counter
	SimulationTicksTotal  prometheus.Counter
	StaleTicksTotal       prometheus.Counter
	SimulationNodes       prometheus.Gauge
	SimulationSettleTicks prometheus.Histogram
	DragsTotal            prometheus.Counter

	// Dispatch Metrics (client)
	DispatchRequestsTotal   *prometheus.CounterVec
	DispatchRequestDuration *prometheus.HistogramVec

	// HTTP Metrics (server)
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Research Metrics (server)
	ResearchJobsTotal       *prometheus.CounterVec
	ResearchJobsActive      prometheus.Gauge
	AgentRunsTotal          *prometheus.CounterVec
	AgentRunDuration        *prometheus.HistogramVec
	BroadcastsTotal         *prometheus.CounterVec
	PushClientsConnected    prometheus.Gauge
	UploadsTotal            *prometheus.CounterVec
	UploadSizeBytes         prometheus.Histogram

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initChannelMetrics()
	r.initSimulationMetrics()
	r.initDispatchMetrics()
	r.initHTTPMetrics()
	r.initResearchMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
