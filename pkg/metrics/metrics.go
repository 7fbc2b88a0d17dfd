package metrics

import (
	"runtime"
	"time"
)

// Drop reasons for EventsDroppedTotal
const (
	DropMalformed   = "malformed"
	DropUnsupported = "unsupported_type"
)

// RecordEventReceived counts one event delivered to the session
func (r *Registry) RecordEventReceived(source string) {
	r.EventsReceivedTotal.WithLabelValues(source).Inc()
}

// RecordEventDropped counts one frame that never reached the event log
func (r *Registry) RecordEventDropped(reason string) {
	r.EventsDroppedTotal.WithLabelValues(reason).Inc()
}

// SetChannelConnected updates the connection state gauge
func (r *Registry) SetChannelConnected(connected bool) {
	if connected {
		r.ChannelConnected.Set(1)
	} else {
		r.ChannelConnected.Set(0)
	}
}

// RecordGeneration records a rebuilt graph of nodes nodes
func (r *Registry) RecordGeneration(nodes int) {
	r.GenerationsTotal.Inc()
	r.SimulationNodes.Set(float64(nodes))
	r.EventLogLength.Set(float64(nodes))
}

// RecordDispatch records one outbound submit or upload
func (r *Registry) RecordDispatch(action, status string, duration time.Duration) {
	r.DispatchRequestsTotal.WithLabelValues(action, status).Inc()
	r.DispatchRequestDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordAgentRun records one agent step
func (r *Registry) RecordAgentRun(agent, status string, duration time.Duration) {
	r.AgentRunsTotal.WithLabelValues(agent, status).Inc()
	r.AgentRunDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordUpload records a stored upload
func (r *Registry) RecordUpload(backend, status string, size int64) {
	r.UploadsTotal.WithLabelValues(backend, status).Inc()
	if status == "success" {
		r.UploadSizeBytes.Observe(float64(size))
	}
}

// UpdateSystemMetrics refreshes uptime and runtime gauges
func (r *Registry) UpdateSystemMetrics(start time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.UptimeSeconds.Set(time.Since(start).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocBytes.Set(float64(m.Alloc))
}
