package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.EventsDroppedTotal == nil {
		t.Error("EventsDroppedTotal not initialized")
	}
	if r.GenerationsTotal == nil {
		t.Error("GenerationsTotal not initialized")
	}
	if r.DispatchRequestsTotal == nil {
		t.Error("DispatchRequestsTotal not initialized")
	}
	if r.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal not initialized")
	}
	if r.AgentRunsTotal == nil {
		t.Error("AgentRunsTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordEventDropped(t *testing.T) {
	r := NewRegistry()

	r.RecordEventDropped(DropMalformed)
	r.RecordEventDropped(DropMalformed)
	r.RecordEventDropped(DropUnsupported)

	if got := counterValue(t, r.EventsDroppedTotal.WithLabelValues(DropMalformed)); got != 2 {
		t.Errorf("malformed drops = %v, want 2", got)
	}
	if got := counterValue(t, r.EventsDroppedTotal.WithLabelValues(DropUnsupported)); got != 1 {
		t.Errorf("unsupported drops = %v, want 1", got)
	}
}

func TestRecordEventReceived(t *testing.T) {
	r := NewRegistry()

	r.RecordEventReceived("channel")
	r.RecordEventReceived("channel")
	r.RecordEventReceived("local")

	if got := counterValue(t, r.EventsReceivedTotal.WithLabelValues("channel")); got != 2 {
		t.Errorf("channel events = %v, want 2", got)
	}
	if got := counterValue(t, r.EventsReceivedTotal.WithLabelValues("local")); got != 1 {
		t.Errorf("local events = %v, want 1", got)
	}
}

func TestChannelConnected(t *testing.T) {
	r := NewRegistry()

	r.SetChannelConnected(true)
	if got := gaugeValue(t, r.ChannelConnected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	r.SetChannelConnected(false)
	if got := gaugeValue(t, r.ChannelConnected); got != 0 {
		t.Errorf("connected = %v, want 0", got)
	}
}

func TestRecordGeneration(t *testing.T) {
	r := NewRegistry()

	r.RecordGeneration(1)
	r.RecordGeneration(2)
	r.RecordGeneration(3)

	if got := counterValue(t, r.GenerationsTotal); got != 3 {
		t.Errorf("generations = %v, want 3", got)
	}
	if got := gaugeValue(t, r.SimulationNodes); got != 3 {
		t.Errorf("nodes = %v, want 3", got)
	}
}

func TestRecordDispatch(t *testing.T) {
	r := NewRegistry()

	r.RecordDispatch("submit", "200", 20*time.Millisecond)
	r.RecordDispatch("upload", "400", 5*time.Millisecond)
	r.RecordDispatch("upload", "error", time.Millisecond)

	if got := counterValue(t, r.DispatchRequestsTotal.WithLabelValues("submit", "200")); got != 1 {
		t.Errorf("submit 200 = %v, want 1", got)
	}
	if got := counterValue(t, r.DispatchRequestsTotal.WithLabelValues("upload", "error")); got != 1 {
		t.Errorf("upload error = %v, want 1", got)
	}

	hist, err := r.DispatchRequestDuration.GetMetricWithLabelValues("upload")
	if err != nil {
		t.Fatalf("Failed to get histogram: %v", err)
	}
	var metric dto.Metric
	if err := hist.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("upload samples = %v, want 2", metric.Histogram.GetSampleCount())
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	r := NewRegistry()

	r.RecordHTTPRequest("POST", "/research", "200", 100*time.Millisecond)
	r.RecordHTTPRequest("POST", "/upload", "400", 50*time.Millisecond)
	r.RecordHTTPRequest("POST", "/research", "200", 80*time.Millisecond)

	if got := counterValue(t, r.HTTPRequestsTotal.WithLabelValues("POST", "/research", "200")); got != 2 {
		t.Errorf("POST /research = %v, want 2", got)
	}
	if got := counterValue(t, r.HTTPRequestsTotal.WithLabelValues("POST", "/upload", "400")); got != 1 {
		t.Errorf("POST /upload = %v, want 1", got)
	}
}

func TestRecordAgentRunAndUpload(t *testing.T) {
	r := NewRegistry()

	r.RecordAgentRun("Technologist", "success", 10*time.Millisecond)
	r.RecordAgentRun("Web Browser", "error", time.Second)
	r.RecordUpload("local", "success", 2048)
	r.RecordUpload("s3", "error", 0)

	if got := counterValue(t, r.AgentRunsTotal.WithLabelValues("Web Browser", "error")); got != 1 {
		t.Errorf("agent errors = %v, want 1", got)
	}
	if got := counterValue(t, r.UploadsTotal.WithLabelValues("local", "success")); got != 1 {
		t.Errorf("uploads = %v, want 1", got)
	}

	var metric dto.Metric
	if err := r.UploadSizeBytes.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("upload size samples = %v, want 1", metric.Histogram.GetSampleCount())
	}
}

func TestUpdateSystemMetrics(t *testing.T) {
	r := NewRegistry()
	r.UpdateSystemMetrics(time.Now().Add(-time.Minute))

	if got := gaugeValue(t, r.UptimeSeconds); got < 59 {
		t.Errorf("uptime = %v, want >= 59", got)
	}
	if got := gaugeValue(t, r.GoRoutines); got < 1 {
		t.Errorf("goroutines = %v, want >= 1", got)
	}
}

func TestMetricNaming(t *testing.T) {
	r := NewRegistry()
	r.RecordEventDropped(DropMalformed)
	r.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)

	metrics, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if len(metrics) == 0 {
		t.Fatal("No metrics registered")
	}

	names := make(map[string]bool)
	for _, m := range metrics {
		name := m.GetName()
		names[name] = true
		if !strings.HasPrefix(name, "agentgraph_") && !strings.HasPrefix(name, "research_") {
			t.Errorf("Metric %s has neither the agentgraph_ nor the research_ prefix", name)
		}
	}

	for _, expected := range []string{
		"agentgraph_events_dropped_total",
		"agentgraph_generations_total",
		"agentgraph_uptime_seconds",
		"research_http_requests_total",
	} {
		if !names[expected] {
			t.Errorf("Expected metric %s not found", expected)
		}
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordEventDropped(DropMalformed)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `agentgraph_events_dropped_total{reason="malformed"} 1`) {
		t.Errorf("exposition missing dropped counter:\n%s", body)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.RecordEventReceived("channel")
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if got := counterValue(t, r.EventsReceivedTotal.WithLabelValues("channel")); got != 1000 {
		t.Errorf("Counter = %v, want 1000", got)
	}
}

func BenchmarkRecordEventReceived(b *testing.B) {
	r := NewRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.RecordEventReceived("channel")
	}
}
