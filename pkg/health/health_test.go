package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func healthy(ctx context.Context) Check   { return Check{Status: StatusHealthy} }
func degraded(ctx context.Context) Check  { return Check{Status: StatusDegraded} }
func unhealthy(ctx context.Context) Check { return Check{Status: StatusUnhealthy} }

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker()

	if hc == nil {
		t.Fatal("NewHealthChecker returned nil")
	}
	if hc.checks == nil {
		t.Error("checks map not initialized")
	}
	if hc.readyChecks == nil {
		t.Error("readyChecks map not initialized")
	}
	if hc.timeout != DefaultCheckTimeout {
		t.Errorf("timeout = %v, want %v", hc.timeout, DefaultCheckTimeout)
	}
}

func TestRegisterCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterCheck("test", func(ctx context.Context) Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	resp := hc.Check(context.Background())
	if !called {
		t.Error("registered check was not called")
	}
	check, exists := resp.Checks["test"]
	if !exists {
		t.Fatal("check result not in response")
	}
	if check.Name != "test" {
		t.Errorf("Name = %q, want registered name", check.Name)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

func TestRegisterReadinessCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterReadinessCheck("ready-test", func(ctx context.Context) Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	// Should not be called for regular Check()
	hc.Check(context.Background())
	if called {
		t.Error("readiness check should not be called for Check()")
	}

	resp := hc.CheckReadiness(context.Background())
	if !called {
		t.Error("readiness check was not called")
	}
	if _, exists := resp.Checks["ready-test"]; !exists {
		t.Error("readiness check result not in response")
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks []CheckFunc
		want   Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []CheckFunc{healthy, healthy}, StatusHealthy},
		{"one degraded", []CheckFunc{healthy, degraded}, StatusDegraded},
		{"unhealthy wins", []CheckFunc{degraded, unhealthy, healthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, c := range tt.checks {
				hc.RegisterCheck(string(rune('a'+i)), c)
			}
			if got := hc.Check(context.Background()).Status; got != tt.want {
				t.Errorf("Status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	hc := NewHealthChecker()
	hc.SetTimeout(20 * time.Millisecond)

	hc.RegisterCheck("slow", func(ctx context.Context) Check {
		<-ctx.Done()
		return Check{Status: StatusUnhealthy, Message: ctx.Err().Error()}
	})

	resp := hc.Check(context.Background())
	if resp.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", resp.Status)
	}
	if msg := resp.Checks["slow"].Message; msg != context.DeadlineExceeded.Error() {
		t.Errorf("Message = %q, want deadline exceeded", msg)
	}
}

func TestUptime(t *testing.T) {
	hc := NewHealthChecker()
	hc.startTime = time.Now().Add(-10 * time.Second)

	if up := hc.Check(context.Background()).Uptime; up < 10 {
		t.Errorf("Uptime = %v, want >= 10", up)
	}
}

func TestStoreCheck(t *testing.T) {
	ok := StoreCheck("local", func(ctx context.Context) error { return nil })(context.Background())
	if ok.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", ok.Status)
	}
	if ok.Details["backend"] != "local" {
		t.Errorf("backend = %v, want local", ok.Details["backend"])
	}

	bad := StoreCheck("s3", func(ctx context.Context) error {
		return errors.New("access denied")
	})(context.Background())
	if bad.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", bad.Status)
	}
	if bad.Message != "access denied" {
		t.Errorf("Message = %q", bad.Message)
	}
}

func TestPushChannelCheck(t *testing.T) {
	off := PushChannelCheck(func() string { return "" }, func() int { return 0 })(context.Background())
	if off.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", off.Status)
	}
	if off.Details["nng_enabled"] != false {
		t.Error("nng_enabled should be false")
	}
	if _, ok := off.Details["nng_addr"]; ok {
		t.Error("nng_addr should be absent when disabled")
	}

	on := PushChannelCheck(func() string { return "tcp://127.0.0.1:40899" }, func() int { return 3 })(context.Background())
	if on.Details["websocket_clients"] != 3 {
		t.Errorf("websocket_clients = %v, want 3", on.Details["websocket_clients"])
	}
	if on.Details["nng_addr"] != "tcp://127.0.0.1:40899" {
		t.Errorf("nng_addr = %v", on.Details["nng_addr"])
	}
}

func TestJobCapacityCheck(t *testing.T) {
	tests := []struct {
		active int64
		limit  int64
		want   Status
	}{
		{0, 4, StatusHealthy},
		{3, 4, StatusHealthy},
		{4, 4, StatusDegraded},
		{5, 0, StatusHealthy},
	}

	for _, tt := range tests {
		active := tt.active
		check := JobCapacityCheck(func() int64 { return active }, tt.limit)(context.Background())
		if check.Status != tt.want {
			t.Errorf("active=%d limit=%d: Status = %s, want %s", tt.active, tt.limit, check.Status, tt.want)
		}
	}
}

func TestMemoryCheck(t *testing.T) {
	tests := []struct {
		name  string
		alloc uint64
		sys   uint64
		want  Status
	}{
		{"normal", 100, 1000, StatusHealthy},
		{"high", 950, 1000, StatusDegraded},
		{"zero sys", 0, 0, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := MemoryCheck(func() (uint64, uint64) { return tt.alloc, tt.sys })(context.Background())
			if check.Status != tt.want {
				t.Errorf("Status = %s, want %s", check.Status, tt.want)
			}
		})
	}

	runtimeCheck := MemoryCheck(nil)(context.Background())
	if _, ok := runtimeCheck.Details["sys_bytes"]; !ok {
		t.Error("runtime memory check missing sys_bytes")
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		wantStatus int
	}{
		{"healthy", healthy, http.StatusOK},
		{"degraded still serves", degraded, http.StatusOK},
		{"unhealthy", unhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterCheck("c", tt.check)

			rec := httptest.NewRecorder()
			hc.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := resp.Checks["c"]; !ok {
				t.Error("check missing from body")
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterReadinessCheck("store", degraded)

	rec := httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	// Degraded is not ready
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	ready := NewHealthChecker()
	ready.RegisterReadinessCheck("store", healthy)
	rec = httptest.NewRecorder()
	ready.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
