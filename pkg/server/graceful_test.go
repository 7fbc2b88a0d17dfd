package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/dd0wney/agentgraph/pkg/config"
	"github.com/dd0wney/agentgraph/pkg/logging"
	tlsconfig "github.com/dd0wney/agentgraph/pkg/tls"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
}

// TestGracefulServer_RunUntilCancelled serves requests until the context ends
func TestGracefulServer_RunUntilCancelled(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", okHandler(), logging.NewNopLogger())

	var hookCalls []string
	var mu sync.Mutex
	gs.OnShutdown(func(context.Context) error {
		mu.Lock()
		hookCalls = append(hookCalls, "hub")
		mu.Unlock()
		return nil
	})
	gs.OnShutdown(func(context.Context) error {
		mu.Lock()
		hookCalls = append(hookCalls, "nng")
		mu.Unlock()
		return errors.New("already closed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	addr := gs.Addr()
	if addr == nil {
		t.Fatal("server did not bind")
	}

	resp, err := http.Get("http://" + addr.String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if !gs.IsShuttingDown() {
		t.Error("IsShuttingDown() = false after Run returned")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hookCalls) != 2 || hookCalls[0] != "hub" || hookCalls[1] != "nng" {
		t.Errorf("hooks ran as %v, want [hub nng]", hookCalls)
	}
}

// TestGracefulServer_TLS serves HTTPS with a generated certificate
func TestGracefulServer_TLS(t *testing.T) {
	serverTLS, err := tlsconfig.ServerConfig(config.TLSConfig{Enabled: true, Hosts: []string{"127.0.0.1"}, ValidFor: time.Hour})
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	leaf, err := x509.ParseCertificate(serverTLS.Certificates[0].Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	roots := x509.NewCertPool()
	roots.AddCert(leaf)

	gs := NewGracefulServer("127.0.0.1:0", okHandler(), nil)
	gs.SetTLSConfig(serverTLS)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	addr := gs.Addr()
	if addr == nil {
		t.Fatal("server did not bind")
	}

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: roots}}}
	resp, err := client.Get("https://" + addr.String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// TestGracefulServer_ListenError reports a bad address without blocking Addr
func TestGracefulServer_ListenError(t *testing.T) {
	gs := NewGracefulServer("256.0.0.1:bad", okHandler(), nil)

	if err := gs.Run(context.Background()); err == nil {
		t.Fatal("Run() expected listen error")
	}
	if gs.Addr() != nil {
		t.Error("Addr() should be nil after a failed listen")
	}
}

// TestGracefulServer_ShutdownIdempotent runs hooks once however often Shutdown is called
func TestGracefulServer_ShutdownIdempotent(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", okHandler(), nil)

	calls := 0
	gs.OnShutdown(func(context.Context) error {
		calls++
		return nil
	})

	gs.Shutdown(time.Second)
	gs.Shutdown(time.Second)

	if calls != 1 {
		t.Errorf("hook calls = %d, want 1", calls)
	}
	select {
	case <-gs.ShutdownChannel():
	default:
		t.Error("ShutdownChannel not closed")
	}
}

// TestGracefulServer_ConfigReload tests configuration reload via SIGHUP
func TestGracefulServer_ConfigReload(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", okHandler(), nil)

	reloaded := make(chan struct{}, 1)
	gs.SetConfigReloadFunc(func() error {
		reloaded <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gs.Run(ctx)
	gs.Addr()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("Failed to send SIGHUP: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("SIGHUP did not trigger a reload")
	}

	if gs.IsShuttingDown() {
		t.Error("Server should not be shutting down after SIGHUP")
	}
}

// TestGracefulServer_ReloadConfig tests the ReloadConfig method
func TestGracefulServer_ReloadConfig(t *testing.T) {
	gs := NewGracefulServer(":0", okHandler(), nil)

	if err := gs.ReloadConfig(); err != nil {
		t.Errorf("ReloadConfig() without a func error = %v", err)
	}

	reloadCalled := false
	gs.SetConfigReloadFunc(func() error {
		reloadCalled = true
		return nil
	})

	if err := gs.ReloadConfig(); err != nil {
		t.Errorf("ReloadConfig() error = %v", err)
	}
	if !reloadCalled {
		t.Error("Config reload function was not called")
	}
}

// TestGracefulServer_ReloadConfigWithError tests error handling during reload
func TestGracefulServer_ReloadConfigWithError(t *testing.T) {
	gs := NewGracefulServer(":0", okHandler(), nil)

	gs.SetConfigReloadFunc(func() error {
		return http.ErrServerClosed
	})

	if err := gs.ReloadConfig(); err != http.ErrServerClosed {
		t.Errorf("ReloadConfig() error = %v, want %v", err, http.ErrServerClosed)
	}
}
