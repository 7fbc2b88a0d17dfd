package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dd0wney/agentgraph/pkg/logging"
)

// ConfigReloadFunc reloads configuration on SIGHUP
type ConfigReloadFunc func() error

// DefaultShutdownTimeout bounds how long Run waits for in-flight requests
const DefaultShutdownTimeout = 30 * time.Second

// GracefulServer wraps an HTTP server with context-driven graceful shutdown
type GracefulServer struct {
	server          *http.Server
	logger          logging.Logger
	shutdownTimeout time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	ready chan struct{}
	addr  net.Addr

	hooksMu sync.Mutex
	hooks   []func(context.Context) error

	configReloadFn ConfigReloadFunc
	configMu       sync.RWMutex
}

// NewGracefulServer creates a new graceful HTTP server
func NewGracefulServer(addr string, handler http.Handler, logger logging.Logger) *GracefulServer {
	return &GracefulServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			// WebSocket connections outlive any write timeout; the hub
			// sets per-message deadlines instead.
			WriteTimeout:   0,
			IdleTimeout:    120 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger:          logging.OrNop(logger).With(logging.Component("http")),
		shutdownTimeout: DefaultShutdownTimeout,
		shutdownCh:      make(chan struct{}),
		ready:           make(chan struct{}),
	}
}

// SetShutdownTimeout overrides DefaultShutdownTimeout
func (gs *GracefulServer) SetShutdownTimeout(d time.Duration) {
	gs.shutdownTimeout = d
}

// SetTLSConfig makes Run serve HTTPS (and WSS) with c. nil serves plain HTTP.
func (gs *GracefulServer) SetTLSConfig(c *tls.Config) {
	gs.server.TLSConfig = c
}

// OnShutdown registers a hook run after the listener stops, in registration
// order. Hook errors are logged and do not stop later hooks.
func (gs *GracefulServer) OnShutdown(fn func(context.Context) error) {
	gs.hooksMu.Lock()
	defer gs.hooksMu.Unlock()
	gs.hooks = append(gs.hooks, fn)
}

// Run serves until ctx is cancelled or the listener fails, then shuts down
// within the shutdown timeout. SIGHUP triggers ReloadConfig while running.
func (gs *GracefulServer) Run(ctx context.Context) error {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		close(gs.ready)
		return fmt.Errorf("listen on %s: %w", gs.server.Addr, err)
	}
	gs.addr = ln.Addr()
	close(gs.ready)

	if gs.server.TLSConfig != nil {
		ln = tls.NewListener(ln, gs.server.TLSConfig)
	}
	gs.logger.Info("HTTP server listening", logging.Address(ln.Addr().String()),
		logging.Bool("tls", gs.server.TLSConfig != nil))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- gs.server.Serve(ln)
	}()

	for {
		select {
		case <-sighup:
			if err := gs.ReloadConfig(); err != nil {
				gs.logger.Warn("Configuration reload failed", logging.Error(err))
			}
			continue
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				gs.Shutdown(gs.shutdownTimeout)
				return fmt.Errorf("serve: %w", err)
			}
			return gs.Shutdown(gs.shutdownTimeout)
		case <-ctx.Done():
			return gs.Shutdown(gs.shutdownTimeout)
		}
	}
}

// Addr blocks until Run has tried to bind its listener and returns the
// address, or nil if binding failed.
func (gs *GracefulServer) Addr() net.Addr {
	<-gs.ready
	return gs.addr
}

// Shutdown stops accepting connections, waits up to timeout for in-flight
// requests and then runs the shutdown hooks. It is idempotent.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.logger.Info("Initiating graceful shutdown", logging.Duration("timeout", timeout))

		if shutdownErr := gs.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("shutdown: %w", shutdownErr)
			gs.logger.Error("Error during shutdown", logging.Error(shutdownErr))
		}

		gs.hooksMu.Lock()
		hooks := append([]func(context.Context) error(nil), gs.hooks...)
		gs.hooksMu.Unlock()

		for _, hook := range hooks {
			if hookErr := hook(ctx); hookErr != nil {
				gs.logger.Warn("Shutdown hook failed", logging.Error(hookErr))
			}
		}

		gs.logger.Info("Server shutdown complete")
	})
	return err
}

// IsShuttingDown returns true if shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownChannel returns a channel that closes when shutdown is initiated
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.shutdownCh
}

// SetConfigReloadFunc sets the function to call when configuration reload is triggered
func (gs *GracefulServer) SetConfigReloadFunc(fn ConfigReloadFunc) {
	gs.configMu.Lock()
	defer gs.configMu.Unlock()
	gs.configReloadFn = fn
}

// ReloadConfig triggers a configuration reload
func (gs *GracefulServer) ReloadConfig() error {
	gs.configMu.RLock()
	reloadFn := gs.configReloadFn
	gs.configMu.RUnlock()

	if reloadFn == nil {
		gs.logger.Info("Configuration reload requested, but no reload function configured")
		return nil
	}

	if err := reloadFn(); err != nil {
		return err
	}

	gs.logger.Info("Configuration reload complete")
	return nil
}
