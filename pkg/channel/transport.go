package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/dd0wney/agentgraph/pkg/config"
)

// ErrConnClosed is returned by Receive once a connection has been closed
var ErrConnClosed = errors.New("channel connection closed")

// Transport dials the push channel
type Transport interface {
	// Dial connects once; the listener handles retries
	Dial(ctx context.Context) (Conn, error)
	// Name identifies the transport in logs and metrics
	Name() string
	// Address is where the transport dials
	Address() string
}

// Conn is one live push-channel connection delivering raw frames
type Conn interface {
	// Receive blocks until the next frame arrives, the connection fails or
	// ctx ends. Silence is never an error.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// NewTransport picks the transport named by cfg.Transport
func NewTransport(cfg config.ChannelConfig) (Transport, error) {
	switch cfg.Transport {
	case config.TransportWebSocket, "":
		return NewWebSocketTransport(cfg.Address), nil
	case config.TransportNNG:
		return NewNNGTransport(cfg.Address), nil
	default:
		return nil, fmt.Errorf("unknown channel transport %q", cfg.Transport)
	}
}
