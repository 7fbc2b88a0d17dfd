package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport receives agent_update frames as WebSocket messages,
// one frame per text or binary message.
type WebSocketTransport struct {
	URL    string
	Dialer *websocket.Dialer
}

// NewWebSocketTransport creates a transport for a ws:// or wss:// URL
func NewWebSocketTransport(url string) *WebSocketTransport {
	return &WebSocketTransport{URL: url, Dialer: websocket.DefaultDialer}
}

func (t *WebSocketTransport) Name() string    { return "websocket" }
func (t *WebSocketTransport) Address() string { return t.URL }

// Dial opens the WebSocket
func (t *WebSocketTransport) Dial(ctx context.Context) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", t.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", t.URL, err)
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Receive(ctx context.Context) ([]byte, error) {
	// gorilla reads have no context; closing the socket unblocks them.
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrConnClosed
			}
			return nil, fmt.Errorf("websocket read: %w", err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
