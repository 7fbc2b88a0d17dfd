package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/agentgraph/pkg/channel"
	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
	"github.com/dd0wney/agentgraph/pkg/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Emitter broadcasts one agent_update
type Emitter interface {
	Emit(ctx context.Context, agent, message string) error
}

// Hub fans agent_update frames out to every push-channel client. WebSocket
// connections each hold a subscription on the hub's bus and a single writer
// goroutine; the optional NNG PUB socket gets every frame with TopicPrefix.
type Hub struct {
	bus      *pubsub.PubSub
	upgrader websocket.Upgrader
	logger   logging.Logger
	metrics  *metrics.Registry

	pubMu   sync.Mutex
	pubSock mangos.Socket
	pubAddr string

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithHubLogger sets the hub's logger
func WithHubLogger(logger logging.Logger) HubOption {
	return func(h *Hub) { h.logger = logging.OrNop(logger) }
}

// WithHubMetrics records broadcasts and connected clients
func WithHubMetrics(r *metrics.Registry) HubOption {
	return func(h *Hub) { h.metrics = r }
}

// WithCheckOrigin replaces the upgrader's origin check
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// NewHub creates a hub with no clients and no NNG socket
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		bus: pubsub.NewPubSub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logging.Component("hub"))
	return h
}

// ListenNNG binds a PUB socket at addr. Frames emitted afterwards are also
// published there.
func (h *Hub) ListenNNG(addr string) error {
	sock, err := pub.NewSocket()
	if err != nil {
		return fmt.Errorf("failed to create PUB socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return fmt.Errorf("failed to bind PUB socket: %w", err)
	}

	h.pubMu.Lock()
	if h.pubSock != nil {
		h.pubSock.Close()
	}
	h.pubSock = sock
	h.pubAddr = addr
	h.pubMu.Unlock()

	h.logger.Info("NNG publisher bound", logging.Address(addr))
	return nil
}

// NNGAddr is the bound PUB address, or "" when NNG is off
func (h *Hub) NNGAddr() string {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()
	return h.pubAddr
}

// Clients is the number of connected WebSocket clients
func (h *Hub) Clients() int {
	return h.bus.SubscriberCount(pubsub.TopicAgentUpdates)
}

// Emit encodes {agent, message} once and broadcasts it. It blocks until
// every WebSocket client has queued the frame, a client leaves, or ctx ends.
func (h *Hub) Emit(ctx context.Context, agent, message string) error {
	frame, err := events.EncodeFrame(events.AgentEvent{Agent: agent, Message: message})
	if err != nil {
		return err
	}

	if err := h.bus.Publish(ctx, pubsub.TopicAgentUpdates, frame); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	h.recordBroadcast("websocket")

	h.pubMu.Lock()
	sock := h.pubSock
	h.pubMu.Unlock()
	if sock != nil {
		msg := make([]byte, 0, len(channel.TopicPrefix)+len(frame))
		msg = append(msg, channel.TopicPrefix...)
		msg = append(msg, frame...)
		if err := sock.Send(msg); err != nil && !errors.Is(err, mangos.ErrClosed) {
			h.logger.Warn("NNG publish failed", logging.Error(err))
		} else if err == nil {
			h.recordBroadcast("nng")
		}
	}

	h.logger.Debug("Broadcast", logging.Agent(agent), logging.Count(h.Clients()))
	return nil
}

func (h *Hub) recordBroadcast(transport string) {
	if h.metrics != nil {
		h.metrics.BroadcastsTotal.WithLabelValues(transport).Inc()
	}
}

// ServeWS upgrades the request and streams frames until the client leaves
// or the hub closes
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("WebSocket upgrade failed", logging.Error(err))
		return
	}

	// Independent of the request context, which ends when the handler returns
	sub, err := h.bus.Subscribe(context.Background(), pubsub.TopicAgentUpdates)
	if err != nil {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		ws.Close()
		return
	}

	if h.metrics != nil {
		h.metrics.PushClientsConnected.Inc()
	}
	h.logger.Info("Push client connected", logging.Address(r.RemoteAddr))

	h.wg.Add(2)
	go h.readPump(ws, sub)
	go h.writePump(ws, sub, r.RemoteAddr)
}

// readPump consumes control frames so pongs and closes are seen
func (h *Hub) readPump(ws *websocket.Conn, sub *pubsub.Subscription) {
	defer h.wg.Done()
	defer sub.Unsubscribe()

	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on ws
func (h *Hub) writePump(ws *websocket.Conn, sub *pubsub.Subscription, remote string) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Unsubscribe()
		ws.Close()
		if h.metrics != nil {
			h.metrics.PushClientsConnected.Dec()
		}
		h.logger.Info("Push client disconnected", logging.Address(remote))
	}()

	for {
		select {
		case msg := <-sub.Channel():
			frame, ok := msg.([]byte)
			if !ok {
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("WebSocket write failed", logging.Error(err))
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// Close disconnects every client, closes the NNG socket and waits for the
// per-connection goroutines
func (h *Hub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.bus.Shutdown()

		h.pubMu.Lock()
		if h.pubSock != nil {
			err = h.pubSock.Close()
			h.pubSock = nil
		}
		h.pubMu.Unlock()

		h.wg.Wait()
		h.logger.Info("Hub closed")
	})
	if errors.Is(err, mangos.ErrClosed) {
		return nil
	}
	return err
}
