package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/agentgraph/pkg/config"
	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/metrics"
	"github.com/dd0wney/agentgraph/pkg/pubsub"
	"github.com/gorilla/websocket"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nanomsg.org/mangos/v3/protocol/pub"
)

// fakeTransport hands out scripted connections; a nil conn means the dial fails
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (t *fakeTransport) Name() string    { return "fake" }
func (t *fakeTransport) Address() string { return "fake://" }

func (t *fakeTransport) Dial(ctx context.Context) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if len(t.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := t.conns[0]
	t.conns = t.conns[1:]
	if c == nil {
		return nil, errors.New("connection refused")
	}
	return c, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

// fakeConn replays frames and then fails with err, or blocks if err is nil
type fakeConn struct {
	frames chan []byte
	err    error
}

func newFakeConn(err error, frames ...string) *fakeConn {
	c := &fakeConn{frames: make(chan []byte, len(frames)), err: err}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

func (c *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	default:
	}
	if c.err != nil {
		return nil, c.err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *fakeConn) Close() error { return nil }

type recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	statuses   []Status
}

func (r *recorder) sink(d Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

func (r *recorder) status(s Status, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) events() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func (r *recorder) statusLog() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func (r *recorder) sawStatus(s Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.statuses {
		if got == s {
			return true
		}
	}
	return false
}

func frame(agent, message string) string {
	b, _ := events.EncodeFrame(events.AgentEvent{Agent: agent, Message: message})
	return string(b)
}

func fastRetry() RetryPolicy {
	return RetryPolicy{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}
}

func TestListenerDeliversInOrder(t *testing.T) {
	tr := &fakeTransport{conns: []*fakeConn{newFakeConn(nil,
		frame("Technologist", "started"),
		frame("Policy Analyst", "reviewing"),
		frame("Unknown Agent", "hi"),
	)}}
	rec := &recorder{}

	l := NewListener(tr, nil, rec.sink, WithStatusHook(rec.status))
	require.NoError(t, l.Open(context.Background()))

	require.Eventually(t, func() bool { return len(rec.events()) == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())

	got := rec.events()
	assert.Equal(t, events.AgentEvent{Agent: "Technologist", Message: "started"}, got[0].Event)
	assert.Equal(t, "Policy Analyst", got[1].Event.Agent)
	assert.Equal(t, "Unknown Agent", got[2].Event.Agent)
	for _, d := range got {
		assert.Equal(t, SourceChannel, d.Source)
	}
	assert.True(t, rec.sawStatus(StatusConnecting))
	assert.True(t, rec.sawStatus(StatusConnected))
	assert.True(t, rec.sawStatus(StatusClosed))
}

func TestListenerDropsMalformedFrames(t *testing.T) {
	tr := &fakeTransport{conns: []*fakeConn{newFakeConn(nil,
		frame("Technologist", "started"),
		`{not json`,
		`{"type":"agent_update","data":{"agent":"Technologist"}}`,
		`{"type":"connect","data":{}}`,
		frame("Communicator", "drafting"),
	)}}
	rec := &recorder{}
	reg := metrics.NewRegistry()

	l := NewListener(tr, nil, rec.sink, WithMetrics(reg))
	require.NoError(t, l.Open(context.Background()))
	require.Eventually(t, func() bool { return len(rec.events()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())

	got := rec.events()
	assert.Equal(t, "Technologist", got[0].Event.Agent)
	assert.Equal(t, "Communicator", got[1].Event.Agent)

	var m dto.Metric
	require.NoError(t, reg.EventsDroppedTotal.WithLabelValues(metrics.DropMalformed).Write(&m))
	assert.Equal(t, 2.0, m.Counter.GetValue())
	require.NoError(t, reg.EventsDroppedTotal.WithLabelValues(metrics.DropUnsupported).Write(&m))
	assert.Equal(t, 1.0, m.Counter.GetValue())
	require.NoError(t, reg.EventsReceivedTotal.WithLabelValues("channel").Write(&m))
	assert.Equal(t, 2.0, m.Counter.GetValue())
}

func TestListenerReconnects(t *testing.T) {
	tr := &fakeTransport{conns: []*fakeConn{
		nil,
		newFakeConn(errors.New("connection reset"), frame("Technologist", "one")),
		nil,
		newFakeConn(nil, frame("Technologist", "two")),
	}}
	rec := &recorder{}

	l := NewListener(tr, nil, rec.sink, WithRetryPolicy(fastRetry()), WithStatusHook(rec.status))
	require.NoError(t, l.Open(context.Background()))
	require.Eventually(t, func() bool { return len(rec.events()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())

	got := rec.events()
	assert.Equal(t, "one", got[0].Event.Message)
	assert.Equal(t, "two", got[1].Event.Message)
	assert.Equal(t, 4, tr.dialCount())
	// Repeated dial failures while reconnecting report the state once
	assert.Equal(t, []Status{
		StatusConnecting,
		StatusReconnecting,
		StatusConnected,
		StatusReconnecting,
		StatusConnected,
		StatusClosed,
	}, rec.statusLog())
}

func TestListenerGivesUpAfterMaxAttempts(t *testing.T) {
	tr := &fakeTransport{}
	rec := &recorder{}
	policy := fastRetry()
	policy.MaxAttempts = 3

	l := NewListener(tr, nil, rec.sink, WithRetryPolicy(policy), WithStatusHook(rec.status))
	require.NoError(t, l.Open(context.Background()))
	require.Eventually(t, func() bool { return rec.sawStatus(StatusClosed) }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())

	assert.Equal(t, 4, tr.dialCount())
	assert.Empty(t, rec.events())
}

func TestListenerForwardsLocalEvents(t *testing.T) {
	bus := pubsub.NewPubSub()
	defer bus.Shutdown()

	tr := &fakeTransport{conns: []*fakeConn{newFakeConn(nil)}}
	rec := &recorder{}

	l := NewListener(tr, bus, rec.sink)
	require.NoError(t, l.Open(context.Background()))
	require.Equal(t, 1, bus.SubscriberCount(pubsub.TopicLocalEvents))

	upload := events.AgentEvent{Agent: events.FileUploadLabel, Message: "File notes.pdf uploaded successfully"}
	require.NoError(t, bus.Publish(context.Background(), pubsub.TopicLocalEvents, upload))
	require.NoError(t, bus.Publish(context.Background(), pubsub.TopicLocalEvents, "not an event"))

	require.Eventually(t, func() bool { return len(rec.events()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())

	got := rec.events()
	assert.Equal(t, upload, got[0].Event)
	assert.Equal(t, SourceLocal, got[0].Source)
	assert.Equal(t, 0, bus.SubscriberCount(pubsub.TopicLocalEvents))
}

func TestListenerOpenTwice(t *testing.T) {
	tr := &fakeTransport{conns: []*fakeConn{newFakeConn(nil)}}
	l := NewListener(tr, nil, func(Delivery) {})

	require.NoError(t, l.Open(context.Background()))
	assert.ErrorIs(t, l.Open(context.Background()), ErrAlreadyOpen)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second, MaxAttempts: 5}

	assert.Equal(t, 100*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, 800*time.Millisecond, p.NextDelay(4))
	assert.Equal(t, time.Second, p.NextDelay(5))
	assert.Equal(t, time.Second, p.NextDelay(50))
	assert.Equal(t, 100*time.Millisecond, p.NextDelay(0))

	assert.False(t, p.Exhausted(5))
	assert.True(t, p.Exhausted(6))
	assert.False(t, DefaultRetryPolicy().Exhausted(1000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx, 10), context.Canceled)
}

func TestWebSocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.WriteMessage(websocket.TextMessage, []byte(frame("Web Browser", "fetching")))
		ws.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		ws.WriteMessage(websocket.TextMessage, []byte(frame("Web Browser", "done")))
		// Hold the connection open until the client goes away.
		ws.ReadMessage()
	}))
	defer srv.Close()

	tr := NewWebSocketTransport("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")
	rec := &recorder{}

	l := NewListener(tr, nil, rec.sink)
	require.NoError(t, l.Open(context.Background()))
	require.Eventually(t, func() bool { return len(rec.events()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())

	got := rec.events()
	assert.Equal(t, "fetching", got[0].Event.Message)
	assert.Equal(t, "done", got[1].Event.Message)
}

func TestWebSocketReceiveHonoursContext(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.ReadMessage()
	}))
	defer srv.Close()

	conn, err := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http")).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = conn.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNNGTransport(t *testing.T) {
	const addr = "inproc://agentgraph-listener-test"

	pubSock, err := pub.NewSocket()
	require.NoError(t, err)
	defer pubSock.Close()
	require.NoError(t, pubSock.Listen(addr))

	rec := &recorder{}
	l := NewListener(NewNNGTransport(addr), nil, rec.sink)
	require.NoError(t, l.Open(context.Background()))
	defer l.Close()

	// PUB drops messages until the subscriber has joined, so keep publishing.
	msg := []byte(TopicPrefix + frame("Data Processing", "parsing"))
	other := []byte("WAL:" + frame("Data Processing", "filtered out"))
	require.Eventually(t, func() bool {
		pubSock.Send(other)
		pubSock.Send(msg)
		return len(rec.events()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	for _, d := range rec.events() {
		assert.Equal(t, "parsing", d.Event.Message)
	}
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(configChannel("websocket", "ws://x/ws"))
	require.NoError(t, err)
	assert.Equal(t, "websocket", tr.Name())

	tr, err = NewTransport(configChannel("nng", "tcp://x:5001"))
	require.NoError(t, err)
	assert.Equal(t, "nng", tr.Name())
	assert.Equal(t, "tcp://x:5001", tr.Address())

	_, err = NewTransport(configChannel("smoke", ""))
	assert.Error(t, err)
}

func configChannel(transport, addr string) config.ChannelConfig {
	return config.ChannelConfig{Transport: transport, Address: addr}
}
