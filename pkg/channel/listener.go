package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
	"github.com/dd0wney/agentgraph/pkg/pubsub"
)

// Source says where a delivered event came from
type Source int

const (
	// SourceChannel events arrived over the push channel
	SourceChannel Source = iota
	// SourceLocal events were synthesized in-process, e.g. by an upload
	SourceLocal
)

func (s Source) String() string {
	if s == SourceLocal {
		return "local"
	}
	return "channel"
}

// Delivery is one event handed to the sink
type Delivery struct {
	Event  events.AgentEvent
	Source Source
}

// Sink receives deliveries one at a time in receipt order
type Sink func(Delivery)

// Status is the push channel's connection state
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusReconnecting
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StatusFunc observes connection state changes. err is the failure that
// caused a reconnect, or nil.
type StatusFunc func(status Status, err error)

// ErrAlreadyOpen is returned by Open on a listener that is already running
var ErrAlreadyOpen = errors.New("listener already open")

// Listener delivers push-channel frames and local dispatch events to a Sink.
// It owns its connection; nothing about it is package-level state.
type Listener struct {
	transport Transport
	bus       *pubsub.PubSub
	sink      Sink

	retry    RetryPolicy
	onStatus StatusFunc
	logger   logging.Logger
	metrics  *metrics.Registry

	deliverMu sync.Mutex

	statusMu   sync.Mutex
	lastStatus Status
	reported   bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	open   bool
}

// Option configures a Listener
type Option func(*Listener)

// WithRetryPolicy overrides DefaultRetryPolicy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(l *Listener) { l.retry = p }
}

// WithStatusHook observes connection state changes
func WithStatusHook(fn StatusFunc) Option {
	return func(l *Listener) { l.onStatus = fn }
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(l *Listener) { l.logger = logging.OrNop(logger) }
}

// WithMetrics records receive, drop and reconnect counts
func WithMetrics(r *metrics.Registry) Option {
	return func(l *Listener) { l.metrics = r }
}

// NewListener creates a closed listener. bus may be nil when there is no
// local dispatch path.
func NewListener(transport Transport, bus *pubsub.PubSub, sink Sink, opts ...Option) *Listener {
	l := &Listener{
		transport: transport,
		bus:       bus,
		sink:      sink,
		retry:     DefaultRetryPolicy(),
		logger:    logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(
		logging.Component("listener"),
		logging.Transport(transport.Name()),
		logging.Address(transport.Address()),
	)
	return l
}

// Open subscribes to the local dispatch topic and starts the connection
// loop. It returns once both are running; connecting happens in the background.
func (l *Listener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open {
		return ErrAlreadyOpen
	}

	runCtx, cancel := context.WithCancel(ctx)

	if l.bus != nil {
		sub, err := l.bus.Subscribe(runCtx, pubsub.TopicLocalEvents)
		if err != nil {
			cancel()
			return fmt.Errorf("subscribe to local events: %w", err)
		}
		l.wg.Add(1)
		go l.runLocal(runCtx, sub)
	}

	l.wg.Add(1)
	go l.runChannel(runCtx)

	l.cancel = cancel
	l.open = true
	return nil
}

// Close stops the listener and waits for its goroutines. It is idempotent.
func (l *Listener) Close() error {
	l.mu.Lock()
	if !l.open {
		l.mu.Unlock()
		return nil
	}
	l.open = false
	cancel := l.cancel
	l.mu.Unlock()

	cancel()
	l.wg.Wait()
	l.setStatus(StatusClosed, nil)
	return nil
}

func (l *Listener) runChannel(ctx context.Context) {
	defer l.wg.Done()

	status := StatusConnecting
	var lastErr error
	attempt := 0

	for {
		l.setStatus(status, lastErr)

		conn, err := l.transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			if l.retry.Exhausted(attempt) {
				l.logger.Error("Giving up on push channel", logging.Attempt(attempt), logging.Error(err))
				l.setStatus(StatusClosed, err)
				return
			}
			l.logger.Warn("Push channel dial failed", logging.Attempt(attempt), logging.Error(err),
				logging.Duration("retry_in", l.retry.NextDelay(attempt)))
			if l.metrics != nil {
				l.metrics.ChannelReconnectsTotal.Inc()
			}
			status, lastErr = StatusReconnecting, err
			if l.retry.Wait(ctx, attempt) != nil {
				return
			}
			continue
		}

		attempt = 0
		l.logger.Info("Push channel connected")
		l.setStatus(StatusConnected, nil)

		err = l.receive(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}

		l.logger.Warn("Push channel lost", logging.Error(err))
		attempt = 1
		if l.metrics != nil {
			l.metrics.ChannelReconnectsTotal.Inc()
		}
		status, lastErr = StatusReconnecting, err
		l.setStatus(status, lastErr)
		if l.retry.Wait(ctx, attempt) != nil {
			return
		}
	}
}

// receive decodes frames until the connection fails
func (l *Listener) receive(ctx context.Context, conn Conn) error {
	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			return err
		}

		ev, err := events.DecodeFrame(raw)
		switch {
		case errors.Is(err, events.ErrUnsupportedType):
			l.logger.Debug("Ignoring push message", logging.Error(err))
			l.drop(metrics.DropUnsupported)
			continue
		case err != nil:
			l.logger.Warn("Dropping malformed frame", logging.Error(err), logging.Int("bytes", len(raw)))
			l.drop(metrics.DropMalformed)
			continue
		}

		l.deliver(Delivery{Event: ev, Source: SourceChannel})
	}
}

func (l *Listener) runLocal(ctx context.Context, sub *pubsub.Subscription) {
	defer l.wg.Done()
	defer sub.Unsubscribe()

	for {
		select {
		case msg := <-sub.Channel():
			ev, ok := msg.(events.AgentEvent)
			if !ok {
				l.logger.Warn("Ignoring local message of unexpected type", logging.String("type", fmt.Sprintf("%T", msg)))
				continue
			}
			l.deliver(Delivery{Event: ev, Source: SourceLocal})
		case <-sub.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// deliver serializes sink calls across the channel and local goroutines
func (l *Listener) deliver(d Delivery) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	if l.metrics != nil {
		l.metrics.RecordEventReceived(d.Source.String())
	}
	l.logger.Debug("Event received", logging.Agent(d.Event.Agent), logging.String("source", d.Source.String()))
	l.sink(d)
}

func (l *Listener) drop(reason string) {
	if l.metrics != nil {
		l.metrics.RecordEventDropped(reason)
	}
}

// setStatus reports s unless it is already the last reported status
func (l *Listener) setStatus(s Status, err error) {
	l.statusMu.Lock()
	if l.reported && l.lastStatus == s {
		l.statusMu.Unlock()
		return
	}
	l.lastStatus, l.reported = s, true
	l.statusMu.Unlock()

	if l.metrics != nil {
		l.metrics.SetChannelConnected(s == StatusConnected)
	}
	if l.onStatus != nil {
		l.onStatus(s, err)
	}
}
