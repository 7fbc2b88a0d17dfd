package pubsub

import (
	"context"
	"errors"
	"sync"
)

// Topics shared by the client and the research server
const (
	// TopicLocalEvents carries events synthesized in-process, such as the
	// File Upload event, into the client's listener.
	TopicLocalEvents = "local.agent_update"
	// TopicAgentUpdates carries agent_update events to the server's push
	// channel connections.
	TopicAgentUpdates = "agent_update"
)

// ErrShutdown is returned once the bus has been shut down
var ErrShutdown = errors.New("pubsub: shut down")

const subscriptionBuffer = 100

// PubSub is an in-process topic bus. Delivery is ordered and lossless:
// Publish waits until every live subscriber has accepted the message.
type PubSub struct {
	subscribers map[string]map[*Subscription]bool
	mu          sync.RWMutex

	// serializes publishers so every subscriber sees one total order
	publishMu sync.Mutex

	shutdown   chan struct{}
	shutdownMu sync.Mutex
	isShutdown bool
}

// Subscription is one subscriber's view of a topic. Its channel is never
// closed; consumers select on Done as well.
type Subscription struct {
	topic     string
	channel   chan any
	ps        *PubSub
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPubSub creates a new PubSub instance
func NewPubSub() *PubSub {
	return &PubSub{
		subscribers: make(map[string]map[*Subscription]bool),
		shutdown:    make(chan struct{}),
	}
}

// Subscribe creates a subscription to topic that ends when ctx is cancelled,
// Unsubscribe is called or the bus shuts down.
func (ps *PubSub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps.shutdownMu.Lock()
	defer ps.shutdownMu.Unlock()
	if ps.isShutdown {
		return nil, ErrShutdown
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		topic:   topic,
		channel: make(chan any, subscriptionBuffer),
		ps:      ps,
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	ps.mu.Lock()
	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[*Subscription]bool)
	}
	ps.subscribers[topic][sub] = true
	ps.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-ps.shutdown:
			sub.close()
		}
	}()

	return sub, nil
}

// Publish delivers message to every subscriber of topic in publish order.
// It blocks while a subscriber's buffer is full and returns ctx.Err() if ctx
// ends first. Subscribers that go away mid-publish are skipped.
func (ps *PubSub) Publish(ctx context.Context, topic string, message any) error {
	ps.publishMu.Lock()
	defer ps.publishMu.Unlock()

	select {
	case <-ps.shutdown:
		return ErrShutdown
	default:
	}

	// Snapshot under lock; sends happen outside it so a slow subscriber
	// cannot block Subscribe or Unsubscribe.
	ps.mu.RLock()
	topicSubs := ps.subscribers[topic]
	subs := make([]*Subscription, 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}
	ps.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.channel <- message:
		case <-sub.done:
		case <-ps.shutdown:
			return ErrShutdown
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SubscriberCount returns the number of subscribers for a topic
func (ps *PubSub) SubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}

// Shutdown ends every subscription and rejects further use of the bus
func (ps *PubSub) Shutdown() {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return
	}
	ps.isShutdown = true
	ps.shutdownMu.Unlock()

	close(ps.shutdown)

	ps.mu.Lock()
	for topic, subs := range ps.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(ps.subscribers, topic)
	}
	ps.mu.Unlock()
}

// Channel returns the subscription's message channel
func (s *Subscription) Channel() <-chan any {
	return s.channel
}

// Done is closed when the subscription ends
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription. It is idempotent.
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.ps.mu.Lock()
	if s.ps.subscribers[s.topic] != nil {
		delete(s.ps.subscribers[s.topic], s)
		if len(s.ps.subscribers[s.topic]) == 0 {
			delete(s.ps.subscribers, s.topic)
		}
	}
	s.ps.mu.Unlock()

	s.close()
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}
