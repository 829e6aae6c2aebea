// ABOUTME: In-memory fan-out broadcaster for agent-facing notification events
// ABOUTME: Subscribers register per agent id or for the broadcast firehose

package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// broadcastKey is the internal subscription key for firehose subscribers.
	broadcastKey = "*"
)

// Broadcaster provides in-memory pub/sub for notification events. Subscribers
// register for a specific agent id (their direct notifications) or for the
// broadcast key and receive events as state changes are applied. Delivery is
// best effort: events are dropped for subscribers whose channels are full.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Event // key -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for events addressed to the given agent id.
// Broadcast events are delivered to every subscriber regardless of key.
// The subscription is automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, agentID string) (<-chan *Event, string) {
	return b.subscribe(ctx, agentID)
}

// SubscribeAll registers a firehose subscriber receiving every event.
func (b *Broadcaster) SubscribeAll(ctx context.Context) (<-chan *Event, string) {
	return b.subscribe(ctx, broadcastKey)
}

func (b *Broadcaster) subscribe(ctx context.Context, key string) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[string]chan *Event)
	}
	b.subscribers[key][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "key", key, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.unsubscribe(key, subID)
	}()

	return ch, subID
}

// SendToAgent delivers an event to all subscribers of the given agent id.
// Returns true if at least one subscriber received it.
func (b *Broadcaster) SendToAgent(agentID string, event *Event) bool {
	targets := b.collect(agentID)
	delivered := false
	for _, ch := range targets {
		select {
		case ch <- event:
			delivered = true
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"agent_id", agentID, "event_type", event.Type)
		}
	}
	return delivered
}

// Broadcast delivers an event to every subscriber of every key.
func (b *Broadcaster) Broadcast(event *Event) {
	b.mu.RLock()
	var targets []chan *Event
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			targets = append(targets, ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped broadcast for slow subscriber",
				"event_type", event.Type)
		}
	}
}

// collect copies subscriber channels for a key plus the firehose under a read lock.
func (b *Broadcaster) collect(key string) []chan *Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var targets []chan *Event
	for _, ch := range b.subscribers[key] {
		targets = append(targets, ch)
	}
	for _, ch := range b.subscribers[broadcastKey] {
		targets = append(targets, ch)
	}
	return targets
}

// unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) unsubscribe(key, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, key)
	}

	b.logger.Debug("subscriber removed", "key", key, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}

	b.logger.Debug("broadcaster closed")
}
