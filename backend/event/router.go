package event

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultChannelBufferSize is the default buffer size for subscriber channels.
	DefaultChannelBufferSize = 100
)

// StreamEvent is the domain event type routed to UI subscribers.
type StreamEvent struct {
	// Type is the event type string (e.g., "card.changed", "task.created",
	// "stream.token").
	Type string

	// Timestamp is when the change occurred.
	Timestamp time.Time

	// ConversationID is the optional conversation scope for filtering.
	ConversationID *uuid.UUID

	// Payload is the domain payload (e.g., a card snapshot or a token chunk).
	Payload any
}

// SubscribeOptions configures subscription filtering.
type SubscribeOptions struct {
	// EventTypes specifies which event types to receive using glob patterns.
	// Supports: "*" (all), "card.*", "*.created", or exact match. Empty
	// subscribes to all events.
	EventTypes []string

	// ConversationID filters events to a single conversation when set.
	ConversationID string
}

type subscription struct {
	id             uuid.UUID
	patterns       []string
	conversationID *uuid.UUID
	channel        chan *StreamEvent
	cancelFunc     context.CancelFunc
}

// Router fans StreamEvents out to pattern subscriptions. Delivery is
// non-blocking; events for a full subscriber buffer are dropped and counted.
type Router struct {
	subscriptions map[uuid.UUID]*subscription
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	metrics       *routerMetrics
}

type RouterOption func(*Router)

func WithMetrics(metrics *routerMetrics) RouterOption {
	return func(r *Router) {
		r.metrics = metrics
	}
}

func NewRouter(bufferSize int, opts ...RouterOption) *Router {
	if bufferSize <= 0 {
		bufferSize = DefaultChannelBufferSize
	}
	router := &Router{
		subscriptions: make(map[uuid.UUID]*subscription),
		bufferSize:    bufferSize,
	}
	for _, opt := range opts {
		opt(router)
	}
	return router
}

// Subscribe registers a filtered subscription and returns a channel for
// receiving events. Call the returned cancel function to unsubscribe and
// close the channel; the channel also closes when ctx is cancelled.
func (r *Router) Subscribe(ctx context.Context, opts SubscribeOptions) (<-chan *StreamEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		ch := make(chan *StreamEvent)
		close(ch)
		return ch, func() {}
	}

	patterns := opts.EventTypes
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	var conversationID *uuid.UUID
	if opts.ConversationID != "" {
		parsed, err := uuid.Parse(opts.ConversationID)
		if err == nil {
			conversationID = &parsed
		}
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan *StreamEvent, r.bufferSize)

	sub := &subscription{
		id:             uuid.New(),
		patterns:       patterns,
		conversationID: conversationID,
		channel:        ch,
		cancelFunc:     cancel,
	}

	r.subscriptions[sub.id] = sub

	go func() {
		<-subCtx.Done()
		r.unsubscribe(sub.id)
	}()

	return ch, cancel
}

func (r *Router) unsubscribe(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subscriptions[id]; ok {
		close(sub.channel)
		delete(r.subscriptions, id)
	}
}

// Publish sends an event to all matching subscribers without blocking.
func (r *Router) Publish(event *StreamEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	r.metrics.IncrementPublished(event.Type)

	for _, sub := range r.subscriptions {
		if !r.matches(sub, event) {
			continue
		}
		select {
		case sub.channel <- event:
			r.metrics.IncrementDelivered(event.Type)
		default:
			r.metrics.IncrementDropped(event.Type)
			slog.Debug("dropped event due to full channel buffer",
				"event_type", event.Type,
				"subscription_id", sub.id,
			)
		}
	}
}

// Close shuts the router down and closes all subscriber channels.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for id, sub := range r.subscriptions {
		sub.cancelFunc()
		close(sub.channel)
		delete(r.subscriptions, id)
	}
}

func (r *Router) matches(sub *subscription, event *StreamEvent) bool {
	if sub.conversationID != nil {
		if event.ConversationID == nil || *event.ConversationID != *sub.conversationID {
			return false
		}
	}

	for _, pattern := range sub.patterns {
		if matchPattern(pattern, event.Type) {
			return true
		}
	}

	return false
}

// matchPattern checks if an event type matches a glob pattern.
// Supported patterns:
//   - "*" matches all event types
//   - "entity.*" matches all events for that entity (e.g., "card.*" matches "card.changed")
//   - "*.action" matches that action across all entities (e.g., "*.created")
//   - exact strings match exactly
func matchPattern(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}

	if pattern == eventType {
		return true
	}

	patternParts := strings.SplitN(pattern, ".", 2)
	eventParts := strings.SplitN(eventType, ".", 2)

	if len(patternParts) != 2 || len(eventParts) != 2 {
		return false
	}

	patternEntity, patternAction := patternParts[0], patternParts[1]
	eventEntity, eventAction := eventParts[0], eventParts[1]

	if patternAction == "*" && patternEntity == eventEntity {
		return true
	}

	if patternEntity == "*" && patternAction == eventAction {
		return true
	}

	return false
}
