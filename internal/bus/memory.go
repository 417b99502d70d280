// Package bus implements the EventBus capability contract (pkg/contracts):
// a process-local in-memory fan-out backend and a Redis pub/sub backend,
// selected by config.EventBusConfig.Backend.
package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Subscriber receives events published on topics it is registered for.
type Subscriber func(ctx context.Context, topic string, payload map[string]any, attributes map[string]string)

// MemoryBus fans out published events to in-process subscribers. Subscribers
// run synchronously on the publisher's goroutine, so Publish returns only
// after every subscriber of the topic has returned. A panicking subscriber is
// recovered and logged rather than propagated, since events are derived facts
// and must never abort the caller's transaction.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
}

// NewMemoryBus returns an empty in-memory event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subscribers: make(map[string][]Subscriber)}
}

// Subscribe registers fn to be called for every event published on topic.
// Intended for tests and in-process integrations (e.g. wiring the webhook
// engine's DispatchEvent to ingestion events) rather than cross-process use.
func (b *MemoryBus) Subscribe(topic string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], fn)
}

// Publish fans the event out to every subscriber of topic. Errors from
// subscribers are not possible by construction (Subscriber returns nothing);
// a panicking subscriber is recovered and logged so one bad handler can't
// take down the publisher's request.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload map[string]any, attributes map[string]string) error {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("topic", topic).Msg("event bus subscriber panicked")
				}
			}()
			fn(ctx, topic, payload, attributes)
		}()
	}
	return nil
}
