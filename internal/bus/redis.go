package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus publishes events over Redis Publish/Subscribe. Recognized topics
// are mapped 1:1 to Redis channels, each namespaced by topicPrefix so a
// shared Redis instance can host more than one environment. Acknowledgement
// from Publish is best-effort: Redis's PUBLISH returns the number of
// subscribers that received the message, not a durable delivery receipt, so
// a publish with zero active subscribers still returns success — events are
// derived facts, not the source of truth (§4.1).
type RedisBus struct {
	client     *redis.Client
	topicPrefix string
	ackWait    time.Duration
}

// RedisBusConfig configures a RedisBus.
type RedisBusConfig struct {
	URL         string
	TopicPrefix string
	// AckWait bounds how long Publish waits for the PUBLISH call itself to
	// complete; it is not a delivery acknowledgement.
	AckWait time.Duration
}

// NewRedisBus parses the Redis URL, verifies connectivity, and returns a
// ready-to-use bus.
func NewRedisBus(ctx context.Context, cfg RedisBusConfig) (*RedisBus, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ackWait := cfg.AckWait
	if ackWait <= 0 {
		ackWait = 10 * time.Second
	}

	return &RedisBus{client: client, topicPrefix: cfg.TopicPrefix, ackWait: ackWait}, nil
}

// Close releases the underlying Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

func (b *RedisBus) channel(topic string) string {
	if b.topicPrefix == "" {
		return topic
	}
	return b.topicPrefix + "." + topic
}

type envelope struct {
	Topic      string            `json:"topic"`
	Payload    map[string]any    `json:"payload"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publish marshals the event and issues a Redis PUBLISH bounded by ackWait.
// A publish failure is logged, never returned to the caller as a hard error
// at the call sites that invoke this through the EventBus interface — the
// ingestion/review/discrepancy/webhook workflows all treat event publish as
// best-effort and continue their own transaction regardless.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload map[string]any, attributes map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, b.ackWait)
	defer cancel()

	body, err := json.Marshal(envelope{Topic: topic, Payload: payload, Attributes: attributes})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel(topic), body).Err(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("event bus publish failed")
		return err
	}
	return nil
}

// Subscribe starts a goroutine that decodes messages from topic's channel
// and invokes fn for each. The subscription is cancelled when ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, fn Subscriber) {
	pubsub := b.client.Subscribe(ctx, b.channel(topic))
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Warn().Err(err).Str("topic", topic).Msg("event bus: dropping malformed message")
					continue
				}
				fn(ctx, env.Topic, env.Payload, env.Attributes)
			}
		}
	}()
}
