package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/bus"
)

func TestMemoryBus_PublishFansOutToSubscribers(t *testing.T) {
	b := bus.NewMemoryBus()

	var mu sync.Mutex
	var received []map[string]any
	b.Subscribe("document.received", func(_ context.Context, topic string, payload map[string]any, _ map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, payload)
	})

	err := b.Publish(context.Background(), "document.received", map[string]any{"tenant_id": "tenant-a"}, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "tenant-a", received[0]["tenant_id"])
}

func TestMemoryBus_SubscriberPanicDoesNotFailPublish(t *testing.T) {
	b := bus.NewMemoryBus()
	b.Subscribe("discrepancy.detected", func(context.Context, string, map[string]any, map[string]string) {
		panic("boom")
	})

	err := b.Publish(context.Background(), "discrepancy.detected", map[string]any{"tenant_id": "tenant-a"}, nil)
	assert.NoError(t, err)
}

func TestMemoryBus_UnrelatedTopicNotDelivered(t *testing.T) {
	b := bus.NewMemoryBus()
	called := false
	b.Subscribe("review.required", func(context.Context, string, map[string]any, map[string]string) {
		called = true
	})

	require.NoError(t, b.Publish(context.Background(), "review.completed", map[string]any{}, nil))
	assert.False(t, called)
}

func TestRedisBus_PublishSubscribeRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rb, err := bus.NewRedisBus(ctx, bus.RedisBusConfig{
		URL:         "redis://" + mr.Addr(),
		TopicPrefix: "nexuscargo",
	})
	require.NoError(t, err)
	defer rb.Close()

	received := make(chan map[string]any, 1)
	rb.Subscribe(ctx, "document.received", func(_ context.Context, _ string, payload map[string]any, _ map[string]string) {
		received <- payload
	})

	// Give the subscription goroutine a moment to register with miniredis
	// before publishing, since there's no synchronous subscribe-ack here.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, rb.Publish(ctx, "document.received", map[string]any{"tenant_id": "tenant-a", "document_id": "doc-1"}, nil))

	select {
	case payload := <-received:
		assert.Equal(t, "tenant-a", payload["tenant_id"])
		assert.Equal(t, "doc-1", payload["document_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for redis bus delivery")
	}
}
