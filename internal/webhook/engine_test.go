package webhook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/internal/webhook"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// fakeTransport always returns the scripted status/error pair.
type fakeTransport struct {
	statusCode int
	err        error
	calls      int
}

func (f *fakeTransport) Deliver(ctx context.Context, targetURL string, body []byte, headers map[string]string, timeout time.Duration) (int, error) {
	f.calls++
	return f.statusCode, f.err
}

func newTestEngine(t *testing.T, transport *fakeTransport, maxRetries int) (*webhook.Engine, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	auditLogger := audit.NewLogger(s)
	engine := webhook.NewEngine(webhook.Config{
		Store:          s,
		Transport:      transport,
		Audit:          auditLogger,
		SigningSecret:  "test-secret",
		MaxRetries:     maxRetries,
		TimeoutSeconds: 5,
	})
	return engine, s
}

func createActiveSubscription(t *testing.T, s store.Store, tenantID, eventType string) *models.WebhookSubscription {
	t.Helper()
	sub := &models.WebhookSubscription{
		ID:          "sub-1",
		TenantID:    tenantID,
		TargetURL:   "https://example.invalid/hook",
		EventFilter: eventType,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.CreateSubscription(context.Background(), sub))
	return sub
}

func TestWebhookDeliverySucceeds(t *testing.T) {
	transport := &fakeTransport{statusCode: 200}
	engine, s := newTestEngine(t, transport, 5)
	ctx := context.Background()
	tenantID := "tenant-a"

	createActiveSubscription(t, s, tenantID, "document.received")

	enqueued, err := engine.DispatchEvent(ctx, tenantID, "document.received", map[string]any{"document_id": "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, enqueued)

	stats, err := engine.ProcessDeliveryQueue(ctx, &tenantID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 0, stats.DeadLettered)
	assert.Equal(t, 1, transport.calls)
}

func TestWebhookDeadLettersAfterMaxRetriesThenReplays(t *testing.T) {
	transport := &fakeTransport{statusCode: 0, err: errors.New("connect error")}
	maxRetries := 3
	engine, s := newTestEngine(t, transport, maxRetries)
	ctx := context.Background()
	tenantID := "tenant-a"

	createActiveSubscription(t, s, tenantID, "document.received")

	_, err := engine.DispatchEvent(ctx, tenantID, "document.received", map[string]any{"document_id": "doc-1"})
	require.NoError(t, err)

	for i := 0; i < maxRetries+1; i++ {
		_, err := engine.ProcessDeliveryQueue(ctx, &tenantID, 10)
		require.NoError(t, err)
		resetNextAttempt(t, s, ctx, tenantID)
	}

	deadLettered, err := s.ListDeadLettered(ctx, tenantID, nil, 10)
	require.NoError(t, err)
	require.Len(t, deadLettered, 1)
	assert.Equal(t, models.DeliveryDeadLettered, deadLettered[0].Status)
	assert.Equal(t, maxRetries, deadLettered[0].AttemptCount)

	reset, err := engine.ReplayDeadLettered(ctx, tenantID, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	replayed, err := s.GetDelivery(ctx, tenantID, deadLettered[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPending, replayed.Status)
	assert.Equal(t, 0, replayed.AttemptCount)
	assert.Nil(t, replayed.DeadLetteredAt)
}

// resetNextAttempt forces every retry_scheduled delivery for tenantID due
// immediately, so the test doesn't need to sleep through the engine's
// exponential backoff between cycles.
func resetNextAttempt(t *testing.T, s store.Store, ctx context.Context, tenantID string) {
	t.Helper()
	due, err := s.ClaimDueDeliveries(ctx, tenantID, 10, time.Now().UTC().Add(365*24*time.Hour))
	require.NoError(t, err)
	for i := range due {
		d := due[i]
		d.NextAttemptAt = time.Now().UTC()
		require.NoError(t, s.UpdateDelivery(ctx, &d))
	}
}
