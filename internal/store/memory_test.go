package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// newTestStore creates a fresh in-memory store for tests with no persistence
// bleeding across test runs.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("NEXUSCARGO_DATA_DIR", dir)
	defer os.Unsetenv("NEXUSCARGO_DATA_DIR")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:          uuid.NewString(),
		TenantID:    "tenant-a",
		FileName:    "awb-123.pdf",
		ContentType: "application/pdf",
		Status:      models.DocumentReceived,
	}
	require.NoError(t, s.CreateDocument(ctx, doc))

	got, err := s.GetDocument(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "awb-123.pdf", got.FileName)
	assert.Equal(t, models.DocumentReceived, got.Status)
}

func TestGetDocument_CrossTenantNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{ID: uuid.NewString(), TenantID: "tenant-a", FileName: "f.pdf"}
	require.NoError(t, s.CreateDocument(ctx, doc))

	_, err := s.GetDocument(ctx, "tenant-b", doc.ID)
	require.Error(t, err)
	var notFound *store.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestListDocuments_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		doc := &models.Document{
			ID:        uuid.NewString(),
			TenantID:  "tenant-a",
			FileName:  "f.pdf",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateDocument(ctx, doc))
	}
	// Different tenant, must not leak into tenant-a's listing.
	require.NoError(t, s.CreateDocument(ctx, &models.Document{ID: uuid.NewString(), TenantID: "tenant-b", FileName: "g.pdf"}))

	docs, err := s.ListDocuments(ctx, "tenant-a", store.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	// newest first
	assert.True(t, docs[0].CreatedAt.After(docs[1].CreatedAt) || docs[0].CreatedAt.Equal(docs[1].CreatedAt))
}

func TestReviewTask_OnlyOneOpenPerDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID := uuid.NewString()
	task := &models.ReviewTask{
		ID:         uuid.NewString(),
		TenantID:   "tenant-a",
		DocumentID: docID,
		Status:     models.ReviewOpen,
		Reason:     "low confidence",
	}
	require.NoError(t, s.CreateReviewTask(ctx, task))

	open, err := s.GetOpenReviewTaskForDocument(ctx, "tenant-a", docID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, open.ID)

	// Completing the task clears the "open" state; a fresh lookup should then
	// report not-found, which is how the ingestion pipeline decides whether
	// it's safe to queue a new one.
	task.Status = models.ReviewApproved
	now := time.Now().UTC()
	task.CompletedAt = &now
	require.NoError(t, s.UpdateReviewTask(ctx, task))

	_, err = s.GetOpenReviewTaskForDocument(ctx, "tenant-a", docID)
	assert.Error(t, err)
}

func TestWebhookDelivery_DuplicateIdempotencyKeyConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := &models.WebhookDelivery{
		ID:             uuid.NewString(),
		TenantID:       "tenant-a",
		SubscriptionID: "sub-1",
		EventType:      "document.received",
		IdempotencyKey: "evt-1",
		Status:         models.DeliveryPending,
	}
	require.NoError(t, s.CreateDelivery(ctx, d1))

	d2 := &models.WebhookDelivery{
		ID:             uuid.NewString(),
		TenantID:       "tenant-a",
		SubscriptionID: "sub-1",
		EventType:      "document.received",
		IdempotencyKey: "evt-1",
		Status:         models.DeliveryPending,
	}
	err := s.CreateDelivery(ctx, d2)
	require.Error(t, err)
	var conflict *store.ErrConflict
	assert.ErrorAs(t, err, &conflict)

	// Same key under a different tenant is fine — conflicts are tenant-scoped.
	d3 := &models.WebhookDelivery{
		ID:             uuid.NewString(),
		TenantID:       "tenant-b",
		SubscriptionID: "sub-2",
		EventType:      "document.received",
		IdempotencyKey: "evt-1",
		Status:         models.DeliveryPending,
	}
	assert.NoError(t, s.CreateDelivery(ctx, d3))
}

func TestWebhookDelivery_ClaimDueDeliveries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due := &models.WebhookDelivery{
		ID:             uuid.NewString(),
		TenantID:       "tenant-a",
		IdempotencyKey: "due-1",
		Status:         models.DeliveryRetryScheduled,
		NextAttemptAt:  now.Add(-time.Minute),
	}
	notYetDue := &models.WebhookDelivery{
		ID:             uuid.NewString(),
		TenantID:       "tenant-a",
		IdempotencyKey: "not-due-1",
		Status:         models.DeliveryRetryScheduled,
		NextAttemptAt:  now.Add(time.Hour),
	}
	delivered := &models.WebhookDelivery{
		ID:             uuid.NewString(),
		TenantID:       "tenant-a",
		IdempotencyKey: "delivered-1",
		Status:         models.DeliveryDelivered,
		NextAttemptAt:  now.Add(-time.Minute),
	}
	require.NoError(t, s.CreateDelivery(ctx, due))
	require.NoError(t, s.CreateDelivery(ctx, notYetDue))
	require.NoError(t, s.CreateDelivery(ctx, delivered))

	claimed, err := s.ClaimDueDeliveries(ctx, "tenant-a", 10, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "due-1", claimed[0].IdempotencyKey)
}

func TestDiscrepancyAndDisputeLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	disc := &models.Discrepancy{
		ID:              uuid.NewString(),
		TenantID:        "tenant-a",
		ShipmentID:      "shipment-1",
		DiscrepancyType: "cross_doc_mismatch",
		Score:           0.42,
		Status:          models.DiscrepancyOpen,
	}
	require.NoError(t, s.CreateDiscrepancy(ctx, disc))

	disc.Status = models.DiscrepancyInDispute
	require.NoError(t, s.UpdateDiscrepancy(ctx, disc))

	got, err := s.GetDiscrepancy(ctx, "tenant-a", disc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DiscrepancyInDispute, got.Status)

	dispute := &models.Dispute{
		ID:            uuid.NewString(),
		TenantID:      "tenant-a",
		DiscrepancyID: disc.ID,
		Status:        models.DisputeOpen,
		OpenedBy:      "user-1",
	}
	require.NoError(t, s.CreateDispute(ctx, dispute))

	gotDispute, err := s.GetDispute(ctx, "tenant-a", dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, disc.ID, gotDispute.DiscrepancyID)
}

func TestAuditEvents_FilterByEntityNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID := uuid.NewString()
	for i, action := range []string{"document.ingested", "document.validated"} {
		require.NoError(t, s.CreateAuditEvent(ctx, &models.AuditEvent{
			ID:         uuid.NewString(),
			TenantID:   "tenant-a",
			Action:     action,
			EntityType: "document",
			EntityID:   docID,
			CreatedAt:  time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.CreateAuditEvent(ctx, &models.AuditEvent{
		ID:         uuid.NewString(),
		TenantID:   "tenant-a",
		Action:     "review.task.completed",
		EntityType: "review_task",
		EntityID:   uuid.NewString(),
	}))

	events, err := s.ListAuditEvents(ctx, models.AuditFilter{TenantID: "tenant-a", Entity: "document", EntityID: docID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "document.validated", events[0].Action) // newest first
}

func TestIdempotencyRecord_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &models.IdempotencyKey{
		ID:             uuid.NewString(),
		TenantID:       "tenant-a",
		IdempotencyKey: "req-1",
		RequestHash:    "abc123",
	}
	require.NoError(t, s.SaveIdempotencyRecord(ctx, rec))

	got, err := s.GetIdempotencyRecord(ctx, "tenant-a", "req-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.RequestHash)

	_, err = s.GetIdempotencyRecord(ctx, "tenant-a", "unknown-key")
	assert.Error(t, err)
}

func TestModelVersion_RegisterAndActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterModelVersion(ctx, &models.ModelVersion{
		ID:        uuid.NewString(),
		Component: "classification",
		Version:   "clf-v1",
	}))
	require.NoError(t, s.RegisterModelVersion(ctx, &models.ModelVersion{
		ID:        uuid.NewString(),
		Component: "classification",
		Version:   "clf-v2",
	}))

	active, err := s.ActiveModelVersion(ctx, "classification")
	require.NoError(t, err)
	assert.Equal(t, "clf-v2", active.Version) // last registration wins
}

func TestStore_PingCloseMigrate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.Migrate(ctx))
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close()) // second Close is a no-op, not an error
}
