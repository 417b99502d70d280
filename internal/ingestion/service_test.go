package ingestion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/blobstore"
	"github.com/nexuscargo/nexuscargo/platform/internal/bus"
	"github.com/nexuscargo/nexuscargo/platform/internal/idempotency"
	"github.com/nexuscargo/nexuscargo/platform/internal/ingestion"
	"github.com/nexuscargo/nexuscargo/platform/internal/pipeline"
	"github.com/nexuscargo/nexuscargo/platform/internal/review"
	"github.com/nexuscargo/nexuscargo/platform/internal/rules"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/internal/validation"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

func newTestService(t *testing.T) (*ingestion.Service, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	eventBus := bus.NewMemoryBus()
	storageProvider, err := blobstore.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	auditLogger := audit.NewLogger(s)
	rulesEngine := rules.New("global-default", "2026-02-08", rules.DefaultSanctionsHook)

	preprocessor := pipeline.NewPreprocessor(eventBus)
	classifier := pipeline.NewClassifier(eventBus)
	extractionService := pipeline.NewExtractionService(s, eventBus, pipeline.MockExtractor{})
	validator := validation.NewService(s, eventBus, rulesEngine)
	reviewService := review.NewService(s, eventBus, auditLogger)

	svc := ingestion.NewService(ingestion.Config{
		Store:                     s,
		Bus:                       eventBus,
		Storage:                   storageProvider,
		Preprocessor:              preprocessor,
		Classifier:                classifier,
		Extractor:                 extractionService,
		Validator:                 validator,
		Review:                    reviewService,
		Audit:                     auditLogger,
		ReviewConfidenceThreshold: 0.8,
		DefaultPackID:             "global-default",
		DefaultPackVersion:        "2026-02-08",
	})
	return svc, s
}

func TestIngestLowConfidenceRequiresReview(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, "tenant-a", "actor-1", "random-lowconf.pdf", "application/pdf", []byte("some bytes"), "random-lowconf")
	require.NoError(t, err)

	assert.True(t, result.ReviewRequired)
	assert.Equal(t, "unclassified", result.DocType)
	assert.Equal(t, models.DocumentReviewRequired, result.Status)
}

func TestIngestIdempotentReplayReturnsSameDocument(t *testing.T) {
	svc, s := newTestService(t)
	idemSvc := idempotency.NewService(s)
	ctx := context.Background()

	body := []byte(`{"file_name":"cargo.pdf"}`)
	hash := idempotency.HashRequest(body)
	tenantID := "tenant-a"
	key := "idem-ingest-1"

	// First request: no cached response, runs the pipeline, then the
	// handler-level write path would memoize the response.
	_, found, err := idemSvc.Get(ctx, tenantID, key, hash)
	require.NoError(t, err)
	require.False(t, found)

	result, err := svc.Ingest(ctx, tenantID, "actor-1", "cargo.pdf", "application/pdf", body, "")
	require.NoError(t, err)

	response := []byte(`{"document_id":"` + result.DocumentID + `"}`)
	require.NoError(t, idemSvc.Save(ctx, tenantID, key, hash, response))

	// Second request with the identical key and body hash: the handler
	// would short-circuit on the cached response rather than calling
	// Ingest again, so exactly one Document row should exist.
	replayed, found, err := idemSvc.Get(ctx, tenantID, key, hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, response, replayed)

	docs, err := s.ListDocuments(ctx, tenantID, store.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
