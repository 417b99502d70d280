package idempotency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/idempotency"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
)

func TestGetMissReturnsNotFound(t *testing.T) {
	s := store.NewMemoryStore()
	svc := idempotency.NewService(s)

	response, found, err := svc.Get(context.Background(), "tenant-a", "idem-ingest-1", idempotency.HashRequest([]byte(`{"a":1}`)))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, response)
}

func TestSaveThenGetReturnsSameResponse(t *testing.T) {
	s := store.NewMemoryStore()
	svc := idempotency.NewService(s)
	ctx := context.Background()

	body := []byte(`{"file_name":"cargo.pdf"}`)
	hash := idempotency.HashRequest(body)
	want := []byte(`{"document_id":"doc-1"}`)

	require.NoError(t, svc.Save(ctx, "tenant-a", "idem-ingest-1", hash, want))

	got, found, err := svc.Get(ctx, "tenant-a", "idem-ingest-1", hash)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestGetWithDifferentHashConflicts(t *testing.T) {
	s := store.NewMemoryStore()
	svc := idempotency.NewService(s)
	ctx := context.Background()

	hash := idempotency.HashRequest([]byte(`{"file_name":"cargo.pdf"}`))
	require.NoError(t, svc.Save(ctx, "tenant-a", "idem-ingest-1", hash, []byte(`{"document_id":"doc-1"}`)))

	otherHash := idempotency.HashRequest([]byte(`{"file_name":"different.pdf"}`))
	_, found, err := svc.Get(ctx, "tenant-a", "idem-ingest-1", otherHash)
	assert.False(t, found)
	assert.ErrorIs(t, err, idempotency.ErrConflict)
}
