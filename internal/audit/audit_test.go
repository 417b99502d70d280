package audit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

func TestRecordPersistsOneAuditEvent(t *testing.T) {
	s := store.NewMemoryStore()
	logger := audit.NewLogger(s)
	ctx := context.Background()

	logger.Record(ctx, "tenant-a", "actor-1", "document.ingested", "document", "doc-1", map[string]any{"file_name": "cargo.pdf"})

	events, err := s.ListAuditEvents(ctx, models.AuditFilter{TenantID: "tenant-a", Entity: "document", EntityID: "doc-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "document.ingested", events[0].Action)
	assert.Equal(t, "actor-1", events[0].ActorID)
}
