package dg_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/bus"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/dg"
	"github.com/nexuscargo/nexuscargo/platform/internal/review"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
)

func TestEvaluateDeclarationValid(t *testing.T) {
	evaluations := dg.EvaluateDeclaration("UN1230", "II")
	for _, e := range evaluations {
		assert.True(t, e.Passed, e.Code)
	}
}

func TestEvaluateDeclarationInvalid(t *testing.T) {
	evaluations := dg.EvaluateDeclaration("123", "IV")
	require.Len(t, evaluations, 2)
	assert.False(t, evaluations[0].Passed)
	assert.Equal(t, "dg.un_number", evaluations[0].Code)
	assert.False(t, evaluations[1].Passed)
	assert.Equal(t, "dg.packing_group", evaluations[1].Code)
}

func newDGService(t *testing.T) *dg.Service {
	t.Helper()
	s := store.NewMemoryStore()
	auditLogger := audit.NewLogger(s)
	reviewService := review.NewService(s, bus.NewMemoryBus(), auditLogger)
	return dg.NewService(s, reviewService, auditLogger)
}

func TestValidateAndRecordValid(t *testing.T) {
	svc := newDGService(t)
	result, err := svc.ValidateAndRecord(context.Background(), "tenant-a", "actor-1", "decl-1", "UN1230", "II")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.ReviewTaskID)
}

func TestValidateAndRecordInvalidQueuesReview(t *testing.T) {
	svc := newDGService(t)
	result, err := svc.ValidateAndRecord(context.Background(), "tenant-a", "actor-1", "decl-2", "123", "IV")
	require.NoError(t, err)
	assert.False(t, result.Valid)

	var issueCodes []string
	for _, e := range result.Evaluations {
		if !e.Passed {
			issueCodes = append(issueCodes, e.Code)
		}
	}
	assert.Equal(t, []string{"dg.un_number", "dg.packing_group"}, issueCodes)
	assert.NotEmpty(t, result.ReviewTaskID)
}
