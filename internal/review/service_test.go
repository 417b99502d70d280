package review_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/bus"
	"github.com/nexuscargo/nexuscargo/platform/internal/review"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

func newReviewService(t *testing.T) *review.Service {
	t.Helper()
	s := store.NewMemoryStore()
	return review.NewService(s, bus.NewMemoryBus(), audit.NewLogger(s))
}

func TestQueueLowConfidenceReviewIsIdempotent(t *testing.T) {
	svc := newReviewService(t)
	ctx := context.Background()

	first, err := svc.QueueLowConfidenceReview(ctx, "tenant-a", "doc-1", "low confidence", "pipeline", 0.5)
	require.NoError(t, err)

	second, err := svc.QueueLowConfidenceReview(ctx, "tenant-a", "doc-1", "low confidence again", "pipeline", 0.4)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestCompleteReviewApprovedAndRejectedThenAlreadyCompleted(t *testing.T) {
	svc := newReviewService(t)
	ctx := context.Background()

	task, err := svc.QueueLowConfidenceReview(ctx, "tenant-a", "doc-1", "low confidence", "pipeline", 0.5)
	require.NoError(t, err)

	completed, err := svc.CompleteReview(ctx, "tenant-a", task.ID, "actor-1", true, []review.CorrectionInput{
		{FieldName: "awb_number", OldValue: "123-INVALID", NewValue: "123-12345678", ReasonTag: "ocr_correction"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, completed.Status)

	_, err = svc.CompleteReview(ctx, "tenant-a", task.ID, "actor-1", false, nil)
	assert.ErrorIs(t, err, review.ErrAlreadyCompleted)
}
