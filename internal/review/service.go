// Package review implements the manual-review queue gate described in §4.6:
// documents below the confidence threshold (or flagged by a failed
// validation rule) are routed here for a human decision before they can be
// marked validated.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// ErrAlreadyCompleted is returned when CompleteReview targets a task that is
// no longer open.
var ErrAlreadyCompleted = errors.New("review task is already completed")

// CorrectionInput is one field-level correction applied during review.
type CorrectionInput struct {
	FieldName string
	OldValue  string
	NewValue  string
	ReasonTag string
}

// Service manages the review-task queue.
type Service struct {
	store store.ReviewStore
	bus   contracts.EventBus
	audit *audit.Logger
}

// NewService constructs a review Service.
func NewService(s store.ReviewStore, bus contracts.EventBus, auditLogger *audit.Logger) *Service {
	return &Service{store: s, bus: bus, audit: auditLogger}
}

// QueueLowConfidenceReview opens a review task for documentID, or returns the
// existing open task if one is already queued (idempotent: ingestion may
// call this more than once for the same document across retries).
func (s *Service) QueueLowConfidenceReview(ctx context.Context, tenantID, documentID, reason, source string, confidence float64) (*models.ReviewTask, error) {
	existing, err := s.store.GetOpenReviewTaskForDocument(ctx, tenantID, documentID)
	if err == nil {
		return existing, nil
	}
	var notFound *store.ErrNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	task := &models.ReviewTask{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		DocumentID: documentID,
		Reason:     reason,
		Source:     source,
		Status:     models.ReviewOpen,
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateReviewTask(ctx, task); err != nil {
		var conflict *store.ErrConflict
		if errors.As(err, &conflict) {
			return s.store.GetOpenReviewTaskForDocument(ctx, tenantID, documentID)
		}
		return nil, err
	}

	s.audit.Record(ctx, tenantID, "pipeline", "review.task.created", "review_task", task.ID, map[string]any{
		"document_id": documentID,
		"reason":      reason,
	})
	_ = s.bus.Publish(ctx, "review.required", map[string]any{
		"tenant_id":   tenantID,
		"document_id": documentID,
		"reason":      reason,
		"confidence":  confidence,
	}, nil)

	return task, nil
}

// CompleteReview resolves an open review task as approved or rejected,
// persists any corrections, audit-logs the decision, and publishes
// review.completed. Returns ErrNotFound if taskID does not exist for
// tenantID (including a task that belongs to a different tenant), and
// ErrAlreadyCompleted if the task is no longer open.
func (s *Service) CompleteReview(ctx context.Context, tenantID, taskID, actorID string, approve bool, corrections []CorrectionInput) (*models.ReviewTask, error) {
	task, err := s.store.GetReviewTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.ReviewOpen {
		return nil, ErrAlreadyCompleted
	}

	now := time.Now().UTC()
	task.Status = models.ReviewRejected
	if approve {
		task.Status = models.ReviewApproved
	}
	task.AssignedTo = actorID
	task.CompletedAt = &now
	if err := s.store.UpdateReviewTask(ctx, task); err != nil {
		return nil, err
	}

	for _, c := range corrections {
		correction := &models.Correction{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			ReviewTaskID: task.ID,
			FieldName:    c.FieldName,
			OldValue:     c.OldValue,
			NewValue:     c.NewValue,
			ReasonTag:    c.ReasonTag,
			CorrectedBy:  actorID,
			CreatedAt:    now,
		}
		if err := s.store.CreateCorrection(ctx, correction); err != nil {
			return nil, err
		}
	}

	s.audit.Record(ctx, tenantID, actorID, "review.task.completed", "review_task", task.ID, map[string]any{
		"approved":         approve,
		"correction_count": len(corrections),
	})

	_ = s.bus.Publish(ctx, "review.completed", map[string]any{
		"tenant_id":        tenantID,
		"review_task_id":   task.ID,
		"approved":         approve,
		"correction_count": len(corrections),
	}, nil)

	return task, nil
}
