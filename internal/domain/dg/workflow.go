// Package dg implements the Dangerous Goods (IATA) declaration evaluation
// workflow described in §4.12.
package dg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/review"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

var validPackingGroups = map[string]bool{"I": true, "II": true, "III": true}

// RuleEvaluation is one named rule outcome for a declaration.
type RuleEvaluation struct {
	Code        string
	Passed      bool
	Message     string
	Explanation string
}

// EvaluateDeclaration checks un_number (starts with "UN", remainder all
// digits) and packing_group (∈ {I, II, III}).
func EvaluateDeclaration(unNumber, packingGroup string) []RuleEvaluation {
	unPassed := strings.HasPrefix(unNumber, "UN") && isAllDigits(strings.TrimPrefix(unNumber, "UN"))
	pgPassed := validPackingGroups[packingGroup]

	return []RuleEvaluation{
		{
			Code:        "dg.un_number",
			Passed:      unPassed,
			Message:     "UN number must start with UN followed by digits",
			Explanation: fmt.Sprintf("received %q", unNumber),
		},
		{
			Code:        "dg.packing_group",
			Passed:      pgPassed,
			Message:     "packing group must be one of I, II, III",
			Explanation: fmt.Sprintf("received %q", packingGroup),
		},
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// ValidationResult is the outcome of ValidateAndRecord.
type ValidationResult struct {
	Valid        bool
	Evaluations  []RuleEvaluation
	ReviewTaskID string
}

// Service persists ComplianceChecks for dangerous-goods declarations and
// queues a review task when validation fails.
type Service struct {
	store  store.ComplianceStore
	review *review.Service
	audit  *audit.Logger
}

// NewService constructs a dg Service.
func NewService(s store.ComplianceStore, reviewService *review.Service, auditLogger *audit.Logger) *Service {
	return &Service{store: s, review: reviewService, audit: auditLogger}
}

// ValidateAndRecord evaluates a declaration, persists a ComplianceCheck,
// and queues a review task when the declaration is invalid.
func (s *Service) ValidateAndRecord(ctx context.Context, tenantID, actorID, subjectID, unNumber, packingGroup string) (ValidationResult, error) {
	evaluations := EvaluateDeclaration(unNumber, packingGroup)

	var issueCodes []string
	valid := true
	for _, e := range evaluations {
		if !e.Passed {
			valid = false
			issueCodes = append(issueCodes, e.Code)
		}
	}

	result := "pass"
	if !valid {
		result = "fail"
	}

	if err := s.store.CreateComplianceCheck(ctx, &models.ComplianceCheck{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		SubjectType: "dg_declaration",
		SubjectID:   subjectID,
		CheckType:   "dg.declaration_validation",
		Result:      result,
		Details:     map[string]any{"issues": issueCodes},
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return ValidationResult{}, err
	}

	out := ValidationResult{Valid: valid, Evaluations: evaluations}
	if !valid {
		task, err := s.review.QueueLowConfidenceReview(ctx, tenantID, subjectID, "dg declaration validation failed", "dg_workflow", 0.4)
		if err != nil {
			return out, err
		}
		out.ReviewTaskID = task.ID
	}

	s.audit.Record(ctx, tenantID, actorID, "dg.declaration.validated", "dg_declaration", subjectID, map[string]any{
		"result": result,
		"issues": issueCodes,
	})

	return out, nil
}
