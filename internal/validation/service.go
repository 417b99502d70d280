// Package validation runs extracted document fields through the rules
// engine and persists the resulting pass/fail outcomes (§4.3, §4.4).
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// Service evaluates a document's extracted fields and persists one
// ValidationResult per rule outcome.
type Service struct {
	store  store.DocumentStore
	bus    contracts.EventBus
	engine contracts.RulesEngine
}

// NewService constructs a validation Service.
func NewService(s store.DocumentStore, bus contracts.EventBus, engine contracts.RulesEngine) *Service {
	return &Service{store: s, bus: bus, engine: engine}
}

// Outcome summarizes a validation pass.
type Outcome struct {
	Results     []contracts.RuleResult
	FailedCodes []string
	AllPassed   bool
}

// Validate evaluates fields against the rules engine for the given doc_type
// and rule pack, persists one ValidationResult per outcome (rule_code
// formatted "{code}@{pack_id}:{pack_version}"), and publishes
// document.validated with the set of failed rule codes.
func (s *Service) Validate(ctx context.Context, tenantID, documentID, docType string, fields map[string]string, packID, packVersion string) (Outcome, error) {
	results := s.engine.Evaluate(ctx, docType, fields, packID, packVersion)

	now := time.Now().UTC()
	var failedCodes []string
	for _, r := range results {
		vr := &models.ValidationResult{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			TenantID:   tenantID,
			RuleCode:   fmt.Sprintf("%s@%s:%s", r.Code, r.PackID, r.PackVersion),
			Passed:     r.Passed,
			Severity:   r.Severity,
			Message:    r.Message,
			CreatedAt:  now,
		}
		if err := s.store.CreateValidationResult(ctx, vr); err != nil {
			return Outcome{}, err
		}
		if !r.Passed {
			failedCodes = append(failedCodes, r.Code)
		}
	}

	allPassed := len(failedCodes) == 0
	if err := s.bus.Publish(ctx, "document.validated", map[string]any{
		"tenant_id":    tenantID,
		"document_id":  documentID,
		"all_passed":   allPassed,
		"failed_codes": failedCodes,
	}, nil); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Str("document_id", documentID).
			Msg("failed to publish document.validated")
	}

	return Outcome{Results: results, FailedCodes: failedCodes, AllPassed: allPassed}, nil
}
