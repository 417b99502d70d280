// Package aeca implements the Australian Export Control Act export
// compliance workflow described in §4.12.
package aeca

import (
	"context"
	"errors"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

var validHSCodeLengths = map[int]bool{6: true, 8: true, 10: true}
var validDestinationLengths = map[int]bool{2: true, 3: true}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ValidateExport checks hs_code and destination_country format.
func ValidateExport(hsCode, destinationCountry string) (bool, []string) {
	var issues []string
	if !allDigits(hsCode) || !validHSCodeLengths[len(hsCode)] {
		issues = append(issues, "invalid_hs_code")
	}
	if !validDestinationLengths[len(destinationCountry)] {
		issues = append(issues, "invalid_destination_country")
	}
	return len(issues) == 0, issues
}

// Service persists Export compliance checks and submits to the customs
// authority.
type Service struct {
	store   store.ComplianceStore
	bus     contracts.EventBus
	adapter contracts.ExportComplianceAdapter
	audit   *audit.Logger
}

// NewService constructs an aeca Service.
func NewService(s store.ComplianceStore, bus contracts.EventBus, adapter contracts.ExportComplianceAdapter, auditLogger *audit.Logger) *Service {
	return &Service{store: s, bus: bus, adapter: adapter, audit: auditLogger}
}

// CreateExportCaseInput carries the fields needed to open an export case.
type CreateExportCaseInput struct {
	ExportRef            string
	DestinationCountry   string
	HSCode               string
	RequiredDeclarations []string
}

// CreateExportCase validates hs_code/destination format and that every
// required declaration is non-blank, records a ComplianceCheck, and sets
// Export.status accordingly.
func (s *Service) CreateExportCase(ctx context.Context, tenantID, actorID string, in CreateExportCaseInput) (*models.Export, error) {
	formatOK, issues := ValidateExport(in.HSCode, in.DestinationCountry)

	missingDeclaration := false
	for _, d := range in.RequiredDeclarations {
		if d == "" {
			missingDeclaration = true
			issues = append(issues, "missing_required_declarations")
			break
		}
	}

	result := "pass"
	if !formatOK || missingDeclaration {
		result = "fail"
	}

	if err := s.store.CreateComplianceCheck(ctx, &models.ComplianceCheck{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		SubjectType: "export",
		SubjectID:   in.ExportRef,
		CheckType:   "aeca.initial_validation",
		Result:      result,
		Details:     map[string]any{"issues": issues},
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	status := "ready_for_submission"
	if result == "fail" {
		status = "review_required"
	}

	export := &models.Export{
		ID:                 uuid.NewString(),
		TenantID:           tenantID,
		ExportRef:          in.ExportRef,
		DestinationCountry: in.DestinationCountry,
		Status:             status,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.CreateExport(ctx, export); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, tenantID, actorID, "aeca.export.created", "export", export.ID, map[string]any{
		"status": status,
		"issues": issues,
	})

	return export, nil
}

// SubmissionResult is the outcome of SubmitExportCase. A failed adapter
// call surfaces here as Status=="failed" rather than as a Go error — per
// §7, IntegrationError is converted to a response, not an HTTP error.
type SubmissionResult struct {
	Export *models.Export
	Status string
	Error  string
}

// SubmitExportCase submits exportID to the customs authority adapter,
// setting status=submitted and emitting export.submission.updated.
func (s *Service) SubmitExportCase(ctx context.Context, tenantID, actorID, exportID string, payload map[string]any) (SubmissionResult, error) {
	export, err := s.store.GetExport(ctx, tenantID, exportID)
	if err != nil {
		return SubmissionResult{}, err
	}

	if _, err := s.adapter.SubmitExportCase(ctx, export.ExportRef, payload); err != nil {
		var integrationErr *contracts.IntegrationError
		errors.As(err, &integrationErr)
		s.audit.Record(ctx, tenantID, actorID, "aeca.export.submitted", "export", export.ID, map[string]any{
			"status": "failed",
			"error":  err.Error(),
		})
		return SubmissionResult{Export: export, Status: "failed", Error: err.Error()}, nil
	}

	export.Status = "submitted"
	if err := s.store.UpdateExport(ctx, export); err != nil {
		return SubmissionResult{}, err
	}

	s.audit.Record(ctx, tenantID, actorID, "aeca.export.submitted", "export", export.ID, map[string]any{
		"status": export.Status,
	})
	_ = s.bus.Publish(ctx, "export.submission.updated", map[string]any{
		"tenant_id": tenantID,
		"export_id": export.ID,
		"status":    export.Status,
	}, nil)

	return SubmissionResult{Export: export, Status: export.Status}, nil
}
