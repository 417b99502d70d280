// Package awb implements the AWB (Air Waybill) validation and carrier
// submission workflow described in §4.12.
package awb

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/integrations"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

var awbFormat = regexp.MustCompile(`^\d{3}-\d{8}$`)

// ErrUnknownProvider is returned by SubmitAWB when providerKey has no
// registered carrier adapter.
var ErrUnknownProvider = errors.New("unknown carrier provider key")

// acceptedTerminalStatuses are the status values this carrier adapter
// family treats as a successful submission. Per-adapter, not shared with
// the AECA/FIAR adapter families.
var acceptedTerminalStatuses = map[string]bool{
	"accepted": true,
	"queued":   true,
	"received": true,
}

// ValidateAWB checks AWB format and weight, returning every violation
// message (not just the first).
func ValidateAWB(awbNumber string, weightKg float64) (bool, []string) {
	var messages []string
	if !awbFormat.MatchString(awbNumber) {
		messages = append(messages, "AWB format must be XXX-XXXXXXXX")
	}
	if weightKg <= 0 {
		messages = append(messages, "Weight must be positive")
	}
	return len(messages) == 0, messages
}

// SubmissionResult is the outcome of SubmitAWB.
type SubmissionResult struct {
	Status   string
	Accepted bool
	Provider string
	Error    string
	Response map[string]any
}

// Service wires the stateless AWB predicates to the persisted
// ComplianceStore and the keyed carrier-adapter registry.
type Service struct {
	store    store.ComplianceStore
	carriers *integrations.CarrierRegistry
	audit    *audit.Logger
}

// NewService constructs an awb Service.
func NewService(s store.ComplianceStore, carriers *integrations.CarrierRegistry, auditLogger *audit.Logger) *Service {
	return &Service{store: s, carriers: carriers, audit: auditLogger}
}

// SubmitAWB dispatches to the carrier adapter registered under providerKey.
// An unknown provider key is a client error. An adapter failure is
// converted to a {status:"failed", ...} result rather than an HTTP error
// (§7's IntegrationError handling) and audit-logged the same way as a
// successful submission.
func (s *Service) SubmitAWB(ctx context.Context, tenantID, actorID, providerKey, awbNumber string, payload map[string]any) (SubmissionResult, error) {
	adapter, ok := s.carriers.Get(providerKey)
	if !ok {
		return SubmissionResult{}, ErrUnknownProvider
	}

	resp, err := adapter.SubmitAWB(ctx, tenantID, awbNumber, payload)

	result := SubmissionResult{Provider: providerKey}
	if err != nil {
		var integrationErr *contracts.IntegrationError
		errors.As(err, &integrationErr)
		result.Status = "failed"
		result.Error = err.Error()
	} else {
		status, _ := resp["status"].(string)
		result.Status = status
		result.Accepted = acceptedTerminalStatuses[status]
		result.Response = resp
	}

	if err := s.store.CreateAwbRecord(ctx, &models.AwbRecord{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		AwbNumber: awbNumber,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return result, err
	}

	s.audit.Record(ctx, tenantID, actorID, "awb.submitted_to_provider", "awb_record", awbNumber, map[string]any{
		"provider": providerKey,
		"status":   result.Status,
	})

	return result, nil
}
