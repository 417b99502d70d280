// Package aviqm implements the Australian Vehicle Import Quality &
// Movement vehicle-import case workflow described in §4.12.
package aviqm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// expirySoonWindow is how far ahead of expiry_date an Alert is raised.
const expirySoonWindow = 30 * 24 * time.Hour

// bmsbRiskMonths are the northern-hemisphere months (brown marmorated
// stink bug season) that raise the seasonal compliance risk flag.
var bmsbRiskMonths = map[time.Month]bool{
	time.September: true, time.October: true, time.November: true, time.December: true,
	time.January: true, time.February: true, time.March: true, time.April: true,
}

// VINParts is the decoded structure of a 17-character VIN.
type VINParts struct {
	Valid  bool
	Reason string
	WMI    string
	VDS    string
	VIS    string
}

// DecodeVIN splits a VIN into its World Manufacturer Identifier, Vehicle
// Descriptor Section, and Vehicle Identifier Section. A VIN that is not
// exactly 17 characters is invalid.
func DecodeVIN(vin string) VINParts {
	if len(vin) != 17 {
		return VINParts{Valid: false, Reason: "vin_must_be_17_chars"}
	}
	return VINParts{
		Valid: true,
		WMI:   vin[0:3],
		VDS:   vin[3:9],
		VIS:   vin[9:17],
	}
}

// IsCaseExpired reports whether expiry has already passed.
func IsCaseExpired(expiry time.Time) bool {
	return time.Now().UTC().After(expiry)
}

// Service wires the AVIQM predicates to the persisted ComplianceStore.
type Service struct {
	store store.ComplianceStore
	audit *audit.Logger
}

// NewService constructs an aviqm Service.
func NewService(s store.ComplianceStore, auditLogger *audit.Logger) *Service {
	return &Service{store: s, audit: auditLogger}
}

// CreateCaseInput carries the fields needed to open a vehicle import case.
type CreateCaseInput struct {
	CaseRef    string
	VIN        string
	ExpiryDate *time.Time
}

// CaseResult is the outcome of CreateCase.
type CaseResult struct {
	Case   *models.VehicleImportCase
	Status string
}

// CreateCase decodes the VIN, records the BMSB seasonal-risk check, raises
// an expiry-soon Alert when expiry_date falls within 30 days, and sets
// status to "ready" or "review_required".
func (s *Service) CreateCase(ctx context.Context, tenantID, actorID string, in CreateCaseInput) (CaseResult, error) {
	vin := DecodeVIN(in.VIN)

	now := time.Now().UTC()
	bmsbRisk := bmsbRiskMonths[now.Month()]
	bmsbResult := "pass"
	if bmsbRisk {
		bmsbResult = "warn"
	}

	if err := s.store.CreateComplianceCheck(ctx, &models.ComplianceCheck{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		SubjectType: "vehicle_import_case",
		SubjectID:   in.CaseRef,
		CheckType:   "aviqm.bmsb_risk_window",
		Result:      bmsbResult,
		Details:     map[string]any{"vin_valid": vin.Valid, "bmsb_risk_month": bmsbRisk},
		CreatedAt:   now,
	}); err != nil {
		return CaseResult{}, err
	}

	status := "ready"
	if !vin.Valid {
		status = "review_required"
	}

	vehicleCase := &models.VehicleImportCase{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		CaseRef:    in.CaseRef,
		VIN:        in.VIN,
		Status:     status,
		ExpiryDate: in.ExpiryDate,
		CreatedAt:  now,
	}
	if err := s.store.CreateVehicleImportCase(ctx, vehicleCase); err != nil {
		return CaseResult{}, err
	}

	if in.ExpiryDate != nil && !IsCaseExpired(*in.ExpiryDate) && in.ExpiryDate.Sub(now) <= expirySoonWindow {
		if err := s.store.CreateAlert(ctx, &models.Alert{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			AlertType: "aviqm.expiry_soon",
			Severity:  "high",
			Message:   "vehicle import case " + in.CaseRef + " expires within 30 days",
			CreatedAt: now,
		}); err != nil {
			return CaseResult{}, err
		}
	}

	s.audit.Record(ctx, tenantID, actorID, "aviqm.case.created", "vehicle_import_case", vehicleCase.ID, map[string]any{
		"status":    status,
		"bmsb_risk": bmsbRisk,
	})

	return CaseResult{Case: vehicleCase, Status: status}, nil
}
