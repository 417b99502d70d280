// Package discrepancy implements the cross-document anomaly scorer and
// dispute lifecycle described in §4.8.
package discrepancy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// ErrAlreadyDisputed is returned when OpenDispute targets a discrepancy that
// already has an active dispute.
var ErrAlreadyDisputed = errors.New("discrepancy already has an active dispute")

// ScoreInput carries the raw comparison values for CreateDiscrepancy.
type ScoreInput struct {
	ShipmentID          string
	DeclaredWeightKg    float64
	ActualWeightKg      float64
	DeclaredValue       float64
	ActualValue         float64
	RouteRiskFactor     float64
	HistoricalScoreBias float64
}

// ScoreResult is the computed anomaly score and its components.
type ScoreResult struct {
	WeightDelta  float64
	ValueDelta   float64
	AnomalyScore float64
	Mismatch     bool
	RiskLevel    string
	Explanation  string
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

// Score computes the anomaly score per §4.8's exact formula. Denominators
// use the actual (delivered/measured) weight and value, never the declared
// ones.
func Score(in ScoreInput) ScoreResult {
	weightDenom := math.Max(in.ActualWeightKg, 1)
	valueDenom := math.Max(in.ActualValue, 1)

	weightComponent := (math.Abs(in.DeclaredWeightKg-in.ActualWeightKg) / weightDenom) * 0.45
	valueComponent := (math.Abs(in.DeclaredValue-in.ActualValue) / valueDenom) * 0.45
	routeComponent := clamp01(in.RouteRiskFactor) * 0.05
	historicalComponent := clamp01(in.HistoricalScoreBias) * 0.05

	anomalyScore := math.Min(1, weightComponent+valueComponent+routeComponent+historicalComponent)
	anomalyScore = round(anomalyScore, 4)

	riskLevel := "low"
	switch {
	case anomalyScore >= 0.7:
		riskLevel = "high"
	case anomalyScore >= 0.35:
		riskLevel = "medium"
	}

	weightDelta := round(math.Abs(in.DeclaredWeightKg-in.ActualWeightKg), 2)
	valueDelta := round(math.Abs(in.DeclaredValue-in.ActualValue), 2)

	explanation := fmt.Sprintf(
		"weight_delta=%.2f, value_delta=%.2f, route_risk_factor=%.2f, historical_score_bias=%.2f",
		weightDelta, valueDelta, in.RouteRiskFactor, in.HistoricalScoreBias,
	)

	return ScoreResult{
		WeightDelta:  weightDelta,
		ValueDelta:   valueDelta,
		AnomalyScore: anomalyScore,
		Mismatch:     anomalyScore > 0.2,
		RiskLevel:    riskLevel,
		Explanation:  explanation,
	}
}

// Service persists discrepancies and manages their dispute lifecycle.
type Service struct {
	store store.DiscrepancyStore
	bus   contracts.EventBus
	audit *audit.Logger
}

// NewService constructs a discrepancy Service.
func NewService(s store.DiscrepancyStore, bus contracts.EventBus, auditLogger *audit.Logger) *Service {
	return &Service{store: s, bus: bus, audit: auditLogger}
}

// CreateDiscrepancy scores in, persists a Discrepancy{status=open}, audit-logs
// discrepancy.created, and publishes discrepancy.detected.
func (s *Service) CreateDiscrepancy(ctx context.Context, tenantID, actorID string, in ScoreInput) (*models.Discrepancy, error) {
	result := Score(in)

	details := map[string]any{
		"weight_delta":          result.WeightDelta,
		"value_delta":           result.ValueDelta,
		"route_risk_factor":     in.RouteRiskFactor,
		"historical_score_bias": in.HistoricalScoreBias,
		"risk_level":            result.RiskLevel,
		"mismatch":              result.Mismatch,
		"explanation":           result.Explanation,
	}

	d := &models.Discrepancy{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		ShipmentID:      in.ShipmentID,
		DiscrepancyType: "cross_doc_mismatch",
		Score:           result.AnomalyScore,
		Details:         details,
		Status:          models.DiscrepancyOpen,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateDiscrepancy(ctx, d); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, tenantID, actorID, "discrepancy.created", "discrepancy", d.ID, details)
	_ = s.bus.Publish(ctx, "discrepancy.detected", map[string]any{
		"tenant_id":      tenantID,
		"discrepancy_id": d.ID,
		"shipment_id":    d.ShipmentID,
		"score":          d.Score,
	}, nil)

	return d, nil
}

// OpenDispute opens a dispute against an open or in-dispute-free discrepancy.
// A discrepancy has at most one active dispute.
func (s *Service) OpenDispute(ctx context.Context, tenantID, discrepancyID, openedBy string) (*models.Dispute, error) {
	d, err := s.store.GetDiscrepancy(ctx, tenantID, discrepancyID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DiscrepancyInDispute {
		return nil, ErrAlreadyDisputed
	}

	dispute := &models.Dispute{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		DiscrepancyID: discrepancyID,
		Status:        models.DisputeOpen,
		OpenedBy:      openedBy,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateDispute(ctx, dispute); err != nil {
		return nil, err
	}

	d.Status = models.DiscrepancyInDispute
	if err := s.store.UpdateDiscrepancy(ctx, d); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, tenantID, openedBy, "dispute.opened", "dispute", dispute.ID, map[string]any{
		"discrepancy_id": discrepancyID,
	})
	_ = s.bus.Publish(ctx, "invoice.dispute.updated", map[string]any{
		"tenant_id":      tenantID,
		"discrepancy_id": discrepancyID,
		"dispute_id":     dispute.ID,
		"status":         string(dispute.Status),
	}, nil)

	return dispute, nil
}

// ResolveDispute marks an open dispute resolved and resolves its
// discrepancy in turn.
func (s *Service) ResolveDispute(ctx context.Context, tenantID, disputeID, resolvedBy, resolutionNotes string) (*models.Dispute, error) {
	dispute, err := s.store.GetDispute(ctx, tenantID, disputeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dispute.Status = models.DisputeResolved
	dispute.ResolutionNotes = resolutionNotes
	dispute.ResolvedAt = &now
	if err := s.store.UpdateDispute(ctx, dispute); err != nil {
		return nil, err
	}

	d, err := s.store.GetDiscrepancy(ctx, tenantID, dispute.DiscrepancyID)
	if err != nil {
		return nil, err
	}
	d.Status = models.DiscrepancyResolved
	if err := s.store.UpdateDiscrepancy(ctx, d); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, tenantID, resolvedBy, "dispute.resolved", "dispute", dispute.ID, map[string]any{
		"discrepancy_id": dispute.DiscrepancyID,
	})
	_ = s.bus.Publish(ctx, "invoice.dispute.updated", map[string]any{
		"tenant_id":      tenantID,
		"discrepancy_id": dispute.DiscrepancyID,
		"dispute_id":     dispute.ID,
		"status":         string(dispute.Status),
	}, nil)

	return dispute, nil
}
