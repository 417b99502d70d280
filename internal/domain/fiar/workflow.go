// Package fiar implements the Freight Invoice Audit & Reconciliation
// three-way-match and accounting-export workflow described in §4.12.
package fiar

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// ThreeWayMatch compares an invoice against its contract and actual
// delivery, independently, within tolerancePercent of each reference
// value. A reference value of zero requires an exact match on that leg.
func ThreeWayMatch(invoiceAmount, contractAmount, deliveredAmount, tolerancePercent float64) (bool, []string) {
	ratio := tolerancePercent / 100

	var discrepancies []string
	if !withinTolerance(invoiceAmount, contractAmount, ratio) {
		discrepancies = append(discrepancies, "invoice_vs_contract")
	}
	if !withinTolerance(invoiceAmount, deliveredAmount, ratio) {
		discrepancies = append(discrepancies, "invoice_vs_delivery")
	}
	return len(discrepancies) == 0, discrepancies
}

func withinTolerance(left, right, ratio float64) bool {
	if right == 0 {
		return left == 0
	}
	return math.Abs(left-right)/right <= ratio
}

// ComputeSavings returns the positive difference between what was billed
// and what was expected, rounded to 2 decimal places; never negative.
func ComputeSavings(billed, expected float64) float64 {
	diff := billed - expected
	if diff < 0 {
		diff = 0
	}
	return math.Round(diff*100) / 100
}

// Service persists three-way-match results and exports reconciled invoices
// to an accounting system.
type Service struct {
	store   store.ComplianceStore
	adapter contracts.AccountingExportAdapter
	audit   *audit.Logger
}

// NewService constructs a fiar Service.
func NewService(s store.ComplianceStore, adapter contracts.AccountingExportAdapter, auditLogger *audit.Logger) *Service {
	return &Service{store: s, adapter: adapter, audit: auditLogger}
}

// ReconcileInput carries the amounts needed to perform and persist a
// three-way match.
type ReconcileInput struct {
	InvoiceID        string
	ContractID       string
	ShipmentID       string
	InvoiceAmount    float64
	ContractAmount   float64
	DeliveredAmount  float64
	TolerancePercent float64
}

// Reconcile runs ThreeWayMatch and persists the result.
func (s *Service) Reconcile(ctx context.Context, tenantID string, in ReconcileInput) (*models.ThreeWayMatchResult, error) {
	matched, discrepancies := ThreeWayMatch(in.InvoiceAmount, in.ContractAmount, in.DeliveredAmount, in.TolerancePercent)

	result := &models.ThreeWayMatchResult{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		InvoiceID:       in.InvoiceID,
		ContractID:      in.ContractID,
		ShipmentID:      in.ShipmentID,
		Matched:         matched,
		MismatchDetails: map[string]any{"discrepancies": discrepancies},
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateThreeWayMatchResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ExportResult is the outcome of ExportInvoice. A failed adapter call
// surfaces here as Status=="failed" rather than as a Go error, mirroring
// the AWB/AECA absorb-not-propagate pattern for §7's IntegrationError rule.
type ExportResult struct {
	Status string
	Error  string
}

// ExportInvoice pushes a reconciled invoice to the accounting system.
func (s *Service) ExportInvoice(ctx context.Context, tenantID, actorID, invoiceID string, payload map[string]any) (ExportResult, error) {
	invoice, err := s.store.GetFreightInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return ExportResult{}, err
	}

	if _, err := s.adapter.ExportInvoice(ctx, tenantID, invoice.InvoiceNumber, payload); err != nil {
		var integrationErr *contracts.IntegrationError
		errors.As(err, &integrationErr)
		s.audit.Record(ctx, tenantID, actorID, "fiar.invoice.exported", "freight_invoice", invoice.ID, map[string]any{
			"status": "failed",
			"error":  err.Error(),
		})
		return ExportResult{Status: "failed", Error: err.Error()}, nil
	}

	s.audit.Record(ctx, tenantID, actorID, "fiar.invoice.exported", "freight_invoice", invoice.ID, map[string]any{
		"status": "exported",
	})
	return ExportResult{Status: "exported"}, nil
}
