// Package store provides the storage interface and implementations for the
// NexusCargo platform. Phase 1 is in-memory maps; Phase 2 is PostgreSQL-backed
// persistence via pgx.
package store

import (
	"context"
	"time"

	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// Store is the primary storage interface for the platform. All service code
// depends on this interface, making it easy to swap between in-memory (tests,
// single-process deployments) and PostgreSQL (production) implementations.
type Store interface {
	DocumentStore
	ReviewStore
	ShipmentStore
	DiscrepancyStore
	ComplianceStore
	WebhookStore
	IdempotencyStore
	AuditStore
	ModelVersionStore

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate runs schema migrations (no-op for the in-memory store).
	Migrate(ctx context.Context) error
}

// ── Document Store ───────────────────────────────────────────

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, tenantID string, filter ListFilter) ([]models.Document, error)

	CreateDocumentVersion(ctx context.Context, v *models.DocumentVersion) error
	ListDocumentVersions(ctx context.Context, tenantID, documentID string) ([]models.DocumentVersion, error)

	CreateClassification(ctx context.Context, c *models.DocumentClassification) error
	CreateExtractedEntity(ctx context.Context, e *models.ExtractedEntity) error
	ListExtractedEntities(ctx context.Context, tenantID, documentID string) ([]models.ExtractedEntity, error)

	CreateValidationResult(ctx context.Context, r *models.ValidationResult) error
	ListValidationResults(ctx context.Context, tenantID, documentID string) ([]models.ValidationResult, error)
}

// ── Review Store ─────────────────────────────────────────────

type ReviewStore interface {
	CreateReviewTask(ctx context.Context, task *models.ReviewTask) error
	GetReviewTask(ctx context.Context, tenantID, id string) (*models.ReviewTask, error)
	UpdateReviewTask(ctx context.Context, task *models.ReviewTask) error
	GetOpenReviewTaskForDocument(ctx context.Context, tenantID, documentID string) (*models.ReviewTask, error)
	ListReviewTasks(ctx context.Context, tenantID string, status models.ReviewStatus, filter ListFilter) ([]models.ReviewTask, error)

	CreateCorrection(ctx context.Context, c *models.Correction) error
	ListCorrections(ctx context.Context, tenantID, reviewTaskID string) ([]models.Correction, error)
}

// ── Shipment / FIAR Store ────────────────────────────────────

type ShipmentStore interface {
	GetShipment(ctx context.Context, tenantID, id string) (*models.Shipment, error)
	CreateShipment(ctx context.Context, s *models.Shipment) error
}

// ── Discrepancy Store ────────────────────────────────────────

type DiscrepancyStore interface {
	CreateDiscrepancy(ctx context.Context, d *models.Discrepancy) error
	GetDiscrepancy(ctx context.Context, tenantID, id string) (*models.Discrepancy, error)
	UpdateDiscrepancy(ctx context.Context, d *models.Discrepancy) error

	CreateDispute(ctx context.Context, d *models.Dispute) error
	GetDispute(ctx context.Context, tenantID, id string) (*models.Dispute, error)
	UpdateDispute(ctx context.Context, d *models.Dispute) error
}

// ── Compliance / Domain Workflow Store ───────────────────────

type ComplianceStore interface {
	CreateComplianceCheck(ctx context.Context, c *models.ComplianceCheck) error
	CreateAlert(ctx context.Context, a *models.Alert) error

	CreateExport(ctx context.Context, e *models.Export) error
	GetExport(ctx context.Context, tenantID, id string) (*models.Export, error)
	UpdateExport(ctx context.Context, e *models.Export) error

	CreateVehicleImportCase(ctx context.Context, v *models.VehicleImportCase) error

	CreateAwbRecord(ctx context.Context, a *models.AwbRecord) error

	CreateFreightInvoice(ctx context.Context, f *models.FreightInvoice) error
	GetFreightInvoice(ctx context.Context, tenantID, id string) (*models.FreightInvoice, error)

	CreateThreeWayMatchResult(ctx context.Context, m *models.ThreeWayMatchResult) error
}

// ── Webhook Store ────────────────────────────────────────────

type WebhookStore interface {
	CreateSubscription(ctx context.Context, sub *models.WebhookSubscription) error
	GetSubscription(ctx context.Context, tenantID, id string) (*models.WebhookSubscription, error)
	ListActiveSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]models.WebhookSubscription, error)

	CreateDelivery(ctx context.Context, d *models.WebhookDelivery) error
	GetDeliveryByIdempotencyKey(ctx context.Context, tenantID, idempotencyKey string) (*models.WebhookDelivery, error)
	UpdateDelivery(ctx context.Context, d *models.WebhookDelivery) error
	GetDelivery(ctx context.Context, tenantID, id string) (*models.WebhookDelivery, error)

	// ClaimDueDeliveries selects up to batchSize deliveries in {pending,
	// retry_scheduled} with next_attempt_at <= now, ordered ascending. The
	// PostgreSQL implementation does this with SELECT ... FOR UPDATE SKIP
	// LOCKED so concurrent workers never double-claim a row.
	ClaimDueDeliveries(ctx context.Context, tenantID string, batchSize int, now time.Time) ([]models.WebhookDelivery, error)

	ListDeadLettered(ctx context.Context, tenantID string, ids []string, limit int) ([]models.WebhookDelivery, error)
}

// ── Idempotency Store ────────────────────────────────────────

type IdempotencyStore interface {
	GetIdempotencyRecord(ctx context.Context, tenantID, key string) (*models.IdempotencyKey, error)
	SaveIdempotencyRecord(ctx context.Context, rec *models.IdempotencyKey) error
}

// ── Audit Store ──────────────────────────────────────────────

type AuditStore interface {
	CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error)
}

// ── Model Version Store ──────────────────────────────────────

type ModelVersionStore interface {
	RegisterModelVersion(ctx context.Context, v *models.ModelVersion) error
	ActiveModelVersion(ctx context.Context, component string) (*models.ModelVersion, error)
}

// ── Errors ───────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrConflict is returned when a write would violate a uniqueness invariant
// (duplicate webhook idempotency key; in PostgresStore also a second open
// review task for the same document).
type ErrConflict struct {
	Entity string
	Key    string
	Reason string
}

func (e *ErrConflict) Error() string {
	return e.Entity + " conflict on " + e.Key + ": " + e.Reason
}

// ── Filter helpers ───────────────────────────────────────────

// ListFilter provides common pagination/filter options.
type ListFilter struct {
	Limit  int
	Offset int
	Since  *time.Time
}
