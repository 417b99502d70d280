// Package models holds the persisted entity shapes shared across NexusCargo's
// ingestion pipeline, rules engine, review workflow, discrepancy workflow,
// webhook delivery engine, and the per-domain compliance workflows.
package models

import "time"

// ── Tenant / Identity ────────────────────────────────────────

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

type Tenant struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Status    TenantStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RefreshToken is a contract-only entity: token issuance and rotation are an
// external collaborator, but the delivery worker and audit log reference the
// same user identifiers this type would key off of.
type RefreshToken struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	TokenJTI  string    `json:"token_jti" db:"token_jti"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ── Document pipeline ────────────────────────────────────────

type DocumentStatus string

const (
	DocumentReceived       DocumentStatus = "received"
	DocumentReviewRequired DocumentStatus = "review_required"
	DocumentValidated      DocumentStatus = "validated"
	DocumentRejected       DocumentStatus = "rejected"
)

type Document struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	ExternalID  string         `json:"external_id,omitempty" db:"external_id"`
	FileName    string         `json:"file_name" db:"file_name"`
	ContentType string         `json:"content_type" db:"content_type"`
	Status      DocumentStatus `json:"status" db:"status"`
	StorageURI  string         `json:"storage_uri" db:"storage_uri"`
	CreatedBy   string         `json:"created_by" db:"created_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

type DocumentVersion struct {
	ID            string    `json:"id" db:"id"`
	DocumentID    string    `json:"document_id" db:"document_id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	StorageURI    string    `json:"storage_uri" db:"storage_uri"`
	Checksum      string    `json:"checksum" db:"checksum"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type DocumentClassification struct {
	ID           string    `json:"id" db:"id"`
	DocumentID   string    `json:"document_id" db:"document_id"`
	TenantID     string    `json:"tenant_id" db:"tenant_id"`
	DocType      string    `json:"doc_type" db:"doc_type"`
	Confidence   float64   `json:"confidence" db:"confidence"`
	ModelVersion string    `json:"model_version" db:"model_version"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type ExtractedEntity struct {
	ID          string    `json:"id" db:"id"`
	DocumentID  string    `json:"document_id" db:"document_id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	FieldName   string    `json:"field_name" db:"field_name"`
	FieldValue  string    `json:"field_value" db:"field_value"`
	Confidence  float64   `json:"confidence" db:"confidence"`
	SourceModel string    `json:"source_model" db:"source_model"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type ValidationResult struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	RuleCode   string    `json:"rule_code" db:"rule_code"`
	Passed     bool      `json:"passed" db:"passed"`
	Severity   Severity  `json:"severity" db:"severity"`
	Message    string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ── Review workflow ──────────────────────────────────────────

type ReviewStatus string

const (
	ReviewOpen     ReviewStatus = "open"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type ReviewTask struct {
	ID          string       `json:"id" db:"id"`
	TenantID    string       `json:"tenant_id" db:"tenant_id"`
	DocumentID  string       `json:"document_id" db:"document_id"`
	Reason      string       `json:"reason" db:"reason"`
	Source      string       `json:"source" db:"source"`
	Status      ReviewStatus `json:"status" db:"status"`
	Confidence  float64      `json:"confidence" db:"confidence"`
	AssignedTo  string       `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}

type Correction struct {
	ID           string    `json:"id" db:"id"`
	TenantID     string    `json:"tenant_id" db:"tenant_id"`
	ReviewTaskID string    `json:"review_task_id" db:"review_task_id"`
	FieldName    string    `json:"field_name" db:"field_name"`
	OldValue     string    `json:"old_value" db:"old_value"`
	NewValue     string    `json:"new_value" db:"new_value"`
	ReasonTag    string    `json:"reason_tag" db:"reason_tag"`
	CorrectedBy  string    `json:"corrected_by" db:"corrected_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ── Shipment / FIAR reconciliation ───────────────────────────

type Shipment struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	ShipmentRef string    `json:"shipment_ref" db:"shipment_ref"`
	Status      string    `json:"status" db:"status"`
	Origin      string    `json:"origin" db:"origin"`
	Destination string    `json:"destination" db:"destination"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type AwbRecord struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	ShipmentID string    `json:"shipment_id,omitempty" db:"shipment_id"`
	AwbNumber  string    `json:"awb_number" db:"awb_number"`
	Carrier    string    `json:"carrier" db:"carrier"`
	Shipper    string    `json:"shipper" db:"shipper"`
	Consignee  string    `json:"consignee" db:"consignee"`
	WeightKg   float64   `json:"weight_kg" db:"weight_kg"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type FreightInvoice struct {
	ID            string    `json:"id" db:"id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	InvoiceNumber string    `json:"invoice_number" db:"invoice_number"`
	ShipmentID    string    `json:"shipment_id" db:"shipment_id"`
	Amount        float64   `json:"amount" db:"amount"`
	Currency      string    `json:"currency" db:"currency"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Contract struct {
	ID             string         `json:"id" db:"id"`
	TenantID       string         `json:"tenant_id" db:"tenant_id"`
	ContractNumber string         `json:"contract_number" db:"contract_number"`
	Carrier        string         `json:"carrier" db:"carrier"`
	ValidFrom      time.Time      `json:"valid_from" db:"valid_from"`
	ValidTo        time.Time      `json:"valid_to" db:"valid_to"`
	Terms          map[string]any `json:"terms" db:"terms"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

type ThreeWayMatchResult struct {
	ID                string         `json:"id" db:"id"`
	TenantID          string         `json:"tenant_id" db:"tenant_id"`
	InvoiceID         string         `json:"invoice_id" db:"invoice_id"`
	ContractID        string         `json:"contract_id" db:"contract_id"`
	ShipmentID        string         `json:"shipment_id" db:"shipment_id"`
	Matched           bool           `json:"matched" db:"matched"`
	MismatchDetails   map[string]any `json:"mismatch_details" db:"mismatch_details"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// ── Discrepancy / dispute ─────────────────────────────────────

type DiscrepancyStatus string

const (
	DiscrepancyOpen      DiscrepancyStatus = "open"
	DiscrepancyInDispute DiscrepancyStatus = "in_dispute"
	DiscrepancyResolved  DiscrepancyStatus = "resolved"
)

type Discrepancy struct {
	ID              string            `json:"id" db:"id"`
	TenantID        string            `json:"tenant_id" db:"tenant_id"`
	ShipmentID      string            `json:"shipment_id" db:"shipment_id"`
	DiscrepancyType string            `json:"discrepancy_type" db:"discrepancy_type"`
	Score           float64           `json:"score" db:"score"`
	Details         map[string]any    `json:"details" db:"details"`
	Status          DiscrepancyStatus `json:"status" db:"status"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

type Dispute struct {
	ID               string        `json:"id" db:"id"`
	TenantID         string        `json:"tenant_id" db:"tenant_id"`
	DiscrepancyID    string        `json:"discrepancy_id" db:"discrepancy_id"`
	Status           DisputeStatus `json:"status" db:"status"`
	OpenedBy         string        `json:"opened_by" db:"opened_by"`
	ResolutionNotes  string        `json:"resolution_notes,omitempty" db:"resolution_notes"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ── Export / vehicle import / compliance ──────────────────────

type Export struct {
	ID                  string    `json:"id" db:"id"`
	TenantID            string    `json:"tenant_id" db:"tenant_id"`
	ExportRef           string    `json:"export_ref" db:"export_ref"`
	DestinationCountry  string    `json:"destination_country" db:"destination_country"`
	Status              string    `json:"status" db:"status"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

type VehicleImportCase struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	CaseRef    string     `json:"case_ref" db:"case_ref"`
	VIN        string     `json:"vin" db:"vin"`
	Status     string     `json:"status" db:"status"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

type ComplianceCheck struct {
	ID         string         `json:"id" db:"id"`
	TenantID   string         `json:"tenant_id" db:"tenant_id"`
	SubjectType string        `json:"subject_type" db:"subject_type"`
	SubjectID  string         `json:"subject_id" db:"subject_id"`
	CheckType  string         `json:"check_type" db:"check_type"`
	Result     string         `json:"result" db:"result"`
	Details    map[string]any `json:"details" db:"details"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

type Alert struct {
	ID             string     `json:"id" db:"id"`
	TenantID       string     `json:"tenant_id" db:"tenant_id"`
	AlertType      string     `json:"alert_type" db:"alert_type"`
	Severity       string     `json:"severity" db:"severity"`
	Message        string     `json:"message" db:"message"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
}

// ModelVersion tracks which classification/extraction model revision is
// active, so a deployment can be rolled forward without the pipeline code
// needing to know about the change.
type ModelVersion struct {
	ID          string         `json:"id" db:"id"`
	Component   string         `json:"component" db:"component"` // "classification" | "extraction"
	Version     string         `json:"version" db:"version"`
	ActivatedAt time.Time      `json:"activated_at" db:"activated_at"`
	Metrics     map[string]any `json:"metrics,omitempty" db:"metrics"`
}

// ── Webhook delivery ──────────────────────────────────────────

type WebhookSubscription struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	TargetURL   string    `json:"target_url" db:"target_url"`
	SecretRef   string    `json:"secret_ref" db:"secret_ref"`
	EventFilter string    `json:"event_filter" db:"event_filter"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryRetryScheduled DeliveryStatus = "retry_scheduled"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryDeadLettered   DeliveryStatus = "dead_lettered"
)

type WebhookDelivery struct {
	ID              string         `json:"id" db:"id"`
	TenantID        string         `json:"tenant_id" db:"tenant_id"`
	SubscriptionID  string         `json:"subscription_id" db:"subscription_id"`
	EventType       string         `json:"event_type" db:"event_type"`
	Payload         map[string]any `json:"payload" db:"payload"`
	Status          DeliveryStatus `json:"status" db:"status"`
	AttemptCount    int            `json:"attempt_count" db:"attempt_count"`
	LastError       string         `json:"last_error,omitempty" db:"last_error"`
	IdempotencyKey  string         `json:"idempotency_key" db:"idempotency_key"`
	NextAttemptAt   time.Time      `json:"next_attempt_at" db:"next_attempt_at"`
	LastAttemptAt   *time.Time     `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"`
	DeadLetteredAt  *time.Time     `json:"dead_lettered_at,omitempty" db:"dead_lettered_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// ── Idempotency / audit ───────────────────────────────────────

type IdempotencyKey struct {
	ID              string    `json:"id" db:"id"`
	TenantID        string    `json:"tenant_id" db:"tenant_id"`
	IdempotencyKey  string    `json:"idempotency_key" db:"idempotency_key"`
	RequestHash     string    `json:"request_hash" db:"request_hash"`
	ResponsePayload []byte    `json:"response_payload" db:"response_payload"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type AuditEvent struct {
	ID         string         `json:"id" db:"id"`
	TenantID   string         `json:"tenant_id" db:"tenant_id"`
	ActorID    string         `json:"actor_id" db:"actor_id"`
	Action     string         `json:"action" db:"action"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	EntityID   string         `json:"entity_id" db:"entity_id"`
	Payload    map[string]any `json:"payload" db:"payload"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// AuditFilter narrows ListAuditEvents results.
type AuditFilter struct {
	TenantID string
	Entity   string
	EntityID string
	Limit    int
	Since    *time.Time
}
