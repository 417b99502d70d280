// Package contracts defines the capability-interface boundary between
// NexusCargo's pipeline/workflow services and their pluggable collaborators
// (event bus, storage, extractor, sanctions hook, external adapters).
//
// Each interface is narrow and is constructed once at startup from
// configuration, then injected explicitly through service constructors —
// no global singletons.
package contracts

import (
	"context"
	"time"

	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// Store is a type alias for the internal Store interface, exposed here so
// callers outside internal/ can depend on the storage contract without
// reaching into the implementation package.
type Store = store.Store

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = store.ErrNotFound

// ── Event Bus ────────────────────────────────────────────────

// EventBus is the typed publish primitive described in §4.1. Implementations:
// the in-memory bus (default) and the Redis pub/sub bus (event_bus_backend=pubsub).
type EventBus interface {
	Publish(ctx context.Context, topic string, payload map[string]any, attributes map[string]string) error
}

// ── Storage Provider ─────────────────────────────────────────

// StorageProvider writes raw document bytes and mints read URLs (§4.2).
type StorageProvider interface {
	UploadRaw(ctx context.Context, tenantID, objectName string, content []byte, contentType string) (uri string, err error)
	GenerateSignedURL(ctx context.Context, uri string) (string, error)
}

// ── Document Extractor ───────────────────────────────────────

// DocumentExtractor pulls structured fields and per-field confidence out of
// a document (§4.4). The mock backend is a deterministic fixture; the gcp
// backend is a contract-only stub that always falls back to the mock.
type DocumentExtractor interface {
	Extract(ctx context.Context, docType, textHint string) (fields map[string]string, confidence map[string]float64, modelVersion string, err error)
}

// ── Sanctions Hook ───────────────────────────────────────────

// SanctionsHook evaluates a field map against a restricted-party screen and
// returns whether the screen passed plus a human-readable explanation (§4.3).
type SanctionsHook func(fields map[string]string) (passed bool, explanation string)

// ── Rule Pack Registry ───────────────────────────────────────

// RulePack is a versioned, named set of validation rules (§4.3).
type RulePack struct {
	ID          string
	Version     string
	Description string
	Regulation  string
}

// RuleResult is one rule's outcome for a single evaluation (§4.3).
type RuleResult struct {
	Code        string
	Passed      bool
	Severity    models.Severity
	Message     string
	Explanation string
	PackID      string
	PackVersion string
}

// RulesEngine evaluates a document's extracted fields against a rule pack.
type RulesEngine interface {
	Evaluate(ctx context.Context, docType string, fields map[string]string, packID, packVersion string) []RuleResult
}

// ── External adapters (§4.15) ────────────────────────────────

// IntegrationError wraps a failure from an external collaborator (carrier,
// customs authority, accounting system). Workflows catch it and convert it
// into a {status: "failed", ...} response rather than an HTTP error (§7).
type IntegrationError struct {
	Provider string
	Err      error
}

func (e *IntegrationError) Error() string {
	return e.Provider + " integration error: " + e.Err.Error()
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// CargoAdapter submits an AWB to a carrier's booking system.
type CargoAdapter interface {
	SubmitAWB(ctx context.Context, tenantID, awbNumber string, payload map[string]any) (map[string]any, error)
}

// ExportComplianceAdapter submits an export case to a customs authority
// (ABF/ICS for the Australian AECA workflow).
type ExportComplianceAdapter interface {
	SubmitExportCase(ctx context.Context, exportRef string, payload map[string]any) (map[string]any, error)
}

// AccountingExportAdapter pushes a reconciled invoice to an accounting system.
type AccountingExportAdapter interface {
	ExportInvoice(ctx context.Context, tenantID, invoiceID string, payload map[string]any) (map[string]any, error)
}

// ── Webhook channel ──────────────────────────────────────────

// WebhookTransport performs the outbound signed POST for a delivery attempt.
// Split out from the engine so tests can substitute a recording transport.
type WebhookTransport interface {
	Deliver(ctx context.Context, targetURL string, body []byte, headers map[string]string, timeout time.Duration) (statusCode int, err error)
}
