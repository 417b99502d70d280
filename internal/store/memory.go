// Package store — in-memory Store implementation.
// Used as a fallback when PostgreSQL is not configured (local dev, tests).
// Supports file-based snapshot persistence so data survives restarts.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Documents         map[string]*models.Document                 `json:"documents"`
	DocumentVersions  map[string][]*models.DocumentVersion        `json:"document_versions"`  // key: tenant:document
	Classifications   map[string][]*models.DocumentClassification `json:"classifications"`    // key: tenant:document
	ExtractedEntities map[string][]*models.ExtractedEntity        `json:"extracted_entities"` // key: tenant:document
	ValidationResults map[string][]*models.ValidationResult       `json:"validation_results"` // key: tenant:document

	ReviewTasks map[string]*models.ReviewTask   `json:"review_tasks"`
	Corrections map[string][]*models.Correction `json:"corrections"` // key: tenant:reviewTask

	Shipments            map[string]*models.Shipment        `json:"shipments"`
	AwbRecords           map[string]*models.AwbRecord       `json:"awb_records"`
	FreightInvoices      map[string]*models.FreightInvoice  `json:"freight_invoices"`
	Contracts            map[string]*models.Contract        `json:"contracts"`
	ThreeWayMatchResults []*models.ThreeWayMatchResult       `json:"three_way_match_results"`

	Discrepancies map[string]*models.Discrepancy `json:"discrepancies"`
	Disputes      map[string]*models.Dispute     `json:"disputes"`

	ComplianceChecks   []*models.ComplianceCheck             `json:"compliance_checks"`
	Alerts             []*models.Alert                       `json:"alerts"`
	Exports            map[string]*models.Export             `json:"exports"`
	VehicleImportCases map[string]*models.VehicleImportCase  `json:"vehicle_import_cases"`
	ModelVersions      map[string]*models.ModelVersion        `json:"model_versions"` // key: component

	Subscriptions map[string]*models.WebhookSubscription `json:"subscriptions"`
	Deliveries    map[string]*models.WebhookDelivery     `json:"deliveries"`

	IdempotencyKeys map[string]*models.IdempotencyKey `json:"idempotency_keys"` // key: tenant:key
	AuditEvents     []*models.AuditEvent              `json:"audit_events"`
}

// MemoryStore implements Store with in-memory maps guarded by a single
// RWMutex. Good enough for local development, tests, and single-process
// deployments; production deployments use the PostgreSQL-backed store.
type MemoryStore struct {
	mu sync.RWMutex

	documents         map[string]*models.Document // key: tenant:id
	documentVersions  map[string][]*models.DocumentVersion
	classifications   map[string][]*models.DocumentClassification
	extractedEntities map[string][]*models.ExtractedEntity
	validationResults map[string][]*models.ValidationResult

	reviewTasks map[string]*models.ReviewTask // key: tenant:id
	corrections map[string][]*models.Correction

	shipments            map[string]*models.Shipment
	awbRecords           map[string]*models.AwbRecord
	freightInvoices      map[string]*models.FreightInvoice
	contracts            map[string]*models.Contract
	threeWayMatchResults []*models.ThreeWayMatchResult

	discrepancies map[string]*models.Discrepancy
	disputes      map[string]*models.Dispute

	complianceChecks   []*models.ComplianceCheck
	alerts             []*models.Alert
	exports            map[string]*models.Export
	vehicleImportCases map[string]*models.VehicleImportCase
	modelVersions      map[string]*models.ModelVersion // key: component

	subscriptions map[string]*models.WebhookSubscription // key: tenant:id
	deliveries    map[string]*models.WebhookDelivery      // key: tenant:id

	idempotencyKeys map[string]*models.IdempotencyKey // key: tenant:key
	auditEvents     []*models.AuditEvent

	// Persistence
	snapshotPath string
	saveMu       sync.Mutex
	saveCh       chan struct{}
	doneCh       chan struct{}
}

// NewMemoryStore creates a new in-memory store.
// If NEXUSCARGO_DATA_DIR is set, data is persisted to a JSON file there.
// Otherwise defaults to ~/.nexuscargo/data.json.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		documents:          make(map[string]*models.Document),
		documentVersions:   make(map[string][]*models.DocumentVersion),
		classifications:    make(map[string][]*models.DocumentClassification),
		extractedEntities:  make(map[string][]*models.ExtractedEntity),
		validationResults:  make(map[string][]*models.ValidationResult),
		reviewTasks:        make(map[string]*models.ReviewTask),
		corrections:        make(map[string][]*models.Correction),
		shipments:          make(map[string]*models.Shipment),
		awbRecords:         make(map[string]*models.AwbRecord),
		freightInvoices:    make(map[string]*models.FreightInvoice),
		contracts:            make(map[string]*models.Contract),
		threeWayMatchResults: make([]*models.ThreeWayMatchResult, 0),
		discrepancies:        make(map[string]*models.Discrepancy),
		disputes:           make(map[string]*models.Dispute),
		exports:            make(map[string]*models.Export),
		vehicleImportCases: make(map[string]*models.VehicleImportCase),
		modelVersions:      make(map[string]*models.ModelVersion),
		subscriptions:      make(map[string]*models.WebhookSubscription),
		deliveries:         make(map[string]*models.WebhookDelivery),
		idempotencyKeys:    make(map[string]*models.IdempotencyKey),
		auditEvents:        make([]*models.AuditEvent, 0),
		saveCh:             make(chan struct{}, 1),
		doneCh:             make(chan struct{}),
	}

	dataDir := os.Getenv("NEXUSCARGO_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			dataDir = filepath.Join(home, ".nexuscargo")
		}
	}
	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("memory store configured")
	return m
}

func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond)
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Documents:          m.documents,
		DocumentVersions:   m.documentVersions,
		Classifications:    m.classifications,
		ExtractedEntities:  m.extractedEntities,
		ValidationResults:  m.validationResults,
		ReviewTasks:        m.reviewTasks,
		Corrections:        m.corrections,
		Shipments:          m.shipments,
		AwbRecords:         m.awbRecords,
		FreightInvoices:      m.freightInvoices,
		Contracts:            m.contracts,
		ThreeWayMatchResults: m.threeWayMatchResults,
		Discrepancies:        m.discrepancies,
		Disputes:           m.disputes,
		ComplianceChecks:   m.complianceChecks,
		Alerts:             m.alerts,
		Exports:            m.exports,
		VehicleImportCases: m.vehicleImportCases,
		ModelVersions:      m.modelVersions,
		Subscriptions:      m.subscriptions,
		Deliveries:         m.deliveries,
		IdempotencyKeys:    m.idempotencyKeys,
		AuditEvents:        m.auditEvents,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("failed to rename snapshot")
		return
	}
	log.Debug().Str("path", m.snapshotPath).Msg("snapshot saved")
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("no snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Documents != nil {
		m.documents = snap.Documents
	}
	if snap.DocumentVersions != nil {
		m.documentVersions = snap.DocumentVersions
	}
	if snap.Classifications != nil {
		m.classifications = snap.Classifications
	}
	if snap.ExtractedEntities != nil {
		m.extractedEntities = snap.ExtractedEntities
	}
	if snap.ValidationResults != nil {
		m.validationResults = snap.ValidationResults
	}
	if snap.ReviewTasks != nil {
		m.reviewTasks = snap.ReviewTasks
	}
	if snap.Corrections != nil {
		m.corrections = snap.Corrections
	}
	if snap.Shipments != nil {
		m.shipments = snap.Shipments
	}
	if snap.AwbRecords != nil {
		m.awbRecords = snap.AwbRecords
	}
	if snap.FreightInvoices != nil {
		m.freightInvoices = snap.FreightInvoices
	}
	if snap.Contracts != nil {
		m.contracts = snap.Contracts
	}
	if snap.ThreeWayMatchResults != nil {
		m.threeWayMatchResults = snap.ThreeWayMatchResults
	}
	if snap.Discrepancies != nil {
		m.discrepancies = snap.Discrepancies
	}
	if snap.Disputes != nil {
		m.disputes = snap.Disputes
	}
	if snap.ComplianceChecks != nil {
		m.complianceChecks = snap.ComplianceChecks
	}
	if snap.Alerts != nil {
		m.alerts = snap.Alerts
	}
	if snap.Exports != nil {
		m.exports = snap.Exports
	}
	if snap.VehicleImportCases != nil {
		m.vehicleImportCases = snap.VehicleImportCases
	}
	if snap.ModelVersions != nil {
		m.modelVersions = snap.ModelVersions
	}
	if snap.Subscriptions != nil {
		m.subscriptions = snap.Subscriptions
	}
	if snap.Deliveries != nil {
		m.deliveries = snap.Deliveries
	}
	if snap.IdempotencyKeys != nil {
		m.idempotencyKeys = snap.IdempotencyKeys
	}
	if snap.AuditEvents != nil {
		m.auditEvents = snap.AuditEvents
	}

	log.Info().
		Int("documents", len(m.documents)).
		Int("review_tasks", len(m.reviewTasks)).
		Int("discrepancies", len(m.discrepancies)).
		Int("deliveries", len(m.deliveries)).
		Str("path", m.snapshotPath).
		Msg("snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the background save goroutine and forces a final snapshot
// write. Safe to call multiple times (second call is a no-op).
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}
	if m.snapshotPath != "" {
		log.Info().Msg("flushing final snapshot before shutdown...")
		m.saveSnapshot()
	}
	log.Info().Msg("memory store closed")
	return nil
}

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

func key(parts ...string) string {
	k := ""
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// ── Document Store ───────────────────────────────────────────

func (m *MemoryStore) CreateDocument(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	cp := *doc
	m.documents[key(doc.TenantID, doc.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, tenantID, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "document", Key: id}
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) UpdateDocument(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	cp := *doc
	cp.UpdatedAt = time.Now().UTC()
	m.documents[key(doc.TenantID, doc.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, tenantID string, filter ListFilter) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Document
	for _, d := range m.documents {
		if d.TenantID != tenantID {
			continue
		}
		if filter.Since != nil && d.CreatedAt.Before(*filter.Since) {
			continue
		}
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	result = applyOffsetLimit(result, filter)
	return result, nil
}

func (m *MemoryStore) CreateDocumentVersion(_ context.Context, v *models.DocumentVersion) error {
	m.mu.Lock()
	cp := *v
	k := key(v.TenantID, v.DocumentID)
	m.documentVersions[k] = append(m.documentVersions[k], &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListDocumentVersions(_ context.Context, tenantID, documentID string) ([]models.DocumentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.documentVersions[key(tenantID, documentID)]
	result := make([]models.DocumentVersion, len(versions))
	for i, v := range versions {
		result[i] = *v
	}
	return result, nil
}

func (m *MemoryStore) CreateClassification(_ context.Context, c *models.DocumentClassification) error {
	m.mu.Lock()
	cp := *c
	k := key(c.TenantID, c.DocumentID)
	m.classifications[k] = append(m.classifications[k], &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) CreateExtractedEntity(_ context.Context, e *models.ExtractedEntity) error {
	m.mu.Lock()
	cp := *e
	k := key(e.TenantID, e.DocumentID)
	m.extractedEntities[k] = append(m.extractedEntities[k], &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListExtractedEntities(_ context.Context, tenantID, documentID string) ([]models.ExtractedEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entities := m.extractedEntities[key(tenantID, documentID)]
	result := make([]models.ExtractedEntity, len(entities))
	for i, e := range entities {
		result[i] = *e
	}
	return result, nil
}

func (m *MemoryStore) CreateValidationResult(_ context.Context, r *models.ValidationResult) error {
	m.mu.Lock()
	cp := *r
	k := key(r.TenantID, r.DocumentID)
	m.validationResults[k] = append(m.validationResults[k], &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListValidationResults(_ context.Context, tenantID, documentID string) ([]models.ValidationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.validationResults[key(tenantID, documentID)]
	out := make([]models.ValidationResult, len(results))
	for i, r := range results {
		out[i] = *r
	}
	return out, nil
}

// ── Review Store ─────────────────────────────────────────────
//
// GetOpenReviewTaskForDocument backs the "at most one open review task per
// (tenant, document)" invariant: callers must check this before creating a
// new task rather than relying on the store to reject duplicates, since the
// check-then-act needs to happen while the caller holds its own service-level
// serialization around document status transitions.

func (m *MemoryStore) CreateReviewTask(_ context.Context, task *models.ReviewTask) error {
	m.mu.Lock()
	cp := *task
	m.reviewTasks[key(task.TenantID, task.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetReviewTask(_ context.Context, tenantID, id string) (*models.ReviewTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.reviewTasks[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "review_task", Key: id}
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) UpdateReviewTask(_ context.Context, task *models.ReviewTask) error {
	m.mu.Lock()
	cp := *task
	m.reviewTasks[key(task.TenantID, task.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetOpenReviewTaskForDocument(_ context.Context, tenantID, documentID string) (*models.ReviewTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.reviewTasks {
		if t.TenantID == tenantID && t.DocumentID == documentID && t.Status == models.ReviewOpen {
			cp := *t
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "review_task", Key: documentID}
}

func (m *MemoryStore) ListReviewTasks(_ context.Context, tenantID string, status models.ReviewStatus, filter ListFilter) ([]models.ReviewTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.ReviewTask
	for _, t := range m.reviewTasks {
		if t.TenantID != tenantID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	result = applyOffsetLimit(result, filter)
	return result, nil
}

func (m *MemoryStore) CreateCorrection(_ context.Context, c *models.Correction) error {
	m.mu.Lock()
	cp := *c
	k := key(c.TenantID, c.ReviewTaskID)
	m.corrections[k] = append(m.corrections[k], &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListCorrections(_ context.Context, tenantID, reviewTaskID string) ([]models.Correction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	corrections := m.corrections[key(tenantID, reviewTaskID)]
	out := make([]models.Correction, len(corrections))
	for i, c := range corrections {
		out[i] = *c
	}
	return out, nil
}

// ── Shipment Store ───────────────────────────────────────────

func (m *MemoryStore) GetShipment(_ context.Context, tenantID, id string) (*models.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shipments[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "shipment", Key: id}
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) CreateShipment(_ context.Context, s *models.Shipment) error {
	m.mu.Lock()
	cp := *s
	m.shipments[key(s.TenantID, s.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Discrepancy Store ────────────────────────────────────────

func (m *MemoryStore) CreateDiscrepancy(_ context.Context, d *models.Discrepancy) error {
	m.mu.Lock()
	cp := *d
	m.discrepancies[key(d.TenantID, d.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetDiscrepancy(_ context.Context, tenantID, id string) (*models.Discrepancy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.discrepancies[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "discrepancy", Key: id}
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) UpdateDiscrepancy(_ context.Context, d *models.Discrepancy) error {
	m.mu.Lock()
	cp := *d
	m.discrepancies[key(d.TenantID, d.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) CreateDispute(_ context.Context, d *models.Dispute) error {
	m.mu.Lock()
	cp := *d
	m.disputes[key(d.TenantID, d.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateDispute(_ context.Context, d *models.Dispute) error {
	m.mu.Lock()
	cp := *d
	m.disputes[key(d.TenantID, d.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetDispute(_ context.Context, tenantID, id string) (*models.Dispute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.disputes[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "dispute", Key: id}
	}
	cp := *d
	return &cp, nil
}

// ── Compliance / Domain Workflow Store ───────────────────────

func (m *MemoryStore) CreateComplianceCheck(_ context.Context, c *models.ComplianceCheck) error {
	m.mu.Lock()
	cp := *c
	m.complianceChecks = append(m.complianceChecks, &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) CreateAlert(_ context.Context, a *models.Alert) error {
	m.mu.Lock()
	cp := *a
	m.alerts = append(m.alerts, &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) CreateExport(_ context.Context, e *models.Export) error {
	m.mu.Lock()
	cp := *e
	m.exports[key(e.TenantID, e.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetExport(_ context.Context, tenantID, id string) (*models.Export, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exports[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "export", Key: id}
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) UpdateExport(_ context.Context, e *models.Export) error {
	m.mu.Lock()
	cp := *e
	m.exports[key(e.TenantID, e.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) CreateVehicleImportCase(_ context.Context, v *models.VehicleImportCase) error {
	m.mu.Lock()
	cp := *v
	m.vehicleImportCases[key(v.TenantID, v.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) CreateAwbRecord(_ context.Context, a *models.AwbRecord) error {
	m.mu.Lock()
	cp := *a
	m.awbRecords[key(a.TenantID, a.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) CreateFreightInvoice(_ context.Context, f *models.FreightInvoice) error {
	m.mu.Lock()
	cp := *f
	m.freightInvoices[key(f.TenantID, f.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetFreightInvoice(_ context.Context, tenantID, id string) (*models.FreightInvoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.freightInvoices[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "freight_invoice", Key: id}
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) CreateThreeWayMatchResult(_ context.Context, r *models.ThreeWayMatchResult) error {
	m.mu.Lock()
	cp := *r
	m.threeWayMatchResults = append(m.threeWayMatchResults, &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Webhook Store ────────────────────────────────────────────

func (m *MemoryStore) CreateSubscription(_ context.Context, sub *models.WebhookSubscription) error {
	m.mu.Lock()
	cp := *sub
	m.subscriptions[key(sub.TenantID, sub.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetSubscription(_ context.Context, tenantID, id string) (*models.WebhookSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "webhook_subscription", Key: id}
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListActiveSubscriptionsForEvent(_ context.Context, tenantID, eventType string) ([]models.WebhookSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.WebhookSubscription
	for _, s := range m.subscriptions {
		if s.TenantID != tenantID || !s.Active {
			continue
		}
		if s.EventFilter != "" && s.EventFilter != "*" && s.EventFilter != eventType {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

// CreateDelivery enforces the unique (tenant, idempotency_key) invariant
// described in §3 before inserting — a caller that tries to enqueue the same
// delivery twice gets ErrConflict rather than a silent duplicate.
func (m *MemoryStore) CreateDelivery(_ context.Context, d *models.WebhookDelivery) error {
	m.mu.Lock()
	for _, existing := range m.deliveries {
		if existing.TenantID == d.TenantID && existing.IdempotencyKey == d.IdempotencyKey {
			m.mu.Unlock()
			return &ErrConflict{Entity: "webhook_delivery", Key: d.IdempotencyKey, Reason: "idempotency key already used for this tenant"}
		}
	}
	cp := *d
	m.deliveries[key(d.TenantID, d.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetDeliveryByIdempotencyKey(_ context.Context, tenantID, idempotencyKey string) (*models.WebhookDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.deliveries {
		if d.TenantID == tenantID && d.IdempotencyKey == idempotencyKey {
			cp := *d
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "webhook_delivery", Key: idempotencyKey}
}

func (m *MemoryStore) UpdateDelivery(_ context.Context, d *models.WebhookDelivery) error {
	m.mu.Lock()
	cp := *d
	m.deliveries[key(d.TenantID, d.ID)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetDelivery(_ context.Context, tenantID, id string) (*models.WebhookDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deliveries[key(tenantID, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: "webhook_delivery", Key: id}
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) ClaimDueDeliveries(_ context.Context, tenantID string, batchSize int, now time.Time) ([]models.WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.WebhookDelivery
	for _, d := range m.deliveries {
		if tenantID != "" && d.TenantID != tenantID {
			continue
		}
		if d.Status != models.DeliveryPending && d.Status != models.DeliveryRetryScheduled {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, d)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if batchSize > 0 && len(due) > batchSize {
		due = due[:batchSize]
	}
	result := make([]models.WebhookDelivery, len(due))
	for i, d := range due {
		result[i] = *d
	}
	return result, nil
}

func (m *MemoryStore) ListDeadLettered(_ context.Context, tenantID string, ids []string, limit int) ([]models.WebhookDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var result []models.WebhookDelivery
	for _, d := range m.deliveries {
		if d.TenantID != tenantID || d.Status != models.DeliveryDeadLettered {
			continue
		}
		if len(wanted) > 0 && !wanted[d.ID] {
			continue
		}
		result = append(result, *d)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// ── Idempotency Store ────────────────────────────────────────

func (m *MemoryStore) GetIdempotencyRecord(_ context.Context, tenantID, idemKey string) (*models.IdempotencyKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.idempotencyKeys[key(tenantID, idemKey)]
	if !ok {
		return nil, &ErrNotFound{Entity: "idempotency_key", Key: idemKey}
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) SaveIdempotencyRecord(_ context.Context, rec *models.IdempotencyKey) error {
	m.mu.Lock()
	cp := *rec
	m.idempotencyKeys[key(rec.TenantID, rec.IdempotencyKey)] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Audit Store ──────────────────────────────────────────────

func (m *MemoryStore) CreateAuditEvent(_ context.Context, event *models.AuditEvent) error {
	m.mu.Lock()
	cp := *event
	m.auditEvents = append(m.auditEvents, &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListAuditEvents(_ context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.AuditEvent
	for i := len(m.auditEvents) - 1; i >= 0; i-- { // newest first
		e := m.auditEvents[i]
		if filter.TenantID != "" && e.TenantID != filter.TenantID {
			continue
		}
		if filter.Entity != "" && e.EntityType != filter.Entity {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
			continue
		}
		result = append(result, *e)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// ── Model Version Store ──────────────────────────────────────

func (m *MemoryStore) RegisterModelVersion(_ context.Context, v *models.ModelVersion) error {
	m.mu.Lock()
	cp := *v
	m.modelVersions[v.Component] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ActiveModelVersion(_ context.Context, component string) (*models.ModelVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.modelVersions[component]
	if !ok {
		return nil, &ErrNotFound{Entity: "model_version", Key: component}
	}
	cp := *v
	return &cp, nil
}

// ── helpers ──────────────────────────────────────────────────

func applyOffsetLimit[T any](items []T, filter ListFilter) []T {
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
