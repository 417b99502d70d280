package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// PostgresStore implements Store on top of a pgx connection pool. It is the
// production-path implementation; the in-memory store is used for local dev
// and tests where a real database is inconvenient.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool against connURL and runs migrations.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("postgres store initialized")
	return s, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the schema if it does not already exist. A deployment that
// wants real migration tooling (golang-migrate, atlas) can replace this with
// an external runner; it is kept inline here because the platform is still
// young enough that one idempotent DDL script is sufficient.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	external_id TEXT,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	status TEXT NOT NULL,
	storage_uri TEXT NOT NULL,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS document_versions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	version_number INT NOT NULL,
	storage_uri TEXT NOT NULL,
	checksum TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_doc_versions_doc ON document_versions (tenant_id, document_id);

CREATE TABLE IF NOT EXISTS document_classifications (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	model_version TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS extracted_entities (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	field_name TEXT NOT NULL,
	field_value TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	source_model TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_entities_doc ON extracted_entities (tenant_id, document_id);

CREATE TABLE IF NOT EXISTS validation_results (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	rule_code TEXT NOT NULL,
	passed BOOLEAN NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_validation_doc ON validation_results (tenant_id, document_id);

CREATE TABLE IF NOT EXISTS review_tasks (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	reason TEXT NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	assigned_to TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_review_tasks_tenant ON review_tasks (tenant_id, status);
-- One open review task per (tenant, document): enforced with a partial
-- unique index rather than a service-side check alone, so a race between two
-- ingestion workers still can't create two open tasks for the same document.
CREATE UNIQUE INDEX IF NOT EXISTS uq_review_tasks_open_per_doc
	ON review_tasks (tenant_id, document_id) WHERE status = 'open';

CREATE TABLE IF NOT EXISTS corrections (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	review_task_id TEXT NOT NULL,
	field_name TEXT NOT NULL,
	old_value TEXT,
	new_value TEXT,
	reason_tag TEXT,
	corrected_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS shipments (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	shipment_ref TEXT NOT NULL,
	status TEXT NOT NULL,
	origin TEXT,
	destination TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS awb_records (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	shipment_id TEXT,
	awb_number TEXT NOT NULL,
	carrier TEXT,
	shipper TEXT,
	consignee TEXT,
	weight_kg DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS freight_invoices (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	shipment_id TEXT NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	contract_number TEXT NOT NULL,
	carrier TEXT,
	valid_from TIMESTAMPTZ,
	valid_to TIMESTAMPTZ,
	terms JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS three_way_match_results (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	invoice_id TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	shipment_id TEXT NOT NULL,
	matched BOOLEAN NOT NULL,
	mismatch_details JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS discrepancies (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	shipment_id TEXT NOT NULL,
	discrepancy_type TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	details JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_discrepancies_tenant ON discrepancies (tenant_id, status);

CREATE TABLE IF NOT EXISTS disputes (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	discrepancy_id TEXT NOT NULL,
	status TEXT NOT NULL,
	opened_by TEXT,
	resolution_notes TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	resolved_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS compliance_checks (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	subject_type TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	check_type TEXT NOT NULL,
	result TEXT NOT NULL,
	details JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	acknowledged_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	acknowledged_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS exports (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	export_ref TEXT NOT NULL,
	destination_country TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS vehicle_import_cases (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	case_ref TEXT NOT NULL,
	vin TEXT NOT NULL,
	status TEXT NOT NULL,
	expiry_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS model_versions (
	id TEXT PRIMARY KEY,
	component TEXT NOT NULL,
	version TEXT NOT NULL,
	activated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	metrics JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_model_versions_component ON model_versions (component, activated_at DESC);

CREATE TABLE IF NOT EXISTS webhook_subscriptions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	target_url TEXT NOT NULL,
	secret_ref TEXT NOT NULL,
	event_filter TEXT NOT NULL DEFAULT '*',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_tenant ON webhook_subscriptions (tenant_id, active);

CREATE TABLE IF NOT EXISTS webhook_deliveries (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	subscription_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	attempt_count INT NOT NULL DEFAULT 0,
	last_error TEXT,
	idempotency_key TEXT NOT NULL,
	next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_attempt_at TIMESTAMPTZ,
	delivered_at TIMESTAMPTZ,
	dead_lettered_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (tenant_id, idempotency_key)
);
CREATE INDEX IF NOT EXISTS idx_deliveries_due ON webhook_deliveries (tenant_id, status, next_attempt_at);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	idempotency_key TEXT NOT NULL,
	request_hash TEXT NOT NULL,
	response_payload BYTEA,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (tenant_id, idempotency_key)
);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	actor_id TEXT,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_tenant_entity ON audit_events (tenant_id, entity_type, entity_id, created_at DESC);
`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func toJSON(v map[string]any) []byte {
	if v == nil {
		v = map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func fromJSON(b []byte) map[string]any {
	var v map[string]any
	if len(b) == 0 {
		return map[string]any{}
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return map[string]any{}
	}
	return v
}

// ── Document Store ───────────────────────────────────────────

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, tenant_id, external_id, file_name, content_type, status, storage_uri, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, doc.ID, doc.TenantID, doc.ExternalID, doc.FileName, doc.ContentType, doc.Status, doc.StorageURI, doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (s *PostgresStore) GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, external_id, file_name, content_type, status, storage_uri, created_by, created_at, updated_at
		FROM documents WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	var d models.Document
	if err := row.Scan(&d.ID, &d.TenantID, &d.ExternalID, &d.FileName, &d.ContentType, &d.Status, &d.StorageURI, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "document", Key: id}
		}
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET external_id=$3, file_name=$4, content_type=$5, status=$6, storage_uri=$7, updated_at=$8
		WHERE tenant_id=$1 AND id=$2
	`, doc.TenantID, doc.ID, doc.ExternalID, doc.FileName, doc.ContentType, doc.Status, doc.StorageURI, doc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "document", Key: doc.ID}
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, tenantID string, filter ListFilter) ([]models.Document, error) {
	limit, offset := normalizeLimitOffset(filter)
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, external_id, file_name, content_type, status, storage_uri, created_by, created_at, updated_at
		FROM documents
		WHERE tenant_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, tenantID, filter.Since, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.TenantID, &d.ExternalID, &d.FileName, &d.ContentType, &d.Status, &d.StorageURI, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *PostgresStore) CreateDocumentVersion(ctx context.Context, v *models.DocumentVersion) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_versions (id, document_id, tenant_id, version_number, storage_uri, checksum, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, v.ID, v.DocumentID, v.TenantID, v.VersionNumber, v.StorageURI, v.Checksum, v.CreatedAt)
	return err
}

func (s *PostgresStore) ListDocumentVersions(ctx context.Context, tenantID, documentID string) ([]models.DocumentVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, tenant_id, version_number, storage_uri, checksum, created_at
		FROM document_versions WHERE tenant_id=$1 AND document_id=$2 ORDER BY version_number
	`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.DocumentVersion
	for rows.Next() {
		var v models.DocumentVersion
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.TenantID, &v.VersionNumber, &v.StorageURI, &v.Checksum, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateClassification(ctx context.Context, c *models.DocumentClassification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_classifications (id, document_id, tenant_id, doc_type, confidence, model_version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.DocumentID, c.TenantID, c.DocType, c.Confidence, c.ModelVersion, c.CreatedAt)
	return err
}

func (s *PostgresStore) CreateExtractedEntity(ctx context.Context, e *models.ExtractedEntity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO extracted_entities (id, document_id, tenant_id, field_name, field_value, confidence, source_model, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.DocumentID, e.TenantID, e.FieldName, e.FieldValue, e.Confidence, e.SourceModel, e.CreatedAt)
	return err
}

func (s *PostgresStore) ListExtractedEntities(ctx context.Context, tenantID, documentID string) ([]models.ExtractedEntity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, tenant_id, field_name, field_value, confidence, source_model, created_at
		FROM extracted_entities WHERE tenant_id=$1 AND document_id=$2 ORDER BY created_at
	`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ExtractedEntity
	for rows.Next() {
		var e models.ExtractedEntity
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.TenantID, &e.FieldName, &e.FieldValue, &e.Confidence, &e.SourceModel, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateValidationResult(ctx context.Context, r *models.ValidationResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO validation_results (id, document_id, tenant_id, rule_code, passed, severity, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, r.ID, r.DocumentID, r.TenantID, r.RuleCode, r.Passed, r.Severity, r.Message, r.CreatedAt)
	return err
}

func (s *PostgresStore) ListValidationResults(ctx context.Context, tenantID, documentID string) ([]models.ValidationResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, tenant_id, rule_code, passed, severity, message, created_at
		FROM validation_results WHERE tenant_id=$1 AND document_id=$2 ORDER BY created_at
	`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ValidationResult
	for rows.Next() {
		var r models.ValidationResult
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.TenantID, &r.RuleCode, &r.Passed, &r.Severity, &r.Message, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ── Review Store ─────────────────────────────────────────────

// CreateReviewTask relies on uq_review_tasks_open_per_doc (see schemaDDL) to
// enforce at-most-one-open-task-per-document atomically: a unique constraint
// violation here is translated into ErrConflict rather than surfacing the raw
// Postgres error to callers.
func (s *PostgresStore) CreateReviewTask(ctx context.Context, task *models.ReviewTask) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_tasks (id, tenant_id, document_id, reason, source, status, confidence, assigned_to, created_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, task.ID, task.TenantID, task.DocumentID, task.Reason, task.Source, task.Status, task.Confidence, task.AssignedTo, task.CreatedAt, task.CompletedAt)
	if isUniqueViolation(err) {
		return &ErrConflict{Entity: "review_task", Key: task.DocumentID, Reason: "an open review task already exists for this document"}
	}
	return err
}

func (s *PostgresStore) GetReviewTask(ctx context.Context, tenantID, id string) (*models.ReviewTask, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, document_id, reason, source, status, confidence, assigned_to, created_at, completed_at
		FROM review_tasks WHERE tenant_id=$1 AND id=$2
	`, tenantID, id)
	var t models.ReviewTask
	if err := row.Scan(&t.ID, &t.TenantID, &t.DocumentID, &t.Reason, &t.Source, &t.Status, &t.Confidence, &t.AssignedTo, &t.CreatedAt, &t.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "review_task", Key: id}
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) UpdateReviewTask(ctx context.Context, task *models.ReviewTask) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE review_tasks SET status=$3, confidence=$4, assigned_to=$5, completed_at=$6
		WHERE tenant_id=$1 AND id=$2
	`, task.TenantID, task.ID, task.Status, task.Confidence, task.AssignedTo, task.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "review_task", Key: task.ID}
	}
	return nil
}

func (s *PostgresStore) GetOpenReviewTaskForDocument(ctx context.Context, tenantID, documentID string) (*models.ReviewTask, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, document_id, reason, source, status, confidence, assigned_to, created_at, completed_at
		FROM review_tasks WHERE tenant_id=$1 AND document_id=$2 AND status='open'
	`, tenantID, documentID)
	var t models.ReviewTask
	if err := row.Scan(&t.ID, &t.TenantID, &t.DocumentID, &t.Reason, &t.Source, &t.Status, &t.Confidence, &t.AssignedTo, &t.CreatedAt, &t.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "review_task", Key: documentID}
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) ListReviewTasks(ctx context.Context, tenantID string, status models.ReviewStatus, filter ListFilter) ([]models.ReviewTask, error) {
	limit, offset := normalizeLimitOffset(filter)
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, document_id, reason, source, status, confidence, assigned_to, created_at, completed_at
		FROM review_tasks
		WHERE tenant_id=$1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, tenantID, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ReviewTask
	for rows.Next() {
		var t models.ReviewTask
		if err := rows.Scan(&t.ID, &t.TenantID, &t.DocumentID, &t.Reason, &t.Source, &t.Status, &t.Confidence, &t.AssignedTo, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateCorrection(ctx context.Context, c *models.Correction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO corrections (id, tenant_id, review_task_id, field_name, old_value, new_value, reason_tag, corrected_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, c.ID, c.TenantID, c.ReviewTaskID, c.FieldName, c.OldValue, c.NewValue, c.ReasonTag, c.CorrectedBy, c.CreatedAt)
	return err
}

func (s *PostgresStore) ListCorrections(ctx context.Context, tenantID, reviewTaskID string) ([]models.Correction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, review_task_id, field_name, old_value, new_value, reason_tag, corrected_by, created_at
		FROM corrections WHERE tenant_id=$1 AND review_task_id=$2 ORDER BY created_at
	`, tenantID, reviewTaskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Correction
	for rows.Next() {
		var c models.Correction
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ReviewTaskID, &c.FieldName, &c.OldValue, &c.NewValue, &c.ReasonTag, &c.CorrectedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ── Shipment Store ───────────────────────────────────────────

func (s *PostgresStore) GetShipment(ctx context.Context, tenantID, id string) (*models.Shipment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, shipment_ref, status, origin, destination, created_at
		FROM shipments WHERE tenant_id=$1 AND id=$2
	`, tenantID, id)
	var sh models.Shipment
	if err := row.Scan(&sh.ID, &sh.TenantID, &sh.ShipmentRef, &sh.Status, &sh.Origin, &sh.Destination, &sh.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "shipment", Key: id}
		}
		return nil, err
	}
	return &sh, nil
}

func (s *PostgresStore) CreateShipment(ctx context.Context, sh *models.Shipment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shipments (id, tenant_id, shipment_ref, status, origin, destination, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sh.ID, sh.TenantID, sh.ShipmentRef, sh.Status, sh.Origin, sh.Destination, sh.CreatedAt)
	return err
}

// ── Discrepancy Store ────────────────────────────────────────

func (s *PostgresStore) CreateDiscrepancy(ctx context.Context, d *models.Discrepancy) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO discrepancies (id, tenant_id, shipment_id, discrepancy_type, score, details, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, d.ID, d.TenantID, d.ShipmentID, d.DiscrepancyType, d.Score, toJSON(d.Details), d.Status, d.CreatedAt)
	return err
}

func (s *PostgresStore) GetDiscrepancy(ctx context.Context, tenantID, id string) (*models.Discrepancy, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, shipment_id, discrepancy_type, score, details, status, created_at
		FROM discrepancies WHERE tenant_id=$1 AND id=$2
	`, tenantID, id)
	var d models.Discrepancy
	var details []byte
	if err := row.Scan(&d.ID, &d.TenantID, &d.ShipmentID, &d.DiscrepancyType, &d.Score, &details, &d.Status, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "discrepancy", Key: id}
		}
		return nil, err
	}
	d.Details = fromJSON(details)
	return &d, nil
}

func (s *PostgresStore) UpdateDiscrepancy(ctx context.Context, d *models.Discrepancy) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE discrepancies SET status=$3, details=$4 WHERE tenant_id=$1 AND id=$2
	`, d.TenantID, d.ID, d.Status, toJSON(d.Details))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "discrepancy", Key: d.ID}
	}
	return nil
}

func (s *PostgresStore) CreateDispute(ctx context.Context, d *models.Dispute) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO disputes (id, tenant_id, discrepancy_id, status, opened_by, resolution_notes, created_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, d.ID, d.TenantID, d.DiscrepancyID, d.Status, d.OpenedBy, d.ResolutionNotes, d.CreatedAt, d.ResolvedAt)
	return err
}

func (s *PostgresStore) UpdateDispute(ctx context.Context, d *models.Dispute) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE disputes SET status=$3, resolution_notes=$4, resolved_at=$5
		WHERE tenant_id=$1 AND id=$2
	`, d.TenantID, d.ID, d.Status, d.ResolutionNotes, d.ResolvedAt)
	return err
}

func (s *PostgresStore) GetDispute(ctx context.Context, tenantID, id string) (*models.Dispute, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, discrepancy_id, status, opened_by, resolution_notes, created_at, resolved_at
		FROM disputes WHERE tenant_id=$1 AND id=$2
	`, tenantID, id)
	var d models.Dispute
	if err := row.Scan(&d.ID, &d.TenantID, &d.DiscrepancyID, &d.Status, &d.OpenedBy, &d.ResolutionNotes, &d.CreatedAt, &d.ResolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "dispute", Key: id}
		}
		return nil, err
	}
	return &d, nil
}

// ── Compliance / Domain Workflow Store ───────────────────────

func (s *PostgresStore) CreateComplianceCheck(ctx context.Context, c *models.ComplianceCheck) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO compliance_checks (id, tenant_id, subject_type, subject_id, check_type, result, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, c.ID, c.TenantID, c.SubjectType, c.SubjectID, c.CheckType, c.Result, toJSON(c.Details), c.CreatedAt)
	return err
}

func (s *PostgresStore) CreateAlert(ctx context.Context, a *models.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, tenant_id, alert_type, severity, message, acknowledged_by, created_at, acknowledged_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.ID, a.TenantID, a.AlertType, a.Severity, a.Message, a.AcknowledgedBy, a.CreatedAt, a.AcknowledgedAt)
	return err
}

func (s *PostgresStore) CreateExport(ctx context.Context, e *models.Export) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exports (id, tenant_id, export_ref, destination_country, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.ID, e.TenantID, e.ExportRef, e.DestinationCountry, e.Status, e.CreatedAt)
	return err
}

func (s *PostgresStore) GetExport(ctx context.Context, tenantID, id string) (*models.Export, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, export_ref, destination_country, status, created_at
		FROM exports WHERE tenant_id=$1 AND id=$2
	`, tenantID, id)
	var e models.Export
	if err := row.Scan(&e.ID, &e.TenantID, &e.ExportRef, &e.DestinationCountry, &e.Status, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "export", Key: id}
		}
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) UpdateExport(ctx context.Context, e *models.Export) error {
	tag, err := s.pool.Exec(ctx, `UPDATE exports SET status=$3 WHERE tenant_id=$1 AND id=$2`, e.TenantID, e.ID, e.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "export", Key: e.ID}
	}
	return nil
}

func (s *PostgresStore) CreateVehicleImportCase(ctx context.Context, v *models.VehicleImportCase) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vehicle_import_cases (id, tenant_id, case_ref, vin, status, expiry_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, v.ID, v.TenantID, v.CaseRef, v.VIN, v.Status, v.ExpiryDate, v.CreatedAt)
	return err
}

func (s *PostgresStore) CreateAwbRecord(ctx context.Context, a *models.AwbRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO awb_records (id, tenant_id, shipment_id, awb_number, carrier, shipper, consignee, weight_kg, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.TenantID, a.ShipmentID, a.AwbNumber, a.Carrier, a.Shipper, a.Consignee, a.WeightKg, a.CreatedAt)
	return err
}

func (s *PostgresStore) CreateFreightInvoice(ctx context.Context, f *models.FreightInvoice) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO freight_invoices (id, tenant_id, invoice_number, shipment_id, amount, currency, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, f.ID, f.TenantID, f.InvoiceNumber, f.ShipmentID, f.Amount, f.Currency, f.Status, f.CreatedAt)
	return err
}

func (s *PostgresStore) GetFreightInvoice(ctx context.Context, tenantID, id string) (*models.FreightInvoice, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, invoice_number, shipment_id, amount, currency, status, created_at
		FROM freight_invoices WHERE tenant_id=$1 AND id=$2
	`, tenantID, id)
	var f models.FreightInvoice
	if err := row.Scan(&f.ID, &f.TenantID, &f.InvoiceNumber, &f.ShipmentID, &f.Amount, &f.Currency, &f.Status, &f.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "freight_invoice", Key: id}
		}
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) CreateThreeWayMatchResult(ctx context.Context, m *models.ThreeWayMatchResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO three_way_match_results (id, tenant_id, invoice_id, contract_id, shipment_id, matched, mismatch_details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, m.ID, m.TenantID, m.InvoiceID, m.ContractID, m.ShipmentID, m.Matched, toJSON(m.MismatchDetails), m.CreatedAt)
	return err
}

// ── Webhook Store ────────────────────────────────────────────

func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *models.WebhookSubscription) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_subscriptions (id, tenant_id, target_url, secret_ref, event_filter, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sub.ID, sub.TenantID, sub.TargetURL, sub.SecretRef, sub.EventFilter, sub.Active, sub.CreatedAt)
	return err
}

func (s *PostgresStore) GetSubscription(ctx context.Context, tenantID, id string) (*models.WebhookSubscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, target_url, secret_ref, event_filter, active, created_at
		FROM webhook_subscriptions WHERE tenant_id=$1 AND id=$2
	`, tenantID, id)
	var sub models.WebhookSubscription
	if err := row.Scan(&sub.ID, &sub.TenantID, &sub.TargetURL, &sub.SecretRef, &sub.EventFilter, &sub.Active, &sub.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "webhook_subscription", Key: id}
		}
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) ListActiveSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]models.WebhookSubscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, target_url, secret_ref, event_filter, active, created_at
		FROM webhook_subscriptions
		WHERE tenant_id=$1 AND active=TRUE AND (event_filter = '*' OR event_filter = $2)
	`, tenantID, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.WebhookSubscription
	for rows.Next() {
		var sub models.WebhookSubscription
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.TargetURL, &sub.SecretRef, &sub.EventFilter, &sub.Active, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, payload, status, attempt_count, last_error, idempotency_key, next_attempt_at, last_attempt_at, delivered_at, dead_lettered_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, d.ID, d.TenantID, d.SubscriptionID, d.EventType, toJSON(d.Payload), d.Status, d.AttemptCount, d.LastError, d.IdempotencyKey, d.NextAttemptAt, d.LastAttemptAt, d.DeliveredAt, d.DeadLetteredAt, d.CreatedAt)
	if isUniqueViolation(err) {
		return &ErrConflict{Entity: "webhook_delivery", Key: d.IdempotencyKey, Reason: "idempotency key already used for this tenant"}
	}
	return err
}

func (s *PostgresStore) GetDeliveryByIdempotencyKey(ctx context.Context, tenantID, idempotencyKey string) (*models.WebhookDelivery, error) {
	return s.scanDelivery(s.pool.QueryRow(ctx, deliverySelectCols+` FROM webhook_deliveries WHERE tenant_id=$1 AND idempotency_key=$2`, tenantID, idempotencyKey), idempotencyKey)
}

func (s *PostgresStore) GetDelivery(ctx context.Context, tenantID, id string) (*models.WebhookDelivery, error) {
	return s.scanDelivery(s.pool.QueryRow(ctx, deliverySelectCols+` FROM webhook_deliveries WHERE tenant_id=$1 AND id=$2`, tenantID, id), id)
}

const deliverySelectCols = `SELECT id, tenant_id, subscription_id, event_type, payload, status, attempt_count, last_error, idempotency_key, next_attempt_at, last_attempt_at, delivered_at, dead_lettered_at, created_at`

func (s *PostgresStore) scanDelivery(row pgx.Row, key string) (*models.WebhookDelivery, error) {
	var d models.WebhookDelivery
	var payload []byte
	if err := row.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &payload, &d.Status, &d.AttemptCount, &d.LastError, &d.IdempotencyKey, &d.NextAttemptAt, &d.LastAttemptAt, &d.DeliveredAt, &d.DeadLetteredAt, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "webhook_delivery", Key: key}
		}
		return nil, err
	}
	d.Payload = fromJSON(payload)
	return &d, nil
}

func (s *PostgresStore) UpdateDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET status=$3, attempt_count=$4, last_error=$5, next_attempt_at=$6, last_attempt_at=$7, delivered_at=$8, dead_lettered_at=$9
		WHERE tenant_id=$1 AND id=$2
	`, d.TenantID, d.ID, d.Status, d.AttemptCount, d.LastError, d.NextAttemptAt, d.LastAttemptAt, d.DeliveredAt, d.DeadLetteredAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "webhook_delivery", Key: d.ID}
	}
	return nil
}

// ClaimDueDeliveries uses SELECT ... FOR UPDATE SKIP LOCKED inside a single
// transaction so concurrent webhook workers never pick up the same row: a
// worker already holding a row's lock makes it invisible to every other
// worker's claim query rather than visible-but-contested.
func (s *PostgresStore) ClaimDueDeliveries(ctx context.Context, tenantID string, batchSize int, now time.Time) ([]models.WebhookDelivery, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, tenant_id, subscription_id, event_type, payload, status, attempt_count, last_error, idempotency_key, next_attempt_at, last_attempt_at, delivered_at, dead_lettered_at, created_at
		FROM webhook_deliveries
		WHERE ($1 = '' OR tenant_id = $1)
		  AND status IN ('pending', 'retry_scheduled')
		  AND next_attempt_at <= $2
		ORDER BY next_attempt_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, tenantID, now, batchSize)
	if err != nil {
		return nil, err
	}

	var claimed []models.WebhookDelivery
	var ids []string
	for rows.Next() {
		var d models.WebhookDelivery
		var payload []byte
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &payload, &d.Status, &d.AttemptCount, &d.LastError, &d.IdempotencyKey, &d.NextAttemptAt, &d.LastAttemptAt, &d.DeliveredAt, &d.DeadLetteredAt, &d.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		d.Payload = fromJSON(payload)
		claimed = append(claimed, d)
		ids = append(ids, d.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Bump next_attempt_at forward so a crashed worker doesn't leave the row
	// permanently claimable the instant the transaction lock releases; the
	// engine overwrites this with the real backoff schedule on completion.
	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE webhook_deliveries SET next_attempt_at = $2 WHERE id = ANY($1)`, ids, now.Add(1*time.Minute)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *PostgresStore) ListDeadLettered(ctx context.Context, tenantID string, ids []string, limit int) ([]models.WebhookDelivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, subscription_id, event_type, payload, status, attempt_count, last_error, idempotency_key, next_attempt_at, last_attempt_at, delivered_at, dead_lettered_at, created_at
		FROM webhook_deliveries
		WHERE tenant_id=$1 AND status='dead_lettered' AND (cardinality($2::text[]) = 0 OR id = ANY($2))
		ORDER BY created_at DESC
		LIMIT $3
	`, tenantID, ids, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.WebhookDelivery
	for rows.Next() {
		var d models.WebhookDelivery
		var payload []byte
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &payload, &d.Status, &d.AttemptCount, &d.LastError, &d.IdempotencyKey, &d.NextAttemptAt, &d.LastAttemptAt, &d.DeliveredAt, &d.DeadLetteredAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Payload = fromJSON(payload)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ── Idempotency Store ────────────────────────────────────────

func (s *PostgresStore) GetIdempotencyRecord(ctx context.Context, tenantID, key string) (*models.IdempotencyKey, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, idempotency_key, request_hash, response_payload, created_at
		FROM idempotency_keys WHERE tenant_id=$1 AND idempotency_key=$2
	`, tenantID, key)
	var rec models.IdempotencyKey
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.IdempotencyKey, &rec.RequestHash, &rec.ResponsePayload, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "idempotency_key", Key: key}
		}
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) SaveIdempotencyRecord(ctx context.Context, rec *models.IdempotencyKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (id, tenant_id, idempotency_key, request_hash, response_payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
	`, rec.ID, rec.TenantID, rec.IdempotencyKey, rec.RequestHash, rec.ResponsePayload, rec.CreatedAt)
	return err
}

// ── Audit Store ──────────────────────────────────────────────

func (s *PostgresStore) CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, tenant_id, actor_id, action, entity_type, entity_id, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, event.ID, event.TenantID, event.ActorID, event.Action, event.EntityType, event.EntityID, toJSON(event.Payload), event.CreatedAt)
	return err
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, actor_id, action, entity_type, entity_id, payload, created_at
		FROM audit_events
		WHERE ($1 = '' OR tenant_id = $1)
		  AND ($2 = '' OR entity_type = $2)
		  AND ($3 = '' OR entity_id = $3)
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		ORDER BY created_at DESC
		LIMIT $5
	`, filter.TenantID, filter.Entity, filter.EntityID, filter.Since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = fromJSON(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ── Model Version Store ──────────────────────────────────────

func (s *PostgresStore) RegisterModelVersion(ctx context.Context, v *models.ModelVersion) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO model_versions (id, component, version, activated_at, metrics)
		VALUES ($1,$2,$3,$4,$5)
	`, v.ID, v.Component, v.Version, v.ActivatedAt, toJSON(v.Metrics))
	return err
}

func (s *PostgresStore) ActiveModelVersion(ctx context.Context, component string) (*models.ModelVersion, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, component, version, activated_at, metrics
		FROM model_versions WHERE component=$1 ORDER BY activated_at DESC LIMIT 1
	`, component)
	var v models.ModelVersion
	var metrics []byte
	if err := row.Scan(&v.ID, &v.Component, &v.Version, &v.ActivatedAt, &metrics); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "model_version", Key: component}
		}
		return nil, err
	}
	v.Metrics = fromJSON(metrics)
	return &v, nil
}

func normalizeLimitOffset(filter ListFilter) (limit, offset int) {
	limit = filter.Limit
	if limit <= 0 {
		limit = 50
	}
	return limit, filter.Offset
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
