// Package httpapi implements NexusCargo's HTTP surface (§6): chi routes
// bound to the ingestion, review, discrepancy, webhook, idempotency, and
// per-domain compliance services.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/config"
	"github.com/nexuscargo/nexuscargo/platform/internal/discrepancy"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/aeca"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/aviqm"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/awb"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/dg"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/fiar"
	"github.com/nexuscargo/nexuscargo/platform/internal/domain/stationanalytics"
	"github.com/nexuscargo/nexuscargo/platform/internal/httpapi/middleware"
	"github.com/nexuscargo/nexuscargo/platform/internal/idempotency"
	"github.com/nexuscargo/nexuscargo/platform/internal/ingestion"
	"github.com/nexuscargo/nexuscargo/platform/internal/review"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/internal/webhook"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// Handlers holds every dependency the HTTP layer dispatches to.
type Handlers struct {
	Store       store.Store
	Config      *config.Config
	Ingestion   *ingestion.Service
	Review      *review.Service
	Discrepancy *discrepancy.Service
	Webhook     *webhook.Engine
	Idempotency *idempotency.Service
	AWB         *awb.Service
	AECA        *aeca.Service
	DG          *dg.Service
	AVIQM       *aviqm.Service
	FIAR        *fiar.Service
}

// ══════════════════════════════════════════════════════════════
// ── Auth (contract-only stubs; full JWT/RBAC not implemented) ──
// ══════════════════════════════════════════════════════════════

func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	now := time.Now().UTC()
	respondJSON(w, http.StatusOK, map[string]any{
		"access_token":  "stub." + req.UserID,
		"refresh_token": "stub-refresh." + req.UserID,
		"expires_at":    now.Add(time.Duration(h.Config.Auth.AccessTokenTTLMin) * time.Minute),
	})
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": "stub-rotated." + req.RefreshToken,
	})
}

// ══════════════════════════════════════════════════════════════
// ── Ingestion / Documents ───────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type ingestDocumentRequest struct {
	FileName       string `json:"file_name"`
	ContentType    string `json:"content_type"`
	ContentBase64  string `json:"content_base64"`
	TextHint       string `json:"text_hint"`
}

func (h *Handlers) IngestDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey == "" {
		respondError(w, http.StatusBadRequest, "Idempotency-Key header is required")
		return
	}

	var req ingestDocumentRequest
	rawBody, err := decodeJSONBody(r, &req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	requestHash := idempotency.HashRequest(rawBody)
	if cached, found, err := h.Idempotency.Get(r.Context(), tenantID, idemKey, requestHash); err != nil {
		if errors.Is(err, idempotency.ErrConflict) {
			respondError(w, http.StatusConflict, "Idempotency-Key reused with a different request body")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	} else if found {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "content_base64 must decode as base64")
		return
	}

	result, err := h.Ingestion.Ingest(r.Context(), tenantID, "api", req.FileName, req.ContentType, content, req.TextHint)
	if err != nil {
		var unsupported *ingestion.UnsupportedContentTypeError
		if errors.As(err, &unsupported) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]any{
		"document_id":     result.DocumentID,
		"status":          result.Status,
		"review_required": result.ReviewRequired,
		"doc_type":        result.DocType,
	}
	encoded, _ := json.Marshal(response)
	if err := h.Idempotency.Save(r.Context(), tenantID, idemKey, requestHash, encoded); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	docs, err := h.Store.ListDocuments(r.Context(), tenantID, listFilterFromQuery(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	doc, err := h.Store.GetDocument(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// ══════════════════════════════════════════════════════════════
// ── Review ───────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListReviewTasks(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	status := models.ReviewStatus(r.URL.Query().Get("status"))
	tasks, err := h.Store.ListReviewTasks(r.Context(), tenantID, status, listFilterFromQuery(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []models.ReviewTask{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

type reviewCompleteRequest struct {
	Approved    bool `json:"approved"`
	Corrections []struct {
		FieldName string `json:"field_name"`
		OldValue  string `json:"old_value"`
		NewValue  string `json:"new_value"`
		ReasonTag string `json:"reason_tag"`
	} `json:"corrections"`
}

func (h *Handlers) CompleteReviewTask(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req reviewCompleteRequest
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	corrections := make([]review.CorrectionInput, 0, len(req.Corrections))
	for _, c := range req.Corrections {
		corrections = append(corrections, review.CorrectionInput{
			FieldName: c.FieldName,
			OldValue:  c.OldValue,
			NewValue:  c.NewValue,
			ReasonTag: c.ReasonTag,
		})
	}

	task, err := h.Review.CompleteReview(r.Context(), tenantID, chi.URLParam(r, "id"), "api", req.Approved, corrections)
	if err != nil {
		if errors.Is(err, review.ErrAlreadyCompleted) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// ══════════════════════════════════════════════════════════════
// ── Discrepancy / Dispute ────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) CreateDiscrepancy(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req discrepancy.ScoreInput
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.Discrepancy.CreateDiscrepancy(r.Context(), tenantID, "api", req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handlers) OpenDispute(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req struct {
		OpenedBy string `json:"opened_by"`
	}
	_, _ = decodeJSONBody(r, &req)
	if req.OpenedBy == "" {
		req.OpenedBy = "api"
	}

	dispute, err := h.Discrepancy.OpenDispute(r.Context(), tenantID, chi.URLParam(r, "id"), req.OpenedBy)
	if err != nil {
		if errors.Is(err, discrepancy.ErrAlreadyDisputed) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dispute)
}

// ══════════════════════════════════════════════════════════════
// ── Webhooks ─────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) CreateWebhookSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var sub models.WebhookSubscription
	if _, err := decodeJSONBody(r, &sub); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub.TenantID = tenantID
	sub.Active = true
	sub.CreatedAt = time.Now().UTC()
	if sub.ID == "" {
		sub.ID = newID()
	}
	if err := h.Store.CreateSubscription(r.Context(), &sub); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (h *Handlers) DispatchWebhookEvent(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req struct {
		EventType string         `json:"event_type"`
		Payload   map[string]any `json:"payload"`
	}
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dispatched, err := h.Webhook.DispatchEvent(r.Context(), tenantID, req.EventType, req.Payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"dispatched": dispatched})
}

func (h *Handlers) ReplayDeadLetteredDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req struct {
		IDs   []string `json:"ids"`
		Limit int      `json:"limit"`
	}
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	replayed, err := h.Webhook.ReplayDeadLettered(r.Context(), tenantID, req.IDs, req.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"replayed": replayed})
}

func (h *Handlers) ProcessWebhookQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID  string `json:"tenant_id"`
		BatchSize int    `json:"batch_size"`
	}
	_, _ = decodeJSONBody(r, &req)
	if req.BatchSize <= 0 {
		req.BatchSize = webhook.DefaultBatchSize
	}
	var tenant *string
	if req.TenantID != "" {
		tenant = &req.TenantID
	}
	stats, err := h.Webhook.ProcessDeliveryQueue(r.Context(), tenant, req.BatchSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ══════════════════════════════════════════════════════════════
// ── AWB ──────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ValidateAWB(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AWBNumber string  `json:"awb_number"`
		WeightKg  float64 `json:"weight_kg"`
	}
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	valid, messages := awb.ValidateAWB(req.AWBNumber, req.WeightKg)
	respondJSON(w, http.StatusOK, map[string]any{"valid": valid, "messages": messages})
}

func (h *Handlers) SubmitAWB(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req struct {
		ProviderKey string         `json:"provider_key"`
		AWBNumber   string         `json:"awb_number"`
		Payload     map[string]any `json:"payload"`
	}
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.AWB.SubmitAWB(r.Context(), tenantID, "api", req.ProviderKey, req.AWBNumber, req.Payload)
	if err != nil {
		if errors.Is(err, awb.ErrUnknownProvider) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════
// ── AECA ─────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ValidateExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HSCode             string `json:"hs_code"`
		DestinationCountry string `json:"destination_country"`
	}
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	valid, issues := aeca.ValidateExport(req.HSCode, req.DestinationCountry)
	respondJSON(w, http.StatusOK, map[string]any{"valid": valid, "issues": issues})
}

func (h *Handlers) CreateExportCase(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req aeca.CreateExportCaseInput
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	export, err := h.AECA.CreateExportCase(r.Context(), tenantID, "api", req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, export)
}

func (h *Handlers) SubmitExportCase(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req struct {
		Payload map[string]any `json:"payload"`
	}
	_, _ = decodeJSONBody(r, &req)
	result, err := h.AECA.SubmitExportCase(r.Context(), tenantID, "api", chi.URLParam(r, "id"), req.Payload)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════
// ── DG ───────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ValidateDG(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req struct {
		SubjectID    string `json:"subject_id"`
		UNNumber     string `json:"un_number"`
		PackingGroup string `json:"packing_group"`
	}
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.DG.ValidateAndRecord(r.Context(), tenantID, "api", req.SubjectID, req.UNNumber, req.PackingGroup)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════
// ── AVIQM ────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) DecodeVIN(w http.ResponseWriter, r *http.Request) {
	vin := chi.URLParam(r, "vin")
	respondJSON(w, http.StatusOK, aviqm.DecodeVIN(vin))
}

func (h *Handlers) CreateVehicleImportCase(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req aviqm.CreateCaseInput
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.AVIQM.CreateCase(r.Context(), tenantID, "api", req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════
// ── FIAR ─────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ThreeWayMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvoiceAmount    float64 `json:"invoice_amount"`
		ContractAmount   float64 `json:"contract_amount"`
		DeliveredAmount  float64 `json:"delivered_amount"`
		TolerancePercent float64 `json:"tolerance_percent"`
	}
	if _, err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	matched, discrepancies := fiar.ThreeWayMatch(req.InvoiceAmount, req.ContractAmount, req.DeliveredAmount, req.TolerancePercent)
	respondJSON(w, http.StatusOK, map[string]any{"matched": matched, "discrepancies": discrepancies})
}

func (h *Handlers) ExportInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	var req struct {
		Payload map[string]any `json:"payload"`
	}
	_, _ = decodeJSONBody(r, &req)
	result, err := h.FIAR.ExportInvoice(r.Context(), tenantID, "api", chi.URLParam(r, "id"), req.Payload)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════
// ── Station Analytics ────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) StationKPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	throughputPerHour := queryFloat(q, "throughput_per_hour")
	avgDwellMinutes := queryFloat(q, "avg_dwell_minutes")
	delayed := int(queryFloat(q, "delayed_shipments"))
	total := int(queryFloat(q, "total_shipments"))

	summary := stationanalytics.ComputeKPISummary(throughputPerHour, avgDwellMinutes, delayed, total)
	respondJSON(w, http.StatusOK, summary)
}

// ══════════════════════════════════════════════════════════════
// ── Liveness / build info ────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"app_name": h.Config.AppName,
	})
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps store.ErrNotFound to 404 and everything else to 500.
func respondStoreError(w http.ResponseWriter, err error) {
	var notFound *store.ErrNotFound
	if errors.As(err, &notFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

// decodeJSONBody reads the whole request body, decodes it as JSON into v,
// and returns the raw bytes (callers that need a stable hash of the body,
// like the ingestion idempotency check, avoid decoding twice).
func decodeJSONBody(r *http.Request, v any) ([]byte, error) {
	dec := json.NewDecoder(r.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return raw, nil
}

func listFilterFromQuery(r *http.Request) store.ListFilter {
	q := r.URL.Query()
	filter := store.ListFilter{Limit: int(queryFloat(q, "limit")), Offset: int(queryFloat(q, "offset"))}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return filter
}

func queryFloat(q url.Values, key string) float64 {
	raw := q.Get(key)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

func newID() string {
	return uuid.NewString()
}
