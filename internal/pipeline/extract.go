package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// MockExtractor is the deterministic fixture extractor used when
// ai_backend=mock (the default). Fields are keyed off doc_type; confidence
// drops to 0.55 whenever textHint contains "lowconf", mirroring the
// reference implementation's demo fixtures.
type MockExtractor struct{}

func (MockExtractor) Extract(_ context.Context, docType, textHint string) (map[string]string, map[string]float64, string, error) {
	confidence := 0.91
	if strings.Contains(textHint, "lowconf") {
		confidence = 0.55
	}

	var fields map[string]string
	switch docType {
	case "awb":
		awbNumber := "123-12345678"
		if confidence < 0.8 {
			awbNumber = "123-INVALID"
		}
		fields = map[string]string{"awb_number": awbNumber, "weight_kg": "10.5"}
	case "fiar_invoice":
		fields = map[string]string{"invoice_number": "INV-1001", "amount": "1000.00", "currency": "USD"}
	default:
		fields = map[string]string{"text_hint": textHint}
	}

	confidenceByField := make(map[string]float64, len(fields))
	for field := range fields {
		confidenceByField[field] = confidence
	}
	return fields, confidenceByField, "extract-v1", nil
}

// GCPExtractor is a contract-only remote extractor stub: no Document AI or
// Vertex AI client exists in the dependency surface available to this
// platform, so every call logs a debug line and returns an error, letting the owning ExtractionService fall through to
// MockExtractor unconditionally — the exact behavior the reference
// implementation's extractor documents ("falls back unconditionally on any
// exception").
type GCPExtractor struct {
	ProjectID   string
	ProcessorID string
}

func (e GCPExtractor) Extract(_ context.Context, docType, textHint string) (map[string]string, map[string]float64, string, error) {
	log.Debug().Str("project_id", e.ProjectID).Str("processor_id", e.ProcessorID).Str("doc_type", docType).
		Msg("gcp extractor stub invoked; no live backend wired, falling back")
	return nil, nil, "", errGCPExtractorUnavailable
}

var errGCPExtractorUnavailable = &gcpExtractorError{}

type gcpExtractorError struct{}

func (*gcpExtractorError) Error() string {
	return "gcp document extraction backend is not wired in this deployment"
}

// ExtractionService invokes the active extractor, falling back to
// MockExtractor on any error, and persists the resulting ExtractedEntity
// rows.
type ExtractionService struct {
	store    store.DocumentStore
	bus      contracts.EventBus
	active   contracts.DocumentExtractor
	fallback contracts.DocumentExtractor
}

// NewExtractionService constructs an ExtractionService. active is the
// configured backend (mock or gcp); the fallback is always MockExtractor.
func NewExtractionService(s store.DocumentStore, bus contracts.EventBus, active contracts.DocumentExtractor) *ExtractionService {
	return &ExtractionService{store: s, bus: bus, active: active, fallback: MockExtractor{}}
}

// ExtractResult is the output of an extraction pass.
type ExtractResult struct {
	Fields        map[string]string
	AvgConfidence float64
	ModelVersion  string
}

// Extract runs the active extractor (falling back to mock on error),
// persists one ExtractedEntity per field, computes the arithmetic mean
// confidence (0 for zero fields), and publishes document.extracted.
func (s *ExtractionService) Extract(ctx context.Context, tenantID, documentID, docType, textHint string) (ExtractResult, error) {
	fields, confidence, modelVersion, err := s.active.Extract(ctx, docType, textHint)
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Str("document_id", documentID).
			Msg("extractor failed, falling back to mock extractor")
		fields, confidence, modelVersion, err = s.fallback.Extract(ctx, docType, textHint)
		if err != nil {
			return ExtractResult{}, err
		}
		modelVersion += "-fallback"
	}

	now := time.Now().UTC()
	var sum float64
	for field, value := range fields {
		entity := &models.ExtractedEntity{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			TenantID:    tenantID,
			FieldName:   field,
			FieldValue:  value,
			Confidence:  confidence[field],
			SourceModel: modelVersion,
			CreatedAt:   now,
		}
		if err := s.store.CreateExtractedEntity(ctx, entity); err != nil {
			return ExtractResult{}, err
		}
		sum += confidence[field]
	}

	avg := 0.0
	if len(fields) > 0 {
		avg = sum / float64(len(fields))
	}

	_ = s.bus.Publish(ctx, "document.extracted", map[string]any{
		"tenant_id":      tenantID,
		"document_id":    documentID,
		"avg_confidence": avg,
	}, nil)

	return ExtractResult{Fields: fields, AvgConfidence: avg, ModelVersion: modelVersion}, nil
}

var (
	_ contracts.DocumentExtractor = MockExtractor{}
	_ contracts.DocumentExtractor = GCPExtractor{}
)
