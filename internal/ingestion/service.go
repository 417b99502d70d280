// Package ingestion implements the ingestion orchestrator (§4.7): the single
// entry point that admits a document, stores its bytes, and drives it
// through preprocessing, classification, extraction, validation, and the
// review gate.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/pipeline"
	"github.com/nexuscargo/nexuscargo/platform/internal/review"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/internal/validation"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// UnsupportedContentTypeError is returned when Ingest is called with a
// content_type outside the admitted set.
type UnsupportedContentTypeError struct {
	ContentType string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("unsupported content type: %s", e.ContentType)
}

var admittedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"text/plain":      true,
}

// VirusScanHook inspects raw bytes before they are admitted. The default
// hook is a no-op — a documented future integration point, not a behavior
// fabricated here.
type VirusScanHook func(ctx context.Context, content []byte) error

func NoopVirusScanHook(context.Context, []byte) error { return nil }

// IngestResult is the response of a single Ingest call.
type IngestResult struct {
	DocumentID     string
	Status         models.DocumentStatus
	ReviewRequired bool
	DocType        string
}

// Service orchestrates the full ingestion pipeline.
type Service struct {
	store            store.DocumentStore
	bus              contracts.EventBus
	storage          contracts.StorageProvider
	preprocessor     *pipeline.Preprocessor
	classifier       *pipeline.Classifier
	extractor        *pipeline.ExtractionService
	validator        *validation.Service
	reviewService    *review.Service
	audit            *audit.Logger
	virusScan        VirusScanHook
	confidenceThresh float64
	defaultPackID    string
	defaultPackVer   string
}

// Config bundles Service construction dependencies.
type Config struct {
	Store                     store.DocumentStore
	Bus                       contracts.EventBus
	Storage                   contracts.StorageProvider
	Preprocessor              *pipeline.Preprocessor
	Classifier                *pipeline.Classifier
	Extractor                 *pipeline.ExtractionService
	Validator                 *validation.Service
	Review                    *review.Service
	Audit                     *audit.Logger
	VirusScan                 VirusScanHook
	ReviewConfidenceThreshold float64
	DefaultPackID             string
	DefaultPackVersion        string
}

// NewService constructs an ingestion Service.
func NewService(cfg Config) *Service {
	scan := cfg.VirusScan
	if scan == nil {
		scan = NoopVirusScanHook
	}
	return &Service{
		store:            cfg.Store,
		bus:              cfg.Bus,
		storage:          cfg.Storage,
		preprocessor:     cfg.Preprocessor,
		classifier:       cfg.Classifier,
		extractor:        cfg.Extractor,
		validator:        cfg.Validator,
		reviewService:    cfg.Review,
		audit:            cfg.Audit,
		virusScan:        scan,
		confidenceThresh: cfg.ReviewConfidenceThreshold,
		defaultPackID:    cfg.DefaultPackID,
		defaultPackVer:   cfg.DefaultPackVersion,
	}
}

// Ingest admits, stores, and runs the full pipeline over a new document.
func (s *Service) Ingest(ctx context.Context, tenantID, actorID, fileName, contentType string, payload []byte, textHint string) (IngestResult, error) {
	if !admittedContentTypes[contentType] {
		return IngestResult{}, &UnsupportedContentTypeError{ContentType: contentType}
	}
	if err := s.virusScan(ctx, payload); err != nil {
		return IngestResult{}, err
	}

	digest := sha256.Sum256(payload)
	checksum := hex.EncodeToString(digest[:])

	storageURI, err := s.storage.UploadRaw(ctx, tenantID, fileName, payload, contentType)
	if err != nil {
		return IngestResult{}, fmt.Errorf("upload document bytes: %w", err)
	}

	now := time.Now().UTC()
	documentID := uuid.NewString()
	doc := &models.Document{
		ID:          documentID,
		TenantID:    tenantID,
		FileName:    fileName,
		ContentType: contentType,
		Status:      models.DocumentReceived,
		StorageURI:  storageURI,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return IngestResult{}, err
	}

	version := &models.DocumentVersion{
		ID:            uuid.NewString(),
		DocumentID:    documentID,
		TenantID:      tenantID,
		VersionNumber: 1,
		StorageURI:    storageURI,
		Checksum:      checksum,
		CreatedAt:     now,
	}
	if err := s.store.CreateDocumentVersion(ctx, version); err != nil {
		return IngestResult{}, err
	}

	s.audit.Record(ctx, tenantID, actorID, "document.ingested", "document", documentID, map[string]any{
		"file_name":    fileName,
		"content_type": contentType,
	})
	if err := s.bus.Publish(ctx, "document.received", map[string]any{
		"tenant_id":    tenantID,
		"document_id":  documentID,
		"content_type": contentType,
	}, nil); err != nil {
		log.Warn().Err(err).Str("document_id", documentID).Msg("failed to publish document.received")
	}

	s.preprocessor.Preprocess(ctx, tenantID, documentID, storageURI)
	classification := s.classifier.Classify(ctx, tenantID, documentID, fileName)
	if err := s.store.CreateClassification(ctx, &models.DocumentClassification{
		ID:           uuid.NewString(),
		DocumentID:   documentID,
		TenantID:     tenantID,
		DocType:      classification.DocType,
		Confidence:   classification.Confidence,
		ModelVersion: classification.ModelVersion,
		CreatedAt:    now,
	}); err != nil {
		return IngestResult{}, err
	}

	extraction, err := s.extractor.Extract(ctx, tenantID, documentID, classification.DocType, textHint)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract document fields: %w", err)
	}

	outcome, err := s.validator.Validate(ctx, tenantID, documentID, classification.DocType, extraction.Fields, s.defaultPackID, s.defaultPackVer)
	if err != nil {
		return IngestResult{}, err
	}

	reviewRequired := classification.Confidence < s.confidenceThresh ||
		extraction.AvgConfidence < s.confidenceThresh ||
		!outcome.AllPassed

	doc.UpdatedAt = time.Now().UTC()
	if reviewRequired {
		confidence := classification.Confidence
		if extraction.AvgConfidence < confidence {
			confidence = extraction.AvgConfidence
		}
		if _, err := s.reviewService.QueueLowConfidenceReview(ctx, tenantID, documentID, "low-confidence or validation-failure", "pipeline", confidence); err != nil {
			return IngestResult{}, err
		}
		doc.Status = models.DocumentReviewRequired
	} else {
		doc.Status = models.DocumentValidated
	}
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return IngestResult{}, err
	}

	return IngestResult{
		DocumentID:     documentID,
		Status:         doc.Status,
		ReviewRequired: reviewRequired,
		DocType:        classification.DocType,
	}, nil
}
