// Package pipeline implements the per-document preprocessing, classification,
// and extraction steps (§4.4) invoked by the ingestion orchestrator.
package pipeline

import (
	"context"

	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

// Preprocessor derives an artefact URI from a document's stored bytes and
// publishes document.preprocessed. The default implementation is an identity
// transform — a hook point for future OCR/normalization, not otherwise
// consumed by the orchestrator (the reference implementation discards the
// return value at the call site too).
type Preprocessor struct {
	bus contracts.EventBus
}

// NewPreprocessor constructs a Preprocessor bound to bus.
func NewPreprocessor(bus contracts.EventBus) *Preprocessor {
	return &Preprocessor{bus: bus}
}

// Preprocess returns the derived artefact URI and publishes
// document.preprocessed. Publish failures are logged by the bus and never
// propagate here — preprocessing never fails the ingestion request.
func (p *Preprocessor) Preprocess(ctx context.Context, tenantID, documentID, storageURI string) string {
	artefactURI := storageURI + "#preprocessed"
	_ = p.bus.Publish(ctx, "document.preprocessed", map[string]any{
		"tenant_id":   tenantID,
		"document_id": documentID,
	}, nil)
	return artefactURI
}
