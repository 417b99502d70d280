package pipeline

import (
	"context"
	"strings"

	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

// ClassificationResult is the output of a classification pass (§4.4).
type ClassificationResult struct {
	DocType      string
	Confidence   float64
	ModelVersion string
}

// Classifier assigns a doc_type and confidence to a document and publishes
// document.classified. The default heuristic inspects the file name.
type Classifier struct {
	bus contracts.EventBus
}

// NewClassifier constructs a Classifier bound to bus.
func NewClassifier(bus contracts.EventBus) *Classifier {
	return &Classifier{bus: bus}
}

// Classify implements the default filename-heuristic classifier described in
// §4.4: substring "awb" → ("awb", 0.94); substring "invoice" → ("fiar_invoice",
// 0.92); else ("unclassified", 0.55). Model version is always "clf-v1".
func (c *Classifier) Classify(ctx context.Context, tenantID, documentID, fileName string) ClassificationResult {
	lower := strings.ToLower(fileName)
	var result ClassificationResult
	switch {
	case strings.Contains(lower, "awb"):
		result = ClassificationResult{DocType: "awb", Confidence: 0.94, ModelVersion: "clf-v1"}
	case strings.Contains(lower, "invoice"):
		result = ClassificationResult{DocType: "fiar_invoice", Confidence: 0.92, ModelVersion: "clf-v1"}
	default:
		result = ClassificationResult{DocType: "unclassified", Confidence: 0.55, ModelVersion: "clf-v1"}
	}

	_ = c.bus.Publish(ctx, "document.classified", map[string]any{
		"tenant_id":   tenantID,
		"document_id": documentID,
		"doc_type":    result.DocType,
		"confidence":  result.Confidence,
	}, nil)
	return result
}
