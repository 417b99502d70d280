// Package integrations provides the thin, pluggable HTTP adapters that
// domain workflows use to submit to external collaborators — carriers
// (AWB), customs authorities (AECA/ABF-ICS), and accounting systems
// (FIAR) — per §4.15.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

// JSONHTTPAdapter is the shared HTTP plumbing reused by every external
// adapter: base URL, bearer token, client id, per-request timeout, and
// JSON request/response marshaling.
type JSONHTTPAdapter struct {
	Name        string
	BaseURL     string
	BearerToken string
	ClientID    string
	Timeout     time.Duration
	client      *http.Client
}

// NewJSONHTTPAdapter constructs a JSONHTTPAdapter. timeout <= 0 defaults to
// 20s (the adapter-call default distinct from the 10s webhook default).
func NewJSONHTTPAdapter(name, baseURL, bearerToken, clientID string, timeout time.Duration) *JSONHTTPAdapter {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &JSONHTTPAdapter{
		Name:        name,
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		ClientID:    clientID,
		Timeout:     timeout,
		client:      &http.Client{},
	}
}

// Post sends path+body as a JSON POST and decodes the JSON response into a
// map. Any failure is wrapped as a contracts.IntegrationError.
func (a *JSONHTTPAdapter) Post(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &contracts.IntegrationError{Provider: a.Name, Err: fmt.Errorf("encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, &contracts.IntegrationError{Provider: a.Name, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.BearerToken)
	}
	if a.ClientID != "" {
		req.Header.Set("X-Client-ID", a.ClientID)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &contracts.IntegrationError{Provider: a.Name, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &contracts.IntegrationError{Provider: a.Name, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &contracts.IntegrationError{Provider: a.Name, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))}
	}

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, &contracts.IntegrationError{Provider: a.Name, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return decoded, nil
}

// ── Keyed adapter registries ──────────────────────────────────

// CarrierRegistry holds carrier-keyed CargoAdapter implementations for the
// AWB workflow.
type CarrierRegistry struct {
	mu       sync.RWMutex
	adapters map[string]contracts.CargoAdapter
}

// NewCarrierRegistry constructs an empty CarrierRegistry.
func NewCarrierRegistry() *CarrierRegistry {
	return &CarrierRegistry{adapters: make(map[string]contracts.CargoAdapter)}
}

// Register adds or replaces the adapter for providerKey.
func (r *CarrierRegistry) Register(providerKey string, adapter contracts.CargoAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[providerKey] = adapter
	log.Info().Str("provider_key", providerKey).Msg("registered carrier adapter")
}

// Get returns the adapter for providerKey, or false if unknown.
func (r *CarrierRegistry) Get(providerKey string) (contracts.CargoAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[providerKey]
	return a, ok
}

// CargoAdapterFunc adapts a plain function to contracts.CargoAdapter.
type CargoAdapterFunc func(ctx context.Context, tenantID, awbNumber string, payload map[string]any) (map[string]any, error)

func (f CargoAdapterFunc) SubmitAWB(ctx context.Context, tenantID, awbNumber string, payload map[string]any) (map[string]any, error) {
	return f(ctx, tenantID, awbNumber, payload)
}

// ExportComplianceAdapterFunc adapts a plain function to
// contracts.ExportComplianceAdapter.
type ExportComplianceAdapterFunc func(ctx context.Context, exportRef string, payload map[string]any) (map[string]any, error)

func (f ExportComplianceAdapterFunc) SubmitExportCase(ctx context.Context, exportRef string, payload map[string]any) (map[string]any, error) {
	return f(ctx, exportRef, payload)
}

// AccountingExportAdapterFunc adapts a plain function to
// contracts.AccountingExportAdapter.
type AccountingExportAdapterFunc func(ctx context.Context, tenantID, invoiceID string, payload map[string]any) (map[string]any, error)

func (f AccountingExportAdapterFunc) ExportInvoice(ctx context.Context, tenantID, invoiceID string, payload map[string]any) (map[string]any, error) {
	return f(ctx, tenantID, invoiceID, payload)
}

// MockABFICSAdapter is a stand-in ExportComplianceAdapter for the AECA
// workflow's ABF/ICS submission step — no real ABF/ICS client exists in
// the dependency surface available to this platform, so this adapter
// synthesizes an acceptance response via JSONHTTPAdapter against a
// configured (typically sandbox) base URL.
type MockABFICSAdapter struct {
	http *JSONHTTPAdapter
}

// NewMockABFICSAdapter constructs a MockABFICSAdapter.
func NewMockABFICSAdapter(baseURL, bearerToken, clientID string, timeout time.Duration) *MockABFICSAdapter {
	return &MockABFICSAdapter{http: NewJSONHTTPAdapter("abf-ics", baseURL, bearerToken, clientID, timeout)}
}

func (a *MockABFICSAdapter) SubmitExportCase(ctx context.Context, exportRef string, payload map[string]any) (map[string]any, error) {
	body := map[string]any{"export_ref": exportRef, "declaration": payload}
	return a.http.Post(ctx, "/export-cases/submit", body)
}

var (
	_ contracts.CargoAdapter             = CargoAdapterFunc(nil)
	_ contracts.ExportComplianceAdapter = (*MockABFICSAdapter)(nil)
	_ contracts.ExportComplianceAdapter = ExportComplianceAdapterFunc(nil)
	_ contracts.AccountingExportAdapter = AccountingExportAdapterFunc(nil)
)
