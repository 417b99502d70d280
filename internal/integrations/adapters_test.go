package integrations_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/integrations"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

func TestJSONHTTPAdapterPostSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/export-cases/submit", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "accepted"})
	}))
	defer server.Close()

	adapter := integrations.NewJSONHTTPAdapter("test-adapter", server.URL, "test-token", "", time.Second)
	resp, err := adapter.Post(context.Background(), "/export-cases/submit", map[string]any{"export_ref": "exp-1"})
	require.NoError(t, err)
	assert.Equal(t, "accepted", resp["status"])
}

func TestJSONHTTPAdapterPostErrorStatusWrapsIntegrationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := integrations.NewJSONHTTPAdapter("test-adapter", server.URL, "", "", time.Second)
	_, err := adapter.Post(context.Background(), "/anything", nil)
	require.Error(t, err)

	var integrationErr *contracts.IntegrationError
	assert.ErrorAs(t, err, &integrationErr)
	assert.Equal(t, "test-adapter", integrationErr.Provider)
}

func TestCarrierRegistryRegisterAndGet(t *testing.T) {
	registry := integrations.NewCarrierRegistry()

	_, ok := registry.Get("generic-cargo")
	assert.False(t, ok)

	httpAdapter := integrations.NewJSONHTTPAdapter("generic-cargo", "https://sandbox.cargo.invalid", "", "", time.Second)
	registry.Register("generic-cargo", integrations.CargoAdapterFunc(func(ctx context.Context, tenantID, awbNumber string, payload map[string]any) (map[string]any, error) {
		return httpAdapter.Post(ctx, "/awb/"+awbNumber+"/submit", payload)
	}))
	adapter, ok := registry.Get("generic-cargo")
	assert.True(t, ok)
	assert.NotNil(t, adapter)
}
