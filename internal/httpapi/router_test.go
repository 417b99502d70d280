package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/config"
	"github.com/nexuscargo/nexuscargo/platform/internal/httpapi"
	"github.com/nexuscargo/nexuscargo/platform/internal/ratelimit"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		AppName:          "NexusCargo Test",
		TenantHeaderName: "X-Tenant-Id",
	}
	h := &httpapi.Handlers{Config: cfg}
	limiter := ratelimit.New(1000, time.Minute)
	return httpapi.NewRouter(cfg, h, limiter)
}

func TestHealthzReturnsOK(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestValidateAWBThroughRouter(t *testing.T) {
	router := newTestRouter(t)
	body := strings.NewReader(`{"awb_number":"123-12345678","weight_kg":10.5}`)
	req := httptest.NewRequest(http.MethodPost, "/awb/validate", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)
}

func TestRateLimiterRejectsOverBudget(t *testing.T) {
	cfg := &config.Config{AppName: "NexusCargo Test", TenantHeaderName: "X-Tenant-Id"}
	h := &httpapi.Handlers{Config: cfg}
	limiter := ratelimit.New(1, time.Minute)
	router := httpapi.NewRouter(cfg, h, limiter)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}
