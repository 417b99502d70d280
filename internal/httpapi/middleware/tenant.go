// Package middleware holds the HTTP middleware the router installs ahead of
// every handler: tenant extraction and per-route rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexuscargo/nexuscargo/platform/internal/ratelimit"
)

type contextKey string

const tenantIDKey contextKey = "tenant_id"

// NewTenantExtractor builds middleware that reads the tenant id from
// headerName (configurable per §6, default X-Tenant-Id), falling back to
// "default" for local/single-tenant use.
func NewTenantExtractor(headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := strings.TrimSpace(r.Header.Get(headerName))
			if tenantID == "" {
				tenantID = "default"
			}
			ctx := context.WithValue(r.Context(), tenantIDKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenantID retrieves the tenant id set by NewTenantExtractor.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(tenantIDKey).(string); ok {
		return v
	}
	return "default"
}

// NewRateLimiter builds middleware that rejects requests over the
// configured per-{route,tenant} budget (§4.14) with 429.
func NewRateLimiter(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fingerprint := GetTenantID(r.Context())
			if !limiter.Allow(r.URL.Path, fingerprint) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
