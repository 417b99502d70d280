package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscargo/nexuscargo/platform/internal/ratelimit"
)

func TestAllowWithinBudget(t *testing.T) {
	limiter := ratelimit.New(3, time.Minute)

	assert.True(t, limiter.Allow("/ingestion/documents", "tenant-a"))
	assert.True(t, limiter.Allow("/ingestion/documents", "tenant-a"))
	assert.True(t, limiter.Allow("/ingestion/documents", "tenant-a"))
	assert.False(t, limiter.Allow("/ingestion/documents", "tenant-a"))
}

func TestAllowIsKeyedPerRouteAndClient(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)

	assert.True(t, limiter.Allow("/ingestion/documents", "tenant-a"))
	assert.False(t, limiter.Allow("/ingestion/documents", "tenant-a"))

	assert.True(t, limiter.Allow("/ingestion/documents", "tenant-b"))
	assert.True(t, limiter.Allow("/webhooks/dispatch", "tenant-a"))
}
