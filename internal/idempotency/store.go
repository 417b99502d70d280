// Package idempotency memoizes write-endpoint responses keyed by
// (tenant, Idempotency-Key), per §4.10.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// ErrConflict is returned when a key has been seen before with a different
// request hash — a client error (same Idempotency-Key reused for a
// different request body).
var ErrConflict = errors.New("idempotency key reuse with a different request")

// Service memoizes write responses.
type Service struct {
	store store.IdempotencyStore
}

// NewService constructs an idempotency Service.
func NewService(s store.IdempotencyStore) *Service {
	return &Service{store: s}
}

// HashRequest computes the stable hash this package expects callers to pass
// into Get/Save, derived from the raw request body.
func HashRequest(body []byte) string {
	digest := sha256.Sum256(body)
	return hex.EncodeToString(digest[:])
}

// Get returns the stored response for (tenant, key) if the stored request
// hash matches requestHash. found is false if the key has never been seen;
// ErrConflict is returned if the key was seen with a different hash.
func (s *Service) Get(ctx context.Context, tenantID, key, requestHash string) (response []byte, found bool, err error) {
	rec, err := s.store.GetIdempotencyRecord(ctx, tenantID, key)
	if err != nil {
		var notFound *store.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !bytes.Equal([]byte(rec.RequestHash), []byte(requestHash)) {
		return nil, false, ErrConflict
	}
	return rec.ResponsePayload, true, nil
}

// Save persists the response for (tenant, key, requestHash). Callers invoke
// this only from the ingestion write path, within the same logical
// operation whose response is being memoized.
func (s *Service) Save(ctx context.Context, tenantID, key, requestHash string, response []byte) error {
	rec := &models.IdempotencyKey{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		IdempotencyKey:  key,
		RequestHash:     requestHash,
		ResponsePayload: response,
		CreatedAt:       time.Now().UTC(),
	}
	return s.store.SaveIdempotencyRecord(ctx, rec)
}
