// Package webhook implements the outbound delivery queue described in
// §4.9: enqueueing, signed attempts, exponential backoff, dead-lettering,
// and replay.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/internal/audit"
	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

const subscriptionMissingOrInactive = "subscription_missing_or_inactive"

// CycleStats summarizes one ProcessDeliveryQueue pass.
type CycleStats struct {
	Claimed        int
	Delivered      int
	RetryScheduled int
	DeadLettered   int
	Errors         []error
}

// Engine drives the webhook delivery queue.
type Engine struct {
	store      store.WebhookStore
	transport  contracts.WebhookTransport
	audit      *audit.Logger
	signingKey string
	maxRetries int
	timeout    time.Duration
}

// Config bundles Engine construction dependencies.
type Config struct {
	Store          store.WebhookStore
	Transport      contracts.WebhookTransport
	Audit          *audit.Logger
	SigningSecret  string
	MaxRetries     int
	TimeoutSeconds int
}

// NewEngine constructs a webhook Engine.
func NewEngine(cfg Config) *Engine {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	timeoutSeconds := cfg.TimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &Engine{
		store:      cfg.Store,
		transport:  cfg.Transport,
		audit:      cfg.Audit,
		signingKey: cfg.SigningSecret,
		maxRetries: maxRetries,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
	}
}

func canonicalJSON(payload map[string]any) ([]byte, error) {
	return json.Marshal(payload)
}

func idempotencyKeyFor(subscriptionID, eventType string, body []byte) string {
	digest := sha256.Sum256(body)
	return fmt.Sprintf("%s:%s:%s", subscriptionID, eventType, hex.EncodeToString(digest[:]))
}

// DispatchEvent enqueues one WebhookDelivery per active subscription whose
// event_filter matches eventType, deduplicating on idempotency_key.
func (e *Engine) DispatchEvent(ctx context.Context, tenantID, eventType string, payload map[string]any) (int, error) {
	subs, err := e.store.ListActiveSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		return 0, err
	}

	body, err := canonicalJSON(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal webhook payload: %w", err)
	}

	enqueued := 0
	now := time.Now().UTC()
	for _, sub := range subs {
		key := idempotencyKeyFor(sub.ID, eventType, body)
		if _, err := e.store.GetDeliveryByIdempotencyKey(ctx, tenantID, key); err == nil {
			continue
		}

		delivery := &models.WebhookDelivery{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			SubscriptionID: sub.ID,
			EventType:      eventType,
			Payload:        payload,
			Status:         models.DeliveryPending,
			AttemptCount:   0,
			IdempotencyKey: key,
			NextAttemptAt:  now,
			CreatedAt:      now,
		}
		if err := e.store.CreateDelivery(ctx, delivery); err != nil {
			var conflict *store.ErrConflict
			if errors.As(err, &conflict) {
				continue
			}
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

// ProcessDeliveryQueue claims up to batchSize due deliveries and attempts
// each once. tenant is optional: nil processes deliveries across all
// tenants.
func (e *Engine) ProcessDeliveryQueue(ctx context.Context, tenant *string, batchSize int) (CycleStats, error) {
	stats := CycleStats{}
	tenantFilter := ""
	if tenant != nil {
		tenantFilter = *tenant
	}

	due, err := e.store.ClaimDueDeliveries(ctx, tenantFilter, batchSize, time.Now().UTC())
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(due)

	for i := range due {
		delivery := due[i]
		e.attempt(ctx, &delivery, &stats)
	}
	return stats, nil
}

func (e *Engine) attempt(ctx context.Context, delivery *models.WebhookDelivery, stats *CycleStats) {
	now := time.Now().UTC()

	sub, err := e.store.GetSubscription(ctx, delivery.TenantID, delivery.SubscriptionID)
	if err != nil || !sub.Active {
		delivery.Status = models.DeliveryDeadLettered
		delivery.LastError = subscriptionMissingOrInactive
		delivery.DeadLetteredAt = &now
		delivery.LastAttemptAt = &now
		if err := e.store.UpdateDelivery(ctx, delivery); err != nil {
			stats.Errors = append(stats.Errors, err)
		}
		stats.DeadLettered++
		return
	}

	body, err := canonicalJSON(delivery.Payload)
	if err != nil {
		stats.Errors = append(stats.Errors, err)
		return
	}
	signature := hmac.New(sha256.New, []byte(e.signingKey))
	signature.Write(body)

	headers := map[string]string{
		"Content-Type":      "application/json",
		"X-Nexus-Signature": "sha256=" + hex.EncodeToString(signature.Sum(nil)),
		"X-Nexus-Event":     delivery.EventType,
		"X-Idempotency-Key": delivery.IdempotencyKey,
	}

	delivery.LastAttemptAt = &now
	delivery.AttemptCount++

	statusCode, deliverErr := e.transport.Deliver(ctx, sub.TargetURL, body, headers, e.timeout)
	if deliverErr == nil && statusCode >= 200 && statusCode < 300 {
		delivery.Status = models.DeliveryDelivered
		delivery.DeliveredAt = &now
		delivery.LastError = ""
		if err := e.store.UpdateDelivery(ctx, delivery); err != nil {
			stats.Errors = append(stats.Errors, err)
		}
		stats.Delivered++
		return
	}

	if deliverErr != nil {
		delivery.LastError = deliverErr.Error()
	} else {
		delivery.LastError = fmt.Sprintf("unexpected status code %d", statusCode)
	}

	if delivery.AttemptCount >= e.maxRetries {
		delivery.Status = models.DeliveryDeadLettered
		delivery.DeadLetteredAt = &now
		stats.DeadLettered++
	} else {
		delivery.Status = models.DeliveryRetryScheduled
		delivery.NextAttemptAt = now.Add(nextBackoff(delivery.AttemptCount))
		stats.RetryScheduled++
	}

	if err := e.store.UpdateDelivery(ctx, delivery); err != nil {
		stats.Errors = append(stats.Errors, err)
	}
}

// nextBackoff computes the delay before the next attempt using the same
// capped-exponential shape as cenkalti/backoff/v4's NewExponentialBackOff
// (base 1s, multiplier 2, max interval 300s), advanced attemptCount-1 steps.
func nextBackoff(attemptCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.MaxInterval = 300 * time.Second
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Reset()

	var delay time.Duration
	for i := 0; i < attemptCount; i++ {
		delay = b.NextBackOff()
	}
	if delay > 300*time.Second {
		delay = 300 * time.Second
	}
	return delay
}

// ReplayDeadLettered resets the named dead-lettered deliveries back to
// pending, returning the count reset.
func (e *Engine) ReplayDeadLettered(ctx context.Context, tenantID string, ids []string, limit int) (int, error) {
	deliveries, err := e.store.ListDeadLettered(ctx, tenantID, ids, limit)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	reset := 0
	for i := range deliveries {
		d := deliveries[i]
		d.Status = models.DeliveryPending
		d.AttemptCount = 0
		d.LastError = ""
		d.NextAttemptAt = now
		d.DeadLetteredAt = nil
		if err := e.store.UpdateDelivery(ctx, &d); err != nil {
			log.Warn().Err(err).Str("delivery_id", d.ID).Msg("failed to replay dead-lettered delivery")
			continue
		}
		reset++
	}
	return reset, nil
}
