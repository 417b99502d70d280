// Package audit provides a thin append-only logging helper over
// Store.CreateAuditEvent, used by every workflow that mutates
// tenant-visible state.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexuscargo/nexuscargo/platform/internal/store"
	"github.com/nexuscargo/nexuscargo/platform/pkg/models"
)

// Logger records audit events; the tenant and actor are given on each Record call.
type Logger struct {
	store store.AuditStore
}

// NewLogger constructs a Logger.
func NewLogger(s store.AuditStore) *Logger {
	return &Logger{store: s}
}

// Record persists an audit event. Failures are logged, not propagated —
// an audit-write failure must never roll back the action it is recording.
func (l *Logger) Record(ctx context.Context, tenantID, actorID, action, entityType, entityID string, payload map[string]any) {
	event := &models.AuditEvent{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.store.CreateAuditEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Str("action", action).
			Str("entity_type", entityType).Str("entity_id", entityID).
			Msg("failed to record audit event")
	}
}
