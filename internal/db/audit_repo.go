package db

import (
	"context"
	"encoding/json"
	"log/slog"

	"clientdesk/internal/types"
)

// AuditRepository appends to the audit_log table. The sink is best-effort:
// its own failures are logged and swallowed so auditing can never break the
// operation being audited. Satisfies the AuditSink interfaces in the gate
// and renewal packages.
type AuditRepository struct {
	db     DBTX
	clock  types.Clock
	logger *slog.Logger
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(db DBTX, clock types.Clock, logger *slog.Logger) *AuditRepository {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRepository{db: db, clock: clock, logger: logger}
}

// Record appends one audit event. Never returns an error.
func (r *AuditRepository) Record(ctx context.Context, event types.AuditEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.clock.Now()
	}

	details := []byte("{}")
	if len(event.Details) > 0 {
		b, err := json.Marshal(event.Details)
		if err != nil {
			r.logger.Warn("audit details not serializable",
				slog.String("action", event.Action),
				slog.Any("error", err),
			)
		} else {
			details = b
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_log (action, entity_type, entity_id, details, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.Action, event.EntityType, event.EntityID, details, event.OccurredAt,
	)
	if err != nil {
		r.logger.Warn("audit write failed",
			slog.String("action", event.Action),
			slog.Any("error", err),
		)
	}
}
