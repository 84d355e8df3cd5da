package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// AuditRepository persists audit events to PostgreSQL. The audit trail is
// an operational record, not an invariant-bearing structure; callers log
// and continue when a write fails.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id          UUID PRIMARY KEY,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    event       TEXT NOT NULL,
//	    user_id     TEXT,
//	    org_name    TEXT,
//	    detail      JSONB
//	);
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a PostgreSQL audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger.With("component", "audit_repository")}
}

// Record inserts one audit event.
func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	var detail []byte
	if event.Detail != nil {
		var err error
		detail, err = json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode audit detail: %w", err)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	const query = `INSERT INTO audit_events (id, occurred_at, event, user_id, org_name, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, event.ID, occurredAt, event.Event, event.UserID, event.OrgName, detail); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

var _ domain.AuditRecorder = (*AuditRepository)(nil)
