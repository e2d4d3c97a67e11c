package audit

import (
	"context"
	"database/sql"

	"call-platform/pkg/utils"
)

// Schema creates the insert-only call_audit_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS call_audit_events (
	id            TEXT PRIMARY KEY,
	workspace_id  TEXT        NOT NULL DEFAULT '',
	session_id    TEXT        NOT NULL,
	type          TEXT        NOT NULL,
	actor_user_id TEXT        NOT NULL DEFAULT '',
	from_status   TEXT        NOT NULL DEFAULT '',
	to_status     TEXT        NOT NULL,
	version       BIGINT      NOT NULL,
	message       TEXT        NOT NULL DEFAULT '',
	metadata      JSONB       NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS call_audit_events_session ON call_audit_events (session_id, created_at);
`

// PostgresRepo appends audit events. It exposes no update or delete.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.ApplySchema(ctx, r.db, "audit", Schema)
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO call_audit_events (
	id, workspace_id, session_id, type, actor_user_id, from_status, to_status, version, message, metadata, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	var metadata sql.NullString
	if e.Metadata != "" {
		metadata = sql.NullString{String: e.Metadata, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.WorkspaceID,
		e.SessionID,
		string(e.Type),
		e.ActorUserID,
		e.FromStatus,
		e.ToStatus,
		e.Version,
		e.Message,
		metadata,
		e.CreatedAt,
	)
	return err
}
