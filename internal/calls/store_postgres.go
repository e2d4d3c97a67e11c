package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"call-platform/pkg/utils"
)

// Schema creates the call_sessions table.
// The partial unique index is what makes "one open DIRECT call per pair" atomic.
const Schema = `
CREATE TABLE IF NOT EXISTS call_sessions (
	session_id       TEXT        NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	workspace_id     TEXT        NOT NULL DEFAULT '',
	media_session_id TEXT        NOT NULL DEFAULT '',
	kind             TEXT        NOT NULL,
	conversation_id  TEXT        NOT NULL DEFAULT '',
	initiated_by     TEXT        NOT NULL,
	participants     JSONB       NOT NULL,
	status           TEXT        NOT NULL,
	started_at       TIMESTAMPTZ NULL,
	ended_at         TIMESTAMPTZ NULL,
	duration_seconds INT         NULL,
	version          BIGINT      NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	direct_pair_key  TEXT        NULL,
	PRIMARY KEY (session_id, created_at)
);
CREATE UNIQUE INDEX IF NOT EXISTS call_sessions_open_direct_pair
	ON call_sessions (direct_pair_key)
	WHERE direct_pair_key IS NOT NULL AND status IN ('RINGING', 'ACTIVE');
CREATE INDEX IF NOT EXISTS call_sessions_ringing_created
	ON call_sessions (created_at)
	WHERE status = 'RINGING';
CREATE INDEX IF NOT EXISTS call_sessions_workspace_created
	ON call_sessions (workspace_id, created_at);
`

// PostgresStore persists sessions in Postgres through database/sql (pgx stdlib driver).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// EnsureSchema applies Schema. Safe to run on every start.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	return utils.ApplySchema(ctx, p.db, "calls", Schema)
}

const selectSessionColumns = `
SELECT session_id, created_at, workspace_id, media_session_id, kind, conversation_id, initiated_by,
       participants, status, started_at, ended_at, duration_seconds, version, updated_at
FROM call_sessions
`

func (p *PostgresStore) Get(ctx context.Context, sessionID string) (CallSession, error) {
	const q = selectSessionColumns + `
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT 1
`
	s, err := scanSession(p.db.QueryRowContext(ctx, q, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallSession{}, ErrSessionNotFound
		}
		return CallSession{}, err
	}
	return s, nil
}

func (p *PostgresStore) Create(ctx context.Context, s CallSession) error {
	const q = `
INSERT INTO call_sessions (
	session_id, created_at, workspace_id, media_session_id, kind, conversation_id, initiated_by,
	participants, status, started_at, ended_at, duration_seconds, version, updated_at, direct_pair_key
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`
	parts, err := json.Marshal(s.Participants)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, q,
		s.SessionID,
		s.CreatedAt,
		s.WorkspaceID,
		s.MediaSessionID,
		string(s.Kind),
		s.ConversationID,
		s.InitiatedBy,
		parts,
		string(s.Status),
		s.StartedAt,
		s.EndedAt,
		nullInt(s.DurationSeconds),
		s.Version,
		s.UpdatedAt,
		nullString(s.DirectPairKey()),
	)
	if err != nil {
		if utils.IsUniqueViolation(err, "call_sessions_open_direct_pair") {
			return ErrCallInProgress
		}
		if utils.IsUniqueViolation(err, "") {
			return ErrVersionConflict
		}
		return err
	}
	return nil
}

// ConditionalPut updates the attempt only when its stored version matches.
// Zero affected rows is resolved inside the same transaction into either
// ErrSessionNotFound or ErrVersionConflict.
func (p *PostgresStore) ConditionalPut(ctx context.Context, s CallSession, expectedVersion int64) error {
	parts, err := json.Marshal(s.Participants)
	if err != nil {
		return err
	}
	return utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
UPDATE call_sessions
SET media_session_id = $4,
    participants = $5,
    status = $6,
    started_at = $7,
    ended_at = $8,
    duration_seconds = $9,
    version = $10,
    updated_at = $11
WHERE session_id = $1 AND created_at = $2 AND version = $3
`
		res, err := tx.ExecContext(ctx, q,
			s.SessionID,
			s.CreatedAt,
			expectedVersion,
			s.MediaSessionID,
			parts,
			string(s.Status),
			s.StartedAt,
			s.EndedAt,
			nullInt(s.DurationSeconds),
			s.Version,
			s.UpdatedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}

		const exists = `SELECT 1 FROM call_sessions WHERE session_id = $1 AND created_at = $2`
		var one int
		if err := tx.QueryRowContext(ctx, exists, s.SessionID, s.CreatedAt).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSessionNotFound
			}
			return err
		}
		return ErrVersionConflict
	})
}

func (p *PostgresStore) History(ctx context.Context, sessionID string) ([]CallSession, error) {
	const q = selectSessionColumns + `
WHERE session_id = $1
ORDER BY created_at DESC
`
	out, err := p.query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrSessionNotFound
	}
	return out, nil
}

func (p *PostgresStore) ListRinging(ctx context.Context, createdBefore time.Time, limit int) ([]CallSession, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = selectSessionColumns + `
WHERE status = 'RINGING' AND created_at < $1
ORDER BY created_at ASC
LIMIT $2
`
	return p.query(ctx, q, createdBefore, limit)
}

func (p *PostgresStore) ListSessions(ctx context.Context, workspaceID string, from, to time.Time) ([]CallSession, error) {
	if workspaceID == "" {
		return nil, errors.New("workspace_id required")
	}
	const q = selectSessionColumns + `
WHERE workspace_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC
`
	return p.query(ctx, q, workspaceID, from, to)
}

func (p *PostgresStore) query(ctx context.Context, q string, args ...any) ([]CallSession, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (CallSession, error) {
	var (
		s        CallSession
		kind     string
		status   string
		parts    []byte
		started  sql.NullTime
		ended    sql.NullTime
		duration sql.NullInt64
	)
	if err := r.Scan(
		&s.SessionID,
		&s.CreatedAt,
		&s.WorkspaceID,
		&s.MediaSessionID,
		&kind,
		&s.ConversationID,
		&s.InitiatedBy,
		&parts,
		&status,
		&started,
		&ended,
		&duration,
		&s.Version,
		&s.UpdatedAt,
	); err != nil {
		return CallSession{}, err
	}
	s.Kind = Kind(kind)
	s.Status = SessionStatus(status)
	if err := json.Unmarshal(parts, &s.Participants); err != nil {
		return CallSession{}, fmt.Errorf("calls: decode participants: %w", err)
	}
	if started.Valid {
		s.StartedAt = timePtr(started.Time)
	}
	if ended.Valid {
		s.EndedAt = timePtr(ended.Time)
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationSeconds = &d
	}
	return s, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
