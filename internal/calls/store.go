package calls

import (
	"context"
	"time"
)

// Store is the persistence contract for call sessions.
//
// ConditionalPut is the only concurrency primitive the orchestrator relies on:
// it must write s only if the stored latest attempt for s.SessionID still has
// expectedVersion, and return ErrVersionConflict otherwise.
type Store interface {
	// Get returns the latest attempt for sessionID or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (CallSession, error)

	// Create inserts a new attempt. It fails with ErrCallInProgress when a
	// non-terminal DIRECT session already exists for the same user pair.
	Create(ctx context.Context, s CallSession) error

	ConditionalPut(ctx context.Context, s CallSession, expectedVersion int64) error

	// History returns every attempt for sessionID, newest first.
	History(ctx context.Context, sessionID string) ([]CallSession, error)

	// ListRinging returns RINGING sessions created strictly before cutoff.
	ListRinging(ctx context.Context, createdBefore time.Time, limit int) ([]CallSession, error)

	// ListSessions returns sessions of a workspace created in [from, to).
	ListSessions(ctx context.Context, workspaceID string, from, to time.Time) ([]CallSession, error)
}
