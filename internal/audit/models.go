package audit

import "time"

// Event is an immutable, append-only record of one committed call transition.
//
// Invariants:
// - Events are never updated or deleted.
// - session_id and type are required.
// - Recording is best-effort; the orchestrator never fails an operation on audit errors.
type Event struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id,omitempty" db:"workspace_id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	Type        EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user whose request caused the transition.
	// Empty for system transitions such as ring timeouts.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	FromStatus string `json:"from_status,omitempty" db:"from_status"`
	ToStatus   string `json:"to_status" db:"to_status"`
	Version    int64  `json:"version" db:"version"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallInitiated     EventType = "call_initiated"
	EventTypeCallTransition    EventType = "call_transition"
	EventTypeParticipantUpdate EventType = "participant_update"
	EventTypeOwnerTransfer     EventType = "owner_transfer"
)
