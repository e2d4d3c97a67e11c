package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; there are no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records call transitions for operators. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.SessionID == "" || e.Type == "" || e.ToStatus == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Transition describes one committed session write.
type Transition struct {
	WorkspaceID string
	SessionID   string
	ActorUserID string
	FromStatus  string
	ToStatus    string
	Version     int64
	Message     string
	Metadata    string
	// OwnerChanged marks writes that moved ownership to another participant.
	OwnerChanged bool
}

// LogTransition classifies and appends a committed transition.
func (s *Service) LogTransition(ctx context.Context, t Transition) error {
	typ := EventTypeCallTransition
	switch {
	case t.FromStatus == "":
		typ = EventTypeCallInitiated
	case t.OwnerChanged:
		typ = EventTypeOwnerTransfer
	case t.FromStatus == t.ToStatus:
		typ = EventTypeParticipantUpdate
	}
	return s.Append(ctx, Event{
		WorkspaceID: t.WorkspaceID,
		SessionID:   t.SessionID,
		Type:        typ,
		ActorUserID: t.ActorUserID,
		FromStatus:  t.FromStatus,
		ToStatus:    t.ToStatus,
		Version:     t.Version,
		Message:     t.Message,
		Metadata:    t.Metadata,
	})
}
