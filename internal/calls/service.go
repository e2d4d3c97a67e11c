package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"call-platform/internal/audit"
	"call-platform/internal/media"
	"call-platform/internal/signaling"
	"call-platform/pkg/logger"

	"github.com/google/uuid"
)

// DefaultRetryBudget bounds read-modify-write attempts per operation.
const DefaultRetryBudget = 3

// Notifier receives the events of a committed write. Implementations must not
// block the caller and must not report delivery failures back.
type Notifier interface {
	Dispatch(ctx context.Context, deliveries []signaling.Delivery)
}

// TransitionAuditor records committed writes. Failures are logged and ignored.
type TransitionAuditor interface {
	LogTransition(ctx context.Context, t audit.Transition) error
}

type Options struct {
	RetryBudget int
	Auditor     TransitionAuditor
	Logger      *slog.Logger
}

// Service is the call orchestrator.
//
// It holds no per-session lock. Every mutation re-reads the session, computes
// the next record and writes it with Store.ConditionalPut on the read version;
// a conflict restarts the cycle up to retryBudget times.
type Service struct {
	store       Store
	media       media.Provider
	notify      Notifier
	audit       TransitionAuditor
	log         *slog.Logger
	retryBudget int

	clock func() time.Time
	newID func() string
}

func NewService(store Store, provider media.Provider, notifier Notifier, opts Options) *Service {
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = DefaultRetryBudget
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:       store,
		media:       provider,
		notify:      notifier,
		audit:       opts.Auditor,
		log:         opts.Logger,
		retryBudget: opts.RetryBudget,
		clock:       time.Now,
		newID:       uuid.NewString,
	}
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func (s *Service) logger(ctx context.Context) *slog.Logger { return logger.FromOr(ctx, s.log) }

// outcome collects the side effects of one computed transition. They run only
// after the conditional write commits.
type outcome struct {
	sends        []send
	destroyMedia string
	ownerChanged bool
	noop         bool
}

type send struct {
	userID string
	event  signaling.Event
}

func (o *outcome) send(ev signaling.Event, users ...string) {
	for _, u := range users {
		o.sends = append(o.sends, send{userID: u, event: ev})
	}
}

// mutation computes next from a fresh copy of the stored session. It must not
// have side effects other than idempotent media calls.
type mutation func(ctx context.Context, next *CallSession, now time.Time, out *outcome) error

func (s *Service) mutate(ctx context.Context, sessionID, actorID string, fn mutation) (CallSession, error) {
	if sessionID == "" {
		return CallSession{}, ErrSessionNotFound
	}
	for attempt := 1; attempt <= s.retryBudget; attempt++ {
		cur, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return CallSession{}, err
		}
		if cur.Status.Terminal() {
			return CallSession{}, ErrSessionTerminal
		}

		now := s.now()
		next := cur.Clone()
		var out outcome
		if err := fn(ctx, &next, now, &out); err != nil {
			return CallSession{}, err
		}
		if out.noop {
			return cur, nil
		}

		next.Version = cur.Version + 1
		next.UpdatedAt = now
		err = s.store.ConditionalPut(ctx, next, cur.Version)
		if errors.Is(err, ErrVersionConflict) {
			s.logger(ctx).Debug("calls: version conflict, retrying", "session_id", sessionID, "attempt", attempt, "version", cur.Version)
			continue
		}
		if err != nil {
			return CallSession{}, err
		}

		s.afterCommit(ctx, actorID, cur.Status, next, now, out)
		return next, nil
	}
	s.logger(ctx).Warn("calls: retry budget exhausted", "session_id", sessionID, "budget", s.retryBudget)
	return CallSession{}, ErrVersionConflict
}

func (s *Service) afterCommit(ctx context.Context, actorID string, from SessionStatus, next CallSession, now time.Time, out outcome) {
	log := s.logger(ctx)
	log.Info("calls: transition committed",
		"session_id", next.SessionID,
		"from", string(from),
		"to", string(next.Status),
		"version", next.Version,
		"actor", actorID,
	)

	if out.destroyMedia != "" && s.media != nil {
		if err := s.media.DestroySession(ctx, out.destroyMedia); err != nil {
			log.Warn("calls: media teardown failed", "session_id", next.SessionID, "media_session_id", out.destroyMedia, "err", err)
		}
	}

	if s.audit != nil {
		err := s.audit.LogTransition(ctx, audit.Transition{
			WorkspaceID:  next.WorkspaceID,
			SessionID:    next.SessionID,
			ActorUserID:  actorID,
			FromStatus:   string(from),
			ToStatus:     string(next.Status),
			Version:      next.Version,
			OwnerChanged: out.ownerChanged,
		})
		if err != nil {
			log.Warn("calls: audit failed", "session_id", next.SessionID, "err", err)
		}
	}

	if s.notify == nil || len(out.sends) == 0 {
		return
	}
	deliveries := make([]signaling.Delivery, 0, len(out.sends))
	for _, sd := range out.sends {
		deliveries = append(deliveries, signaling.Delivery{
			UserID: sd.userID,
			Message: signaling.Message{
				SessionID: next.SessionID,
				Timestamp: now,
				Version:   next.Version,
				Event:     sd.event,
			},
		})
	}
	s.notify.Dispatch(ctx, deliveries)
}

// notifyError tells the caller's other devices that an operation failed.
// Nothing was committed, so the message carries no version.
func (s *Service) notifyError(ctx context.Context, sessionID, userID, code string, err error) {
	if s.notify == nil || userID == "" {
		return
	}
	s.notify.Dispatch(ctx, []signaling.Delivery{{
		UserID: userID,
		Message: signaling.Message{
			SessionID: sessionID,
			Timestamp: s.now(),
			Event:     signaling.CallError{Code: code, Message: err.Error()},
		},
	}})
}

// GetSession returns the authoritative latest state of a session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (CallSession, error) {
	if sessionID == "" {
		return CallSession{}, ErrSessionNotFound
	}
	return s.store.Get(ctx, sessionID)
}

// History returns every stored attempt for sessionID, newest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]CallSession, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	return s.store.History(ctx, sessionID)
}

// mediaCache keeps a created media session id across retries of one operation.
type mediaCache struct {
	id string
}

func (s *Service) ensureMedia(ctx context.Context, next *CallSession, cache *mediaCache) (string, error) {
	if next.MediaSessionID != "" {
		return next.MediaSessionID, nil
	}
	if cache.id != "" {
		return cache.id, nil
	}
	if s.media == nil {
		return "", fmt.Errorf("%w: no media provider configured", ErrMediaProviderFailure)
	}
	id, err := s.media.CreateSession(ctx, next.SessionID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMediaProviderFailure, err)
	}
	cache.id = id
	return id, nil
}

// connect issues a join credential for p and queues its CALL_CONNECTED.
func (s *Service) connect(ctx context.Context, next *CallSession, p *CallParticipant, out *outcome) error {
	cred, err := s.media.IssueJoinCredential(ctx, next.MediaSessionID, p.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaProviderFailure, err)
	}
	if p.MediaAttendeeID == "" {
		p.MediaAttendeeID = cred.AttendeeID
	}
	var started time.Time
	if next.StartedAt != nil {
		started = *next.StartedAt
	}
	out.send(signaling.CallConnected{
		MediaSessionID: next.MediaSessionID,
		AttendeeID:     p.MediaAttendeeID,
		JoinToken:      cred.Token,
		MediaURL:       cred.URL,
		OwnerID:        next.OwnerID(),
		Joined:         next.UsersWithStatus(ParticipantStatusJoined),
		StartedAt:      started,
	}, p.UserID)
	return nil
}

// currentExcept lists RINGING and JOINED participants other than userID.
func currentExcept(s *CallSession, userID string) []string {
	out := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.UserID != userID && p.Status.Active() {
			out = append(out, p.UserID)
		}
	}
	return out
}

func durationSeconds(from *time.Time, to time.Time) int {
	if from == nil || to.Before(*from) {
		return 0
	}
	return int(to.Sub(*from) / time.Second)
}
