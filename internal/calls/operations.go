package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"call-platform/internal/signaling"
)

type InitiateRequest struct {
	InitiatorID    string
	ParticipantIDs []string
	Kind           Kind
	ConversationID string
	WorkspaceID    string
}

// Initiate creates a RINGING session owned by the initiator.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (CallSession, error) {
	if err := validateInitiate(req); err != nil {
		return CallSession{}, err
	}

	now := s.now()
	session := CallSession{
		SessionID:   s.newID(),
		WorkspaceID: req.WorkspaceID,
		Kind:        req.Kind,
		InitiatedBy: req.InitiatorID,
		Status:      SessionStatusRinging,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Kind == KindGroup {
		session.ConversationID = req.ConversationID
	}
	session.Participants = append(session.Participants, CallParticipant{
		UserID:   req.InitiatorID,
		Status:   ParticipantStatusJoined,
		JoinedAt: timePtr(now),
		Owner:    OwnerState{IsOwner: true, BecameOwnerAt: timePtr(now)},
	})
	for _, id := range req.ParticipantIDs {
		session.Participants = append(session.Participants, CallParticipant{
			UserID: id,
			Status: ParticipantStatusRinging,
		})
	}

	if err := s.store.Create(ctx, session); err != nil {
		return CallSession{}, err
	}

	var out outcome
	out.send(signaling.IncomingCall{
		InitiatedBy:    session.InitiatedBy,
		Kind:           string(session.Kind),
		ConversationID: session.ConversationID,
		Participants:   session.UserIDs(),
	}, req.ParticipantIDs...)
	out.send(signaling.CallRinging{
		Kind:           string(session.Kind),
		ConversationID: session.ConversationID,
		Participants:   session.UserIDs(),
	}, session.InitiatedBy)
	s.afterCommit(ctx, req.InitiatorID, "", session, now, out)
	return session, nil
}

func validateInitiate(req InitiateRequest) error {
	if req.InitiatorID == "" {
		return fmt.Errorf("%w: initiator required", ErrInvalidParticipants)
	}
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidParticipants, req.Kind)
	}
	if len(req.ParticipantIDs) == 0 {
		return fmt.Errorf("%w: no participants", ErrInvalidParticipants)
	}
	seen := map[string]struct{}{req.InitiatorID: {}}
	for _, id := range req.ParticipantIDs {
		if id == "" {
			return fmt.Errorf("%w: empty user id", ErrInvalidParticipants)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate user %q", ErrInvalidParticipants, id)
		}
		seen[id] = struct{}{}
	}
	switch req.Kind {
	case KindDirect:
		if len(req.ParticipantIDs) != 1 {
			return fmt.Errorf("%w: direct calls have exactly one recipient", ErrInvalidParticipants)
		}
	case KindGroup:
		if req.ConversationID == "" {
			return fmt.Errorf("%w: conversation id required for group calls", ErrInvalidParticipants)
		}
	}
	return nil
}

// UpdateParticipantStatus moves userID to JOINED, LEFT or REJECTED.
func (s *Service) UpdateParticipantStatus(ctx context.Context, sessionID, userID string, status ParticipantStatus, attendeeID string) (CallSession, error) {
	var cache mediaCache
	out, err := s.mutate(ctx, sessionID, userID, func(ctx context.Context, next *CallSession, now time.Time, out *outcome) error {
		p := next.Participant(userID)
		if p == nil {
			return ErrNotParticipant
		}
		switch status {
		case ParticipantStatusJoined:
			return s.applyJoin(ctx, next, p, attendeeID, now, &cache, out)
		case ParticipantStatusRejected, ParticipantStatusLeft:
			if next.Status == SessionStatusRinging {
				if userID == next.InitiatedBy {
					return applyCancel(next, userID, now, out)
				}
				return applyDecline(next, p, status, now, out)
			}
			return applyLeave(next, p, "", status, now, out)
		default:
			return fmt.Errorf("%w: cannot move participant to %q", ErrInvalidTransition, status)
		}
	})
	if errors.Is(err, ErrMediaProviderFailure) {
		s.notifyError(ctx, sessionID, userID, "MEDIA_PROVIDER_FAILURE", err)
	}
	return out, err
}

// RejectCall declines a ringing call.
func (s *Service) RejectCall(ctx context.Context, sessionID, userID string) (CallSession, error) {
	return s.mutate(ctx, sessionID, userID, func(ctx context.Context, next *CallSession, now time.Time, out *outcome) error {
		p := next.Participant(userID)
		if p == nil {
			return ErrNotParticipant
		}
		if next.Status != SessionStatusRinging {
			return fmt.Errorf("%w: reject requires a ringing session", ErrInvalidTransition)
		}
		if userID == next.InitiatedBy {
			return fmt.Errorf("%w: the initiator cancels instead of rejecting", ErrInvalidTransition)
		}
		return applyDecline(next, p, ParticipantStatusRejected, now, out)
	})
}

// CancelCall withdraws a ringing call. Only the initiator may cancel.
func (s *Service) CancelCall(ctx context.Context, sessionID, initiatorID string) (CallSession, error) {
	return s.mutate(ctx, sessionID, initiatorID, func(ctx context.Context, next *CallSession, now time.Time, out *outcome) error {
		if next.Participant(initiatorID) == nil {
			return ErrNotParticipant
		}
		return applyCancel(next, initiatorID, now, out)
	})
}

// LeaveCall removes userID from an active call. An owner of a GROUP call with
// other joined participants must hand ownership to newOwnerID in the same write.
func (s *Service) LeaveCall(ctx context.Context, sessionID, userID, newOwnerID string) (CallSession, error) {
	return s.mutate(ctx, sessionID, userID, func(ctx context.Context, next *CallSession, now time.Time, out *outcome) error {
		p := next.Participant(userID)
		if p == nil {
			return ErrNotParticipant
		}
		if next.Kind == KindDirect && newOwnerID != "" {
			return ErrTransferNotSupported
		}
		if next.Status != SessionStatusActive {
			return fmt.Errorf("%w: leave requires an active session", ErrInvalidTransition)
		}
		return applyLeave(next, p, newOwnerID, ParticipantStatusLeft, now, out)
	})
}

// EndCall ends an active call for everyone. Only the current owner may end it.
func (s *Service) EndCall(ctx context.Context, sessionID, callerID string) (CallSession, error) {
	return s.mutate(ctx, sessionID, callerID, func(ctx context.Context, next *CallSession, now time.Time, out *outcome) error {
		p := next.Participant(callerID)
		if p == nil {
			return ErrNotParticipant
		}
		if !p.Owner.IsOwner {
			return ErrNotOwner
		}
		if next.Status != SessionStatusActive {
			return fmt.Errorf("%w: end requires an active session", ErrInvalidTransition)
		}
		applyEnd(next, callerID, now, out)
		return nil
	})
}

// MarkMissed moves an unanswered RINGING session to MISSED.
func (s *Service) MarkMissed(ctx context.Context, sessionID string) (CallSession, error) {
	return s.mutate(ctx, sessionID, "", func(ctx context.Context, next *CallSession, now time.Time, out *outcome) error {
		if next.Status != SessionStatusRinging {
			return fmt.Errorf("%w: only ringing sessions can be missed", ErrInvalidTransition)
		}
		next.Status = SessionStatusMissed
		next.EndedAt = timePtr(now)
		out.send(signaling.CallMissed{InitiatedBy: next.InitiatedBy}, next.UserIDs()...)
		return nil
	})
}

// applyJoin moves p to JOINED. The first join of a RINGING session activates it.
func (s *Service) applyJoin(ctx context.Context, next *CallSession, p *CallParticipant, attendeeID string, now time.Time, cache *mediaCache, out *outcome) error {
	switch p.Status {
	case ParticipantStatusJoined:
		if attendeeID == "" || attendeeID == p.MediaAttendeeID {
			out.noop = true
			return nil
		}
		p.MediaAttendeeID = attendeeID
		return nil
	case ParticipantStatusLeft, ParticipantStatusRejected:
		if next.Kind != KindGroup || next.Status != SessionStatusActive {
			return fmt.Errorf("%w: cannot rejoin", ErrInvalidTransition)
		}
	}

	p.Status = ParticipantStatusJoined
	p.JoinedAt = timePtr(now)
	p.LeftAt = nil
	if attendeeID != "" {
		p.MediaAttendeeID = attendeeID
	}
	joiner := p.UserID

	if next.Status == SessionStatusRinging {
		if err := s.acceptFirstJoin(ctx, next, now, cache, out); err != nil {
			return err
		}
		out.send(signaling.ParticipantJoined{UserID: joiner}, joinedExcept(next, joiner)...)
		return nil
	}
	if err := s.connect(ctx, next, p, out); err != nil {
		return err
	}
	out.send(signaling.ParticipantJoined{UserID: joiner}, currentExcept(next, joiner)...)
	return nil
}

// acceptFirstJoin activates a RINGING session. The media session is reused
// when one is already recorded, and CALL_CONNECTED goes only to participants
// that have joined; still-ringing participants hear nothing yet.
func (s *Service) acceptFirstJoin(ctx context.Context, next *CallSession, now time.Time, cache *mediaCache, out *outcome) error {
	mediaID, err := s.ensureMedia(ctx, next, cache)
	if err != nil {
		return err
	}
	next.MediaSessionID = mediaID
	next.Status = SessionStatusActive
	next.StartedAt = timePtr(now)

	for i := range next.Participants {
		if next.Participants[i].Status != ParticipantStatusJoined {
			continue
		}
		if err := s.connect(ctx, next, &next.Participants[i], out); err != nil {
			return err
		}
	}
	return nil
}

// applyDecline records that a ringing participant will not join. A RINGING
// session with nobody left ringing becomes REJECTED.
func applyDecline(next *CallSession, p *CallParticipant, status ParticipantStatus, now time.Time, out *outcome) error {
	if p.Status == status {
		out.noop = true
		return nil
	}
	if p.Status != ParticipantStatusRinging {
		return fmt.Errorf("%w: participant is %s", ErrInvalidTransition, p.Status)
	}
	p.Status = status
	if status == ParticipantStatusLeft {
		p.LeftAt = timePtr(now)
	}

	if next.Status == SessionStatusRinging && next.countStatus(ParticipantStatusRinging) == 0 {
		next.Status = SessionStatusRejected
		next.EndedAt = timePtr(now)
		for i := range next.Participants {
			if next.Participants[i].Status == ParticipantStatusJoined {
				next.Participants[i].Status = ParticipantStatusLeft
				next.Participants[i].LeftAt = timePtr(now)
			}
		}
	}

	if status == ParticipantStatusLeft {
		out.send(signaling.ParticipantLeft{UserID: p.UserID}, currentExcept(next, p.UserID)...)
	}
	out.send(signaling.CallRejected{UserID: p.UserID, SessionStatus: string(next.Status)}, next.UserIDs()...)
	return nil
}

func applyCancel(next *CallSession, userID string, now time.Time, out *outcome) error {
	if userID != next.InitiatedBy {
		return ErrNotOwner
	}
	if next.Status != SessionStatusRinging {
		return fmt.Errorf("%w: cancel requires a ringing session", ErrInvalidTransition)
	}
	next.Status = SessionStatusCancelled
	next.EndedAt = timePtr(now)
	if p := next.Participant(userID); p != nil && p.Status == ParticipantStatusJoined {
		p.Status = ParticipantStatusLeft
		p.LeftAt = timePtr(now)
	}
	out.send(signaling.CallCancelled{CancelledBy: userID}, next.UserIDs()...)
	return nil
}

// applyLeave handles a participant leaving an ACTIVE session. The leaver
// ends as leftAs, which is LEFT or REJECTED.
func applyLeave(next *CallSession, p *CallParticipant, newOwnerID string, leftAs ParticipantStatus, now time.Time, out *outcome) error {
	switch p.Status {
	case ParticipantStatusLeft, ParticipantStatusRejected:
		out.noop = true
		return nil
	case ParticipantStatusRinging:
		return applyDecline(next, p, leftAs, now, out)
	}

	leaver := p.UserID
	end := func() {
		applyEnd(next, leaver, now, out)
		p.Status = leftAs
	}
	if next.Kind == KindDirect {
		end()
		return nil
	}

	if !p.Owner.IsOwner {
		p.Status = leftAs
		p.LeftAt = timePtr(now)
		if next.countStatus(ParticipantStatusJoined) == 0 {
			end()
			return nil
		}
		out.send(signaling.ParticipantLeft{UserID: leaver}, append(currentExcept(next, leaver), leaver)...)
		return nil
	}

	othersJoined := 0
	for _, q := range next.Participants {
		if q.UserID != leaver && q.Status == ParticipantStatusJoined {
			othersJoined++
		}
	}
	if othersJoined == 0 && newOwnerID == "" {
		end()
		return nil
	}

	if newOwnerID == "" || newOwnerID == leaver {
		return ErrOwnerMustTransfer
	}
	heir := next.Participant(newOwnerID)
	if heir == nil || heir.Status != ParticipantStatusJoined {
		return fmt.Errorf("%w: new owner must be a joined participant", ErrOwnerMustTransfer)
	}

	p.Owner = OwnerState{}
	p.Status = leftAs
	p.LeftAt = timePtr(now)
	heir.Owner = OwnerState{IsOwner: true, BecameOwnerAt: timePtr(now)}
	out.ownerChanged = true

	out.send(signaling.ParticipantLeft{UserID: leaver, NewOwnerID: newOwnerID}, append(currentExcept(next, leaver), leaver)...)
	return nil
}

func joinedExcept(s *CallSession, userID string) []string {
	var out []string
	for _, p := range s.Participants {
		if p.UserID != userID && p.Status == ParticipantStatusJoined {
			out = append(out, p.UserID)
		}
	}
	return out
}

// applyEnd finishes an ACTIVE session. Joined participants are stamped LEFT
// and the media session is queued for teardown after commit.
func applyEnd(next *CallSession, endedBy string, now time.Time, out *outcome) {
	next.Status = SessionStatusEnded
	next.EndedAt = timePtr(now)
	d := durationSeconds(next.StartedAt, now)
	next.DurationSeconds = &d
	for i := range next.Participants {
		if next.Participants[i].Status == ParticipantStatusJoined {
			next.Participants[i].Status = ParticipantStatusLeft
			next.Participants[i].LeftAt = timePtr(now)
		}
	}
	out.destroyMedia = next.MediaSessionID
	out.send(signaling.CallEnded{EndedBy: endedBy, DurationSeconds: d}, next.UserIDs()...)
}
