package calls

import (
	"sort"
	"strings"
	"time"
)

// CallSession is one attempt at a direct or group call.
//
// Invariants:
// - Exactly one participant owns the session while it is RINGING or ACTIVE.
// - A DIRECT session always has exactly two participant records.
// - Participants are never removed; leaving is a status change.
// - Once Status is terminal the record is never written again.
//
// The record key is (SessionID, CreatedAt); Version guards every mutation.
type CallSession struct {
	SessionID      string `json:"session_id" db:"session_id"`
	WorkspaceID    string `json:"workspace_id,omitempty" db:"workspace_id"`
	MediaSessionID string `json:"media_session_id,omitempty" db:"media_session_id"`

	Kind           Kind   `json:"kind" db:"kind"`
	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`
	InitiatedBy    string `json:"initiated_by" db:"initiated_by"`

	Participants []CallParticipant `json:"participants" db:"participants"`

	Status SessionStatus `json:"status" db:"status"`

	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds *int       `json:"duration_seconds,omitempty" db:"duration_seconds"`

	Version int64 `json:"version" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallParticipant is embedded in CallSession, one per user.
type CallParticipant struct {
	UserID          string            `json:"user_id"`
	MediaAttendeeID string            `json:"media_attendee_id,omitempty"`
	JoinedAt        *time.Time        `json:"joined_at,omitempty"`
	LeftAt          *time.Time        `json:"left_at,omitempty"`
	Status          ParticipantStatus `json:"status"`
	Owner           OwnerState        `json:"owner_state"`
}

type OwnerState struct {
	IsOwner       bool       `json:"is_owner"`
	BecameOwnerAt *time.Time `json:"became_owner_at,omitempty"`
}

type Kind string

const (
	KindDirect Kind = "DIRECT"
	KindGroup  Kind = "GROUP"
)

func (k Kind) Valid() bool { return k == KindDirect || k == KindGroup }

type SessionStatus string

const (
	SessionStatusRinging   SessionStatus = "RINGING"
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusEnded     SessionStatus = "ENDED"
	SessionStatusMissed    SessionStatus = "MISSED"
	SessionStatusRejected  SessionStatus = "REJECTED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// Terminal reports whether no further mutation is accepted.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusRinging, SessionStatusActive:
		return false
	default:
		return true
	}
}

type ParticipantStatus string

const (
	ParticipantStatusRinging  ParticipantStatus = "RINGING"
	ParticipantStatusJoined   ParticipantStatus = "JOINED"
	ParticipantStatusLeft     ParticipantStatus = "LEFT"
	ParticipantStatusRejected ParticipantStatus = "REJECTED"
)

func (s ParticipantStatus) Valid() bool {
	switch s {
	case ParticipantStatusRinging, ParticipantStatusJoined, ParticipantStatusLeft, ParticipantStatusRejected:
		return true
	default:
		return false
	}
}

// Active is true for participants that still count towards keeping a call alive.
func (s ParticipantStatus) Active() bool {
	return s == ParticipantStatusRinging || s == ParticipantStatusJoined
}

// Clone returns a deep copy so a mutation never aliases the stored record.
func (s CallSession) Clone() CallSession {
	out := s
	out.StartedAt = cloneTime(s.StartedAt)
	out.EndedAt = cloneTime(s.EndedAt)
	if s.DurationSeconds != nil {
		d := *s.DurationSeconds
		out.DurationSeconds = &d
	}
	if s.Participants != nil {
		out.Participants = make([]CallParticipant, len(s.Participants))
		for i, p := range s.Participants {
			p.JoinedAt = cloneTime(p.JoinedAt)
			p.LeftAt = cloneTime(p.LeftAt)
			p.Owner.BecameOwnerAt = cloneTime(p.Owner.BecameOwnerAt)
			out.Participants[i] = p
		}
	}
	return out
}

// Participant returns a pointer into s.Participants, or nil.
func (s *CallSession) Participant(userID string) *CallParticipant {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i]
		}
	}
	return nil
}

// OwnerID returns the current owner's user id, or "" in terminal states that lost it.
func (s CallSession) OwnerID() string {
	for _, p := range s.Participants {
		if p.Owner.IsOwner {
			return p.UserID
		}
	}
	return ""
}

func (s CallSession) OwnerCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.Owner.IsOwner {
			n++
		}
	}
	return n
}

// UserIDs lists participants in record order.
func (s CallSession) UserIDs() []string {
	out := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, p.UserID)
	}
	return out
}

// UsersWithStatus lists participants currently in one of the given statuses.
func (s CallSession) UsersWithStatus(statuses ...ParticipantStatus) []string {
	out := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		for _, st := range statuses {
			if p.Status == st {
				out = append(out, p.UserID)
				break
			}
		}
	}
	return out
}

func (s CallSession) countStatus(st ParticipantStatus) int {
	n := 0
	for _, p := range s.Participants {
		if p.Status == st {
			n++
		}
	}
	return n
}

// DirectPairKey identifies the unordered user pair of a DIRECT session.
// Empty for GROUP sessions.
func (s CallSession) DirectPairKey() string {
	if s.Kind != KindDirect {
		return ""
	}
	return directPairKey(s.UserIDs())
}

func directPairKey(users []string) string {
	ids := append([]string(nil), users...)
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }
