package calls

import (
	"testing"
	"time"
)

func TestSessionStatus_Terminal(t *testing.T) {
	open := []SessionStatus{SessionStatusRinging, SessionStatusActive}
	for _, s := range open {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	closed := []SessionStatus{SessionStatusEnded, SessionStatusMissed, SessionStatusRejected, SessionStatusCancelled}
	for _, s := range closed {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	now := time.Now()
	s := CallSession{
		SessionID: "s1",
		StartedAt: &now,
		Participants: []CallParticipant{
			{UserID: "a", Status: ParticipantStatusJoined, Owner: OwnerState{IsOwner: true, BecameOwnerAt: &now}},
		},
	}
	c := s.Clone()
	c.Participants[0].Status = ParticipantStatusLeft
	*c.StartedAt = now.Add(time.Hour)

	if s.Participants[0].Status != ParticipantStatusJoined {
		t.Fatalf("clone aliased participants")
	}
	if !s.StartedAt.Equal(now) {
		t.Fatalf("clone aliased started_at")
	}
}

func TestDirectPairKey_IsOrderIndependent(t *testing.T) {
	a := CallSession{Kind: KindDirect, Participants: []CallParticipant{{UserID: "u2"}, {UserID: "u1"}}}
	b := CallSession{Kind: KindDirect, Participants: []CallParticipant{{UserID: "u1"}, {UserID: "u2"}}}
	if a.DirectPairKey() == "" || a.DirectPairKey() != b.DirectPairKey() {
		t.Fatalf("expected equal pair keys, got %q and %q", a.DirectPairKey(), b.DirectPairKey())
	}
	g := CallSession{Kind: KindGroup, Participants: a.Participants}
	if g.DirectPairKey() != "" {
		t.Fatalf("group sessions have no pair key")
	}
}

func TestOwnerHelpers(t *testing.T) {
	s := CallSession{Participants: []CallParticipant{
		{UserID: "a", Status: ParticipantStatusLeft},
		{UserID: "b", Status: ParticipantStatusJoined, Owner: OwnerState{IsOwner: true}},
		{UserID: "c", Status: ParticipantStatusRinging},
	}}
	if s.OwnerID() != "b" || s.OwnerCount() != 1 {
		t.Fatalf("unexpected owner %q count %d", s.OwnerID(), s.OwnerCount())
	}
	active := s.UsersWithStatus(ParticipantStatusJoined, ParticipantStatusRinging)
	if len(active) != 2 || active[0] != "b" || active[1] != "c" {
		t.Fatalf("unexpected active users %v", active)
	}
	if p := s.Participant("zz"); p != nil {
		t.Fatalf("expected nil participant")
	}
}
