package calls

import (
	"context"
	"errors"
	"testing"
	"time"
)

func directSession(id, a, b string, created time.Time) CallSession {
	return CallSession{
		SessionID:   id,
		WorkspaceID: "ws1",
		Kind:        KindDirect,
		InitiatedBy: a,
		Status:      SessionStatusRinging,
		Version:     1,
		CreatedAt:   created,
		UpdatedAt:   created,
		Participants: []CallParticipant{
			{UserID: a, Status: ParticipantStatusJoined, Owner: OwnerState{IsOwner: true}},
			{UserID: b, Status: ParticipantStatusRinging},
		},
	}
}

func TestMemoryStore_ConditionalPut(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := directSession("s1", "a", "b", t0)
	if err := st.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := s.Clone()
	next.Status = SessionStatusActive
	next.Version = 2
	if err := st.ConditionalPut(ctx, next, 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.ConditionalPut(ctx, next, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict on stale write, got %v", err)
	}

	got, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 || got.Status != SessionStatusActive {
		t.Fatalf("unexpected stored session %+v", got)
	}

	missing := directSession("nope", "a", "b", t0)
	if err := st.ConditionalPut(ctx, missing, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_DirectPairUniqueness(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	if err := st.Create(ctx, directSession("s1", "a", "b", t0)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Create(ctx, directSession("s2", "b", "a", t0.Add(time.Second))); !errors.Is(err, ErrCallInProgress) {
		t.Fatalf("expected call in progress, got %v", err)
	}

	ended := directSession("s1", "a", "b", t0)
	ended.Status = SessionStatusEnded
	ended.Version = 2
	if err := st.ConditionalPut(ctx, ended, 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Create(ctx, directSession("s2", "b", "a", t0.Add(time.Second))); err != nil {
		t.Fatalf("expected create after end, got %v", err)
	}
}

func TestMemoryStore_HistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	first := directSession("s1", "a", "b", t0)
	first.Status = SessionStatusMissed
	if err := st.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Create(ctx, directSession("s1", "a", "b", t0.Add(time.Minute))); err != nil {
		t.Fatalf("create retry attempt: %v", err)
	}

	h, err := st.History(ctx, "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(h) != 2 || !h[0].CreatedAt.After(h[1].CreatedAt) {
		t.Fatalf("expected two attempts newest first, got %+v", h)
	}
	latest, _ := st.Get(ctx, "s1")
	if latest.Status != SessionStatusRinging {
		t.Fatalf("get should return the latest attempt, got %s", latest.Status)
	}

	// A write computed against the old attempt must not land on the new one.
	stale := first.Clone()
	stale.Version = 1
	if err := st.ConditionalPut(ctx, stale, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict for old attempt, got %v", err)
	}
}

func TestMemoryStore_ListRingingAndSessions(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	_ = st.Create(ctx, directSession("old", "a", "b", t0))
	_ = st.Create(ctx, directSession("new", "c", "d", t0.Add(time.Minute)))

	ringing, err := st.ListRinging(ctx, t0.Add(30*time.Second), 10)
	if err != nil {
		t.Fatalf("list ringing: %v", err)
	}
	if len(ringing) != 1 || ringing[0].SessionID != "old" {
		t.Fatalf("unexpected ringing list %+v", ringing)
	}

	all, err := st.ListSessions(ctx, "ws1", t0, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(all) != 2 || all[0].SessionID != "old" {
		t.Fatalf("unexpected sessions %+v", all)
	}
	if _, err := st.ListSessions(ctx, "", t0, t0.Add(time.Hour)); err == nil {
		t.Fatalf("expected workspace required error")
	}
}
