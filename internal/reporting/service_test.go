package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-platform/internal/calls"
)

func at(base time.Time, sec int) *time.Time {
	t := base.Add(time.Duration(sec) * time.Second)
	return &t
}

func seed(t *testing.T, now time.Time) *calls.MemoryStore {
	t.Helper()
	d60 := 60
	rows := []calls.CallSession{
		{
			SessionID: "ended", WorkspaceID: "w1", Kind: calls.KindDirect, InitiatedBy: "alice",
			Status: calls.SessionStatusEnded, StartedAt: at(now, 0), EndedAt: at(now, 60), DurationSeconds: &d60,
			CreatedAt: now,
			Participants: []calls.CallParticipant{
				{UserID: "alice", Status: calls.ParticipantStatusLeft, JoinedAt: at(now, -5), LeftAt: at(now, 60)},
				{UserID: "bob", Status: calls.ParticipantStatusLeft, JoinedAt: at(now, 0), LeftAt: at(now, 60)},
			},
		},
		{
			SessionID: "missed", WorkspaceID: "w1", Kind: calls.KindDirect, InitiatedBy: "carol",
			Status: calls.SessionStatusMissed, EndedAt: at(now, 45), CreatedAt: now.Add(time.Minute),
			Participants: []calls.CallParticipant{
				{UserID: "carol", Status: calls.ParticipantStatusJoined, JoinedAt: at(now, 0)},
				{UserID: "bob", Status: calls.ParticipantStatusRinging},
			},
		},
		{
			SessionID: "group", WorkspaceID: "w1", Kind: calls.KindGroup, InitiatedBy: "alice",
			Status: calls.SessionStatusRejected, CreatedAt: now.Add(2 * time.Minute),
			Participants: []calls.CallParticipant{
				{UserID: "alice", Status: calls.ParticipantStatusLeft},
				{UserID: "bob", Status: calls.ParticipantStatusRejected},
				{UserID: "dave", Status: calls.ParticipantStatusRejected},
			},
		},
		{
			SessionID: "other-ws", WorkspaceID: "w2", Kind: calls.KindDirect, InitiatedBy: "x",
			Status: calls.SessionStatusEnded, CreatedAt: now,
			Participants: []calls.CallParticipant{{UserID: "x"}, {UserID: "bob"}},
		},
	}
	st := calls.NewMemoryStore()
	for _, r := range rows {
		if err := st.Create(context.Background(), r); err != nil {
			t.Fatalf("seed %s: %v", r.SessionID, err)
		}
	}
	return st
}

func TestCallsSummary(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := NewService(seed(t, now))
	rng := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{WorkspaceID: "w1", Range: rng})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if out.TotalCalls != 3 || out.DirectCalls != 2 || out.GroupCalls != 1 {
		t.Fatalf("unexpected totals %+v", out)
	}
	if out.AnsweredCalls != 1 || out.MissedCalls != 1 || out.RejectedCalls != 1 {
		t.Fatalf("unexpected outcomes %+v", out)
	}
	if out.TotalDurationSeconds != 60 || out.AverageDurationSeconds != 60 {
		t.Fatalf("unexpected durations %+v", out)
	}

	direct, _ := svc.CallsSummary(context.Background(), CallsSummaryRequest{WorkspaceID: "w1", Range: rng, Kind: "DIRECT"})
	if direct.TotalCalls != 2 || direct.AnswerRate != 0.5 {
		t.Fatalf("unexpected direct summary %+v", direct)
	}
}

func TestCallsSummary_InvalidRequests(t *testing.T) {
	svc := NewService(calls.NewMemoryStore())
	now := time.Now()
	bad := []CallsSummaryRequest{
		{Range: TimeRange{From: now, To: now.Add(time.Hour)}},
		{WorkspaceID: "w", Range: TimeRange{From: now, To: now}},
		{WorkspaceID: "w", Range: TimeRange{From: now, To: now.Add(time.Hour)}, Kind: "CONFERENCE"},
	}
	for i, req := range bad {
		if _, err := svc.CallsSummary(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("case %d: expected invalid request, got %v", i, err)
		}
	}
}

func TestUserSummary(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := NewService(seed(t, now))
	rng := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}

	bob, err := svc.UserSummary(context.Background(), UserSummaryRequest{WorkspaceID: "w1", UserID: "bob", Range: rng})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if bob.Received != 3 || bob.Placed != 0 || bob.Joined != 1 || bob.Missed != 1 || bob.Declined != 1 {
		t.Fatalf("unexpected bob summary %+v", bob)
	}
	if bob.TalkSeconds != 60 {
		t.Fatalf("expected 60 talk seconds, got %d", bob.TalkSeconds)
	}

	alice, _ := svc.UserSummary(context.Background(), UserSummaryRequest{WorkspaceID: "w1", UserID: "alice", Range: rng})
	if alice.Placed != 2 || alice.TalkSeconds != 60 {
		t.Fatalf("unexpected alice summary %+v", alice)
	}
}
