package client

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"call-platform/internal/calls"
	"call-platform/internal/media"
	"call-platform/internal/signaling"
)

// router delivers committed events straight into each user's controller,
// going through the wire codec on the way.
type router struct {
	t     *testing.T
	ctrls map[string]*Controller
}

func (r *router) Dispatch(ctx context.Context, ds []signaling.Delivery) {
	for _, d := range ds {
		env, err := signaling.Encode(d.Message)
		if err != nil {
			r.t.Errorf("encode: %v", err)
			continue
		}
		msg, err := signaling.Decode(env)
		if err != nil {
			r.t.Errorf("decode: %v", err)
			continue
		}
		if c, ok := r.ctrls[d.UserID]; ok {
			c.Apply(msg)
		}
	}
}

type world struct {
	svc   *calls.Service
	route *router
}

func newWorld(t *testing.T, users ...string) (*world, map[string]*Controller) {
	t.Helper()
	rt := &router{t: t, ctrls: map[string]*Controller{}}
	svc := calls.NewService(calls.NewMemoryStore(), media.NewMemoryProvider(), rt, calls.Options{})
	for _, u := range users {
		rt.ctrls[u] = NewController(LocalAPI{Svc: svc, UserID: u, WorkspaceID: "ws1"}, u, nil)
	}
	return &world{svc: svc, route: rt}, rt.ctrls
}

func TestDirectCallLifecycle(t *testing.T) {
	ctx := context.Background()
	_, c := newWorld(t, "alice", "bob")

	s, err := c["alice"].Initiate(ctx, []string{"bob"}, calls.KindDirect, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	a := c["alice"].State()
	if a.ActiveCall == nil || a.ActiveCall.SessionID != s.SessionID || !a.IsOwner || !a.IsRinging {
		t.Fatalf("unexpected caller state %+v", a)
	}
	b := c["bob"].State()
	if b.IncomingCall == nil || b.IncomingCall.InitiatedBy != "alice" || !b.IsRinging || b.ActiveCall != nil {
		t.Fatalf("unexpected callee state %+v", b)
	}

	if _, err := c["bob"].Accept(ctx, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}
	b = c["bob"].State()
	if b.ActiveCall == nil || b.ActiveCall.JoinToken == "" || b.IncomingCall != nil || b.IsRinging || b.IsOwner {
		t.Fatalf("unexpected callee state after accept %+v", b)
	}
	a = c["alice"].State()
	if a.ActiveCall.Status != string(calls.SessionStatusActive) || a.ActiveCall.JoinToken == "" || !a.IsOwner || a.IsRinging {
		t.Fatalf("unexpected caller state after accept %+v", a.ActiveCall)
	}

	if _, err := c["alice"].End(ctx); err != nil {
		t.Fatalf("end: %v", err)
	}
	for _, u := range []string{"alice", "bob"} {
		if st := c[u].State(); st.ActiveCall != nil || st.IsOwner || st.IsRinging {
			t.Fatalf("%s should be idle, got %+v", u, st)
		}
	}
}

func TestFailedOperationKeepsState(t *testing.T) {
	ctx := context.Background()
	_, c := newWorld(t, "alice", "bob")
	if _, err := c["alice"].Initiate(ctx, []string{"bob"}, calls.KindDirect, ""); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := c["bob"].Accept(ctx, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}

	before := c["bob"].State()
	if _, err := c["bob"].End(ctx); !errors.Is(err, calls.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	if after := c["bob"].State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("failed end changed state:\n%+v\n%+v", before, after)
	}

	if _, err := c["alice"].Initiate(ctx, []string{"alice"}, calls.KindDirect, ""); err == nil {
		t.Fatalf("expected invalid participants")
	}
	if st := c["alice"].State(); !st.IsOwner || st.ActiveCall == nil {
		t.Fatalf("failed initiate must not clear the current call")
	}
}

func TestGroupOwnerTransfer(t *testing.T) {
	ctx := context.Background()
	_, c := newWorld(t, "alice", "bob", "carol")
	if _, err := c["alice"].Initiate(ctx, []string{"bob", "carol"}, calls.KindGroup, "conv-9"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	for _, u := range []string{"bob", "carol"} {
		if _, err := c[u].Accept(ctx, ""); err != nil {
			t.Fatalf("%s accept: %v", u, err)
		}
	}

	if _, err := c["alice"].Leave(ctx, ""); !errors.Is(err, calls.ErrOwnerMustTransfer) {
		t.Fatalf("expected owner must transfer, got %v", err)
	}
	if _, err := c["alice"].Leave(ctx, "carol"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if st := c["alice"].State(); st.ActiveCall != nil || st.IsOwner {
		t.Fatalf("alice should be idle, got %+v", st)
	}
	carol := c["carol"].State()
	if !carol.IsOwner || carol.ActiveCall.OwnerID != "carol" {
		t.Fatalf("carol should own the call, got %+v", carol)
	}
	bob := c["bob"].State()
	if bob.IsOwner || bob.ActiveCall.OwnerID != "carol" || len(bob.ActiveCall.Joined) != 2 {
		t.Fatalf("unexpected bob state %+v", bob.ActiveCall)
	}

	if _, err := c["carol"].End(ctx); err != nil {
		t.Fatalf("new owner end: %v", err)
	}
	if st := c["bob"].State(); st.ActiveCall != nil {
		t.Fatalf("bob should see the call end")
	}
}

func TestRejectClearsBothSides(t *testing.T) {
	ctx := context.Background()
	_, c := newWorld(t, "alice", "bob")
	if _, err := c["alice"].Initiate(ctx, []string{"bob"}, calls.KindDirect, ""); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := c["bob"].Reject(ctx); err != nil {
		t.Fatalf("reject: %v", err)
	}
	for _, u := range []string{"alice", "bob"} {
		if st := c[u].State(); st.ActiveCall != nil || st.IncomingCall != nil || st.IsRinging {
			t.Fatalf("%s should be idle, got %+v", u, st)
		}
	}
	if _, err := c["bob"].Reject(ctx); !errors.Is(err, ErrNoActiveCall) {
		t.Fatalf("expected no active call, got %v", err)
	}
}

func TestApply_DropsStaleAndUntracked(t *testing.T) {
	c := NewController(nil, "bob", nil)
	c.Apply(signaling.Message{SessionID: "s1", Version: 1, Event: signaling.IncomingCall{InitiatedBy: "alice", Participants: []string{"alice", "bob"}}})
	c.Apply(signaling.Message{SessionID: "s1", Version: 2, Event: signaling.CallConnected{MediaSessionID: "m1", OwnerID: "alice", Joined: []string{"alice", "bob"}}})
	c.Apply(signaling.Message{SessionID: "s1", Version: 4, Event: signaling.ParticipantLeft{UserID: "alice", NewOwnerID: "bob"}})

	st := c.State()
	if !st.IsOwner || len(st.ActiveCall.Joined) != 1 {
		t.Fatalf("unexpected state %+v", st.ActiveCall)
	}

	// A late event from an older write is ignored.
	c.Apply(signaling.Message{SessionID: "s1", Version: 3, Event: signaling.ParticipantJoined{UserID: "alice"}})
	if got := c.State().ActiveCall.Joined; len(got) != 1 {
		t.Fatalf("stale event applied: %v", got)
	}

	before := c.State()
	c.Apply(signaling.Message{SessionID: "other", Version: 9, Event: signaling.CallEnded{EndedBy: "x"}})
	c.Apply(signaling.Message{SessionID: "other", Version: 9, Event: signaling.CallCancelled{CancelledBy: "x"}})
	if after := c.State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("untracked terminal event changed state")
	}

	c.Apply(signaling.Message{SessionID: "s1", Event: signaling.CallError{Code: "MEDIA_PROVIDER_FAILURE"}})
	if st := c.State(); st.LastError != "MEDIA_PROVIDER_FAILURE" || st.ActiveCall == nil {
		t.Fatalf("call error should only be recorded, got %+v", st)
	}
}

func TestRun_AppliesUntilClosed(t *testing.T) {
	c := NewController(nil, "bob", nil)
	changes := make(chan State, 4)
	c.OnChange(func(s State) { changes <- s })

	in := make(chan signaling.Envelope, 2)
	env, _ := signaling.Encode(signaling.Message{SessionID: "s1", Version: 1, Event: signaling.IncomingCall{InitiatedBy: "alice"}})
	in <- env
	in <- signaling.Envelope{Type: "BOGUS", SessionID: "s1"}
	close(in)

	if err := c.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	select {
	case s := <-changes:
		if s.IncomingCall == nil || !s.IsRinging {
			t.Fatalf("unexpected state %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("no state change observed")
	}
}

func TestResync_ClearsCallEndedWhileOffline(t *testing.T) {
	ctx := context.Background()
	w, c := newWorld(t, "alice", "bob")
	s, err := c["alice"].Initiate(ctx, []string{"bob"}, calls.KindDirect, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := c["bob"].Accept(ctx, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// bob goes offline and misses the end.
	bob := c["bob"]
	delete(w.route.ctrls, "bob")
	if _, err := w.svc.EndCall(ctx, s.SessionID, "alice"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if bob.State().ActiveCall == nil {
		t.Fatalf("offline controller should still show the call")
	}

	if err := bob.Resync(ctx); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if st := bob.State(); st.ActiveCall != nil {
		t.Fatalf("resync should clear the ended call, got %+v", st.ActiveCall)
	}
}

func TestRedeliveredEventsDoNotReviveFinishedCalls(t *testing.T) {
	ctx := context.Background()
	_, c := newWorld(t, "alice", "bob")

	s, err := c["alice"].Initiate(ctx, []string{"bob"}, calls.KindDirect, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	incoming := signaling.Message{SessionID: s.SessionID, Version: 1, Event: signaling.IncomingCall{InitiatedBy: "alice", Kind: "DIRECT", Participants: []string{"alice", "bob"}}}
	if _, err := c["alice"].Cancel(ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	c["bob"].Apply(incoming)
	if st := c["bob"].State(); st.IncomingCall != nil || st.IsRinging {
		t.Fatalf("cancelled call came back: %+v", st)
	}

	s2, err := c["alice"].Initiate(ctx, []string{"bob"}, calls.KindDirect, "")
	if err != nil {
		t.Fatalf("second initiate: %v", err)
	}
	if _, err := c["bob"].Accept(ctx, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}
	connected := signaling.Message{SessionID: s2.SessionID, Version: 2, Event: signaling.CallConnected{MediaSessionID: "m", OwnerID: "alice", Joined: []string{"alice", "bob"}}}
	if _, err := c["alice"].End(ctx); err != nil {
		t.Fatalf("end: %v", err)
	}
	for _, u := range []string{"alice", "bob"} {
		c[u].Apply(connected)
		if st := c[u].State(); st.ActiveCall != nil || st.IsOwner {
			t.Fatalf("%s: ended call came back: %+v", u, st.ActiveCall)
		}
	}
}

func TestApply_ConnectedForUnknownSessionIgnored(t *testing.T) {
	c := NewController(nil, "bob", nil)
	c.Apply(signaling.Message{SessionID: "s9", Version: 2, Event: signaling.CallConnected{MediaSessionID: "m", OwnerID: "alice", Joined: []string{"alice", "bob"}}})
	if st := c.State(); st.ActiveCall != nil {
		t.Fatalf("untracked CALL_CONNECTED created a call: %+v", st.ActiveCall)
	}
}
