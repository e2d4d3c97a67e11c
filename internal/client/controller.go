package client

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"call-platform/internal/calls"
	"call-platform/internal/signaling"
)

// ErrNoActiveCall is returned by operations that need a tracked call.
var ErrNoActiveCall = errors.New("client: no active call")

// maxClosed bounds how many finished sessions a controller remembers.
const maxClosed = 256

// CallInfo is the client's view of one call.
type CallInfo struct {
	SessionID      string
	Kind           string
	ConversationID string
	InitiatedBy    string
	Status         string
	Participants   []string
	Joined         []string
	OwnerID        string

	MediaSessionID string
	AttendeeID     string
	JoinToken      string
	MediaURL       string
}

func (c *CallInfo) clone() *CallInfo {
	if c == nil {
		return nil
	}
	out := *c
	out.Participants = slices.Clone(c.Participants)
	out.Joined = slices.Clone(c.Joined)
	return &out
}

// State is what a call UI renders.
type State struct {
	ActiveCall   *CallInfo
	IncomingCall *CallInfo
	IsRinging    bool
	IsOwner      bool
	// LastError is the code of the most recent CALL_ERROR, if any.
	LastError string
}

func (s State) clone() State {
	s.ActiveCall = s.ActiveCall.clone()
	s.IncomingCall = s.IncomingCall.clone()
	return s
}

// Controller reconciles one user's local call state from operation results
// and the signaling stream.
//
// A failed operation never touches state. Ownership is set optimistically on
// a successful Initiate and afterwards follows CALL_CONNECTED and
// PARTICIPANT_LEFT{newOwnerId} only. Events older than the last applied
// version of their session are dropped, and terminal events for sessions the
// controller does not track are ignored. Once a session is seen terminal, every
// later event for it is dropped, so redelivered events cannot revive it.
type Controller struct {
	api    API
	userID string
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	versions map[string]int64
	onChange func(State)

	closed      map[string]struct{}
	closedOrder []string
}

func NewController(api API, userID string, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{api: api, userID: userID, log: log, versions: map[string]int64{}, closed: map[string]struct{}{}}
}

// OnChange registers fn to be called with a snapshot after every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) update(fn func()) {
	c.mu.Lock()
	fn()
	c.settle()
	snap := c.state.clone()
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}

func (c *Controller) settle() {
	s := &c.state
	s.IsRinging = s.IncomingCall != nil ||
		(s.ActiveCall != nil && s.ActiveCall.Status == string(calls.SessionStatusRinging))
	if s.ActiveCall == nil {
		s.IsOwner = false
	}
}

// seen records version for sessionID and reports whether it is not stale.
func (c *Controller) seen(sessionID string, version int64) bool {
	if version <= 0 {
		return true
	}
	if version < c.versions[sessionID] {
		return false
	}
	c.versions[sessionID] = version
	return true
}

// markClosed remembers sessionID as terminal. The oldest entry is evicted
// past maxClosed.
func (c *Controller) markClosed(sessionID string) {
	if _, ok := c.closed[sessionID]; ok {
		return
	}
	c.closed[sessionID] = struct{}{}
	c.closedOrder = append(c.closedOrder, sessionID)
	if len(c.closedOrder) > maxClosed {
		old := c.closedOrder[0]
		c.closedOrder = c.closedOrder[1:]
		delete(c.closed, old)
		delete(c.versions, old)
	}
}

func (c *Controller) isClosed(sessionID string) bool {
	_, ok := c.closed[sessionID]
	return ok
}

func (c *Controller) tracked(sessionID string) bool {
	return (c.state.ActiveCall != nil && c.state.ActiveCall.SessionID == sessionID) ||
		(c.state.IncomingCall != nil && c.state.IncomingCall.SessionID == sessionID)
}

func (c *Controller) forget(sessionID string) {
	if c.state.ActiveCall != nil && c.state.ActiveCall.SessionID == sessionID {
		c.state.ActiveCall = nil
		c.state.IsOwner = false
	}
	if c.state.IncomingCall != nil && c.state.IncomingCall.SessionID == sessionID {
		c.state.IncomingCall = nil
	}
}

// absorb merges an authoritative session read. Media credentials already
// received for the same session are kept.
func (c *Controller) absorb(s calls.CallSession) {
	if c.isClosed(s.SessionID) || !c.seen(s.SessionID, s.Version) {
		return
	}
	if s.Status.Terminal() {
		c.markClosed(s.SessionID)
	}
	me := s.Participant(c.userID)
	if s.Status.Terminal() || (me != nil && !me.Status.Active()) {
		c.forget(s.SessionID)
		return
	}
	info := infoFromSession(s)
	if cur := c.state.ActiveCall; cur != nil && cur.SessionID == s.SessionID {
		info.MediaSessionID = firstNonEmpty(info.MediaSessionID, cur.MediaSessionID)
		info.AttendeeID = firstNonEmpty(cur.AttendeeID, info.AttendeeID)
		info.JoinToken = cur.JoinToken
		info.MediaURL = cur.MediaURL
	}
	if me != nil && me.Status == calls.ParticipantStatusRinging {
		c.state.IncomingCall = info
		return
	}
	c.state.ActiveCall = info
	if c.state.IncomingCall != nil && c.state.IncomingCall.SessionID == s.SessionID {
		c.state.IncomingCall = nil
	}
}

func infoFromSession(s calls.CallSession) *CallInfo {
	info := &CallInfo{
		SessionID:      s.SessionID,
		Kind:           string(s.Kind),
		ConversationID: s.ConversationID,
		InitiatedBy:    s.InitiatedBy,
		Status:         string(s.Status),
		Participants:   s.UserIDs(),
		Joined:         s.UsersWithStatus(calls.ParticipantStatusJoined),
		OwnerID:        s.OwnerID(),
		MediaSessionID: s.MediaSessionID,
	}
	return info
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Initiate starts a call and marks this user as its owner.
func (c *Controller) Initiate(ctx context.Context, participantIDs []string, kind calls.Kind, conversationID string) (calls.CallSession, error) {
	s, err := c.api.Initiate(ctx, participantIDs, kind, conversationID)
	if err != nil {
		return calls.CallSession{}, err
	}
	c.update(func() {
		c.absorb(s)
		if c.state.ActiveCall != nil && c.state.ActiveCall.SessionID == s.SessionID {
			c.state.IsOwner = true
		}
	})
	return s, nil
}

// Accept joins the incoming call.
func (c *Controller) Accept(ctx context.Context, attendeeID string) (calls.CallSession, error) {
	c.mu.Lock()
	incoming := c.state.IncomingCall
	c.mu.Unlock()
	if incoming == nil {
		return calls.CallSession{}, ErrNoActiveCall
	}
	s, err := c.api.UpdateStatus(ctx, incoming.SessionID, calls.ParticipantStatusJoined, attendeeID)
	if err != nil {
		return calls.CallSession{}, err
	}
	c.update(func() { c.absorb(s) })
	return s, nil
}

// Reject declines the incoming call.
func (c *Controller) Reject(ctx context.Context) (calls.CallSession, error) {
	c.mu.Lock()
	incoming := c.state.IncomingCall
	c.mu.Unlock()
	if incoming == nil {
		return calls.CallSession{}, ErrNoActiveCall
	}
	s, err := c.api.Reject(ctx, incoming.SessionID)
	if err != nil {
		return calls.CallSession{}, err
	}
	c.update(func() {
		c.seen(s.SessionID, s.Version)
		if s.Status.Terminal() {
			c.markClosed(s.SessionID)
		}
		if c.state.IncomingCall != nil && c.state.IncomingCall.SessionID == s.SessionID {
			c.state.IncomingCall = nil
		}
	})
	return s, nil
}

// Cancel withdraws the outgoing call.
func (c *Controller) Cancel(ctx context.Context) (calls.CallSession, error) {
	return c.finish(ctx, func(id string) (calls.CallSession, error) { return c.api.Cancel(ctx, id) })
}

// Leave leaves the active call, handing ownership to newOwnerID when needed.
func (c *Controller) Leave(ctx context.Context, newOwnerID string) (calls.CallSession, error) {
	return c.finish(ctx, func(id string) (calls.CallSession, error) { return c.api.Leave(ctx, id, newOwnerID) })
}

// End ends the active call for everyone.
func (c *Controller) End(ctx context.Context) (calls.CallSession, error) {
	return c.finish(ctx, func(id string) (calls.CallSession, error) { return c.api.End(ctx, id) })
}

func (c *Controller) finish(ctx context.Context, op func(sessionID string) (calls.CallSession, error)) (calls.CallSession, error) {
	c.mu.Lock()
	active := c.state.ActiveCall
	c.mu.Unlock()
	if active == nil {
		return calls.CallSession{}, ErrNoActiveCall
	}
	s, err := op(active.SessionID)
	if err != nil {
		return calls.CallSession{}, err
	}
	c.update(func() {
		c.seen(s.SessionID, s.Version)
		if s.Status.Terminal() {
			c.markClosed(s.SessionID)
		}
		c.forget(s.SessionID)
	})
	return s, nil
}

// Apply reconciles one event.
func (c *Controller) Apply(m signaling.Message) {
	c.update(func() { c.apply(m) })
}

func (c *Controller) apply(m signaling.Message) {
	sid := m.SessionID
	if c.isClosed(sid) {
		c.log.Debug("client: dropping event for finished session", "session_id", sid, "type", m.Event.Type())
		return
	}
	if !c.seen(sid, m.Version) {
		c.log.Debug("client: dropping stale event", "session_id", sid, "type", m.Event.Type(), "version", m.Version)
		return
	}
	active := c.state.ActiveCall
	isActive := active != nil && active.SessionID == sid

	switch ev := m.Event.(type) {
	case signaling.IncomingCall:
		if isActive {
			return
		}
		c.state.IncomingCall = &CallInfo{
			SessionID:      sid,
			Kind:           ev.Kind,
			ConversationID: ev.ConversationID,
			InitiatedBy:    ev.InitiatedBy,
			Status:         string(calls.SessionStatusRinging),
			Participants:   slices.Clone(ev.Participants),
		}
	case signaling.CallRinging:
		if active == nil {
			c.state.ActiveCall = &CallInfo{
				SessionID:      sid,
				Kind:           ev.Kind,
				ConversationID: ev.ConversationID,
				InitiatedBy:    c.userID,
				Status:         string(calls.SessionStatusRinging),
				Participants:   slices.Clone(ev.Participants),
				Joined:         []string{c.userID},
				OwnerID:        c.userID,
			}
		}
	case signaling.CallConnected:
		info := active
		if !isActive {
			inc := c.state.IncomingCall
			if inc == nil || inc.SessionID != sid {
				return
			}
			info = inc.clone()
		}
		info.Status = string(calls.SessionStatusActive)
		info.MediaSessionID = ev.MediaSessionID
		info.AttendeeID = ev.AttendeeID
		info.JoinToken = ev.JoinToken
		info.MediaURL = ev.MediaURL
		info.OwnerID = ev.OwnerID
		info.Joined = slices.Clone(ev.Joined)
		c.state.ActiveCall = info
		if inc := c.state.IncomingCall; inc != nil && inc.SessionID == sid {
			c.state.IncomingCall = nil
		}
		c.state.IsOwner = ev.OwnerID == c.userID
	case signaling.CallRejected:
		if ev.SessionStatus == string(calls.SessionStatusRejected) {
			c.markClosed(sid)
			c.forget(sid)
			return
		}
		if !c.tracked(sid) {
			return
		}
		if ev.UserID == c.userID {
			if inc := c.state.IncomingCall; inc != nil && inc.SessionID == sid {
				c.state.IncomingCall = nil
			}
		}
	case signaling.CallCancelled, signaling.CallEnded, signaling.CallMissed:
		c.markClosed(sid)
		c.forget(sid)
	case signaling.ParticipantJoined:
		if isActive && !slices.Contains(active.Joined, ev.UserID) {
			active.Joined = append(active.Joined, ev.UserID)
		}
	case signaling.ParticipantLeft:
		if !isActive {
			return
		}
		if ev.UserID == c.userID {
			c.forget(sid)
			return
		}
		active.Joined = slices.DeleteFunc(active.Joined, func(u string) bool { return u == ev.UserID })
		if ev.NewOwnerID != "" {
			active.OwnerID = ev.NewOwnerID
			c.state.IsOwner = ev.NewOwnerID == c.userID
		}
	case signaling.CallError:
		c.state.LastError = ev.Code
	default:
		c.log.Warn("client: unhandled event", "type", m.Event.Type(), "session_id", sid)
	}
}

// Run applies envelopes from in until ctx ends or in is closed.
func (c *Controller) Run(ctx context.Context, in <-chan signaling.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-in:
			if !ok {
				return nil
			}
			msg, err := signaling.Decode(env)
			if err != nil {
				c.log.Warn("client: dropping undecodable event", "type", env.Type, "err", err)
				continue
			}
			c.Apply(msg)
		}
	}
}

// Resync refetches every tracked session after a reconnect, since events
// published while disconnected are not replayed.
func (c *Controller) Resync(ctx context.Context) error {
	c.mu.Lock()
	var ids []string
	for _, ci := range []*CallInfo{c.state.ActiveCall, c.state.IncomingCall} {
		if ci != nil {
			ids = append(ids, ci.SessionID)
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, id := range ids {
		s, err := c.api.GetSession(ctx, id)
		if errors.Is(err, calls.ErrSessionNotFound) {
			c.update(func() {
				c.markClosed(id)
				c.forget(id)
			})
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.update(func() {
			c.absorb(s)
			if a := c.state.ActiveCall; a != nil && a.SessionID == s.SessionID {
				c.state.IsOwner = s.OwnerID() == c.userID
			}
		})
	}
	return errors.Join(errs...)
}
