package client

import (
	"context"

	"call-platform/internal/calls"
)

// API is the server surface a controller drives, always on behalf of one user.
type API interface {
	Initiate(ctx context.Context, participantIDs []string, kind calls.Kind, conversationID string) (calls.CallSession, error)
	UpdateStatus(ctx context.Context, sessionID string, status calls.ParticipantStatus, attendeeID string) (calls.CallSession, error)
	Reject(ctx context.Context, sessionID string) (calls.CallSession, error)
	Cancel(ctx context.Context, sessionID string) (calls.CallSession, error)
	Leave(ctx context.Context, sessionID, newOwnerID string) (calls.CallSession, error)
	End(ctx context.Context, sessionID string) (calls.CallSession, error)
	GetSession(ctx context.Context, sessionID string) (calls.CallSession, error)
}

// LocalAPI adapts an in-process orchestrator for one user.
type LocalAPI struct {
	Svc         *calls.Service
	UserID      string
	WorkspaceID string
}

func (a LocalAPI) Initiate(ctx context.Context, participantIDs []string, kind calls.Kind, conversationID string) (calls.CallSession, error) {
	return a.Svc.Initiate(ctx, calls.InitiateRequest{
		InitiatorID:    a.UserID,
		ParticipantIDs: participantIDs,
		Kind:           kind,
		ConversationID: conversationID,
		WorkspaceID:    a.WorkspaceID,
	})
}

func (a LocalAPI) UpdateStatus(ctx context.Context, sessionID string, status calls.ParticipantStatus, attendeeID string) (calls.CallSession, error) {
	return a.Svc.UpdateParticipantStatus(ctx, sessionID, a.UserID, status, attendeeID)
}

func (a LocalAPI) Reject(ctx context.Context, sessionID string) (calls.CallSession, error) {
	return a.Svc.RejectCall(ctx, sessionID, a.UserID)
}

func (a LocalAPI) Cancel(ctx context.Context, sessionID string) (calls.CallSession, error) {
	return a.Svc.CancelCall(ctx, sessionID, a.UserID)
}

func (a LocalAPI) Leave(ctx context.Context, sessionID, newOwnerID string) (calls.CallSession, error) {
	return a.Svc.LeaveCall(ctx, sessionID, a.UserID, newOwnerID)
}

func (a LocalAPI) End(ctx context.Context, sessionID string) (calls.CallSession, error) {
	return a.Svc.EndCall(ctx, sessionID, a.UserID)
}

func (a LocalAPI) GetSession(ctx context.Context, sessionID string) (calls.CallSession, error) {
	return a.Svc.GetSession(ctx, sessionID)
}
