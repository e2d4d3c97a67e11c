package httpapi

import (
	"net/http"

	"call-platform/internal/auth"
	"call-platform/internal/calls"
	"call-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

type initiateRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
	Kind           string   `json:"kind"`
	ConversationID string   `json:"conversation_id"`
}

type statusRequest struct {
	Status     string `json:"status"`
	AttendeeID string `json:"attendee_id"`
}

type leaveRequest struct {
	NewOwnerID string `json:"new_owner_id"`
}

// InitiateCall starts a call from the authenticated user.
func (h Handlers) InitiateCall(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Calls.Initiate(c.Request.Context(), calls.InitiateRequest{
		InitiatorID:    id.UserID,
		ParticipantIDs: req.ParticipantIDs,
		Kind:           calls.Kind(req.Kind),
		ConversationID: req.ConversationID,
		WorkspaceID:    id.WorkspaceID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// GetCall returns the latest state of a session the caller can see.
func (h Handlers) GetCall(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	s, ok := h.visibleSession(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s)
}

// CallHistory lists every attempt stored under the session id, newest first.
func (h Handlers) CallHistory(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if _, ok := h.visibleSession(c, id); !ok {
		return
	}
	items, err := h.Calls.History(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// visibleSession loads the session and enforces workspace isolation.
// Participants and workspace operators may read it.
func (h Handlers) visibleSession(c *gin.Context, id auth.Identity) (calls.CallSession, bool) {
	s, ok := h.workspaceSession(c, id)
	if !ok {
		return calls.CallSession{}, false
	}
	if s.Participant(id.UserID) == nil && !rbac.Allows(id.Role, rbac.OperatorRoles...) {
		writeError(c, calls.ErrNotParticipant)
		return calls.CallSession{}, false
	}
	return s, true
}

func (h Handlers) workspaceSession(c *gin.Context, id auth.Identity) (calls.CallSession, bool) {
	s, err := h.Calls.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return calls.CallSession{}, false
	}
	if s.WorkspaceID != id.WorkspaceID {
		writeError(c, calls.ErrSessionNotFound)
		return calls.CallSession{}, false
	}
	return s, true
}

// UpdateStatus reports the caller's participation status (JOINED, LEFT, REJECTED).
func (h Handlers) UpdateStatus(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}
	h.mutate(c, id, func(sessionID string) (calls.CallSession, error) {
		return h.Calls.UpdateParticipantStatus(c.Request.Context(), sessionID, id.UserID, calls.ParticipantStatus(req.Status), req.AttendeeID)
	})
}

func (h Handlers) RejectCall(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	h.mutate(c, id, func(sessionID string) (calls.CallSession, error) {
		return h.Calls.RejectCall(c.Request.Context(), sessionID, id.UserID)
	})
}

func (h Handlers) CancelCall(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	h.mutate(c, id, func(sessionID string) (calls.CallSession, error) {
		return h.Calls.CancelCall(c.Request.Context(), sessionID, id.UserID)
	})
}

// LeaveCall accepts an optional body naming the next owner.
func (h Handlers) LeaveCall(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req leaveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	h.mutate(c, id, func(sessionID string) (calls.CallSession, error) {
		return h.Calls.LeaveCall(c.Request.Context(), sessionID, id.UserID, req.NewOwnerID)
	})
}

func (h Handlers) EndCall(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	h.mutate(c, id, func(sessionID string) (calls.CallSession, error) {
		return h.Calls.EndCall(c.Request.Context(), sessionID, id.UserID)
	})
}

func (h Handlers) mutate(c *gin.Context, id auth.Identity, op func(sessionID string) (calls.CallSession, error)) {
	s, ok := h.workspaceSession(c, id)
	if !ok {
		return
	}
	next, err := op(s.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}
