package httpapi

import (
	"net/http"
	"time"

	"call-platform/internal/auth"
	"call-platform/internal/calls"
	"call-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Calls     *calls.Service
	Reporting *reporting.Service
	Janitor   *calls.Janitor
}

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: skeleton-only endpoint. Real deployments sit behind the chat
// product's identity provider and must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, workspace_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// StreamTicket issues the short-lived token a browser passes as ?token= when
// opening the signaling websocket.
func (h Handlers) StreamTicket(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	ticket, exp, err := h.Auth.IssueStreamTicket(time.Now(), id.UserID, id.WorkspaceID, id.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ticket issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket, "expires_at": exp.UTC()})
}

// Me echoes the caller's identity.
func (h Handlers) Me(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "workspace_id": id.WorkspaceID, "role": id.Role})
}

func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok || id.UserID == "" || id.WorkspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return auth.Identity{}, false
	}
	return id, true
}
