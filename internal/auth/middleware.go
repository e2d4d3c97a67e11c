package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	// tokenQueryParam carries a stream ticket on websocket upgrades, where
	// browsers cannot set headers.
	tokenQueryParam = "token"
)

// RequireAccessToken verifies an access token (or a stream ticket on a
// websocket upgrade) and injects identity into the request context.
// RBAC lives in internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, typ, ok := credential(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, typ, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.WorkspaceID, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", claims.UserID)
		c.Set("workspace_id", claims.WorkspaceID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// credential returns the presented token and the type it must verify as.
func credential(c *gin.Context) (string, TokenType, bool) {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if strings.HasPrefix(raw, bearerPrefix) {
		tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
		return tok, TokenTypeAccess, tok != ""
	}
	if raw == "" && isWebsocketUpgrade(c.Request) {
		tok := c.Query(tokenQueryParam)
		return tok, TokenTypeStream, tok != ""
	}
	return "", "", false
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
