package rbac

import (
	"net/http"

	"call-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireWorkspace rejects callers whose token has no workspace.
func RequireWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		if wid, err := auth.WorkspaceID(c.Request.Context()); err != nil || wid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole admits callers holding one of allowed. See Allows.
// Use after RequireWorkspace.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowed = append([]string(nil), allowed...)
	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if !Allows(role, allowed...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
