package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypeStream is a short-lived ticket accepted only on signaling
	// websocket upgrades, where the token travels in the query string.
	TokenTypeStream TokenType = "stream"
)

// Claims identify a chat user inside one workspace. Call operations always
// act as UserID; nothing in a request body can override it.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id"`
	Role        string    `json:"role"`
	TokenType   TokenType `json:"token_type"`
}
