package auth

import (
	"errors"
	"time"

	"call-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// clockSkew is tolerated on exp/iat checks.
const clockSkew = 30 * time.Second

// DefaultStreamTicketTTL bounds how long a websocket ticket can be replayed.
const DefaultStreamTicketTTL = time.Minute

type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	streamTTL  time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	m := &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		streamTTL:  DefaultStreamTicketTTL,
	}
	if m.accessTTL <= 0 {
		m.accessTTL = 15 * time.Minute
	}
	if m.refreshTTL <= 0 {
		m.refreshTTL = 30 * 24 * time.Hour
	}
	return m, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (m *Manager) IssuePair(now time.Time, userID, workspaceID, role string) (TokenPair, error) {
	access, err := m.issue(now, TokenTypeAccess, userID, workspaceID, role, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	// Refresh tokens never carry a role.
	refresh, err := m.issue(now, TokenTypeRefresh, userID, workspaceID, "", m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueStreamTicket mints a stream token for one websocket connect. It carries
// the same identity as the access token it was requested with.
func (m *Manager) IssueStreamTicket(now time.Time, userID, workspaceID, role string) (string, time.Time, error) {
	exp := now.Add(m.streamTTL)
	tok, err := m.issue(now, TokenTypeStream, userID, workspaceID, role, m.streamTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Verify parses tokenString and checks signature, time claims, issuer,
// audience and the custom claims for the expected token type.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	switch {
	case claims.TokenType != expected:
		return Claims{}, errors.New("token_type mismatch")
	case claims.UserID == "":
		return Claims{}, errors.New("user_id missing")
	case claims.WorkspaceID == "":
		return Claims{}, errors.New("workspace_id missing")
	case expected != TokenTypeRefresh && claims.Role == "":
		return Claims{}, errors.New("role missing")
	}
	return claims, nil
}

func (m *Manager) issue(now time.Time, tokenType TokenType, userID, workspaceID, role string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:      userID,
		WorkspaceID: workspaceID,
		Role:        role,
		TokenType:   tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
