package media

import (
	"context"
	"errors"
)

// Provider is the external media-session contract.
//
// Implementations are constructed explicitly and injected; there is no
// package-level client.
//
// CreateSession must be idempotent per sessionID. DestroySession must treat
// an already destroyed session as success.
type Provider interface {
	CreateSession(ctx context.Context, sessionID string) (mediaSessionID string, err error)
	DestroySession(ctx context.Context, mediaSessionID string) error
	IssueJoinCredential(ctx context.Context, mediaSessionID, userID string) (Credential, error)
}

// Credential lets one participant join one media session.
type Credential struct {
	AttendeeID string `json:"attendee_id"`
	Token      string `json:"token"`
	URL        string `json:"url,omitempty"`
}

var ErrInvalidArgument = errors.New("media: invalid argument")
