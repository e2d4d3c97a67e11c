package auth

import (
	"context"
	"errors"
)

type ctxKey int

const ctxIdentity ctxKey = iota

var ErrNoIdentity = errors.New("auth: no identity in context")

// Identity is the authenticated caller.
type Identity struct {
	UserID      string
	WorkspaceID string
	Role        string
}

func WithIdentity(ctx context.Context, userID, workspaceID, role string) context.Context {
	return context.WithValue(ctx, ctxIdentity, Identity{UserID: userID, WorkspaceID: workspaceID, Role: role})
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(Identity)
	return id, ok
}

func UserID(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.UserID != "" {
		return id.UserID, nil
	}
	return "", errors.New("user_id not in context")
}

func WorkspaceID(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.WorkspaceID != "" {
		return id.WorkspaceID, nil
	}
	return "", errors.New("workspace_id not in context")
}

func Role(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.Role != "" {
		return id.Role, nil
	}
	return "", errors.New("role not in context")
}
