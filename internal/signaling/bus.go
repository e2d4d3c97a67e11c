package signaling

import (
	"context"
	"errors"
)

// ErrClosed is returned by a bus or subscription after Close.
var ErrClosed = errors.New("signaling: closed")

// Bus is the per-user channel transport.
//
// Delivery is at-least-once and best-effort ordered within one user's
// channel. Nothing is promised across users.
type Bus interface {
	Publish(ctx context.Context, userID string, env Envelope) error
	Subscribe(ctx context.Context, userID string) (Subscription, error)
}

// Subscription streams envelopes for one user until Close or ctx ends.
type Subscription interface {
	C() <-chan Envelope
	Close() error
}

// ChannelName is the bus channel that carries every event for userID.
func ChannelName(prefix, userID string) string {
	if prefix == "" {
		prefix = "calls"
	}
	return prefix + ":user:" + userID
}
