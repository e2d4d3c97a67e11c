package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownType     = errors.New("signaling: unknown event type")
	ErrInvalidEnvelope = errors.New("signaling: invalid envelope")
)

// Envelope is the JSON shape published on a user channel.
type Envelope struct {
	Type      Type            `json:"type"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int64           `json:"version,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Encode turns a typed message into its wire envelope.
func Encode(m Message) (Envelope, error) {
	if m.Event == nil {
		return Envelope{}, fmt.Errorf("%w: nil event", ErrInvalidEnvelope)
	}
	if m.SessionID == "" {
		return Envelope{}, fmt.Errorf("%w: session id required", ErrInvalidEnvelope)
	}
	data, err := json.Marshal(m.Event)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:      m.Event.Type(),
		SessionID: m.SessionID,
		Timestamp: m.Timestamp.UTC(),
		Version:   m.Version,
		Data:      data,
	}, nil
}

// Decode parses an envelope back into its typed event.
func Decode(env Envelope) (Message, error) {
	if env.SessionID == "" {
		return Message{}, fmt.Errorf("%w: session id required", ErrInvalidEnvelope)
	}
	ev, err := newEvent(env.Type)
	if err != nil {
		return Message{}, err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
		}
	}
	return Message{
		SessionID: env.SessionID,
		Timestamp: env.Timestamp,
		Version:   env.Version,
		Event:     deref(ev),
	}, nil
}

// DecodeBytes parses a raw JSON envelope.
func DecodeBytes(b []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return Decode(env)
}

func newEvent(t Type) (any, error) {
	switch t {
	case TypeIncomingCall:
		return &IncomingCall{}, nil
	case TypeCallRinging:
		return &CallRinging{}, nil
	case TypeCallConnected:
		return &CallConnected{}, nil
	case TypeCallRejected:
		return &CallRejected{}, nil
	case TypeCallCancelled:
		return &CallCancelled{}, nil
	case TypeParticipantJoined:
		return &ParticipantJoined{}, nil
	case TypeParticipantLeft:
		return &ParticipantLeft{}, nil
	case TypeCallEnded:
		return &CallEnded{}, nil
	case TypeCallMissed:
		return &CallMissed{}, nil
	case TypeCallError:
		return &CallError{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func deref(v any) Event {
	switch e := v.(type) {
	case *IncomingCall:
		return *e
	case *CallRinging:
		return *e
	case *CallConnected:
		return *e
	case *CallRejected:
		return *e
	case *CallCancelled:
		return *e
	case *ParticipantJoined:
		return *e
	case *ParticipantLeft:
		return *e
	case *CallEnded:
		return *e
	case *CallMissed:
		return *e
	case *CallError:
		return *e
	default:
		return nil
	}
}
