package signaling

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestEncodeDecode_ParticipantLeftKeepsNewOwner(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env, err := Encode(Message{
		SessionID: "s1",
		Timestamp: ts,
		Version:   7,
		Event:     ParticipantLeft{UserID: "alice", NewOwnerID: "carol"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.Type != TypeParticipantLeft || env.Version != 7 {
		t.Fatalf("unexpected envelope %+v", env)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]any
	_ = json.Unmarshal(raw, &wire)
	for _, k := range []string{"type", "sessionId", "timestamp", "version", "data"} {
		if _, ok := wire[k]; !ok {
			t.Fatalf("wire envelope missing %q: %s", k, raw)
		}
	}

	msg, err := DecodeBytes(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	left, ok := msg.Event.(ParticipantLeft)
	if !ok {
		t.Fatalf("expected ParticipantLeft, got %T", msg.Event)
	}
	if left.NewOwnerID != "carol" || msg.Version != 7 || !msg.Timestamp.Equal(ts) {
		t.Fatalf("unexpected decoded message %+v", msg)
	}
}

func TestDecode_AllTypesAreValues(t *testing.T) {
	events := []Event{
		IncomingCall{InitiatedBy: "a"},
		CallRinging{},
		CallConnected{MediaSessionID: "m"},
		CallRejected{UserID: "b"},
		CallCancelled{CancelledBy: "a"},
		ParticipantJoined{UserID: "b"},
		ParticipantLeft{UserID: "b"},
		CallEnded{EndedBy: "a"},
		CallMissed{InitiatedBy: "a"},
		CallError{Code: "X"},
	}
	for _, ev := range events {
		env, err := Encode(Message{SessionID: "s", Event: ev})
		if err != nil {
			t.Fatalf("encode %s: %v", ev.Type(), err)
		}
		msg, err := Decode(env)
		if err != nil {
			t.Fatalf("decode %s: %v", ev.Type(), err)
		}
		if msg.Event.Type() != ev.Type() {
			t.Fatalf("type changed: %s -> %s", ev.Type(), msg.Event.Type())
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(Envelope{Type: "CALL_TELEPORTED", SessionID: "s"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected unknown type, got %v", err)
	}
	if _, err := Decode(Envelope{Type: TypeCallEnded}); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected invalid envelope, got %v", err)
	}
	if _, err := DecodeBytes([]byte("{")); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected invalid envelope for bad json, got %v", err)
	}
	if _, err := Encode(Message{SessionID: "s"}); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected nil event error, got %v", err)
	}
}

func TestChannelName(t *testing.T) {
	if got := ChannelName("", "u1"); got != "calls:user:u1" {
		t.Fatalf("unexpected channel %q", got)
	}
	if got := ChannelName("staging", "u1"); got != "staging:user:u1" {
		t.Fatalf("unexpected channel %q", got)
	}
}
