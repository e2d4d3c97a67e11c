package signaling

import "time"

// Type is the wire discriminator of an event.
type Type string

const (
	TypeIncomingCall      Type = "INCOMING_CALL"
	TypeCallRinging       Type = "CALL_RINGING"
	TypeCallConnected     Type = "CALL_CONNECTED"
	TypeCallRejected      Type = "CALL_REJECTED"
	TypeCallCancelled     Type = "CALL_CANCELLED"
	TypeParticipantJoined Type = "PARTICIPANT_JOINED"
	TypeParticipantLeft   Type = "PARTICIPANT_LEFT"
	TypeCallEnded         Type = "CALL_ENDED"
	TypeCallMissed        Type = "CALL_MISSED"
	TypeCallError         Type = "CALL_ERROR"
)

// Event is the closed set of call lifecycle payloads.
// Only types in this package implement it.
type Event interface {
	Type() Type
	sealed()
}

// IncomingCall is sent to every recipient when a call starts ringing.
type IncomingCall struct {
	InitiatedBy    string   `json:"initiatedBy"`
	Kind           string   `json:"kind"`
	ConversationID string   `json:"conversationId,omitempty"`
	Participants   []string `json:"participants"`
}

// CallRinging echoes a new call to the initiator's other devices.
type CallRinging struct {
	Kind           string   `json:"kind"`
	ConversationID string   `json:"conversationId,omitempty"`
	Participants   []string `json:"participants"`
}

// CallConnected carries the recipient's own media join credential.
type CallConnected struct {
	MediaSessionID string    `json:"mediaSessionId"`
	AttendeeID     string    `json:"attendeeId"`
	JoinToken      string    `json:"joinToken"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
	OwnerID        string    `json:"ownerId"`
	Joined         []string  `json:"joined"`
	StartedAt      time.Time `json:"startedAt"`
}

// CallRejected reports that UserID declined. SessionStatus tells whether the
// whole call is over (REJECTED) or still ringing for others.
type CallRejected struct {
	UserID        string `json:"userId"`
	SessionStatus string `json:"sessionStatus"`
}

type CallCancelled struct {
	CancelledBy string `json:"cancelledBy"`
}

type ParticipantJoined struct {
	UserID string `json:"userId"`
}

// ParticipantLeft carries NewOwnerID when the leaver handed over ownership.
type ParticipantLeft struct {
	UserID     string `json:"userId"`
	NewOwnerID string `json:"newOwnerId,omitempty"`
}

type CallEnded struct {
	EndedBy         string `json:"endedBy"`
	DurationSeconds int    `json:"durationSeconds"`
}

type CallMissed struct {
	InitiatedBy string `json:"initiatedBy"`
}

type CallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (IncomingCall) Type() Type      { return TypeIncomingCall }
func (CallRinging) Type() Type       { return TypeCallRinging }
func (CallConnected) Type() Type     { return TypeCallConnected }
func (CallRejected) Type() Type      { return TypeCallRejected }
func (CallCancelled) Type() Type     { return TypeCallCancelled }
func (ParticipantJoined) Type() Type { return TypeParticipantJoined }
func (ParticipantLeft) Type() Type   { return TypeParticipantLeft }
func (CallEnded) Type() Type         { return TypeCallEnded }
func (CallMissed) Type() Type        { return TypeCallMissed }
func (CallError) Type() Type         { return TypeCallError }

func (IncomingCall) sealed()      {}
func (CallRinging) sealed()       {}
func (CallConnected) sealed()     {}
func (CallRejected) sealed()      {}
func (CallCancelled) sealed()     {}
func (ParticipantJoined) sealed() {}
func (ParticipantLeft) sealed()   {}
func (CallEnded) sealed()         {}
func (CallMissed) sealed()        {}
func (CallError) sealed()         {}

// Message is a decoded event plus the session metadata every event carries.
type Message struct {
	SessionID string
	Timestamp time.Time
	// Version is the session version committed by the write that produced
	// the event. Zero for events not tied to a commit (CALL_ERROR).
	Version int64
	Event   Event
}

// Delivery addresses a message to one user's channel.
type Delivery struct {
	UserID  string
	Message Message
}
