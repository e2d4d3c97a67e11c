package calls

import "errors"

// Validation.
var (
	ErrInvalidParticipants  = errors.New("calls: invalid participants")
	ErrTransferNotSupported = errors.New("calls: ownership transfer not supported for direct calls")
)

// Authorization.
var (
	ErrNotOwner       = errors.New("calls: caller is not the session owner")
	ErrNotParticipant = errors.New("calls: caller is not a participant")
)

// State.
var (
	ErrSessionNotFound   = errors.New("calls: session not found")
	ErrSessionTerminal   = errors.New("calls: session is terminal")
	ErrOwnerMustTransfer = errors.New("calls: owner must transfer ownership before leaving")
	ErrInvalidTransition = errors.New("calls: transition not allowed in current state")
	ErrCallInProgress    = errors.New("calls: a direct call between these users is already in progress")
)

// Concurrency and dependencies.
var (
	ErrVersionConflict      = errors.New("calls: version conflict")
	ErrMediaProviderFailure = errors.New("calls: media provider failure")
)
