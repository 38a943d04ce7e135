package models

import "errors"

// Error kinds surfaced by the engine. Callers branch with errors.Is; the
// handlers layer renders the user-facing explanation.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateID     = errors.New("duplicate member id")
	ErrInvalidID       = errors.New("invalid member id")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRoundInProgress = errors.New("round already in progress")
	ErrNoPendingOffer  = errors.New("no pending offer")
	ErrNoCandidate     = errors.New("no candidate available")
	ErrMemberBusy      = errors.New("member busy in current round")
	ErrCorruptState    = errors.New("corrupt state file")
)
