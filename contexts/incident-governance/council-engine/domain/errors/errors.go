package errors

import "errors"

var (
	ErrConfiguration          = errors.New("invalid council configuration")
	ErrDuplicateVote          = errors.New("agent has already voted in this session")
	ErrIncompleteSession      = errors.New("session has not received all expected votes")
	ErrInvalidVoteInput       = errors.New("invalid vote input")
	ErrInvalidSessionInput    = errors.New("invalid session input")
	ErrInvalidRoster          = errors.New("invalid council roster")
	ErrSessionNotFound        = errors.New("council session not found")
	ErrSessionClosed          = errors.New("council session is not accepting votes")
	ErrSessionNotTerminal     = errors.New("council session has not been finalized")
	ErrAlreadyCompleted       = errors.New("council session is already completed")
	ErrUnknownAgent           = errors.New("agent is not a council member")
	ErrConflict               = errors.New("council session conflict")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
)
