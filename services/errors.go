// services/errors.go - Domain error taxonomy
package services

import "errors"

// Validation failures (malformed or duplicate input)
var (
	ErrEmailTaken      = errors.New("email already exists")
	ErrMissingFields   = errors.New("missing required fields")
	ErrPastStart       = errors.New("reservation cannot start in the past")
	ErrDailyLimit      = errors.New("at most 2 reservations per day")
	ErrSlotConflict    = errors.New("reservations must be at least 3 hours apart")
	ErrInvalidActivity = errors.New("invalid activity type")
	ErrOwnerMismatch   = errors.New("ledger owner must be exactly one of user or team")
)

// Lifecycle failures
var (
	// InvalidState: the operation is not legal for the current state
	ErrCheckinWindow = errors.New("check-in is only allowed from 10 minutes before to 30 minutes after the start time")
	ErrNotScheduled  = errors.New("reservation is no longer scheduled")
	ErrNotMissed     = errors.New("reservation is not missed")

	// PreconditionFailed: a prerequisite step has not happened
	ErrNeedCheckin = errors.New("check-in is required before completing")

	// Recovery policy
	ErrCooldownActive   = errors.New("recovery already used this week")
	ErrAlreadyRecovered = errors.New("recovery already used for this reservation")
	ErrNoTeam           = errors.New("user has no team")
)

// Ownership / existence
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)
