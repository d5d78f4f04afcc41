package booking

import "errors"

var (
	// ErrSlotTaken means the candidate interval overlaps an existing
	// valid booking. Business outcome, not a fault; never retried.
	ErrSlotTaken = errors.New("slot overlaps an existing booking")

	// ErrInvalidTransition rejects a status change not permitted from
	// the appointment's current state.
	ErrInvalidTransition = errors.New("status transition not permitted")

	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")
	ErrInvalidTime     = errors.New("time must be HH:mm")
	ErrInvalidDate     = errors.New("date is required")
	ErrPastDate        = errors.New("date is in the past")
	ErrDateTooFar      = errors.New("date is beyond the booking horizon")
	ErrUnknownStatus   = errors.New("unknown status")
)
