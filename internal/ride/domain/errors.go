package domain

import "errors"

// The arbitration error taxonomy. Callers distinguish kinds with
// errors.Is; no kind is ever downgraded to a generic failure.
var (
	// ErrNotFound means a referenced ride or booking does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller lacks the required relationship or
	// role for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInsufficientCapacity means the ride has no seat to hold.
	ErrInsufficientCapacity = errors.New("no seats available")

	// ErrInvalidState means a terminal booking was asked to transition.
	ErrInvalidState = errors.New("booking already decided")

	// ErrConstraintViolation means a seat adjustment would leave the
	// count outside [0, seatsTotal]. The arbitrator never produces such
	// an adjustment, so seeing this indicates a store-level race; it is
	// surfaced, never clamped.
	ErrConstraintViolation = errors.New("seat count constraint violated")

	// ErrInvalidInput covers malformed operation arguments, such as an
	// unknown decision or a non-positive seat count.
	ErrInvalidInput = errors.New("invalid input")
)
