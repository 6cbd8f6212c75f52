package position

import "errors"

var (
	// ErrNotFound indicates no position exists for the identifier.
	ErrNotFound = errors.New("position: not found")

	// ErrInsufficientCapital indicates a debit larger than the position's capital.
	ErrInsufficientCapital = errors.New("position: insufficient invested capital")

	// ErrOverflow indicates capital that would exceed 2^256-1.
	ErrOverflow = errors.New("position: overflow")

	// ErrConservation indicates the positions no longer sum to the recorded total.
	ErrConservation = errors.New("position: capital does not sum to total")

	// ErrSameOwner indicates a transfer or merge onto itself.
	ErrSameOwner = errors.New("position: source and destination are the same")

	// ErrAlreadyHasPosition indicates an owner that already holds a position.
	ErrAlreadyHasPosition = errors.New("position: owner already holds a position")

	// ErrNotOwner indicates the position is not held by the given owner.
	ErrNotOwner = errors.New("position: not owner")

	// ErrZeroAddress indicates a zero owner address.
	ErrZeroAddress = errors.New("position: zero address")

	// ErrInvalidSnapshot indicates a revert to an unknown snapshot id.
	ErrInvalidSnapshot = errors.New("position: invalid snapshot")
)
