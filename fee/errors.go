package fee

import "errors"

var (
	// ErrInvalidBps indicates a fee rate above 100% (10 000 bps).
	ErrInvalidBps = errors.New("fee: basis points exceed denominator")

	// ErrOverflow indicates amount * bps does not fit in 256 bits.
	ErrOverflow = errors.New("fee: arithmetic overflow")

	// ErrFeesExceedAmount indicates the combined fees are larger than the amount they are taken from.
	ErrFeesExceedAmount = errors.New("fee: combined fees exceed amount")
)
