package token

import "errors"

var (
	// ErrInsufficientBalance indicates a transfer larger than the sender's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrInsufficientAllowance indicates a transferFrom larger than the approved amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// ErrZeroAddress indicates a zero token, sender or recipient address.
	ErrZeroAddress = errors.New("token: zero address")

	// ErrOverflow indicates a balance or supply that would exceed 2^256-1.
	ErrOverflow = errors.New("token: overflow")

	// ErrInvalidSnapshot indicates a revert to an unknown snapshot id.
	ErrInvalidSnapshot = errors.New("token: invalid snapshot")
)
