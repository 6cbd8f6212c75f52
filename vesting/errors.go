package vesting

import "errors"

var (
	// ErrTGERateTooHigh indicates a TGE rate above 100% (1e18).
	ErrTGERateTooHigh = errors.New("vesting: TGE rate exceeds 1e18")

	// ErrNoneRequiresFullTGE indicates a no-vesting config that does not pay everything at TGE.
	ErrNoneRequiresFullTGE = errors.New("vesting: type none requires a TGE rate of 1e18")

	// ErrInvalidDuration indicates a zero or too long vesting duration.
	ErrInvalidDuration = errors.New("vesting: invalid duration")

	// ErrCliffTooLong indicates a cliff longer than the vesting duration.
	ErrCliffTooLong = errors.New("vesting: cliff exceeds duration")

	// ErrInvalidEpochs indicates epoch parameters that do not tile the duration.
	ErrInvalidEpochs = errors.New("vesting: epoch parameters do not match duration")

	// ErrUnknownType indicates an unrecognised vesting type tag.
	ErrUnknownType = errors.New("vesting: unknown type")

	// ErrUnsupportedType indicates a type the factory cannot deploy a wallet for.
	ErrUnsupportedType = errors.New("vesting: type not supported by factory")

	// ErrZeroBeneficiary indicates a wallet requested for the zero address.
	ErrZeroBeneficiary = errors.New("vesting: zero beneficiary")

	// ErrWalletNotFound indicates no wallet exists at the address.
	ErrWalletNotFound = errors.New("vesting: wallet not found")

	// ErrInvalidSnapshot indicates a revert to an unknown snapshot id.
	ErrInvalidSnapshot = errors.New("vesting: invalid snapshot")
)
