// Package vesting provides vesting schedules and the wallets that release
// claimed tokens over time.
package vesting

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
)

// Type selects the release schedule of a vesting wallet.
type Type uint8

const (
	// TypeNone pays the whole allocation at TGE; no wallet is created.
	TypeNone Type = iota
	// TypeLinear releases linearly between start and start+duration.
	TypeLinear
	// TypeLinearEpoch releases in equal steps at the end of each epoch.
	TypeLinearEpoch
	// TypeCustom is reserved for externally deployed schedules.
	TypeCustom
)

// String returns the schedule name.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeLinear:
		return "linear"
	case TypeLinearEpoch:
		return "linear-epoch"
	case TypeCustom:
		return "custom"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

const (
	// TGERateDenominator is 100% expressed in TGE-rate units.
	TGERateDenominator uint64 = 1e18

	// MaxDurationSeconds bounds a vesting schedule to ten years.
	MaxDurationSeconds uint64 = 520 * 7 * 24 * 3600
)

// Config is the per-claim vesting schedule bound into claim leaves.
type Config struct {
	Type                     Type   `json:"type"`
	StartTimestamp           uint64 `json:"startTimestamp"`
	DurationSeconds          uint64 `json:"durationSeconds"`
	CliffDurationSeconds     uint64 `json:"cliffDurationSeconds"`
	EpochDurationSeconds     uint64 `json:"epochDurationSeconds"`
	NumberOfEpochs           uint64 `json:"numberOfEpochs"`
	TokenAllocationOnTGERate uint64 `json:"tokenAllocationOnTGERate"`
}

// Validate checks the schedule parameters.
func (c Config) Validate() error {
	if c.TokenAllocationOnTGERate > TGERateDenominator {
		return ErrTGERateTooHigh
	}
	switch c.Type {
	case TypeNone:
		if c.TokenAllocationOnTGERate != TGERateDenominator {
			return ErrNoneRequiresFullTGE
		}
		return nil
	case TypeLinear, TypeCustom:
	case TypeLinearEpoch:
		if c.EpochDurationSeconds == 0 || c.NumberOfEpochs == 0 {
			return ErrInvalidEpochs
		}
		hi, lo := bits.Mul64(c.EpochDurationSeconds, c.NumberOfEpochs)
		if hi != 0 || lo != c.DurationSeconds {
			return ErrInvalidEpochs
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, uint8(c.Type))
	}
	if c.DurationSeconds == 0 || c.DurationSeconds > MaxDurationSeconds {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, c.DurationSeconds)
	}
	if c.CliffDurationSeconds > c.DurationSeconds {
		return ErrCliffTooLong
	}
	return nil
}

// Split divides a claimed amount into the part paid at TGE and the part
// handed to a vesting wallet: immediate = amount * rate / 1e18.
func (c Config) Split(amount *uint256.Int) (immediate, vested *uint256.Int) {
	rate := uint256.NewInt(c.TokenAllocationOnTGERate)
	// 512-bit intermediate product; the quotient never exceeds amount.
	immediate, _ = new(uint256.Int).MulDivOverflow(amount, rate, uint256.NewInt(TGERateDenominator))
	vested = new(uint256.Int).Sub(amount, immediate)
	return immediate, vested
}
