// Package fee computes basis-point fees on capital and token amounts.
package fee

import (
	"fmt"

	"github.com/holiman/uint256"
)

// BPSDenominator is the number of basis points in 100%.
const BPSDenominator = 10_000

var denominator = uint256.NewInt(BPSDenominator)

// Calculate returns floor(amount * bps / 10000).
//
// A zero amount or a zero rate yields a zero fee. The multiplication is
// checked: an amount large enough to overflow 256 bits is rejected rather
// than wrapped.
func Calculate(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	if bps > BPSDenominator {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBps, bps)
	}
	if amount == nil || amount.IsZero() || bps == 0 {
		return new(uint256.Int), nil
	}
	product, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(bps))
	if overflow {
		return nil, fmt.Errorf("%w: %s * %d", ErrOverflow, amount.Dec(), bps)
	}
	return product.Div(product, denominator), nil
}

// Breakdown is the result of carving the platform and referrer fees out of
// an amount.
type Breakdown struct {
	Gross    *uint256.Int // amount the fees were computed on
	Legion   *uint256.Int // platform share
	Referrer *uint256.Int // referrer share
	Net      *uint256.Int // Gross - Legion - Referrer
}

// Split computes both fee shares of gross and the remainder. Each share is
// computed independently from gross, so rounding never moves value between
// the two receivers; the remainder absorbs the rounding.
func Split(gross *uint256.Int, legionBps, referrerBps uint64) (*Breakdown, error) {
	if gross == nil {
		gross = new(uint256.Int)
	}
	legion, err := Calculate(gross, legionBps)
	if err != nil {
		return nil, fmt.Errorf("legion fee: %w", err)
	}
	referrer, err := Calculate(gross, referrerBps)
	if err != nil {
		return nil, fmt.Errorf("referrer fee: %w", err)
	}
	fees, overflow := new(uint256.Int).AddOverflow(legion, referrer)
	if overflow || fees.Gt(gross) {
		return nil, ErrFeesExceedAmount
	}
	return &Breakdown{
		Gross:    gross.Clone(),
		Legion:   legion,
		Referrer: referrer,
		Net:      new(uint256.Int).Sub(gross, fees),
	}, nil
}

// Matches reports whether fee equals the exact bps share of amount.
// It is used to validate caller-supplied fees, which are never corrected.
func Matches(amount *uint256.Int, bps uint64, fee *uint256.Int) bool {
	want, err := Calculate(amount, bps)
	if err != nil || fee == nil {
		return false
	}
	return want.Eq(fee)
}
