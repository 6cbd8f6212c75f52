package sale

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/fee"
	"github.com/bitfsorg/libsale-go/registry"
	"github.com/bitfsorg/libsale-go/sealedbid"
)

// Kind selects the sale variant.
type Kind uint8

const (
	KindFixedPrice Kind = iota + 1
	KindSealedBidAuction
	KindPreLiquidApproved
	KindPreLiquidOpen
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindFixedPrice:
		return "fixed-price"
	case KindSealedBidAuction:
		return "sealed-bid-auction"
	case KindPreLiquidApproved:
		return "pre-liquid-approved"
	case KindPreLiquidOpen:
		return "pre-liquid-open"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Period bounds in seconds.
const (
	MinSalePeriod              = uint64(time.Hour / time.Second)
	MaxSalePeriod              = uint64(12 * 7 * 24 * time.Hour / time.Second)
	MinRefundPeriod            = uint64(time.Hour / time.Second)
	MaxRefundPeriod            = uint64(2 * 7 * 24 * time.Hour / time.Second)
	MinPrefundPeriod           = MinSalePeriod
	MaxPrefundPeriod           = MaxSalePeriod
	MinPrefundAllocationPeriod = uint64(time.Hour / time.Second)
	MaxPrefundAllocationPeriod = uint64(2 * 7 * 24 * time.Hour / time.Second)
)

// Config holds the parameters fixed when a sale is created.
type Config struct {
	Kind    Kind           `json:"kind"`
	Address common.Address `json:"address"`
	ChainID uint64         `json:"chainId"`

	// BidToken is the capital token investors pay with.
	BidToken common.Address `json:"bidToken"`
	// AskToken is the token being sold; zero until known for pre-liquid sales.
	AskToken            common.Address `json:"askToken"`
	ProjectAdmin        common.Address `json:"projectAdmin"`
	ReferrerFeeReceiver common.Address `json:"referrerFeeReceiver"`

	SalePeriodSeconds   uint64       `json:"salePeriodSeconds"`
	RefundPeriodSeconds uint64       `json:"refundPeriodSeconds"`
	MinimumInvestAmount *uint256.Int `json:"minimumInvestAmount"`

	LegionFeeOnCapitalRaisedBps   uint64 `json:"legionFeeOnCapitalRaisedBps"`
	LegionFeeOnTokensSoldBps      uint64 `json:"legionFeeOnTokensSoldBps"`
	ReferrerFeeOnCapitalRaisedBps uint64 `json:"referrerFeeOnCapitalRaisedBps"`
	ReferrerFeeOnTokensSoldBps    uint64 `json:"referrerFeeOnTokensSoldBps"`

	// Fixed-price sales only.
	PrefundPeriodSeconds           uint64       `json:"prefundPeriodSeconds,omitempty"`
	PrefundAllocationPeriodSeconds uint64       `json:"prefundAllocationPeriodSeconds,omitempty"`
	TokenPrice                     *uint256.Int `json:"tokenPrice,omitempty"`

	// Sealed-bid auctions only.
	PublicKey sealedbid.PublicKey `json:"publicKey"`
}

// Validate checks the variant-independent parameters.
func (c *Config) Validate() error {
	switch {
	case c.Address == (common.Address{}):
		return fmt.Errorf("%w: %w: sale address", ErrInvalidConfig, ErrZeroAddress)
	case c.BidToken == (common.Address{}):
		return fmt.Errorf("%w: %w: bid token", ErrInvalidConfig, ErrZeroAddress)
	case c.ProjectAdmin == (common.Address{}):
		return fmt.Errorf("%w: %w: project admin", ErrInvalidConfig, ErrZeroAddress)
	case c.ReferrerFeeReceiver == (common.Address{}):
		return fmt.Errorf("%w: %w: referrer fee receiver", ErrInvalidConfig, ErrZeroAddress)
	case c.ChainID == 0:
		return fmt.Errorf("%w: zero chain id", ErrInvalidConfig)
	case c.MinimumInvestAmount == nil || c.MinimumInvestAmount.IsZero():
		return fmt.Errorf("%w: zero minimum invest amount", ErrInvalidConfig)
	}
	if err := checkPeriod("refund", c.RefundPeriodSeconds, MinRefundPeriod, MaxRefundPeriod); err != nil {
		return err
	}
	for _, pair := range [][2]uint64{
		{c.LegionFeeOnCapitalRaisedBps, c.ReferrerFeeOnCapitalRaisedBps},
		{c.LegionFeeOnTokensSoldBps, c.ReferrerFeeOnTokensSoldBps},
	} {
		if pair[0] > fee.BPSDenominator || pair[1] > fee.BPSDenominator || pair[0]+pair[1] > fee.BPSDenominator {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, fee.ErrInvalidBps)
		}
	}
	return nil
}

func checkPeriod(name string, v, lo, hi uint64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %w: %s period %ds outside [%d, %d]", ErrInvalidConfig, ErrInvalidPeriod, name, v, lo, hi)
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	if c.MinimumInvestAmount != nil {
		out.MinimumInvestAmount = c.MinimumInvestAmount.Clone()
	}
	if c.TokenPrice != nil {
		out.TokenPrice = c.TokenPrice.Clone()
	}
	out.PublicKey = c.PublicKey.Clone()
	return out
}

// Addresses are the operator addresses cached from the registry.
type Addresses struct {
	Bouncer        common.Address `json:"bouncer"`
	Signer         common.Address `json:"signer"`
	FeeReceiver    common.Address `json:"feeReceiver"`
	VestingFactory common.Address `json:"vestingFactory"`
}

func resolveAddresses(reg registry.Registry) (Addresses, error) {
	a := Addresses{
		Bouncer:        reg.Resolve(registry.RoleBouncer),
		Signer:         reg.Resolve(registry.RoleSigner),
		FeeReceiver:    reg.Resolve(registry.RoleFeeReceiver),
		VestingFactory: reg.Resolve(registry.RoleVestingFactory),
	}
	for _, r := range []struct {
		role registry.Role
		addr common.Address
	}{
		{registry.RoleBouncer, a.Bouncer},
		{registry.RoleSigner, a.Signer},
		{registry.RoleFeeReceiver, a.FeeReceiver},
		{registry.RoleVestingFactory, a.VestingFactory},
	} {
		if r.addr == (common.Address{}) {
			return Addresses{}, fmt.Errorf("%w: %w: role %s unresolved", ErrInvalidConfig, ErrZeroAddress, r.role)
		}
	}
	return a, nil
}
