package sale

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/position"
	"github.com/bitfsorg/libsale-go/sealedbid"
)

// variant holds the points where sale kinds diverge. Implementations are
// stateless; everything they decide on lives in Config and Status.
type variant interface {
	kind() Kind
	validate(cfg *Config) error
	start(now uint64, cfg *Config, st *Status)
	hasEnded(st *Status, now uint64) bool
	refundOpen(st *Status, now uint64) bool
	checkInvestWindow(st *Status, now uint64) error
	verifyInvest(s *Sale, investor common.Address, amount *uint256.Int, p *position.Position, auth *InvestAuth) error
	afterInvest(s *Sale, investor common.Address, amount *uint256.Int, p *position.Position, auth *InvestAuth)
	checkCancel(st *Status) error
	publishResults(s *Sale, res *Results) error
	checkPublishCapital(st *Status) error
	checkWithdrawCapital(st *Status) error
}

func newVariant(k Kind) (variant, error) {
	switch k {
	case KindFixedPrice:
		return fixedPrice{}, nil
	case KindSealedBidAuction:
		return sealedBidAuction{}, nil
	case KindPreLiquidApproved:
		return preLiquidApproved{}, nil
	case KindPreLiquidOpen:
		return preLiquidOpen{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown sale kind %d", ErrInvalidConfig, uint8(k))
	}
}

// ---------------------------------------------------------------------------
// Sales with a fixed sale period
// ---------------------------------------------------------------------------

type timed struct{}

func (timed) hasEnded(st *Status, now uint64) bool {
	return st.HasEnded || now >= st.EndTime
}

func (t timed) refundOpen(st *Status, now uint64) bool {
	return t.hasEnded(st, now) && now < st.RefundEndTime
}

func (timed) checkInvestWindow(*Status, uint64) error { return nil }

func (timed) afterInvest(*Sale, common.Address, *uint256.Int, *position.Position, *InvestAuth) {}

func (timed) checkCancel(*Status) error { return nil }

func (timed) checkPublishCapital(*Status) error { return nil }

func (timed) publishResults(*Sale, *Results) error { return nil }

func (timed) checkWithdrawCapital(st *Status) error {
	if !st.ResultsPublished() {
		return ErrResultsNotPublished
	}
	if st.AskToken != (common.Address{}) && !st.TokensSupplied {
		return ErrTokensNotSupplied
	}
	return nil
}

type fixedPrice struct{ timed }

func (fixedPrice) kind() Kind { return KindFixedPrice }

func (fixedPrice) validate(cfg *Config) error {
	if err := checkPeriod("sale", cfg.SalePeriodSeconds, MinSalePeriod, MaxSalePeriod); err != nil {
		return err
	}
	if err := checkPeriod("prefund", cfg.PrefundPeriodSeconds, MinPrefundPeriod, MaxPrefundPeriod); err != nil {
		return err
	}
	if err := checkPeriod("prefund allocation", cfg.PrefundAllocationPeriodSeconds, MinPrefundAllocationPeriod, MaxPrefundAllocationPeriod); err != nil {
		return err
	}
	if cfg.TokenPrice == nil || cfg.TokenPrice.IsZero() {
		return fmt.Errorf("%w: zero token price", ErrInvalidConfig)
	}
	return nil
}

// start lays out prefund, prefund allocation and main sale back to back.
func (fixedPrice) start(now uint64, cfg *Config, st *Status) {
	st.StartTime = now
	st.PrefundEndTime = now + cfg.PrefundPeriodSeconds
	st.AllocationEndTime = st.PrefundEndTime + cfg.PrefundAllocationPeriodSeconds
	st.EndTime = st.AllocationEndTime + cfg.SalePeriodSeconds
	st.RefundEndTime = st.EndTime + cfg.RefundPeriodSeconds
}

func (fixedPrice) checkInvestWindow(st *Status, now uint64) error {
	if now >= st.PrefundEndTime && now < st.AllocationEndTime {
		return ErrPrefundAllocationPeriodNotEnded
	}
	return nil
}

func (fixedPrice) verifyInvest(s *Sale, investor common.Address, _ *uint256.Int, _ *position.Position, auth *InvestAuth) error {
	return s.verifySignature(InvestDigest(investor, s.cfg.Address, s.cfg.ChainID), auth.Signature)
}

type sealedBidAuction struct{ timed }

func (sealedBidAuction) kind() Kind { return KindSealedBidAuction }

func (sealedBidAuction) validate(cfg *Config) error {
	if err := checkPeriod("sale", cfg.SalePeriodSeconds, MinSalePeriod, MaxSalePeriod); err != nil {
		return err
	}
	if err := sealedbid.ValidatePublicKey(cfg.PublicKey); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrInvalidConfig, ErrInvalidBidPublicKey, err)
	}
	return nil
}

func (sealedBidAuction) start(now uint64, cfg *Config, st *Status) {
	st.StartTime = now
	st.EndTime = now + cfg.SalePeriodSeconds
	st.RefundEndTime = st.EndTime + cfg.RefundPeriodSeconds
}

func (sealedBidAuction) verifyInvest(s *Sale, investor common.Address, _ *uint256.Int, _ *position.Position, auth *InvestAuth) error {
	if auth.SealedBid == nil {
		return fmt.Errorf("%w: missing sealed bid", ErrInvalidSalt)
	}
	if err := auth.SealedBid.Validate(investor, s.cfg.PublicKey); err != nil {
		switch {
		case errors.Is(err, sealedbid.ErrPublicKeyMismatch):
			return fmt.Errorf("%w: %w", ErrInvalidBidPublicKey, err)
		default:
			return fmt.Errorf("%w: %w", ErrInvalidSalt, err)
		}
	}
	digest, err := AuctionInvestDigest(investor, s.cfg.Address, s.cfg.ChainID, *auth.SealedBid)
	if err != nil {
		return err
	}
	return s.verifySignature(digest, auth.Signature)
}

func (sealedBidAuction) afterInvest(s *Sale, investor common.Address, amount *uint256.Int, p *position.Position, auth *InvestAuth) {
	bid := *auth.SealedBid
	bid.EncryptedAmountOut = bid.EncryptedAmountOut.Clone()
	bid.Salt = bid.Salt.Clone()
	bid.PublicKey = bid.PublicKey.Clone()
	s.bids = append(s.bids, Bid{
		PositionID: p.ID,
		Investor:   investor,
		AmountIn:   amount.Clone(),
		SealedBid:  bid,
	})
}

func (sealedBidAuction) checkCancel(st *Status) error {
	if st.PublicationLocked {
		return ErrPublicationLocked
	}
	return nil
}

func (sealedBidAuction) checkPublishCapital(st *Status) error {
	if !st.PublicationLocked {
		return ErrPublicationNotLocked
	}
	return nil
}

// publishResults accepts the auction private key exactly once and only
// when G * key equals the sale's public key.
func (sealedBidAuction) publishResults(s *Sale, res *Results) error {
	if !s.status.PublicationLocked {
		return ErrPublicationNotLocked
	}
	if s.status.PrivateKey != nil {
		return ErrPrivateKeyAlreadyPublished
	}
	if res.PrivateKey == nil {
		return fmt.Errorf("%w: missing", ErrInvalidPrivateKey)
	}
	if err := sealedbid.VerifyKeyPair(s.cfg.PublicKey, res.PrivateKey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	s.status.PrivateKey = res.PrivateKey.Clone()
	return nil
}

// ---------------------------------------------------------------------------
// Pre-liquid sales: open-ended until EndSale
// ---------------------------------------------------------------------------

type preLiquid struct{}

func (preLiquid) validate(*Config) error { return nil }

// start opens the first refund window; EndSale opens a fresh one.
func (preLiquid) start(now uint64, cfg *Config, st *Status) {
	st.StartTime = now
	st.RefundEndTime = now + cfg.RefundPeriodSeconds
}

func (preLiquid) hasEnded(st *Status, _ uint64) bool { return st.HasEnded }

func (preLiquid) refundOpen(st *Status, now uint64) bool { return now < st.RefundEndTime }

func (preLiquid) checkInvestWindow(*Status, uint64) error { return nil }

func (preLiquid) checkCancel(*Status) error { return nil }

func (preLiquid) checkPublishCapital(*Status) error { return nil }

func (preLiquid) publishResults(*Sale, *Results) error { return nil }

// checkWithdrawCapital only needs the capital results: the ask token of a
// pre-liquid sale does not exist until TGE.
func (preLiquid) checkWithdrawCapital(st *Status) error {
	if !st.CapitalRaisedPublished {
		return ErrCapitalRaisedNotPublished
	}
	return nil
}

type preLiquidOpen struct{ preLiquid }

func (preLiquidOpen) kind() Kind { return KindPreLiquidOpen }

func (preLiquidOpen) verifyInvest(s *Sale, investor common.Address, _ *uint256.Int, _ *position.Position, auth *InvestAuth) error {
	return s.verifySignature(InvestDigest(investor, s.cfg.Address, s.cfg.ChainID), auth.Signature)
}

func (preLiquidOpen) afterInvest(*Sale, common.Address, *uint256.Int, *position.Position, *InvestAuth) {}

type preLiquidApproved struct{ preLiquid }

func (preLiquidApproved) kind() Kind { return KindPreLiquidApproved }

// verifyInvest checks the signed SAFT terms: the position may never hold
// more capital than the signed invest amount.
func (preLiquidApproved) verifyInvest(s *Sale, investor common.Address, amount *uint256.Int, p *position.Position, auth *InvestAuth) error {
	if auth.InvestAmount == nil || auth.TokenAllocationRate == nil {
		return fmt.Errorf("%w: missing SAFT terms", ErrInvalidSignature)
	}
	digest := SAFTDigest(investor, s.cfg.Address, s.cfg.ChainID, auth.InvestAmount, auth.TokenAllocationRate, ActionInvest)
	if err := s.verifyOneTimeSignature(investor, digest, auth.Signature); err != nil {
		return err
	}
	after := new(uint256.Int).Add(p.InvestedCapital, amount)
	if after.Gt(auth.InvestAmount) {
		return fmt.Errorf("%w: %s > %s", ErrInvestAmountExceedsTerms, after.Dec(), auth.InvestAmount.Dec())
	}
	return nil
}

func (preLiquidApproved) afterInvest(s *Sale, investor common.Address, _ *uint256.Int, p *position.Position, auth *InvestAuth) {
	p.CachedInvestAmount = auth.InvestAmount.Clone()
	p.CachedTokenAllocationRate = auth.TokenAllocationRate.Clone()
	s.consumeSignature(investor, auth.Signature)
}
