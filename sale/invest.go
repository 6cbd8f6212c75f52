package sale

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/merkle"
	"github.com/bitfsorg/libsale-go/position"
)

// Invest commits amount of the bid token from investor. The first
// investment creates the investor's position.
func (s *Sale) Invest(investor common.Address, amount *uint256.Int, auth *InvestAuth) error {
	if auth == nil {
		auth = &InvestAuth{}
	}
	return s.atomic("invest", func(now uint64) error {
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if s.v.hasEnded(&s.status, now) {
			return ErrSaleHasEnded
		}
		if err := s.v.checkInvestWindow(&s.status, now); err != nil {
			return err
		}
		if amount == nil || amount.Lt(s.cfg.MinimumInvestAmount) {
			return fmt.Errorf("%w: below minimum %s", ErrInvalidInvestAmount, s.cfg.MinimumInvestAmount.Dec())
		}

		id := s.deps.Positions.PositionIDOf(investor)
		if id == 0 {
			var err error
			if id, err = s.deps.Positions.CreatePosition(investor); err != nil {
				return err
			}
		}
		p := s.ledger.GetOrCreate(id)
		if p.HasRefunded {
			return ErrAlreadyRefunded
		}
		if p.HasClaimedExcess {
			return ErrAlreadyClaimedExcess
		}
		if err := s.v.verifyInvest(s, investor, amount, p, auth); err != nil {
			return err
		}

		if err := s.credit(id, amount); err != nil {
			return err
		}
		if err := s.pull(s.cfg.BidToken, investor, s.cfg.Address, amount); err != nil {
			return err
		}
		s.v.afterInvest(s, investor, amount, p, auth)

		s.emit(EventCapitalInvested, now, withAccount(investor), withPosition(id), withAmount(amount))
		s.log.Debug("Capital invested", "investor", investor, "position", id, "amount", amount.Dec())
		return nil
	})
}

// Refund returns investor's whole invested capital while the refund
// window is open.
func (s *Sale) Refund(investor common.Address) error {
	return s.atomic("refund", func(now uint64) error {
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if !s.v.refundOpen(&s.status, now) {
			if !s.v.hasEnded(&s.status, now) && now < s.status.RefundEndTime {
				return ErrSaleHasNotEnded
			}
			return ErrRefundPeriodIsOver
		}
		p, err := s.investorPosition(investor)
		if err != nil {
			return err
		}
		if p.HasRefunded {
			return ErrAlreadyRefunded
		}
		amount, err := s.drain(p.ID)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return ErrInvalidRefundAmount
		}

		p.HasRefunded = true
		if err := s.pay(s.cfg.BidToken, investor, amount); err != nil {
			return err
		}

		s.emit(EventCapitalRefunded, now, withAccount(investor), withPosition(p.ID), withAmount(amount))
		s.log.Debug("Capital refunded", "investor", investor, "amount", amount.Dec())
		return nil
	})
}

// WithdrawInvestedCapitalIfCanceled returns investor's remaining capital
// after the sale was canceled.
func (s *Sale) WithdrawInvestedCapitalIfCanceled(investor common.Address) error {
	return s.atomic("withdrawInvestedCapitalIfCanceled", func(now uint64) error {
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if !s.status.IsCanceled {
			return ErrSaleIsNotCanceled
		}
		p, err := s.investorPosition(investor)
		if err != nil {
			return err
		}
		amount, err := s.drain(p.ID)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return ErrInvalidWithdrawAmount
		}

		if err := s.pay(s.cfg.BidToken, investor, amount); err != nil {
			return err
		}

		s.emit(EventCapitalRefundedAfterCancel, now, withAccount(investor), withPosition(p.ID), withAmount(amount))
		return nil
	})
}

// WithdrawExcessInvestedCapital returns amount to investor when the
// accepted-capital root attests that investor keeps
// investedCapital - amount.
func (s *Sale) WithdrawExcessInvestedCapital(investor common.Address, amount *uint256.Int, proof []common.Hash) error {
	return s.atomic("withdrawExcessInvestedCapital", func(now uint64) error {
		p, err := s.checkExcess(investor, amount)
		if err != nil {
			return err
		}
		accepted := new(uint256.Int).Sub(p.InvestedCapital, amount)
		leaf, err := merkle.AcceptedCapitalLeaf(investor, accepted)
		if err != nil {
			return err
		}
		if err := merkle.VerifyErr(proof, s.status.AcceptedCapitalMerkleRoot, leaf); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMerkleProof, err)
		}
		return s.payExcess(now, investor, p.ID, amount)
	})
}

// WithdrawExcessInvestedCapitalWithTerms is the pre-liquid approved form of
// excess withdrawal: the operator signs the updated SAFT terms and the
// remaining capital must equal the new invest amount.
func (s *Sale) WithdrawExcessInvestedCapitalWithTerms(investor common.Address, amount, investAmount, tokenAllocationRate *uint256.Int, sig []byte) error {
	return s.atomic("withdrawExcessInvestedCapitalWithTerms", func(now uint64) error {
		if s.cfg.Kind != KindPreLiquidApproved {
			return fmt.Errorf("%w: signed terms require a pre-liquid approved sale", ErrInvalidSignature)
		}
		p, err := s.checkExcess(investor, amount)
		if err != nil {
			return err
		}
		if investAmount == nil || tokenAllocationRate == nil {
			return fmt.Errorf("%w: missing SAFT terms", ErrInvalidSignature)
		}
		digest := SAFTDigest(investor, s.cfg.Address, s.cfg.ChainID, investAmount, tokenAllocationRate, ActionWithdrawExcessCapital)
		if err := s.verifyOneTimeSignature(investor, digest, sig); err != nil {
			return err
		}
		remaining := new(uint256.Int).Sub(p.InvestedCapital, amount)
		if !remaining.Eq(investAmount) {
			return fmt.Errorf("%w: remaining %s, terms %s", ErrInvalidWithdrawAmount, remaining.Dec(), investAmount.Dec())
		}

		s.consumeSignature(investor, sig)
		p.CachedInvestAmount = investAmount.Clone()
		p.CachedTokenAllocationRate = tokenAllocationRate.Clone()
		return s.payExcess(now, investor, p.ID, amount)
	})
}

func (s *Sale) checkExcess(investor common.Address, amount *uint256.Int) (*position.Position, error) {
	if err := s.whenNotPaused(); err != nil {
		return nil, err
	}
	if err := s.notCanceled(); err != nil {
		return nil, err
	}
	p, err := s.investorPosition(investor)
	if err != nil {
		return nil, err
	}
	if p.HasRefunded {
		return nil, ErrAlreadyRefunded
	}
	if p.HasClaimedExcess {
		return nil, ErrAlreadyClaimedExcess
	}
	if amount == nil || amount.IsZero() || amount.Gt(p.InvestedCapital) {
		return nil, ErrInvalidWithdrawAmount
	}
	return p, nil
}

func (s *Sale) payExcess(now uint64, investor common.Address, id uint64, amount *uint256.Int) error {
	p, _ := s.ledger.Get(id)
	p.HasClaimedExcess = true
	if err := s.debit(id, amount); err != nil {
		return err
	}
	if err := s.pay(s.cfg.BidToken, investor, amount); err != nil {
		return err
	}
	s.emit(EventExcessCapitalWithdrawn, now, withAccount(investor), withPosition(id), withAmount(amount))
	return nil
}
