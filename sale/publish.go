package sale

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/fee"
)

// Results are the off-chain computed outcome of a sale.
type Results struct {
	ClaimTokensMerkleRoot common.Hash
	TokensAllocated       *uint256.Int
	AskToken              common.Address

	// Optional. A zero root leaves the accepted-capital root unchanged and a
	// nil CapitalRaised leaves capital publication for PublishCapitalRaised.
	AcceptedCapitalMerkleRoot common.Hash
	CapitalRaised             *uint256.Int

	// PrivateKey is required by sealed-bid auctions.
	PrivateKey *uint256.Int
}

// InitializePublishSaleResults sets the one-way publication lock of a
// sealed-bid auction. The sale can no longer be canceled afterwards.
func (s *Sale) InitializePublishSaleResults(caller common.Address) error {
	return s.atomic("initializePublishSaleResults", func(now uint64) error {
		if s.cfg.Kind != KindSealedBidAuction {
			return ErrNotAuction
		}
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if !s.v.hasEnded(&s.status, now) {
			return ErrSaleHasNotEnded
		}
		if s.status.PublicationLocked {
			return ErrPublicationAlreadyLocked
		}
		s.status.PublicationLocked = true
		s.emit(EventPublicationLocked, now, withAccount(caller))
		s.log.Info("Publication locked")
		return nil
	})
}

// PublishSaleResults publishes the claim root and the number of tokens
// allocated. It can succeed only once.
func (s *Sale) PublishSaleResults(caller common.Address, res Results) error {
	return s.atomic("publishSaleResults", func(now uint64) error {
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if err := s.refundPeriodOver(now); err != nil {
			return err
		}
		if s.status.ResultsPublished() {
			return ErrTokensAlreadyAllocated
		}
		if res.TokensAllocated == nil || res.TokensAllocated.IsZero() {
			return ErrInvalidTokensAllocated
		}
		if res.ClaimTokensMerkleRoot == (common.Hash{}) {
			return ErrInvalidRoot
		}
		if s.cfg.AskToken != (common.Address{}) && res.AskToken != s.cfg.AskToken {
			return fmt.Errorf("%w: configured %s, got %s", ErrAskTokenMismatch, s.cfg.AskToken, res.AskToken)
		}
		if res.AskToken == (common.Address{}) {
			return fmt.Errorf("%w: ask token", ErrZeroAddress)
		}
		if err := s.v.publishResults(s, &res); err != nil {
			return err
		}
		if res.CapitalRaised != nil {
			if err := s.setCapitalRaised(now, res.CapitalRaised); err != nil {
				return err
			}
		}
		if res.AcceptedCapitalMerkleRoot != (common.Hash{}) {
			s.status.AcceptedCapitalMerkleRoot = res.AcceptedCapitalMerkleRoot
			s.emit(EventAcceptedCapitalSet, now, withRoot(res.AcceptedCapitalMerkleRoot))
		}

		s.status.ClaimTokensMerkleRoot = res.ClaimTokensMerkleRoot
		s.status.TotalTokensAllocated = res.TokensAllocated.Clone()
		s.status.AskToken = res.AskToken

		s.emit(EventSaleResultsPublished, now, withRoot(res.ClaimTokensMerkleRoot),
			withCounterparty(res.AskToken), withAmount(res.TokensAllocated))
		s.log.Info("Sale results published", "root", res.ClaimTokensMerkleRoot,
			"allocated", res.TokensAllocated.Dec(), "askToken", res.AskToken)
		return nil
	})
}

// PublishCapitalRaised publishes the capital the project may withdraw and
// optionally the accepted-capital root.
func (s *Sale) PublishCapitalRaised(caller common.Address, capitalRaised *uint256.Int, acceptedRoot common.Hash) error {
	return s.atomic("publishCapitalRaised", func(now uint64) error {
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if err := s.refundPeriodOver(now); err != nil {
			return err
		}
		if err := s.v.checkPublishCapital(&s.status); err != nil {
			return err
		}
		if capitalRaised == nil {
			return ErrInvalidCapitalRaised
		}
		if err := s.setCapitalRaised(now, capitalRaised); err != nil {
			return err
		}
		if acceptedRoot != (common.Hash{}) {
			s.status.AcceptedCapitalMerkleRoot = acceptedRoot
			s.emit(EventAcceptedCapitalSet, now, withRoot(acceptedRoot))
		}
		return nil
	})
}

func (s *Sale) setCapitalRaised(now uint64, capitalRaised *uint256.Int) error {
	if s.status.CapitalRaisedPublished {
		return ErrCapitalRaisedAlreadyPublished
	}
	if capitalRaised.Gt(s.status.TotalCapitalInvested) {
		return fmt.Errorf("%w: %s exceeds invested %s", ErrInvalidCapitalRaised,
			capitalRaised.Dec(), s.status.TotalCapitalInvested.Dec())
	}
	s.status.TotalCapitalRaised = capitalRaised.Clone()
	s.status.CapitalRaisedPublished = true
	s.emit(EventCapitalRaisedPublished, now, withAmount(capitalRaised))
	s.log.Info("Capital raised published", "amount", capitalRaised.Dec())
	return nil
}

// SetAcceptedCapital replaces the accepted-capital root.
func (s *Sale) SetAcceptedCapital(caller common.Address, root common.Hash) error {
	return s.atomic("setAcceptedCapital", func(now uint64) error {
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		s.status.AcceptedCapitalMerkleRoot = root
		s.emit(EventAcceptedCapitalSet, now, withAccount(caller), withRoot(root))
		return nil
	})
}

// SupplyTokens transfers the allocated ask tokens from the project to the
// sale. The fees are pulled on top of amount and must equal the configured
// token fee rates applied to amount exactly.
func (s *Sale) SupplyTokens(caller common.Address, amount, legionFee, referrerFee *uint256.Int) error {
	return s.atomic("supplyTokens", func(now uint64) error {
		if err := s.onlyProject(caller); err != nil {
			return err
		}
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if err := s.resultsPublished(); err != nil {
			return err
		}
		if s.status.AskToken == (common.Address{}) {
			return ErrAskTokenUnavailable
		}
		if s.status.TokensSupplied {
			return ErrTokensAlreadySupplied
		}
		if amount == nil || !amount.Eq(s.status.TotalTokensAllocated) {
			return ErrInvalidTokenAmountSupplied
		}
		if legionFee == nil || referrerFee == nil {
			return ErrInvalidFeeAmount
		}
		if !fee.Matches(amount, s.cfg.LegionFeeOnTokensSoldBps, legionFee) {
			return fmt.Errorf("%w: legion fee %s", ErrInvalidFeeAmount, legionFee.Dec())
		}
		if !fee.Matches(amount, s.cfg.ReferrerFeeOnTokensSoldBps, referrerFee) {
			return fmt.Errorf("%w: referrer fee %s", ErrInvalidFeeAmount, referrerFee.Dec())
		}

		s.status.TokensSupplied = true
		token := s.status.AskToken
		if err := s.pull(token, caller, s.cfg.Address, amount); err != nil {
			return err
		}
		if err := s.pull(token, caller, s.addrs.FeeReceiver, legionFee); err != nil {
			return err
		}
		if err := s.pull(token, caller, s.cfg.ReferrerFeeReceiver, referrerFee); err != nil {
			return err
		}

		s.emit(EventTokensSupplied, now, withAccount(caller), withCounterparty(token), withAmount(amount))
		s.log.Info("Tokens supplied", "amount", amount.Dec(), "legionFee", legionFee.Dec(), "referrerFee", referrerFee.Dec())
		return nil
	})
}

// WithdrawRaisedCapital sends the raised capital to the project, less the
// capital fees which go to the fee receivers.
func (s *Sale) WithdrawRaisedCapital(caller common.Address) error {
	return s.atomic("withdrawRaisedCapital", func(now uint64) error {
		if err := s.onlyProject(caller); err != nil {
			return err
		}
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if err := s.refundPeriodOver(now); err != nil {
			return err
		}
		if err := s.v.checkWithdrawCapital(&s.status); err != nil {
			return err
		}
		if s.status.CapitalWithdrawn {
			return ErrCapitalAlreadyWithdrawn
		}
		raised := s.status.TotalCapitalRaised
		if raised == nil || raised.IsZero() {
			return ErrCapitalNotRaised
		}
		split, err := fee.Split(raised, s.cfg.LegionFeeOnCapitalRaisedBps, s.cfg.ReferrerFeeOnCapitalRaisedBps)
		if err != nil {
			return err
		}

		s.status.CapitalWithdrawn = true
		s.status.TotalCapitalWithdrawn = raised.Clone()
		if err := s.pay(s.cfg.BidToken, caller, split.Net); err != nil {
			return err
		}
		if err := s.pay(s.cfg.BidToken, s.addrs.FeeReceiver, split.Legion); err != nil {
			return err
		}
		if err := s.pay(s.cfg.BidToken, s.cfg.ReferrerFeeReceiver, split.Referrer); err != nil {
			return err
		}

		s.emit(EventCapitalWithdrawn, now, withAccount(caller), withAmount(raised))
		s.log.Info("Capital withdrawn", "gross", raised.Dec(), "net", split.Net.Dec(),
			"legionFee", split.Legion.Dec(), "referrerFee", split.Referrer.Dec())
		return nil
	})
}
