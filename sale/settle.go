package sale

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/merkle"
	"github.com/bitfsorg/libsale-go/sealedbid"
	"github.com/bitfsorg/libsale-go/vesting"
)

// ClaimTokenAllocation settles investor's position against the claim
// root. The TGE share is paid to investor at once and the remainder is
// locked in a newly deployed vesting wallet.
func (s *Sale) ClaimTokenAllocation(investor common.Address, amount *uint256.Int, vc vesting.Config, proof []common.Hash) error {
	return s.atomic("claimTokenAllocation", func(now uint64) error {
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if err := s.refundPeriodOver(now); err != nil {
			return err
		}
		if err := s.resultsPublished(); err != nil {
			return err
		}
		if !s.status.TokensSupplied {
			return ErrTokensNotSupplied
		}
		p, err := s.investorPosition(investor)
		if err != nil {
			return err
		}
		if p.HasSettled {
			return ErrAlreadySettled
		}
		if amount == nil || amount.IsZero() {
			return fmt.Errorf("%w: zero claim", ErrInvalidMerkleProof)
		}
		if err := vc.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidVestingConfig, err)
		}
		leaf, err := merkle.ClaimLeaf(investor, amount, p.ID, vc)
		if err != nil {
			return err
		}
		if err := merkle.VerifyErr(proof, s.status.ClaimTokensMerkleRoot, leaf); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMerkleProof, err)
		}

		p.HasSettled = true
		token := s.status.AskToken
		immediate, vested := vc.Split(amount)
		if !vested.IsZero() {
			if f := s.deps.Vesting.Address(); f != s.addrs.VestingFactory {
				return fmt.Errorf("%w: factory %s, registry %s", ErrVestingFactoryMismatch, f, s.addrs.VestingFactory)
			}
			wallet, err := s.deps.Vesting.CreateVesting(investor, vc)
			if err != nil {
				return err
			}
			if wallet == (common.Address{}) {
				return ErrZeroVestingAddress
			}
			p.VestingAddress = wallet
			if err := s.pay(token, wallet, vested); err != nil {
				return err
			}
			s.log.Debug("Vesting wallet created", "investor", investor, "wallet", wallet, "amount", vested.Dec())
		}
		if err := s.pay(token, investor, immediate); err != nil {
			return err
		}

		s.emit(EventTokenAllocationClaimed, now, withAccount(investor), withCounterparty(p.VestingAddress),
			withPosition(p.ID), withAmount(amount))
		s.log.Debug("Token allocation claimed", "investor", investor, "immediate", immediate.Dec(), "vested", vested.Dec())
		return nil
	})
}

// ReleaseVestedTokens releases whatever investor's vesting wallet has
// vested so far.
func (s *Sale) ReleaseVestedTokens(investor common.Address) error {
	return s.atomic("releaseVestedTokens", func(now uint64) error {
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		p, err := s.investorPosition(investor)
		if err != nil {
			return err
		}
		if p.VestingAddress == (common.Address{}) {
			return ErrZeroVestingAddress
		}
		if s.status.AskToken == (common.Address{}) {
			return ErrAskTokenUnavailable
		}
		w, err := s.deps.Vesting.Wallet(p.VestingAddress)
		if err != nil {
			return err
		}
		released, err := w.Release(s.status.AskToken)
		if err != nil {
			return err
		}
		s.emit(EventVestedTokensReleased, now, withAccount(investor), withCounterparty(p.VestingAddress),
			withPosition(p.ID), withAmount(released))
		return nil
	})
}

// DecryptSealedBid opens a sealed amount with the published auction key.
func (s *Sale) DecryptSealedBid(encryptedAmountOut, salt *uint256.Int) (*uint256.Int, error) {
	if s.cfg.Kind != KindSealedBidAuction {
		return nil, ErrNotAuction
	}
	if s.status.PrivateKey == nil {
		return nil, ErrPrivateKeyNotPublished
	}
	if encryptedAmountOut == nil || salt == nil {
		return nil, ErrInvalidSalt
	}
	return sealedbid.Decrypt(encryptedAmountOut, s.cfg.PublicKey, s.status.PrivateKey, salt)
}
