package sale

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TransferPosition moves from's position to to on the operator's behalf.
func (s *Sale) TransferPosition(caller, from, to common.Address) error {
	return s.atomic("transferPosition", func(now uint64) error {
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		return s.transferPosition(now, from, to)
	})
}

// TransferPositionWithAuthorization lets the holder move its position with
// a signature from the operator signer. Each authorization works once.
func (s *Sale) TransferPositionWithAuthorization(from, to common.Address, sig []byte) error {
	return s.atomic("transferPositionWithAuthorization", func(now uint64) error {
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		id := s.deps.Positions.PositionIDOf(from)
		if id == 0 {
			return ErrInvestorHasNoPosition
		}
		digest := TransferDigest(from, to, s.cfg.Address, s.cfg.ChainID, id)
		if err := s.verifyOneTimeSignature(from, digest, sig); err != nil {
			return err
		}
		s.consumeSignature(from, sig)
		return s.transferPosition(now, from, to)
	})
}

// transferPosition merges into an existing destination position or
// reassigns the id.
func (s *Sale) transferPosition(now uint64, from, to common.Address) error {
	if err := s.notCanceled(); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if from == to {
		return fmt.Errorf("%w: same owner", ErrInvalidPositionTransfer)
	}
	if err := s.refundPeriodOver(now); err != nil {
		return err
	}
	if s.status.TokensSupplied {
		return fmt.Errorf("%w: tokens already supplied", ErrInvalidPositionTransfer)
	}
	src, err := s.investorPosition(from)
	if err != nil {
		return err
	}
	if src.HasRefunded || src.HasSettled {
		return fmt.Errorf("%w: source refunded or settled", ErrInvalidPositionTransfer)
	}

	srcID := src.ID
	if dstID := s.deps.Positions.PositionIDOf(to); dstID != 0 {
		dst, ok := s.ledger.Get(dstID)
		if !ok {
			return ErrInvestorHasNoPosition
		}
		if dst.HasRefunded || dst.HasSettled {
			return fmt.Errorf("%w: destination refunded or settled", ErrInvalidPositionTransfer)
		}
		if err := s.ledger.Merge(srcID, dstID); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPositionTransfer, err)
		}
		if err := s.deps.Positions.BurnPosition(from); err != nil {
			return err
		}
		s.emit(EventPositionTransferred, now, withAccount(from), withCounterparty(to), withPosition(dstID))
		s.log.Info("Position merged", "from", from, "to", to, "source", srcID, "target", dstID)
		return nil
	}

	if err := s.deps.Positions.TransferPosition(from, to, srcID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPositionTransfer, err)
	}
	s.emit(EventPositionTransferred, now, withAccount(from), withCounterparty(to), withPosition(srcID))
	s.log.Info("Position transferred", "from", from, "to", to, "position", srcID)
	return nil
}
