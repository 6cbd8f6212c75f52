package sale

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EndSale stops investment immediately and opens the refund window.
func (s *Sale) EndSale(caller common.Address) error {
	return s.atomic("endSale", func(now uint64) error {
		switch caller {
		case s.addrs.Bouncer:
		case s.cfg.ProjectAdmin:
			if err := s.whenNotPaused(); err != nil {
				return err
			}
		default:
			return ErrNotCalledByLegionOrProject
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if s.v.hasEnded(&s.status, now) {
			return ErrSaleHasEnded
		}

		s.status.HasEnded = true
		s.status.EndTime = now
		s.status.RefundEndTime = now + s.cfg.RefundPeriodSeconds

		s.emit(EventSaleEnded, now, withAccount(caller))
		s.log.Info("Sale ended", "by", caller, "refundEnd", s.status.RefundEndTime)
		return nil
	})
}

// CancelSale cancels the sale. Capital the project already withdrew is
// pulled back in full, fees included, in the same call.
func (s *Sale) CancelSale(caller common.Address) error {
	return s.atomic("cancelSale", func(now uint64) error {
		if err := s.onlyProject(caller); err != nil {
			return err
		}
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if err := s.notCanceled(); err != nil {
			return err
		}
		if s.status.ResultsPublished() {
			return ErrTokensAlreadyAllocated
		}
		if err := s.v.checkCancel(&s.status); err != nil {
			return err
		}

		if s.status.CapitalWithdrawn {
			returned := s.status.TotalCapitalWithdrawn.Clone()
			if err := s.pull(s.cfg.BidToken, s.cfg.ProjectAdmin, s.cfg.Address, returned); err != nil {
				return err
			}
			s.status.CapitalWithdrawn = false
			s.status.TotalCapitalWithdrawn = new(uint256.Int)
			s.log.Info("Withdrawn capital returned", "amount", returned.Dec())
		}
		s.status.IsCanceled = true

		s.emit(EventSaleCanceled, now, withAccount(caller))
		s.log.Info("Sale canceled")
		return nil
	})
}

// Pause suspends investor and project facing operations.
func (s *Sale) Pause(caller common.Address) error {
	return s.atomic("pause", func(now uint64) error {
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		s.status.IsPaused = true
		s.emit(EventPaused, now, withAccount(caller))
		s.log.Warn("Sale paused")
		return nil
	})
}

// Unpause lifts a pause.
func (s *Sale) Unpause(caller common.Address) error {
	return s.atomic("unpause", func(now uint64) error {
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		s.status.IsPaused = false
		s.emit(EventUnpaused, now, withAccount(caller))
		s.log.Info("Sale unpaused")
		return nil
	})
}

// SyncRegistry refreshes the cached operator addresses from the registry.
func (s *Sale) SyncRegistry(caller common.Address) error {
	return s.atomic("syncRegistry", func(now uint64) error {
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		addrs, err := resolveAddresses(s.deps.Registry)
		if err != nil {
			return err
		}
		s.addrs = addrs
		s.emit(EventAddressesSynced, now, withAccount(caller))
		s.log.Info("Addresses synced", "bouncer", addrs.Bouncer, "signer", addrs.Signer,
			"feeReceiver", addrs.FeeReceiver, "vestingFactory", addrs.VestingFactory)
		return nil
	})
}

// EmergencyWithdraw moves amount of token held by the sale to receiver.
func (s *Sale) EmergencyWithdraw(caller, receiver, token common.Address, amount *uint256.Int) error {
	return s.atomic("emergencyWithdraw", func(now uint64) error {
		if err := s.onlyLegion(caller); err != nil {
			return err
		}
		if receiver == (common.Address{}) || token == (common.Address{}) {
			return ErrZeroAddress
		}
		if err := s.pay(token, receiver, amount); err != nil {
			return err
		}
		s.emit(EventEmergencyWithdraw, now, withAccount(caller), withCounterparty(receiver), withAmount(amount))
		s.log.Warn("Emergency withdraw", "token", token, "receiver", receiver, "amount", amount)
		return nil
	})
}
