package sale

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKind identifies a state change.
type EventKind uint8

const (
	EventCapitalInvested EventKind = iota + 1
	EventCapitalRefunded
	EventCapitalRefundedAfterCancel
	EventExcessCapitalWithdrawn
	EventSaleEnded
	EventSaleCanceled
	EventPublicationLocked
	EventSaleResultsPublished
	EventCapitalRaisedPublished
	EventAcceptedCapitalSet
	EventTokensSupplied
	EventCapitalWithdrawn
	EventTokenAllocationClaimed
	EventVestedTokensReleased
	EventPositionTransferred
	EventPaused
	EventUnpaused
	EventAddressesSynced
	EventEmergencyWithdraw
)

var eventNames = map[EventKind]string{
	EventCapitalInvested:            "CapitalInvested",
	EventCapitalRefunded:            "CapitalRefunded",
	EventCapitalRefundedAfterCancel: "CapitalRefundedAfterCancel",
	EventExcessCapitalWithdrawn:     "ExcessCapitalWithdrawn",
	EventSaleEnded:                  "SaleEnded",
	EventSaleCanceled:               "SaleCanceled",
	EventPublicationLocked:          "PublicationLocked",
	EventSaleResultsPublished:       "SaleResultsPublished",
	EventCapitalRaisedPublished:     "CapitalRaisedPublished",
	EventAcceptedCapitalSet:         "AcceptedCapitalSet",
	EventTokensSupplied:             "TokensSupplied",
	EventCapitalWithdrawn:           "CapitalWithdrawn",
	EventTokenAllocationClaimed:     "TokenAllocationClaimed",
	EventVestedTokensReleased:       "VestedTokensReleased",
	EventPositionTransferred:        "PositionTransferred",
	EventPaused:                     "Paused",
	EventUnpaused:                   "Unpaused",
	EventAddressesSynced:            "AddressesSynced",
	EventEmergencyWithdraw:          "EmergencyWithdraw",
}

// String returns the event name.
func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Event(%d)", uint8(k))
}

// Event is a committed state change. Fields not meaningful for a kind are
// left zero.
type Event struct {
	Kind         EventKind
	Sale         common.Address
	Account      common.Address
	Counterparty common.Address
	PositionID   uint64
	Amount       *uint256.Int
	Root         common.Hash
	Time         uint64
}

type eventOpt func(*Event)

func withAccount(a common.Address) eventOpt      { return func(e *Event) { e.Account = a } }
func withCounterparty(a common.Address) eventOpt { return func(e *Event) { e.Counterparty = a } }
func withPosition(id uint64) eventOpt            { return func(e *Event) { e.PositionID = id } }
func withRoot(h common.Hash) eventOpt            { return func(e *Event) { e.Root = h } }
func withAmount(v *uint256.Int) eventOpt {
	return func(e *Event) {
		if v != nil {
			e.Amount = v.Clone()
		}
	}
}

// emit queues an event; it is delivered only if the operation commits.
func (s *Sale) emit(kind EventKind, now uint64, opts ...eventOpt) {
	e := Event{Kind: kind, Sale: s.cfg.Address, Time: now}
	for _, o := range opts {
		o(&e)
	}
	s.pending = append(s.pending, e)
}
