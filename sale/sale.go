// Package sale implements the token-sale state machine shared by the
// fixed-price, sealed-bid auction and pre-liquid sale variants.
//
// A Sale tracks investor capital, enforces the time-boxed phases, gates
// token and capital distribution behind operator-published Merkle roots,
// splits proceeds into fees and hands vested tokens to vesting wallets.
// Every operation is atomic: if any guard or collaborator call fails, the
// sale and every journaled collaborator are restored to their state before
// the call and no event is emitted.
package sale

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/position"
	"github.com/bitfsorg/libsale-go/registry"
	"github.com/bitfsorg/libsale-go/sealedbid"
	"github.com/bitfsorg/libsale-go/signer"
	"github.com/bitfsorg/libsale-go/vesting"
)

// Tokens moves fungible tokens. The sale spends investor and project
// allowances granted to its own address.
type Tokens interface {
	BalanceOf(token, owner common.Address) *uint256.Int
	Transfer(token, from, to common.Address, amount *uint256.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *uint256.Int) error
}

// Vesting deploys and looks up vesting wallets. Address must match the
// vesting factory published in the registry.
type Vesting interface {
	Address() common.Address
	vesting.Factory
	vesting.Directory
}

// Journal is implemented by collaborators whose changes can be rolled back.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

// Deps are the collaborators of a sale.
type Deps struct {
	Tokens    Tokens
	Positions position.Manager
	Vesting   Vesting
	Registry  registry.Registry
	Clock     mclock.Clock
	// Feed receives committed events. Optional.
	Feed *event.Feed
}

func (d *Deps) validate() error {
	if d.Tokens == nil || d.Positions == nil || d.Vesting == nil || d.Registry == nil || d.Clock == nil {
		return fmt.Errorf("%w: missing collaborator", ErrInvalidConfig)
	}
	return nil
}

// InvestAuth carries the proof of eligibility for an investment.
type InvestAuth struct {
	// Signature by the operator signer over the variant's invest digest.
	Signature []byte
	// SealedBid is required by sealed-bid auctions.
	SealedBid *sealedbid.SealedBid
	// InvestAmount and TokenAllocationRate are the signed SAFT terms of
	// pre-liquid approved sales.
	InvestAmount        *uint256.Int
	TokenAllocationRate *uint256.Int
}

// Bid is an accepted sealed bid.
type Bid struct {
	PositionID uint64              `json:"positionId"`
	Investor   common.Address      `json:"investor"`
	AmountIn   *uint256.Int        `json:"amountIn"`
	SealedBid  sealedbid.SealedBid `json:"sealedBid"`
}

// Sale is one token sale. It is not safe for concurrent use; callers
// serialize operations.
type Sale struct {
	cfg  Config
	v    variant
	deps Deps
	log  log.Logger

	addrs    Addresses
	status   Status
	ledger   *position.Ledger
	usedSigs map[common.Address]map[common.Hash]struct{}
	bids     []Bid

	pending []Event
}

// New creates a sale and starts its first phase at the current time.
func New(cfg Config, deps Deps) (*Sale, error) {
	s, err := build(cfg, deps)
	if err != nil {
		return nil, err
	}
	s.status = newStatus()
	s.status.AskToken = cfg.AskToken
	s.v.start(s.now(), &s.cfg, &s.status)
	s.log.Info("Sale created", "start", s.status.StartTime, "end", s.status.EndTime, "refundEnd", s.status.RefundEndTime)
	return s, nil
}

func build(cfg Config, deps Deps) (*Sale, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	v, err := newVariant(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := v.validate(&cfg); err != nil {
		return nil, err
	}
	addrs, err := resolveAddresses(deps.Registry)
	if err != nil {
		return nil, err
	}
	return &Sale{
		cfg:      cfg.clone(),
		v:        v,
		deps:     deps,
		log:      log.New("sale", cfg.Address.Hex(), "kind", cfg.Kind.String()),
		addrs:    addrs,
		ledger:   position.NewLedger(),
		usedSigs: make(map[common.Address]map[common.Hash]struct{}),
	}, nil
}

// ---------------------------------------------------------------------------
// Atomic execution
// ---------------------------------------------------------------------------

type saleSnapshot struct {
	addrs    Addresses
	status   Status
	ledger   *position.Ledger
	usedSigs map[common.Address]map[common.Hash]struct{}
	bids     []Bid
}

func (s *Sale) takeSnapshot() saleSnapshot {
	used := make(map[common.Address]map[common.Hash]struct{}, len(s.usedSigs))
	for a, set := range s.usedSigs {
		c := make(map[common.Hash]struct{}, len(set))
		for h := range set {
			c[h] = struct{}{}
		}
		used[a] = c
	}
	return saleSnapshot{
		addrs:    s.addrs,
		status:   s.status.clone(),
		ledger:   s.ledger.Clone(),
		usedSigs: used,
		bids:     append([]Bid(nil), s.bids...),
	}
}

func (s *Sale) journals() []Journal {
	var js []Journal
	for _, c := range []interface{}{s.deps.Tokens, s.deps.Positions, s.deps.Vesting} {
		if j, ok := c.(Journal); ok {
			js = append(js, j)
		}
	}
	return js
}

// atomic runs fn as one all-or-nothing operation.
func (s *Sale) atomic(op string, fn func(now uint64) error) error {
	snap := s.takeSnapshot()
	journals := s.journals()
	ids := make([]int, len(journals))
	for i, j := range journals {
		ids[i] = j.Snapshot()
	}
	s.pending = nil

	err := fn(s.now())
	if err == nil {
		err = s.checkConservation()
	}
	if err != nil {
		for i := len(journals) - 1; i >= 0; i-- {
			journals[i].RevertToSnapshot(ids[i])
		}
		s.addrs, s.status, s.ledger, s.usedSigs, s.bids = snap.addrs, snap.status, snap.ledger, snap.usedSigs, snap.bids
		s.pending = nil
		s.log.Debug("Operation rejected", "op", op, "class", Class(err), "err", err)
		return err
	}

	for i, j := range journals {
		j.DiscardSnapshot(ids[i])
	}
	events := s.pending
	s.pending = nil
	if s.deps.Feed != nil {
		for _, e := range events {
			s.deps.Feed.Send(e)
		}
	}
	return nil
}

func (s *Sale) checkConservation() error {
	if err := s.ledger.CheckConservation(); err != nil {
		return fmt.Errorf("%w: %w", ErrConservation, err)
	}
	if !s.ledger.Total().Eq(s.status.TotalCapitalInvested) {
		return fmt.Errorf("%w: ledger %s, status %s", ErrConservation, s.ledger.Total().Dec(), s.status.TotalCapitalInvested.Dec())
	}
	return nil
}

func (s *Sale) now() uint64 {
	return uint64(time.Duration(s.deps.Clock.Now()) / time.Second)
}

// ---------------------------------------------------------------------------
// Guards and helpers
// ---------------------------------------------------------------------------

func (s *Sale) onlyLegion(caller common.Address) error {
	if caller != s.addrs.Bouncer {
		return ErrNotCalledByLegion
	}
	return nil
}

func (s *Sale) onlyProject(caller common.Address) error {
	if caller != s.cfg.ProjectAdmin {
		return ErrNotCalledByProject
	}
	return nil
}

func (s *Sale) whenNotPaused() error {
	if s.status.IsPaused {
		return ErrSalePaused
	}
	return nil
}

func (s *Sale) notCanceled() error {
	if s.status.IsCanceled {
		return ErrSaleIsCanceled
	}
	return nil
}

func (s *Sale) refundPeriodOver(now uint64) error {
	if !s.v.hasEnded(&s.status, now) || now < s.status.RefundEndTime {
		return ErrRefundPeriodIsNotOver
	}
	return nil
}

func (s *Sale) resultsPublished() error {
	if !s.status.ResultsPublished() {
		return ErrResultsNotPublished
	}
	return nil
}

// investorPosition returns the live position of investor.
func (s *Sale) investorPosition(investor common.Address) (*position.Position, error) {
	id := s.deps.Positions.PositionIDOf(investor)
	if id == 0 {
		return nil, ErrInvestorHasNoPosition
	}
	p, ok := s.ledger.Get(id)
	if !ok {
		return nil, ErrInvestorHasNoPosition
	}
	return p, nil
}

func (s *Sale) verifySignature(digest common.Hash, sig []byte) error {
	if err := signer.Verify(s.addrs.Signer, digest, sig); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return nil
}

// verifyOneTimeSignature additionally rejects a signature investor has
// already consumed.
func (s *Sale) verifyOneTimeSignature(investor common.Address, digest common.Hash, sig []byte) error {
	if _, used := s.usedSigs[investor][crypto.Keccak256Hash(sig)]; used {
		return ErrSignatureAlreadyUsed
	}
	return s.verifySignature(digest, sig)
}

func (s *Sale) consumeSignature(investor common.Address, sig []byte) {
	set, ok := s.usedSigs[investor]
	if !ok {
		set = make(map[common.Hash]struct{})
		s.usedSigs[investor] = set
	}
	set[crypto.Keccak256Hash(sig)] = struct{}{}
}

// credit and debit keep the ledger and the status total in step.
func (s *Sale) credit(id uint64, amount *uint256.Int) error {
	if err := s.ledger.Credit(id, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInvestAmount, err)
	}
	s.status.TotalCapitalInvested = s.ledger.Total()
	return nil
}

func (s *Sale) debit(id uint64, amount *uint256.Int) error {
	if err := s.ledger.Debit(id, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWithdrawAmount, err)
	}
	s.status.TotalCapitalInvested = s.ledger.Total()
	return nil
}

// drain empties the position and returns what it held.
func (s *Sale) drain(id uint64) (*uint256.Int, error) {
	amount, err := s.ledger.Drain(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWithdrawAmount, err)
	}
	s.status.TotalCapitalInvested = s.ledger.Total()
	return amount, nil
}

// pay sends tokens held by the sale. Zero amounts are skipped.
func (s *Sale) pay(token, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	return s.deps.Tokens.Transfer(token, s.cfg.Address, to, amount)
}

// pull collects tokens from an account that approved the sale. Zero
// amounts are skipped.
func (s *Sale) pull(token, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	return s.deps.Tokens.TransferFrom(token, s.cfg.Address, from, to, amount)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Address returns the sale's address.
func (s *Sale) Address() common.Address { return s.cfg.Address }

// Kind returns the sale variant.
func (s *Sale) Kind() Kind { return s.cfg.Kind }

// Config returns a copy of the configuration.
func (s *Sale) Config() Config { return s.cfg.clone() }

// Addresses returns the cached operator addresses.
func (s *Sale) Addresses() Addresses { return s.addrs }

// Status returns a copy of the runtime status.
func (s *Sale) Status() Status { return s.status.clone() }

// Position returns a copy of investor's position.
func (s *Sale) Position(investor common.Address) (*position.Position, bool) {
	p, err := s.investorPosition(investor)
	if err != nil {
		return nil, false
	}
	return p.Clone(), true
}

// Positions returns copies of all positions ordered by id.
func (s *Sale) Positions() []*position.Position { return s.ledger.Positions() }

// Bids returns the accepted sealed bids in arrival order.
func (s *Sale) Bids() []Bid { return append([]Bid(nil), s.bids...) }

// SignatureUsed reports whether investor already consumed sig.
func (s *Sale) SignatureUsed(investor common.Address, sig []byte) bool {
	_, ok := s.usedSigs[investor][crypto.Keccak256Hash(sig)]
	return ok
}

// HasEnded reports whether the sale stopped accepting investments.
func (s *Sale) HasEnded() bool { return s.v.hasEnded(&s.status, s.now()) }

// Phase returns the current lifecycle phase.
func (s *Sale) Phase() Phase {
	now := s.now()
	switch {
	case s.status.IsCanceled:
		return PhaseCanceled
	case s.status.ResultsPublished():
		return PhaseResultsPublished
	case s.status.PublicationLocked:
		return PhasePublicationLocked
	case !s.v.hasEnded(&s.status, now):
		return PhaseActive
	case now < s.status.RefundEndTime:
		return PhaseEnded
	default:
		return PhaseRefundOver
	}
}

// SubscribeEvents delivers committed events to ch. Delivery blocks until
// every subscriber has received the event, so ch should be buffered or
// drained concurrently.
func (s *Sale) SubscribeEvents(ch chan<- Event) event.Subscription {
	if s.deps.Feed == nil {
		s.deps.Feed = new(event.Feed)
	}
	return s.deps.Feed.Subscribe(ch)
}
