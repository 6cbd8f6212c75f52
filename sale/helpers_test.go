package sale

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libsale-go/merkle"
	"github.com/bitfsorg/libsale-go/position"
	"github.com/bitfsorg/libsale-go/registry"
	"github.com/bitfsorg/libsale-go/sealedbid"
	"github.com/bitfsorg/libsale-go/signer"
	"github.com/bitfsorg/libsale-go/token"
	"github.com/bitfsorg/libsale-go/vesting"
)

const (
	hour = uint64(3600)
	day  = 24 * hour

	chainID = uint64(1)
)

var (
	saleAddr    = common.HexToAddress("0x0000000000000000000000000000000000005a1e")
	bidToken    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	askToken    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	bouncer     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	feeReceiver = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	project     = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	referrer    = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	stranger    = common.HexToAddress("0x00000000000000000000000000000000000000e1")

	alice = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000b3")
	dave  = common.HexToAddress("0x00000000000000000000000000000000000000b4")

	// auctionKey is the sealed-bid private key used by auction tests.
	auctionKey = uint256.NewInt(3)
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// env wires a sale to in-memory collaborators.
type env struct {
	t         *testing.T
	clock     *mclock.Simulated
	tokens    *token.Ledger
	positions *position.MemManager
	vest      *vesting.MemFactory
	reg       *registry.MemRegistry
	key       *ecdsa.PrivateKey
	feed      *event.Feed
}

func newEnv(t *testing.T) *env {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	e := &env{
		t:         t,
		clock:     new(mclock.Simulated),
		tokens:    token.NewLedger(),
		positions: position.NewMemManager(),
		reg:       registry.NewMemRegistry(),
		key:       key,
		feed:      new(event.Feed),
	}
	e.vest = vesting.NewMemFactory(factoryAddr, e.tokens, e.clock)

	require.NoError(t, e.reg.Set(registry.RoleBouncer, bouncer))
	require.NoError(t, e.reg.Set(registry.RoleSigner, crypto.PubkeyToAddress(key.PublicKey)))
	require.NoError(t, e.reg.Set(registry.RoleFeeReceiver, feeReceiver))
	require.NoError(t, e.reg.Set(registry.RoleVestingFactory, factoryAddr))

	for _, investor := range []common.Address{alice, bob, carol, dave} {
		e.fund(bidToken, investor, 1_000_000)
	}
	return e
}

func (e *env) deps() Deps {
	return Deps{
		Tokens:    e.tokens,
		Positions: e.positions,
		Vesting:   e.vest,
		Registry:  e.reg,
		Clock:     e.clock,
		Feed:      e.feed,
	}
}

// fund mints amount of tok to owner and approves the sale without limit.
func (e *env) fund(tok, owner common.Address, amount uint64) {
	e.t.Helper()
	require.NoError(e.t, e.tokens.Mint(tok, owner, u(amount)))
	require.NoError(e.t, e.tokens.Approve(tok, owner, saleAddr, token.MaxAllowance()))
}

func (e *env) balance(tok, owner common.Address) *uint256.Int {
	return e.tokens.BalanceOf(tok, owner)
}

func (e *env) now() uint64 {
	return uint64(time.Duration(e.clock.Now()) / time.Second)
}

// warp advances the clock to ts. It never goes backwards.
func (e *env) warp(ts uint64) {
	if now := e.now(); ts > now {
		e.clock.Run(time.Duration(ts-now) * time.Second)
	}
}

func (e *env) sign(digest common.Hash) []byte {
	e.t.Helper()
	sig, err := signer.Sign(e.key, digest)
	require.NoError(e.t, err)
	return sig
}

func (e *env) investAuth(investor common.Address) *InvestAuth {
	return &InvestAuth{Signature: e.sign(InvestDigest(investor, saleAddr, chainID))}
}

func (e *env) saftAuth(investor common.Address, investAmount, rate uint64) *InvestAuth {
	digest := SAFTDigest(investor, saleAddr, chainID, u(investAmount), u(rate), ActionInvest)
	return &InvestAuth{
		Signature:           e.sign(digest),
		InvestAmount:        u(investAmount),
		TokenAllocationRate: u(rate),
	}
}

func (e *env) auctionAuth(investor common.Address, bid sealedbid.SealedBid) *InvestAuth {
	e.t.Helper()
	digest, err := AuctionInvestDigest(investor, saleAddr, chainID, bid)
	require.NoError(e.t, err)
	return &InvestAuth{Signature: e.sign(digest), SealedBid: &bid}
}

func (e *env) newSale(kind Kind) *Sale {
	e.t.Helper()
	s, err := New(testConfig(e.t, kind), e.deps())
	require.NoError(e.t, err)
	return s
}

func testConfig(t *testing.T, kind Kind) Config {
	t.Helper()
	cfg := Config{
		Kind:                          kind,
		Address:                       saleAddr,
		ChainID:                       chainID,
		BidToken:                      bidToken,
		AskToken:                      askToken,
		ProjectAdmin:                  project,
		ReferrerFeeReceiver:           referrer,
		RefundPeriodSeconds:           14 * day,
		MinimumInvestAmount:           u(100),
		LegionFeeOnCapitalRaisedBps:   250,
		LegionFeeOnTokensSoldBps:      250,
		ReferrerFeeOnCapitalRaisedBps: 100,
		ReferrerFeeOnTokensSoldBps:    100,
	}
	switch kind {
	case KindFixedPrice:
		cfg.SalePeriodSeconds = 7 * day
		cfg.PrefundPeriodSeconds = day
		cfg.PrefundAllocationPeriodSeconds = hour
		cfg.TokenPrice = u(2)
	case KindSealedBidAuction:
		cfg.SalePeriodSeconds = 7 * day
		pub, err := sealedbid.PublicKeyFromPrivate(auctionKey)
		require.NoError(t, err)
		cfg.PublicKey = pub
	case KindPreLiquidApproved, KindPreLiquidOpen:
		cfg.AskToken = common.Address{}
	}
	return cfg
}

// closeRefund moves past the end of the refund window.
func (e *env) closeRefund(s *Sale) {
	e.warp(s.Status().RefundEndTime)
}

// tree builds a Merkle tree over leaves and returns it with the proof of
// the first leaf.
func tree(t *testing.T, leaves ...common.Hash) (*merkle.Tree, []common.Hash) {
	t.Helper()
	tr, err := merkle.BuildTree(leaves)
	require.NoError(t, err)
	proof, err := tr.Proof(leaves[0])
	require.NoError(t, err)
	return tr, proof
}

// assertConserved checks that the sale holds at least the invested capital
// and that positions sum to the total.
func assertConserved(t *testing.T, e *env, s *Sale) {
	t.Helper()
	sum := new(uint256.Int)
	for _, p := range s.Positions() {
		sum.Add(sum, p.InvestedCapital)
	}
	st := s.Status()
	require.True(t, sum.Eq(st.TotalCapitalInvested), "positions %s, total %s", sum.Dec(), st.TotalCapitalInvested.Dec())
	require.False(t, e.balance(bidToken, saleAddr).Lt(st.TotalCapitalInvested))
}
