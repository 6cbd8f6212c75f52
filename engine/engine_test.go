package engine

import (
	"bytes"
	"crypto/ecdsa"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libsale-go/config"
	"github.com/bitfsorg/libsale-go/merkle"
	"github.com/bitfsorg/libsale-go/sale"
	"github.com/bitfsorg/libsale-go/sealedbid"
	"github.com/bitfsorg/libsale-go/signer"
	"github.com/bitfsorg/libsale-go/store"
	"github.com/bitfsorg/libsale-go/token"
	"github.com/bitfsorg/libsale-go/vesting"
)

var (
	bidToken    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	askToken    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	bouncer     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	feeReceiver = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	factory     = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	project     = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob         = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

const (
	hour    = uint64(3600)
	day     = 24 * hour
	chainID = uint64(5)
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// harness bundles the inputs needed to open and reopen an engine.
type harness struct {
	t     *testing.T
	cfg   config.Config
	key   *ecdsa.PrivateKey
	clock *mclock.Simulated
	logs  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.ChainID = chainID
	cfg.LogLevel = "debug"
	cfg.Bouncer = bouncer.Hex()
	cfg.Signer = crypto.PubkeyToAddress(key.PublicKey).Hex()
	cfg.FeeReceiver = feeReceiver.Hex()
	cfg.VestingFactory = factory.Hex()

	return &harness{t: t, cfg: cfg, key: key, clock: new(mclock.Simulated), logs: new(bytes.Buffer)}
}

func (h *harness) open() *Engine {
	h.t.Helper()
	e, err := Open(h.cfg, Options{Clock: h.clock, LogWriter: h.logs})
	require.NoError(h.t, err)
	return e
}

func (h *harness) now() uint64 {
	return uint64(time.Duration(h.clock.Now()) / time.Second)
}

func (h *harness) warp(ts uint64) {
	if now := h.now(); ts > now {
		h.clock.Run(time.Duration(ts-now) * time.Second)
	}
}

func (h *harness) investAuth(investor, saleAddr common.Address) *sale.InvestAuth {
	h.t.Helper()
	sig, err := signer.Sign(h.key, sale.InvestDigest(investor, saleAddr, chainID))
	require.NoError(h.t, err)
	return &sale.InvestAuth{Signature: sig}
}

func saleConfig(kind sale.Kind) sale.Config {
	cfg := sale.Config{
		Kind:                          kind,
		BidToken:                      bidToken,
		ProjectAdmin:                  project,
		ReferrerFeeReceiver:           common.HexToAddress("0x00000000000000000000000000000000000000d2"),
		RefundPeriodSeconds:           14 * day,
		MinimumInvestAmount:           u(100),
		LegionFeeOnCapitalRaisedBps:   250,
		LegionFeeOnTokensSoldBps:      250,
		ReferrerFeeOnCapitalRaisedBps: 100,
		ReferrerFeeOnTokensSoldBps:    100,
	}
	if kind == sale.KindFixedPrice {
		cfg.AskToken = askToken
		cfg.SalePeriodSeconds = 7 * day
		cfg.PrefundPeriodSeconds = day
		cfg.PrefundAllocationPeriodSeconds = hour
		cfg.TokenPrice = u(2)
	}
	return cfg
}

// fund mints amount of tok to owner and approves spender without limit.
func fund(t *testing.T, e *Engine, tok, owner, spender common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, e.Mint(tok, owner, u(amount)))
	require.NoError(t, e.Approve(tok, owner, spender, token.MaxAllowance()))
}

func TestOpen_Validation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *config.Config)
		wantErr error
	}{
		{"zero_chainid", func(c *config.Config) { c.ChainID = 0 }, config.ErrInvalidChainID},
		{"bad_level", func(c *config.Config) { c.LogLevel = "loud" }, config.ErrInvalidLogLevel},
		{"missing_signer", func(c *config.Config) { c.Signer = "" }, config.ErrMissingAddress},
		{"bad_bouncer", func(c *config.Config) { c.Bouncer = "0xzz" }, config.ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.modify(&h.cfg)
			_, err := Open(h.cfg, Options{Clock: h.clock, LogWriter: h.logs})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpen_CreatesStoreAndLogFile(t *testing.T) {
	h := newHarness(t)
	h.cfg.LogFile = filepath.Join(h.cfg.DataDir, "logs", "engine.log")

	e, err := Open(h.cfg, Options{Clock: h.clock})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = os.Stat(filepath.Join(h.cfg.DataDir, DBFile))
	require.NoError(t, err)
	data, err := os.ReadFile(h.cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Engine opened")
}

func TestDeploySale_Addresses(t *testing.T) {
	h := newHarness(t)
	e := h.open()
	defer e.Close()

	cfg := saleConfig(sale.KindPreLiquidOpen)
	cfg.Address = alice
	cfg.ChainID = 99
	first, err := e.DeploySale(cfg)
	require.NoError(t, err)
	second, err := e.DeploySale(saleConfig(sale.KindFixedPrice))
	require.NoError(t, err)

	assert.Equal(t, crypto.CreateAddress(bouncer, 0), first)
	assert.Equal(t, crypto.CreateAddress(bouncer, 1), second)
	assert.ElementsMatch(t, []common.Address{first, second}, e.Sales())

	require.NoError(t, e.View(first, func(s *sale.Sale) error {
		assert.Equal(t, first, s.Address())
		assert.Equal(t, chainID, s.Config().ChainID)
		assert.Equal(t, bouncer, s.Addresses().Bouncer)
		// Each sale resolves the vesting factory to its own instance.
		assert.Equal(t, crypto.CreateAddress(factory, 0), s.Addresses().VestingFactory)
		return nil
	}))
	require.NoError(t, e.View(second, func(s *sale.Sale) error {
		assert.Equal(t, crypto.CreateAddress(factory, 1), s.Addresses().VestingFactory)
		return nil
	}))
}

func TestDeploySale_InvalidConfig(t *testing.T) {
	h := newHarness(t)
	e := h.open()
	defer e.Close()

	cfg := saleConfig(sale.KindFixedPrice)
	cfg.TokenPrice = nil
	_, err := e.DeploySale(cfg)
	assert.ErrorIs(t, err, sale.ErrInvalidConfig)
	assert.Empty(t, e.Sales())

	// A rejected deployment does not consume a nonce.
	addr, err := e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(bouncer, 0), addr)
}

func TestDo_PersistsAcrossReopen(t *testing.T) {
	h := newHarness(t)
	e := h.open()

	addr, err := e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	require.NoError(t, err)
	fund(t, e, bidToken, alice, addr, 10_000)

	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		return s.Invest(alice, u(1500), h.investAuth(alice, addr))
	}))
	require.NoError(t, e.Close())

	e = h.open()
	defer e.Close()
	assert.Equal(t, []common.Address{addr}, e.Sales())
	assert.Equal(t, u(8500), e.BalanceOf(bidToken, alice))
	assert.Equal(t, u(1500), e.BalanceOf(bidToken, addr))

	require.NoError(t, e.View(addr, func(s *sale.Sale) error {
		p, ok := s.Position(alice)
		require.True(t, ok)
		assert.Equal(t, uint64(1), p.ID)
		assert.Equal(t, u(1500), p.InvestedCapital)
		assert.Equal(t, u(1500), s.Status().TotalCapitalInvested)
		return nil
	}))

	// The restored position manager keeps alice's id.
	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		return s.Invest(alice, u(500), h.investAuth(alice, addr))
	}))
	require.NoError(t, e.View(addr, func(s *sale.Sale) error {
		p, _ := s.Position(alice)
		assert.Equal(t, uint64(1), p.ID)
		assert.Equal(t, u(2000), p.InvestedCapital)
		assert.Len(t, s.Positions(), 1)
		return nil
	}))

	// The nonce survives the reopen.
	next, err := e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(bouncer, 1), next)
}

func TestDo_OperationError(t *testing.T) {
	h := newHarness(t)
	e := h.open()
	defer e.Close()

	addr, err := e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	require.NoError(t, err)

	err = e.Do(addr, func(s *sale.Sale) error {
		return s.Invest(alice, u(1500), h.investAuth(alice, addr))
	})
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)

	assert.ErrorIs(t, e.Do(alice, func(*sale.Sale) error { return nil }), ErrSaleNotFound)
	assert.ErrorIs(t, e.View(alice, func(*sale.Sale) error { return nil }), ErrSaleNotFound)
	assert.ErrorIs(t, e.Do(addr, nil), ErrNilCallback)
	assert.ErrorIs(t, e.View(addr, nil), ErrNilCallback)
}

func TestVestingWalletSurvivesReopen(t *testing.T) {
	h := newHarness(t)
	e := h.open()

	addr, err := e.DeploySale(saleConfig(sale.KindFixedPrice))
	require.NoError(t, err)
	fund(t, e, bidToken, alice, addr, 10_000)
	fund(t, e, askToken, project, addr, 1000+25+10)

	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		return s.Invest(alice, u(2000), h.investAuth(alice, addr))
	}))

	var refundEnd uint64
	require.NoError(t, e.View(addr, func(s *sale.Sale) error {
		refundEnd = s.Status().RefundEndTime
		return nil
	}))
	vc := vesting.Config{
		Type:                     vesting.TypeLinear,
		StartTimestamp:           refundEnd,
		DurationSeconds:          1000,
		TokenAllocationOnTGERate: vesting.TGERateDenominator / 10,
	}
	leaf, err := merkle.ClaimLeaf(alice, u(1000), 1, vc)
	require.NoError(t, err)
	tr, err := merkle.BuildTree([]common.Hash{leaf})
	require.NoError(t, err)
	proof, err := tr.Proof(leaf)
	require.NoError(t, err)

	h.warp(refundEnd)
	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		if err := s.PublishSaleResults(bouncer, sale.Results{
			ClaimTokensMerkleRoot: tr.Root(),
			TokensAllocated:       u(1000),
			AskToken:              askToken,
			CapitalRaised:         u(2000),
		}); err != nil {
			return err
		}
		if err := s.SupplyTokens(project, u(1000), u(25), u(10)); err != nil {
			return err
		}
		return s.ClaimTokenAllocation(alice, u(1000), vc, proof)
	}))
	assert.Equal(t, u(100), e.BalanceOf(askToken, alice))

	var wallet common.Address
	require.NoError(t, e.View(addr, func(s *sale.Sale) error {
		p, _ := s.Position(alice)
		wallet = p.VestingAddress
		return nil
	}))
	require.NotEqual(t, common.Address{}, wallet)
	assert.Equal(t, u(900), e.BalanceOf(askToken, wallet))
	require.NoError(t, e.Close())

	e = h.open()
	defer e.Close()
	h.warp(refundEnd + 500)
	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		return s.ReleaseVestedTokens(alice)
	}))
	assert.Equal(t, u(550), e.BalanceOf(askToken, alice))
	assert.Equal(t, u(450), e.BalanceOf(askToken, wallet))
}

func TestRemoveSale(t *testing.T) {
	h := newHarness(t)
	st := store.NewMemStore()
	e, err := Open(h.cfg, Options{Store: st, Clock: h.clock, LogWriter: h.logs})
	require.NoError(t, err)
	defer e.Close()

	addr, err := e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	require.NoError(t, err)
	fund(t, e, bidToken, alice, addr, 10_000)
	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		return s.Invest(alice, u(1500), h.investAuth(alice, addr))
	}))

	assert.ErrorIs(t, e.RemoveSale(addr), ErrSaleHoldsTokens)

	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		if err := s.CancelSale(project); err != nil {
			return err
		}
		return s.WithdrawInvestedCapitalIfCanceled(alice)
	}))
	assert.Equal(t, u(10_000), e.BalanceOf(bidToken, alice))

	require.NoError(t, e.RemoveSale(addr))
	assert.Empty(t, e.Sales())
	_, err = st.GetSale(addr)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, e.RemoveSale(addr), ErrSaleNotFound)
}

func TestTokenOps(t *testing.T) {
	h := newHarness(t)
	st := store.NewMemStore()
	e, err := Open(h.cfg, Options{Store: st, Clock: h.clock, LogWriter: h.logs})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Mint(bidToken, alice, u(100)))
	require.NoError(t, e.Transfer(bidToken, alice, project, u(40)))
	assert.ErrorIs(t, e.Transfer(bidToken, alice, project, u(61)), token.ErrInsufficientBalance)
	assert.Equal(t, u(60), e.BalanceOf(bidToken, alice))
	assert.Equal(t, u(40), e.BalanceOf(bidToken, project))

	saved, err := st.GetTokens()
	require.NoError(t, err)
	restored := token.NewLedger()
	restored.Restore(*saved)
	assert.Equal(t, u(60), restored.BalanceOf(bidToken, alice))
}

func TestSubscribeEvents(t *testing.T) {
	h := newHarness(t)
	e := h.open()
	defer e.Close()

	addr, err := e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	require.NoError(t, err)
	fund(t, e, bidToken, alice, addr, 10_000)

	ch := make(chan sale.Event, 4)
	sub := e.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		return s.Invest(alice, u(1500), h.investAuth(alice, addr))
	}))
	select {
	case ev := <-ch:
		assert.Equal(t, sale.EventCapitalInvested, ev.Kind)
		assert.Equal(t, addr, ev.Sale)
		assert.Equal(t, alice, ev.Account)
		assert.Equal(t, u(1500), ev.Amount)
	default:
		t.Fatal("no event delivered")
	}
}

func TestClosedEngine(t *testing.T) {
	h := newHarness(t)
	e := h.open()
	addr, err := e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, e.Do(addr, func(*sale.Sale) error { return nil }), ErrClosed)
	assert.ErrorIs(t, e.View(addr, func(*sale.Sale) error { return nil }), ErrClosed)
	assert.ErrorIs(t, e.Mint(bidToken, alice, u(1)), ErrClosed)
	assert.ErrorIs(t, e.RemoveSale(addr), ErrClosed)
}

func TestWallClock(t *testing.T) {
	var c wallClock
	now := uint64(time.Duration(c.Now()) / time.Second)
	assert.InDelta(t, float64(time.Now().Unix()), float64(now), 2)
}

// operatorKey writes the test mnemonic to an encrypted seed file and loads
// the first operator key from it.
func operatorKey(t *testing.T) *signer.Key {
	t.Helper()
	seed, err := signer.SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "operator.seed")
	require.NoError(t, signer.WriteSeedFile(path, seed, "hunter2"))
	k, err := signer.LoadKeyFile(path, "hunter2", 0)
	require.NoError(t, err)
	return k
}

func TestOpen_OperatorKey(t *testing.T) {
	h := newHarness(t)
	k := operatorKey(t)

	_, err := Open(h.cfg, Options{Clock: h.clock, LogWriter: h.logs, Operator: k})
	assert.ErrorIs(t, err, ErrOperatorMismatch)
	_, err = Open(h.cfg, Options{Clock: h.clock, LogWriter: h.logs, Operator: &signer.Key{}})
	assert.ErrorIs(t, err, signer.ErrNilKey)

	h.cfg.Signer = k.Address.Hex()
	e, err := Open(h.cfg, Options{Clock: h.clock, LogWriter: h.logs, Operator: k})
	require.NoError(t, err)
	defer e.Close()
	assert.Contains(t, h.logs.String(), "Operator key loaded")
}

func TestAuthorize_NoOperator(t *testing.T) {
	h := newHarness(t)
	e := h.open()
	defer e.Close()
	addr, err := e.DeploySale(saleConfig(sale.KindPreLiquidOpen))
	require.NoError(t, err)

	_, err = e.AuthorizeInvest(addr, alice)
	assert.ErrorIs(t, err, ErrNoOperator)
	_, err = e.AuthorizeTransfer(addr, alice, bob)
	assert.ErrorIs(t, err, ErrNoOperator)
}

func TestAuthorize_InvestAndTransfer(t *testing.T) {
	h := newHarness(t)
	k := operatorKey(t)
	h.cfg.Signer = k.Address.Hex()
	e, err := Open(h.cfg, Options{Clock: h.clock, LogWriter: h.logs, Operator: k})
	require.NoError(t, err)
	defer e.Close()

	addr, err := e.DeploySale(saleConfig(sale.KindFixedPrice))
	require.NoError(t, err)
	fund(t, e, bidToken, alice, addr, 10_000)

	_, err = e.AuthorizeInvest(alice, alice)
	assert.ErrorIs(t, err, ErrSaleNotFound)
	_, err = e.AuthorizeTransfer(addr, alice, bob)
	assert.ErrorIs(t, err, sale.ErrInvestorHasNoPosition)
	_, err = e.AuthorizeSAFT(addr, alice, u(1000), u(1), sale.ActionInvest)
	assert.ErrorIs(t, err, sale.ErrInvalidSignature)
	_, err = e.AuthorizeBid(addr, alice, sealedbid.SealedBid{})
	assert.ErrorIs(t, err, sale.ErrNotAuction)

	auth, err := e.AuthorizeInvest(addr, alice)
	require.NoError(t, err)
	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		return s.Invest(alice, u(2000), auth)
	}))

	var refundEnd uint64
	require.NoError(t, e.View(addr, func(s *sale.Sale) error {
		refundEnd = s.Status().RefundEndTime
		return nil
	}))
	h.warp(refundEnd)

	sig, err := e.AuthorizeTransfer(addr, alice, bob)
	require.NoError(t, err)
	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		return s.TransferPositionWithAuthorization(alice, bob, sig)
	}))
	require.NoError(t, e.View(addr, func(s *sale.Sale) error {
		p, ok := s.Position(bob)
		require.True(t, ok)
		assert.Equal(t, u(2000), p.InvestedCapital)
		assert.True(t, s.SignatureUsed(alice, sig))
		return nil
	}))
}

func TestAuthorize_SAFT(t *testing.T) {
	h := newHarness(t)
	k := operatorKey(t)
	h.cfg.Signer = k.Address.Hex()
	e, err := Open(h.cfg, Options{Clock: h.clock, LogWriter: h.logs, Operator: k})
	require.NoError(t, err)
	defer e.Close()

	addr, err := e.DeploySale(saleConfig(sale.KindPreLiquidApproved))
	require.NoError(t, err)
	fund(t, e, bidToken, alice, addr, 10_000)

	_, err = e.AuthorizeInvest(addr, alice)
	assert.ErrorIs(t, err, sale.ErrInvalidSignature)
	_, err = e.AuthorizeSAFT(addr, alice, nil, u(1), sale.ActionInvest)
	assert.ErrorIs(t, err, sale.ErrInvalidSignature)

	sig, err := e.AuthorizeSAFT(addr, alice, u(5000), u(1), sale.ActionInvest)
	require.NoError(t, err)
	auth := &sale.InvestAuth{Signature: sig, InvestAmount: u(5000), TokenAllocationRate: u(1)}
	require.NoError(t, e.Do(addr, func(s *sale.Sale) error {
		if err := s.Unpause(bouncer); err != nil {
			return err
		}
		return s.Invest(alice, u(1000), auth)
	}))
	err = e.Do(addr, func(s *sale.Sale) error { return s.Invest(alice, u(1000), auth) })
	assert.ErrorIs(t, err, sale.ErrSignatureAlreadyUsed)
	assert.Equal(t, u(1000), e.BalanceOf(bidToken, addr))
}
