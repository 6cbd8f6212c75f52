// Package engine hosts many independent sales on one shared token ledger
// and persists them after every committed operation.
//
// Sales are deployed at contract-style addresses derived from the bouncer
// address and a deployment nonce. Each sale owns its position manager and
// vesting factory; the token ledger and address registry are shared. All
// operations are serialized by the engine.
package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/config"
	"github.com/bitfsorg/libsale-go/position"
	"github.com/bitfsorg/libsale-go/registry"
	"github.com/bitfsorg/libsale-go/sale"
	"github.com/bitfsorg/libsale-go/signer"
	"github.com/bitfsorg/libsale-go/store"
	"github.com/bitfsorg/libsale-go/token"
	"github.com/bitfsorg/libsale-go/vesting"
)

// DBFile is the name of the store file inside the data directory.
const DBFile = "sales.db"

// Options override the engine's defaults. The zero value is valid.
type Options struct {
	// Store replaces the bolt store at DataDir/sales.db.
	Store store.Store
	// Clock replaces the wall clock.
	Clock mclock.Clock
	// LogWriter replaces the configured log destination.
	LogWriter io.Writer
	// Operator is the signer's key, usually from signer.LoadKeyFile. It
	// lets the engine issue investor authorizations.
	Operator *signer.Key
}

// Engine hosts sales. It is safe for concurrent use.
type Engine struct {
	cfg      config.Config
	store    store.Store
	clock    mclock.Clock
	log      log.Logger
	operator *signer.Key

	tokens   *token.Ledger
	registry *registry.MemRegistry
	feed     event.Feed
	logFile  *os.File

	mu     sync.Mutex
	closed bool
	nonce  uint64
	sales  map[common.Address]*hosted
}

// hosted is a sale and the collaborators it owns.
type hosted struct {
	sale      *sale.Sale
	positions *position.MemManager
	vesting   *vesting.MemFactory
}

// Open validates cfg, sets up logging, opens the store and reloads every
// persisted sale.
func Open(cfg config.Config, opts Options) (*Engine, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := config.RequireOperators(cfg); err != nil {
		return nil, err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	if k := opts.Operator; k != nil {
		if k.PrivateKey == nil {
			return nil, signer.ErrNilKey
		}
		if want := reg.Resolve(registry.RoleSigner); k.Address != want {
			return nil, fmt.Errorf("%w: key %s, signer %s", ErrOperatorMismatch, k.Address.Hex(), want.Hex())
		}
	}

	e := &Engine{
		cfg:      cfg,
		clock:    opts.Clock,
		operator: opts.Operator,
		tokens:   token.NewLedger(),
		registry: reg,
		sales:    make(map[common.Address]*hosted),
	}
	if e.clock == nil {
		e.clock = wallClock{}
	}
	if err := e.setupLogging(opts.LogWriter); err != nil {
		return nil, err
	}
	e.log = log.New("module", "engine")

	e.store = opts.Store
	if e.store == nil {
		bs, err := store.OpenBoltStore(filepath.Join(cfg.DataDir, DBFile))
		if err != nil {
			e.closeLog()
			return nil, fmt.Errorf("engine: open store: %w", err)
		}
		e.store = bs
	}
	if err := e.load(); err != nil {
		e.store.Close()
		e.closeLog()
		return nil, err
	}
	if e.operator != nil {
		e.log.Info("Operator key loaded", "address", e.operator.Address.Hex(), "path", e.operator.Path)
	}
	e.log.Info("Engine opened", "datadir", cfg.DataDir, "chainid", cfg.ChainID, "sales", len(e.sales))
	return e, nil
}

// setupLogging installs the default logger at the configured level. The
// output is w when given, else the log file, else stderr.
func (e *Engine) setupLogging(w io.Writer) error {
	useColor := false
	if w == nil && e.cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(e.cfg.LogFile), 0700); err != nil {
			return fmt.Errorf("engine: log directory: %w", err)
		}
		f, err := os.OpenFile(e.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("engine: open log file: %w", err)
		}
		e.logFile = f
		w = f
	}
	if w == nil {
		w = os.Stderr
		useColor = true
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, e.cfg.Level(), useColor)))
	return nil
}

func (e *Engine) closeLog() {
	if e.logFile != nil {
		e.logFile.Close()
		e.logFile = nil
	}
}

func newRegistry(cfg config.Config) (*registry.MemRegistry, error) {
	reg := registry.NewMemRegistry()
	roles := []struct {
		role registry.Role
		addr string
	}{
		{registry.RoleBouncer, cfg.Bouncer},
		{registry.RoleSigner, cfg.Signer},
		{registry.RoleFeeReceiver, cfg.FeeReceiver},
		{registry.RoleVestingFactory, cfg.VestingFactory},
	}
	for _, r := range roles {
		if err := reg.Set(r.role, common.HexToAddress(r.addr)); err != nil {
			return nil, fmt.Errorf("engine: %s: %w", r.role, err)
		}
	}
	return reg, nil
}

// load restores the token ledger, the deployment nonce and every sale.
func (e *Engine) load() error {
	tokens, err := e.store.GetTokens()
	switch {
	case err == nil:
		e.tokens.Restore(*tokens)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("engine: load tokens: %w", err)
	}

	meta, err := e.store.GetMeta()
	switch {
	case err == nil:
		e.nonce = meta.Nonce
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("engine: load meta: %w", err)
	}

	records, err := e.store.ListSales()
	if err != nil {
		return fmt.Errorf("engine: list sales: %w", err)
	}
	for _, rec := range records {
		h := e.newHosted(rec.Factory)
		h.positions.Restore(rec.Positions)
		h.vesting.Restore(rec.Vesting)
		s, err := sale.Restore(rec.Sale, e.deps(h))
		if err != nil {
			return fmt.Errorf("engine: restore sale %s: %w", rec.Address().Hex(), err)
		}
		h.sale = s
		e.sales[s.Address()] = h
	}
	return nil
}

func (e *Engine) newHosted(factory common.Address) *hosted {
	return &hosted{
		positions: position.NewMemManager(),
		vesting:   vesting.NewMemFactory(factory, e.tokens, e.clock),
	}
}

// deps wires h into the shared ledger. The registry is overlaid so the sale
// sees its own vesting factory.
func (e *Engine) deps(h *hosted) sale.Deps {
	return sale.Deps{
		Tokens:    e.tokens,
		Positions: h.positions,
		Vesting:   h.vesting,
		Registry:  registry.NewOverlay(e.registry, registry.RoleVestingFactory, h.vesting.Address()),
		Clock:     e.clock,
		Feed:      &e.feed,
	}
}

// Close persists nothing further and releases the store and log file.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	err := e.store.Close()
	e.log.Info("Engine closed")
	e.closeLog()
	return err
}

// Config returns the engine configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// Now returns the engine time in unix seconds.
func (e *Engine) Now() uint64 {
	return uint64(time.Duration(e.clock.Now()) / time.Second)
}

// ---------------------------------------------------------------------------
// Sales
// ---------------------------------------------------------------------------

// DeploySale creates a sale from cfg. The address and chain id are assigned
// by the engine; whatever cfg carries for them is ignored.
func (e *Engine) DeploySale(cfg sale.Config) (common.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return common.Address{}, ErrClosed
	}

	cfg.Address = crypto.CreateAddress(e.registry.Resolve(registry.RoleBouncer), e.nonce)
	cfg.ChainID = e.cfg.ChainID
	factory := crypto.CreateAddress(e.registry.Resolve(registry.RoleVestingFactory), e.nonce)

	h := e.newHosted(factory)
	s, err := sale.New(cfg, e.deps(h))
	if err != nil {
		return common.Address{}, err
	}
	h.sale = s

	tokens := e.tokens.State()
	cp := &store.Checkpoint{
		Sale:   record(h),
		Tokens: &tokens,
		Meta:   &store.Meta{Nonce: e.nonce + 1},
	}
	if err := e.store.Commit(cp); err != nil {
		return common.Address{}, fmt.Errorf("engine: persist sale: %w", err)
	}
	e.nonce++
	e.sales[cfg.Address] = h
	e.log.Info("Sale deployed", "sale", cfg.Address.Hex(), "kind", cfg.Kind.String(), "nonce", e.nonce-1)
	return cfg.Address, nil
}

// Do runs fn against the sale at addr and persists the sale and the token
// ledger afterwards. Operations fn performs are committed individually by
// the sale, so state is persisted even when fn returns an error. fn must
// not call back into the engine.
func (e *Engine) Do(addr common.Address, fn func(s *sale.Sale) error) error {
	if fn == nil {
		return ErrNilCallback
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	h, ok := e.sales[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSaleNotFound, addr.Hex())
	}

	opErr := fn(h.sale)

	tokens := e.tokens.State()
	if err := e.store.Commit(&store.Checkpoint{Sale: record(h), Tokens: &tokens}); err != nil {
		e.log.Error("Failed to persist sale", "sale", addr.Hex(), "err", err)
		return fmt.Errorf("engine: persist sale: %w", err)
	}
	return opErr
}

// View runs fn against the sale at addr without persisting. fn must only
// read.
func (e *Engine) View(addr common.Address, fn func(s *sale.Sale) error) error {
	if fn == nil {
		return ErrNilCallback
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	h, ok := e.sales[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSaleNotFound, addr.Hex())
	}
	return fn(h.sale)
}

// Sales returns the addresses of all hosted sales in ascending order.
func (e *Engine) Sales() []common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	addrs := make([]common.Address, 0, len(e.sales))
	for a := range e.sales {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })
	return addrs
}

// RemoveSale drops a sale that no longer holds any bid or ask tokens.
func (e *Engine) RemoveSale(addr common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	h, ok := e.sales[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSaleNotFound, addr.Hex())
	}
	for _, tok := range []common.Address{h.sale.Config().BidToken, h.sale.Status().AskToken} {
		if tok == (common.Address{}) {
			continue
		}
		if !e.tokens.BalanceOf(tok, addr).IsZero() {
			return fmt.Errorf("%w: %s", ErrSaleHoldsTokens, tok.Hex())
		}
	}
	if err := e.store.DeleteSale(addr); err != nil {
		return fmt.Errorf("engine: delete sale: %w", err)
	}
	delete(e.sales, addr)
	e.log.Info("Sale removed", "sale", addr.Hex())
	return nil
}

// SubscribeEvents delivers committed events of every hosted sale to ch.
// Delivery happens while the engine lock is held, so the receiver must not
// call back into the engine before draining ch.
func (e *Engine) SubscribeEvents(ch chan<- sale.Event) event.Subscription {
	return e.feed.Subscribe(ch)
}

func record(h *hosted) *store.SaleRecord {
	return &store.SaleRecord{
		Sale:      h.sale.Export(),
		Factory:   h.vesting.Address(),
		Positions: h.positions.State(),
		Vesting:   h.vesting.State(),
	}
}

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// Mint creates amount of tok for to.
func (e *Engine) Mint(tok, to common.Address, amount *uint256.Int) error {
	return e.tokenOp(func() error { return e.tokens.Mint(tok, to, amount) })
}

// Approve sets the allowance of spender over owner's tok.
func (e *Engine) Approve(tok, owner, spender common.Address, amount *uint256.Int) error {
	return e.tokenOp(func() error { return e.tokens.Approve(tok, owner, spender, amount) })
}

// Transfer moves amount of tok from one account to another.
func (e *Engine) Transfer(tok, from, to common.Address, amount *uint256.Int) error {
	return e.tokenOp(func() error { return e.tokens.Transfer(tok, from, to, amount) })
}

// BalanceOf returns owner's balance of tok.
func (e *Engine) BalanceOf(tok, owner common.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens.BalanceOf(tok, owner)
}

func (e *Engine) tokenOp(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	id := e.tokens.Snapshot()
	if err := fn(); err != nil {
		e.tokens.RevertToSnapshot(id)
		return err
	}
	tokens := e.tokens.State()
	if err := e.store.Commit(&store.Checkpoint{Tokens: &tokens}); err != nil {
		e.tokens.RevertToSnapshot(id)
		return fmt.Errorf("engine: persist tokens: %w", err)
	}
	e.tokens.DiscardSnapshot(id)
	return nil
}

// wallClock is mclock.System with Now in wall-clock time, so sale
// timestamps are unix seconds.
type wallClock struct{ mclock.System }

func (wallClock) Now() mclock.AbsTime { return mclock.AbsTime(time.Now().UnixNano()) }
