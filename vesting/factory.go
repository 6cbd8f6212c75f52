package vesting

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Factory deploys vesting wallets.
type Factory interface {
	CreateVesting(beneficiary common.Address, cfg Config) (common.Address, error)
}

// Directory looks up previously deployed wallets.
type Directory interface {
	Wallet(addr common.Address) (Wallet, error)
}

// FactoryState is the durable form of a MemFactory.
type FactoryState struct {
	Nonce   uint64         `json:"nonce"`
	Wallets []*WalletState `json:"wallets"`
}

// MemFactory is an in-memory Factory and Directory. Wallet addresses are
// derived like contract creations: keccak256(rlp(factory, nonce)).
// State changes are journaled so a caller can revert a failed operation.
type MemFactory struct {
	addr  common.Address
	bank  Bank
	clock mclock.Clock

	nonce     uint64
	wallets   map[common.Address]*WalletState
	snapshots []FactoryState
}

var (
	_ Factory   = (*MemFactory)(nil)
	_ Directory = (*MemFactory)(nil)
)

// NewMemFactory creates a factory deploying from addr. Wallets move tokens
// through bank and read time from clock.
func NewMemFactory(addr common.Address, bank Bank, clock mclock.Clock) *MemFactory {
	return &MemFactory{
		addr:    addr,
		bank:    bank,
		clock:   clock,
		wallets: make(map[common.Address]*WalletState),
	}
}

// Address returns the factory's own address.
func (f *MemFactory) Address() common.Address {
	return f.addr
}

// CreateVesting deploys a wallet for beneficiary with the given schedule.
func (f *MemFactory) CreateVesting(beneficiary common.Address, cfg Config) (common.Address, error) {
	if beneficiary == (common.Address{}) {
		return common.Address{}, ErrZeroBeneficiary
	}
	if err := cfg.Validate(); err != nil {
		return common.Address{}, err
	}
	if cfg.Type != TypeLinear && cfg.Type != TypeLinearEpoch {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}

	addr := crypto.CreateAddress(f.addr, f.nonce)
	f.nonce++
	f.wallets[addr] = &WalletState{
		Address:     addr,
		Beneficiary: beneficiary,
		Config:      cfg,
		Released:    make(map[common.Address]*uint256.Int),
	}
	return addr, nil
}

// Wallet returns the wallet deployed at addr.
func (f *MemFactory) Wallet(addr common.Address) (Wallet, error) {
	st, ok := f.wallets[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, addr.Hex())
	}
	return &scheduleWallet{state: st, bank: f.bank, clock: f.clock}, nil
}

// Len returns the number of deployed wallets.
func (f *MemFactory) Len() int {
	return len(f.wallets)
}

// State returns a deep copy of the factory state.
func (f *MemFactory) State() FactoryState {
	st := FactoryState{Nonce: f.nonce, Wallets: make([]*WalletState, 0, len(f.wallets))}
	for _, w := range f.wallets {
		st.Wallets = append(st.Wallets, w.clone())
	}
	sort.Slice(st.Wallets, func(i, j int) bool {
		return bytes.Compare(st.Wallets[i].Address[:], st.Wallets[j].Address[:]) < 0
	})
	return st
}

// Restore replaces the factory state.
func (f *MemFactory) Restore(st FactoryState) {
	f.nonce = st.Nonce
	f.wallets = make(map[common.Address]*WalletState, len(st.Wallets))
	for _, w := range st.Wallets {
		c := w.clone()
		if c.Released == nil {
			c.Released = make(map[common.Address]*uint256.Int)
		}
		f.wallets[c.Address] = c
	}
}

// Snapshot records the current state and returns its id.
func (f *MemFactory) Snapshot() int {
	f.snapshots = append(f.snapshots, f.State())
	return len(f.snapshots) - 1
}

// RevertToSnapshot restores the state recorded by Snapshot(id) and drops
// every later snapshot.
func (f *MemFactory) RevertToSnapshot(id int) {
	if id < 0 || id >= len(f.snapshots) {
		panic(fmt.Errorf("%w: %d", ErrInvalidSnapshot, id))
	}
	f.Restore(f.snapshots[id])
	f.snapshots = f.snapshots[:id]
}

// DiscardSnapshot forgets snapshot id and every later one.
func (f *MemFactory) DiscardSnapshot(id int) {
	if id >= 0 && id < len(f.snapshots) {
		f.snapshots = f.snapshots[:id]
	}
}
