// Package token implements an in-memory multi-token ledger with ERC-20
// balance and allowance semantics. Sales use it to pull capital from
// investors, pay out proceeds and fund vesting wallets.
package token

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type balances map[common.Address]*uint256.Int

// State is the durable form of a Ledger, keyed by token address.
type State struct {
	Balances   map[common.Address]balances                    `json:"balances"`
	Allowances map[common.Address]map[common.Address]balances `json:"allowances"`
	Supply     balances                                       `json:"supply"`
}

// Ledger tracks balances and allowances for any number of tokens.
// Mutations are journaled: Snapshot and RevertToSnapshot undo every change
// made since the snapshot, including nested ones.
type Ledger struct {
	st        State
	snapshots []State
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{st: emptyState()}
}

func emptyState() State {
	return State{
		Balances:   make(map[common.Address]balances),
		Allowances: make(map[common.Address]map[common.Address]balances),
		Supply:     make(balances),
	}
}

// BalanceOf returns owner's balance of token.
func (l *Ledger) BalanceOf(token, owner common.Address) *uint256.Int {
	if b, ok := l.st.Balances[token][owner]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// TotalSupply returns the minted supply of token.
func (l *Ledger) TotalSupply(token common.Address) *uint256.Int {
	if s, ok := l.st.Supply[token]; ok {
		return s.Clone()
	}
	return new(uint256.Int)
}

// Allowance returns how much spender may move from owner's token balance.
func (l *Ledger) Allowance(token, owner, spender common.Address) *uint256.Int {
	if a, ok := l.st.Allowances[token][owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Mint creates amount of token and credits it to to.
func (l *Ledger) Mint(token, to common.Address, amount *uint256.Int) error {
	if token == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.TotalSupply(token), amount)
	if overflow {
		return ErrOverflow
	}
	l.st.Supply[token] = supply
	l.credit(token, to, amount)
	return nil
}

// Approve sets spender's allowance over owner's token balance.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *uint256.Int) error {
	if token == (common.Address{}) || owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	byOwner, ok := l.st.Allowances[token]
	if !ok {
		byOwner = make(map[common.Address]balances)
		l.st.Allowances[token] = byOwner
	}
	if byOwner[owner] == nil {
		byOwner[owner] = make(balances)
	}
	byOwner[owner][spender] = amount.Clone()
	return nil
}

// Transfer moves amount of token from from to to.
func (l *Ledger) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if token == (common.Address{}) || from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	bal := l.BalanceOf(token, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), bal.Dec(), amount.Dec())
	}
	l.set(token, from, bal.Sub(bal, amount))
	l.credit(token, to, amount)
	return nil
}

// TransferFrom moves amount of token from from to to using spender's
// allowance. An allowance of 2^256-1 is treated as unlimited.
func (l *Ledger) TransferFrom(token, spender, from, to common.Address, amount *uint256.Int) error {
	allowance := l.Allowance(token, from, spender)
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %s allows %s, needs %s", ErrInsufficientAllowance, from.Hex(), allowance.Dec(), amount.Dec())
	}
	if err := l.Transfer(token, from, to, amount); err != nil {
		return err
	}
	if !allowance.Eq(maxUint256) {
		l.st.Allowances[token][from][spender] = allowance.Sub(allowance, amount)
	}
	return nil
}

var maxUint256 = new(uint256.Int).SetAllOne()

// MaxAllowance returns the unlimited allowance value.
func MaxAllowance() *uint256.Int {
	return maxUint256.Clone()
}

// credit never overflows: a balance cannot exceed the checked total supply.
func (l *Ledger) credit(token, to common.Address, amount *uint256.Int) {
	l.set(token, to, new(uint256.Int).Add(l.BalanceOf(token, to), amount))
}

func (l *Ledger) set(token, owner common.Address, v *uint256.Int) {
	byOwner, ok := l.st.Balances[token]
	if !ok {
		byOwner = make(balances)
		l.st.Balances[token] = byOwner
	}
	byOwner[owner] = v
}

// State returns a deep copy of the ledger.
func (l *Ledger) State() State {
	return l.st.clone()
}

// Restore replaces the ledger contents with st.
func (l *Ledger) Restore(st State) {
	l.st = st.clone()
}

// Snapshot records the current state and returns its id.
func (l *Ledger) Snapshot() int {
	l.snapshots = append(l.snapshots, l.st.clone())
	return len(l.snapshots) - 1
}

// RevertToSnapshot restores the state recorded by Snapshot(id) and drops
// every later snapshot.
func (l *Ledger) RevertToSnapshot(id int) {
	if id < 0 || id >= len(l.snapshots) {
		panic(fmt.Errorf("%w: %d", ErrInvalidSnapshot, id))
	}
	l.st = l.snapshots[id]
	l.snapshots = l.snapshots[:id]
}

// DiscardSnapshot forgets snapshot id and every later one.
func (l *Ledger) DiscardSnapshot(id int) {
	if id >= 0 && id < len(l.snapshots) {
		l.snapshots = l.snapshots[:id]
	}
}

func (b balances) clone() balances {
	c := make(balances, len(b))
	for k, v := range b {
		c[k] = v.Clone()
	}
	return c
}

func (s State) clone() State {
	c := emptyState()
	for tok, b := range s.Balances {
		c.Balances[tok] = b.clone()
	}
	for tok, byOwner := range s.Allowances {
		m := make(map[common.Address]balances, len(byOwner))
		for owner, b := range byOwner {
			m[owner] = b.clone()
		}
		c.Allowances[tok] = m
	}
	for tok, v := range s.Supply {
		c.Supply[tok] = v.Clone()
	}
	return c
}
