package vesting

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/holiman/uint256"
)

// Bank moves fungible tokens on behalf of a wallet.
type Bank interface {
	BalanceOf(token, owner common.Address) *uint256.Int
	Transfer(token, from, to common.Address, amount *uint256.Int) error
}

// Wallet holds vested tokens for a single beneficiary and releases them on
// schedule. Anyone may trigger a release; tokens always go to the
// beneficiary.
type Wallet interface {
	Address() common.Address
	Beneficiary() common.Address
	Config() Config
	Start() uint64
	End() uint64
	CliffEnd() uint64
	Duration() uint64
	Released(token common.Address) *uint256.Int
	Releasable(token common.Address) *uint256.Int
	VestedAmount(token common.Address, at uint64) *uint256.Int
	Release(token common.Address) (*uint256.Int, error)
}

// WalletState is the durable form of a wallet.
type WalletState struct {
	Address     common.Address                 `json:"address"`
	Beneficiary common.Address                 `json:"beneficiary"`
	Config      Config                         `json:"config"`
	Released    map[common.Address]*uint256.Int `json:"released"`
}

func (s *WalletState) clone() *WalletState {
	c := *s
	c.Released = make(map[common.Address]*uint256.Int, len(s.Released))
	for k, v := range s.Released {
		c.Released[k] = v.Clone()
	}
	return &c
}

type scheduleWallet struct {
	state *WalletState
	bank  Bank
	clock mclock.Clock
}

var _ Wallet = (*scheduleWallet)(nil)

func (w *scheduleWallet) Address() common.Address     { return w.state.Address }
func (w *scheduleWallet) Beneficiary() common.Address { return w.state.Beneficiary }
func (w *scheduleWallet) Config() Config              { return w.state.Config }
func (w *scheduleWallet) Start() uint64               { return w.state.Config.StartTimestamp }
func (w *scheduleWallet) Duration() uint64            { return w.state.Config.DurationSeconds }
func (w *scheduleWallet) End() uint64                 { return w.Start() + w.Duration() }
func (w *scheduleWallet) CliffEnd() uint64 {
	return w.Start() + w.state.Config.CliffDurationSeconds
}

// Released returns the amount of token already paid out.
func (w *scheduleWallet) Released(token common.Address) *uint256.Int {
	if r, ok := w.state.Released[token]; ok {
		return r.Clone()
	}
	return new(uint256.Int)
}

// VestedAmount returns how much of the wallet's total allocation of token
// (current balance plus everything released) has vested at the given time.
func (w *scheduleWallet) VestedAmount(token common.Address, at uint64) *uint256.Int {
	total := new(uint256.Int).Add(w.bank.BalanceOf(token, w.state.Address), w.Released(token))
	return w.schedule(total, at)
}

// Releasable returns the vested but not yet released amount of token.
func (w *scheduleWallet) Releasable(token common.Address) *uint256.Int {
	vested := w.VestedAmount(token, unixNow(w.clock))
	released := w.Released(token)
	if vested.Lt(released) {
		return new(uint256.Int)
	}
	return vested.Sub(vested, released)
}

// Release pays the releasable amount of token to the beneficiary.
func (w *scheduleWallet) Release(token common.Address) (*uint256.Int, error) {
	amount := w.Releasable(token)
	if amount.IsZero() {
		return amount, nil
	}
	if err := w.bank.Transfer(token, w.state.Address, w.state.Beneficiary, amount); err != nil {
		return nil, err
	}
	w.state.Released[token] = new(uint256.Int).Add(w.Released(token), amount)
	return amount, nil
}

func (w *scheduleWallet) schedule(total *uint256.Int, at uint64) *uint256.Int {
	cfg := w.state.Config
	switch {
	case at < w.CliffEnd():
		return new(uint256.Int)
	case at >= w.End():
		return total.Clone()
	}

	elapsed := at - w.Start()
	if cfg.Type == TypeLinearEpoch {
		epochs := elapsed / cfg.EpochDurationSeconds
		r, _ := new(uint256.Int).MulDivOverflow(total, uint256.NewInt(epochs), uint256.NewInt(cfg.NumberOfEpochs))
		return r
	}
	r, _ := new(uint256.Int).MulDivOverflow(total, uint256.NewInt(elapsed), uint256.NewInt(cfg.DurationSeconds))
	return r
}

func unixNow(c mclock.Clock) uint64 {
	return uint64(time.Duration(c.Now()) / time.Second)
}
