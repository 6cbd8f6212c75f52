// Package position keeps the per-investor capital records of a sale and the
// soulbound position identifiers that name them.
package position

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position is one investor's stake in a sale.
type Position struct {
	ID                        uint64         `json:"id"`
	InvestedCapital           *uint256.Int   `json:"investedCapital"`
	HasRefunded               bool           `json:"hasRefunded"`
	HasClaimedExcess          bool           `json:"hasClaimedExcess"`
	HasSettled                bool           `json:"hasSettled"`
	VestingAddress            common.Address `json:"vestingAddress"`
	CachedInvestAmount        *uint256.Int   `json:"cachedInvestAmount"`
	CachedTokenAllocationRate *uint256.Int   `json:"cachedTokenAllocationRate"`
}

func newPosition(id uint64) *Position {
	return &Position{
		ID:                        id,
		InvestedCapital:           new(uint256.Int),
		CachedInvestAmount:        new(uint256.Int),
		CachedTokenAllocationRate: new(uint256.Int),
	}
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	c := *p
	c.InvestedCapital = cloneOrZero(p.InvestedCapital)
	c.CachedInvestAmount = cloneOrZero(p.CachedInvestAmount)
	c.CachedTokenAllocationRate = cloneOrZero(p.CachedTokenAllocationRate)
	return &c
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

// Ledger holds every position of one sale together with the aggregate of
// their invested capital. Every capital mutation updates both sides, so
// Sum(InvestedCapital) == Total() holds between calls.
type Ledger struct {
	positions map[uint64]*Position
	total     *uint256.Int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[uint64]*Position), total: new(uint256.Int)}
}

// Total returns the aggregate invested capital.
func (l *Ledger) Total() *uint256.Int {
	return l.total.Clone()
}

// Len returns the number of positions.
func (l *Ledger) Len() int {
	return len(l.positions)
}

// Get returns the position with the given id. The returned record is live;
// callers mutate flags on it directly.
func (l *Ledger) Get(id uint64) (*Position, bool) {
	p, ok := l.positions[id]
	return p, ok
}

// GetOrCreate returns the position with id, creating it if missing.
func (l *Ledger) GetOrCreate(id uint64) *Position {
	p, ok := l.positions[id]
	if !ok {
		p = newPosition(id)
		l.positions[id] = p
	}
	return p
}

// Credit adds amount to the position and the total.
func (l *Ledger) Credit(id uint64, amount *uint256.Int) error {
	p := l.GetOrCreate(id)
	capital, overflow := new(uint256.Int).AddOverflow(p.InvestedCapital, amount)
	if overflow {
		return ErrOverflow
	}
	total, overflow := new(uint256.Int).AddOverflow(l.total, amount)
	if overflow {
		return ErrOverflow
	}
	p.InvestedCapital, l.total = capital, total
	return nil
}

// Debit removes amount from the position and the total.
func (l *Ledger) Debit(id uint64, amount *uint256.Int) error {
	p, ok := l.positions[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if p.InvestedCapital.Lt(amount) {
		return fmt.Errorf("%w: has %s, debit %s", ErrInsufficientCapital, p.InvestedCapital.Dec(), amount.Dec())
	}
	p.InvestedCapital = new(uint256.Int).Sub(p.InvestedCapital, amount)
	l.total = new(uint256.Int).Sub(l.total, amount)
	return nil
}

// Drain zeroes the position's capital and returns what it held.
func (l *Ledger) Drain(id uint64) (*uint256.Int, error) {
	p, ok := l.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	amount := p.InvestedCapital.Clone()
	if err := l.Debit(id, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// Merge folds position from into position to and deletes from. Capital and
// cached terms are summed; the total is unchanged.
func (l *Ledger) Merge(from, to uint64) error {
	if from == to {
		return ErrSameOwner
	}
	src, ok := l.positions[from]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, from)
	}
	dst, ok := l.positions[to]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, to)
	}

	capital, o1 := new(uint256.Int).AddOverflow(dst.InvestedCapital, src.InvestedCapital)
	invest, o2 := new(uint256.Int).AddOverflow(dst.CachedInvestAmount, src.CachedInvestAmount)
	rate, o3 := new(uint256.Int).AddOverflow(dst.CachedTokenAllocationRate, src.CachedTokenAllocationRate)
	if o1 || o2 || o3 {
		return ErrOverflow
	}
	dst.InvestedCapital = capital
	dst.CachedInvestAmount = invest
	dst.CachedTokenAllocationRate = rate
	delete(l.positions, from)
	return nil
}

// CheckConservation verifies that the positions sum to the total.
func (l *Ledger) CheckConservation() error {
	sum := new(uint256.Int)
	for _, p := range l.positions {
		sum.Add(sum, p.InvestedCapital)
	}
	if !sum.Eq(l.total) {
		return fmt.Errorf("%w: positions %s, total %s", ErrConservation, sum.Dec(), l.total.Dec())
	}
	return nil
}

// Positions returns copies of all positions ordered by id.
func (l *Ledger) Positions() []*Position {
	out := make([]*Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{positions: make(map[uint64]*Position, len(l.positions)), total: l.total.Clone()}
	for id, p := range l.positions {
		c.positions[id] = p.Clone()
	}
	return c
}

// Restore rebuilds a ledger from persisted positions. The total is
// recomputed from them.
func Restore(positions []*Position) *Ledger {
	l := NewLedger()
	for _, p := range positions {
		c := p.Clone()
		l.positions[c.ID] = c
		l.total.Add(l.total, c.InvestedCapital)
	}
	return l
}
