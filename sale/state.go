package sale

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libsale-go/position"
)

// State is the durable form of a sale. Collaborator state (tokens,
// position ids, vesting wallets) is persisted by its owner.
type State struct {
	Config         Config               `json:"config"`
	Addresses      Addresses            `json:"addresses"`
	Status         Status               `json:"status"`
	Positions      []*position.Position `json:"positions"`
	UsedSignatures []UsedSignature      `json:"usedSignatures,omitempty"`
	Bids           []Bid                `json:"bids,omitempty"`
}

// UsedSignature records a consumed signature by the hash of its bytes.
type UsedSignature struct {
	Investor common.Address `json:"investor"`
	Hash     common.Hash    `json:"hash"`
}

// Export returns a deep copy of the sale's durable state.
func (s *Sale) Export() *State {
	st := &State{
		Config:    s.cfg.clone(),
		Addresses: s.addrs,
		Status:    s.status.clone(),
		Positions: s.ledger.Positions(),
		Bids:      s.Bids(),
	}
	for investor, set := range s.usedSigs {
		for h := range set {
			st.UsedSignatures = append(st.UsedSignatures, UsedSignature{Investor: investor, Hash: h})
		}
	}
	sort.Slice(st.UsedSignatures, func(i, j int) bool {
		a, b := st.UsedSignatures[i], st.UsedSignatures[j]
		if a.Investor != b.Investor {
			return a.Investor.Cmp(b.Investor) < 0
		}
		return a.Hash.Cmp(b.Hash) < 0
	})
	return st
}

// Restore rebuilds a sale from exported state. The cached addresses are
// taken from st, not the registry; call SyncRegistry to refresh them.
func Restore(st *State, deps Deps) (*Sale, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidConfig)
	}
	s, err := build(st.Config, deps)
	if err != nil {
		return nil, err
	}
	s.addrs = st.Addresses
	s.status = st.Status.clone()
	s.ledger = position.Restore(st.Positions)
	for _, u := range st.UsedSignatures {
		set, ok := s.usedSigs[u.Investor]
		if !ok {
			set = make(map[common.Hash]struct{})
			s.usedSigs[u.Investor] = set
		}
		set[u.Hash] = struct{}{}
	}
	s.bids = append([]Bid(nil), st.Bids...)
	if err := s.checkConservation(); err != nil {
		return nil, err
	}
	return s, nil
}
