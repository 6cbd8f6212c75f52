// Package store persists the engine's sales and the state of their
// collaborators.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/libsale-go/position"
	"github.com/bitfsorg/libsale-go/sale"
	"github.com/bitfsorg/libsale-go/token"
	"github.com/bitfsorg/libsale-go/vesting"
)

// SaleRecord is everything needed to reopen one sale: the sale itself and
// the position ids and vesting wallets it owns. Factory is the address the
// sale's vesting wallets are deployed from.
type SaleRecord struct {
	Sale      *sale.State           `json:"sale"`
	Positions position.ManagerState `json:"positions"`
	Factory   common.Address        `json:"factory"`
	Vesting   vesting.FactoryState  `json:"vesting"`
}

// Address returns the sale's address.
func (r *SaleRecord) Address() common.Address {
	return r.Sale.Config.Address
}

func (r *SaleRecord) validate() error {
	if r == nil || r.Sale == nil {
		return fmt.Errorf("%w: sale record", ErrNilParam)
	}
	return nil
}

// Meta is engine-wide bookkeeping.
type Meta struct {
	// Nonce is the number of sales deployed so far.
	Nonce uint64 `json:"nonce"`
}

// Checkpoint is a set of changes written atomically. Nil members are left
// untouched.
type Checkpoint struct {
	Sale   *SaleRecord
	Tokens *token.State
	Meta   *Meta
}

// Store persists sales, the shared token ledger and engine metadata.
type Store interface {
	// Commit writes every non-nil member of cp in one transaction.
	Commit(cp *Checkpoint) error

	// GetSale retrieves a sale record by sale address.
	GetSale(addr common.Address) (*SaleRecord, error)

	// ListSales returns all sale records ordered by address.
	ListSales() ([]*SaleRecord, error)

	// DeleteSale removes a sale record.
	DeleteSale(addr common.Address) error

	// GetTokens returns the token ledger, or ErrNotFound before the first commit.
	GetTokens() (*token.State, error)

	// GetMeta returns the engine metadata, or ErrNotFound before the first commit.
	GetMeta() (*Meta, error)

	// Close releases the store.
	Close() error
}

// MemStore is an in-memory Store for testing. Records are kept encoded so
// callers never share memory with the store.
type MemStore struct {
	mu     sync.RWMutex
	sales  map[common.Address][]byte
	tokens []byte
	meta   []byte
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{sales: make(map[common.Address][]byte)}
}

// Commit writes every non-nil member of cp.
func (s *MemStore) Commit(cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("%w: checkpoint", ErrNilParam)
	}
	enc, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if enc.sale != nil {
		s.sales[cp.Sale.Address()] = enc.sale
	}
	if enc.tokens != nil {
		s.tokens = enc.tokens
	}
	if enc.meta != nil {
		s.meta = enc.meta
	}
	return nil
}

// GetSale retrieves a sale record by sale address.
func (s *MemStore) GetSale(addr common.Address) (*SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.sales[addr]
	if !ok {
		return nil, fmt.Errorf("%w: sale %s", ErrNotFound, addr.Hex())
	}
	var rec SaleRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSales returns all sale records ordered by address.
func (s *MemStore) ListSales() ([]*SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addrs := make([]common.Address, 0, len(s.sales))
	for a := range s.sales {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	out := make([]*SaleRecord, 0, len(addrs))
	for _, a := range addrs {
		var rec SaleRecord
		if err := decode(s.sales[a], &rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, nil
}

// DeleteSale removes a sale record.
func (s *MemStore) DeleteSale(addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[addr]; !ok {
		return fmt.Errorf("%w: sale %s", ErrNotFound, addr.Hex())
	}
	delete(s.sales, addr)
	return nil
}

// GetTokens returns the token ledger.
func (s *MemStore) GetTokens() (*token.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return nil, fmt.Errorf("%w: tokens", ErrNotFound)
	}
	var st token.State
	if err := decode(s.tokens, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetMeta returns the engine metadata.
func (s *MemStore) GetMeta() (*Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return nil, fmt.Errorf("%w: meta", ErrNotFound)
	}
	var m Meta
	if err := decode(s.meta, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type encodedCheckpoint struct {
	sale, tokens, meta []byte
}

func encodeCheckpoint(cp *Checkpoint) (*encodedCheckpoint, error) {
	var (
		enc encodedCheckpoint
		err error
	)
	if cp.Sale != nil {
		if err := cp.Sale.validate(); err != nil {
			return nil, err
		}
		if enc.sale, err = json.Marshal(cp.Sale); err != nil {
			return nil, fmt.Errorf("store: encode sale: %w", err)
		}
	}
	if cp.Tokens != nil {
		if enc.tokens, err = json.Marshal(cp.Tokens); err != nil {
			return nil, fmt.Errorf("store: encode tokens: %w", err)
		}
	}
	if cp.Meta != nil {
		if enc.meta, err = json.Marshal(cp.Meta); err != nil {
			return nil, fmt.Errorf("store: encode meta: %w", err)
		}
	}
	return &enc, nil
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return nil
}
