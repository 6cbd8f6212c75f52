package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsale-go/token"
)

var (
	bucketSales = []byte("sales")
	bucketState = []byte("state")

	keyTokens = []byte("tokens")
	keyMeta   = []byte("meta")
)

// BoltStore persists records in a bbolt database. Sale records are keyed
// by the 20-byte sale address.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSales, bucketState} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("store: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string { return s.db.Path() }

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// Commit writes every non-nil member of cp in one bbolt transaction.
func (s *BoltStore) Commit(cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("%w: checkpoint", ErrNilParam)
	}
	enc, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if enc.sale != nil {
			addr := cp.Sale.Address()
			if err := tx.Bucket(bucketSales).Put(addr.Bytes(), enc.sale); err != nil {
				return fmt.Errorf("store: put sale: %w", err)
			}
		}
		state := tx.Bucket(bucketState)
		if enc.tokens != nil {
			if err := state.Put(keyTokens, enc.tokens); err != nil {
				return fmt.Errorf("store: put tokens: %w", err)
			}
		}
		if enc.meta != nil {
			if err := state.Put(keyMeta, enc.meta); err != nil {
				return fmt.Errorf("store: put meta: %w", err)
			}
		}
		return nil
	})
}

// GetSale retrieves a sale record by sale address.
func (s *BoltStore) GetSale(addr common.Address) (*SaleRecord, error) {
	var rec SaleRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSales).Get(addr.Bytes())
		if data == nil {
			return fmt.Errorf("%w: sale %s", ErrNotFound, addr.Hex())
		}
		return decode(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSales returns all sale records in key (address) order.
func (s *BoltStore) ListSales() ([]*SaleRecord, error) {
	var out []*SaleRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSales).ForEach(func(k, v []byte) error {
			var rec SaleRecord
			if err := decode(v, &rec); err != nil {
				return err
			}
			if !bytes.Equal(rec.Address().Bytes(), k) {
				return fmt.Errorf("%w: sale %x stored under %x", ErrCorrupt, rec.Address(), k)
			}
			out = append(out, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSale removes a sale record.
func (s *BoltStore) DeleteSale(addr common.Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSales)
		if b.Get(addr.Bytes()) == nil {
			return fmt.Errorf("%w: sale %s", ErrNotFound, addr.Hex())
		}
		return b.Delete(addr.Bytes())
	})
}

// GetTokens returns the token ledger.
func (s *BoltStore) GetTokens() (*token.State, error) {
	var st token.State
	if err := s.get(keyTokens, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetMeta returns the engine metadata.
func (s *BoltStore) GetMeta() (*Meta, error) {
	var m Meta
	if err := s.get(keyMeta, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *BoltStore) get(key []byte, v interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketState).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return decode(data, v)
	})
}
