package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsale-go/position"
	"github.com/bitfsorg/libsale-go/sale"
	"github.com/bitfsorg/libsale-go/token"
	"github.com/bitfsorg/libsale-go/vesting"
)

var (
	saleA    = common.HexToAddress("0x00000000000000000000000000000000000005a1")
	saleB    = common.HexToAddress("0x00000000000000000000000000000000000005a2")
	bidToken = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	wallet   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

func tempBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenBoltStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("mem", func(t *testing.T) { fn(t, NewMemStore()) })
	t.Run("bolt", func(t *testing.T) { fn(t, tempBoltStore(t)) })
}

func testRecord(addr common.Address) *SaleRecord {
	p := &position.Position{
		ID:                        1,
		InvestedCapital:           uint256.NewInt(1500),
		CachedInvestAmount:        uint256.NewInt(2000),
		CachedTokenAllocationRate: new(uint256.Int),
		HasClaimedExcess:          true,
	}
	return &SaleRecord{
		Sale: &sale.State{
			Config: sale.Config{
				Kind:                sale.KindPreLiquidOpen,
				Address:             addr,
				ChainID:             1,
				BidToken:            bidToken,
				MinimumInvestAmount: uint256.NewInt(100),
				RefundPeriodSeconds: 3600,
			},
			Status: sale.Status{
				StartTime:             10,
				RefundEndTime:         3610,
				TotalCapitalInvested:  uint256.NewInt(1500),
				TotalCapitalRaised:    new(uint256.Int),
				TotalCapitalWithdrawn: new(uint256.Int),
				TotalTokensAllocated:  new(uint256.Int),
			},
			Positions: []*position.Position{p},
			UsedSignatures: []sale.UsedSignature{
				{Investor: alice, Hash: common.HexToHash("0x01")},
			},
		},
		Positions: position.ManagerState{
			NextID: 2,
			Owners: []position.OwnerAssignment{{Owner: alice, ID: 1}},
		},
		Factory: common.HexToAddress("0x00000000000000000000000000000000000000fa"),
		Vesting: vesting.FactoryState{
			Nonce: 1,
			Wallets: []*vesting.WalletState{{
				Address:     wallet,
				Beneficiary: alice,
				Config:      vesting.Config{Type: vesting.TypeLinear, DurationSeconds: 100},
				Released:    map[common.Address]*uint256.Int{bidToken: uint256.NewInt(7)},
			}},
		},
	}
}

func TestStore_CommitAndGetSale(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		rec := testRecord(saleA)
		require.NoError(t, s.Commit(&Checkpoint{Sale: rec}))

		got, err := s.GetSale(saleA)
		require.NoError(t, err)
		assert.Equal(t, rec.Sale.Config.Address, got.Sale.Config.Address)
		assert.Equal(t, sale.KindPreLiquidOpen, got.Sale.Config.Kind)
		assert.Equal(t, uint256.NewInt(100), got.Sale.Config.MinimumInvestAmount)
		assert.Equal(t, uint256.NewInt(1500), got.Sale.Status.TotalCapitalInvested)
		assert.True(t, got.Sale.Status.TotalTokensAllocated.IsZero())
		assert.Nil(t, got.Sale.Status.PrivateKey)
		require.Len(t, got.Sale.Positions, 1)
		assert.Equal(t, rec.Sale.Positions[0], got.Sale.Positions[0])
		assert.Equal(t, rec.Sale.UsedSignatures, got.Sale.UsedSignatures)
		assert.Equal(t, rec.Positions, got.Positions)
		assert.Equal(t, rec.Factory, got.Factory)
		assert.Equal(t, rec.Vesting, got.Vesting)
	})
}

func TestStore_GetSaleNotFound(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		_, err := s.GetSale(saleA)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteSale(saleA), ErrNotFound)
	})
}

func TestStore_CommitOverwrites(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		rec := testRecord(saleA)
		require.NoError(t, s.Commit(&Checkpoint{Sale: rec}))
		rec.Sale.Status.IsCanceled = true
		require.NoError(t, s.Commit(&Checkpoint{Sale: rec}))

		got, err := s.GetSale(saleA)
		require.NoError(t, err)
		assert.True(t, got.Sale.Status.IsCanceled)
	})
}

func TestStore_ListAndDelete(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Commit(&Checkpoint{Sale: testRecord(saleB)}))
		require.NoError(t, s.Commit(&Checkpoint{Sale: testRecord(saleA)}))

		list, err := s.ListSales()
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, saleA, list[0].Address())
		assert.Equal(t, saleB, list[1].Address())

		require.NoError(t, s.DeleteSale(saleA))
		list, err = s.ListSales()
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, saleB, list[0].Address())
	})
}

func TestStore_TokensAndMeta(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		_, err := s.GetTokens()
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetMeta()
		assert.ErrorIs(t, err, ErrNotFound)

		l := token.NewLedger()
		require.NoError(t, l.Mint(bidToken, alice, uint256.NewInt(1000)))
		require.NoError(t, l.Approve(bidToken, alice, saleA, token.MaxAllowance()))
		st := l.State()
		require.NoError(t, s.Commit(&Checkpoint{Tokens: &st, Meta: &Meta{Nonce: 3}}))

		gotTokens, err := s.GetTokens()
		require.NoError(t, err)
		restored := token.NewLedger()
		restored.Restore(*gotTokens)
		assert.Equal(t, uint256.NewInt(1000), restored.BalanceOf(bidToken, alice))
		assert.Equal(t, uint256.NewInt(1000), restored.TotalSupply(bidToken))
		assert.Equal(t, token.MaxAllowance(), restored.Allowance(bidToken, alice, saleA))

		meta, err := s.GetMeta()
		require.NoError(t, err)
		assert.Equal(t, uint64(3), meta.Nonce)
	})
}

func TestStore_CommitValidation(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		assert.ErrorIs(t, s.Commit(nil), ErrNilParam)
		assert.ErrorIs(t, s.Commit(&Checkpoint{Sale: &SaleRecord{}}), ErrNilParam)
	})
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sales.db")
	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Commit(&Checkpoint{Sale: testRecord(saleA), Meta: &Meta{Nonce: 1}}))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetSale(saleA)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1500), got.Sale.Status.TotalCapitalInvested)
	meta, err := s.GetMeta()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), meta.Nonce)
}

func TestBoltStore_Corrupt(t *testing.T) {
	s := tempBoltStore(t)
	require.NoError(t, s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSales).Put(saleA.Bytes(), []byte("{not json"))
	}))
	_, err := s.GetSale(saleA)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = s.ListSales()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpenBoltStore_BadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	_, err := OpenBoltStore(filepath.Join(file, "sub", "db"))
	assert.Error(t, err)
}
