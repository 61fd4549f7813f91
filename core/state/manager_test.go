package state

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardvault/core/types"
	"rewardvault/native/donation"
	"rewardvault/native/registry"
	"rewardvault/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(db)
}

func TestKVRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	var missing big.Int
	ok, err := mgr.KVGet([]byte("absent"), &missing)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.KVPut([]byte("counter"), big.NewInt(42)))
	value := new(big.Int)
	ok, err = mgr.KVGet([]byte("counter"), value)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), value.Int64())

	require.NoError(t, mgr.KVDelete([]byte("counter")))
	ok, err = mgr.KVGet([]byte("counter"), value)
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, mgr.KVPut(nil, big.NewInt(1)))
}

func TestKeysAreHashed(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	require.NoError(t, mgr.KVPut([]byte("donation/ledger"), uint64(7)))

	keys := db.Keys()
	require.Len(t, keys, 1)
	require.Len(t, keys[0], 32)
	require.NotEqual(t, []byte("donation/ledger"), keys[0])
}

func TestDonationRecords(t *testing.T) {
	mgr := newTestManager(t)

	_, ok, err := mgr.DonationLedgerGet()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.DonationLedgerPut(&donation.Ledger{
		FundsRaised:    big.NewInt(150),
		UnitsGranted:   3,
		UnitsRemaining: 997,
	}))
	ledger, ok, err := mgr.DonationLedgerGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "150", ledger.FundsRaised.String())
	require.Equal(t, uint32(3), ledger.UnitsGranted)
	require.Equal(t, uint32(997), ledger.UnitsRemaining)

	require.NoError(t, mgr.DonationAssetClassPut(&donation.AssetClass{RegistryID: "DONATE-0a1b2c", UnitNonce: 1, Minted: true}))
	asset, ok, err := mgr.DonationAssetClassGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "DONATE-0a1b2c", asset.RegistryID)
	require.Equal(t, uint64(1), asset.UnitNonce)
	require.True(t, asset.Minted)

	hash := [32]byte{0xaa, 0xbb}
	require.NoError(t, mgr.DonationRewardBatchPut(&donation.RewardBatch{
		TokenID:        "DONATE-0a1b2c",
		Nonce:          1,
		Name:           "Thanks",
		TotalUnits:     1000,
		ProvenanceHash: hash,
		Attributes:     []byte("metadata:ipfs://x;tags:"),
		ResourceURI:    "ipfs://x",
		MintedAt:       1_700_000_000,
	}))
	batch, ok, err := mgr.DonationRewardBatchGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, hash, batch.ProvenanceHash)
	require.Equal(t, uint32(1000), batch.TotalUnits)
	require.Equal(t, int64(1_700_000_000), batch.MintedAt)
	require.Equal(t, 0, batch.Royalties.Sign())

	require.Error(t, mgr.DonationLedgerPut(nil))
}

type failingBatchDB struct {
	storage.Database
}

func (db failingBatchDB) NewBatch() storage.Batch {
	return failingBatch{Batch: db.Database.NewBatch()}
}

type failingBatch struct {
	storage.Batch
}

func (failingBatch) Write() error { return errors.New("disk full") }

func TestDonationMintCommitIsAtomic(t *testing.T) {
	batch := &donation.RewardBatch{TokenID: "DONATE-0a1b2c", Nonce: 1, TotalUnits: 1000}
	ledger := &donation.Ledger{FundsRaised: big.NewInt(0), UnitsRemaining: 1000}
	asset := &donation.AssetClass{RegistryID: "DONATE-0a1b2c", UnitNonce: 1, Minted: true}

	db := storage.NewMemDB()
	broken := NewManager(failingBatchDB{Database: db})
	require.ErrorContains(t, broken.DonationMintCommit(batch, ledger, asset), "disk full")
	require.Empty(t, db.Keys())

	mgr := NewManager(db)
	require.NoError(t, mgr.DonationMintCommit(batch, ledger, asset))
	stored, ok, err := mgr.DonationAssetClassGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, stored.Minted)
	counters, ok, err := mgr.DonationLedgerGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(1000), counters.UnitsRemaining)
	_, ok, err = mgr.DonationRewardBatchGet()
	require.NoError(t, err)
	require.True(t, ok)

	require.Error(t, mgr.DonationMintCommit(nil, ledger, asset))
}

func TestRegistryRecords(t *testing.T) {
	mgr := newTestManager(t)
	owner := [20]byte{1}

	_, ok, err := mgr.RegistryTokenGet("DONATE-000001")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.RegistryTokenPut(&registry.Token{
		ID:         "DONATE-000001",
		Name:       "Donation",
		Ticker:     "DONATE",
		Owner:      owner,
		Properties: registry.RewardProperties(),
		LastNonce:  2,
		IssuedAt:   99,
	}))
	token, ok, err := mgr.RegistryTokenGet("DONATE-000001")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, owner, token.Owner)
	require.Equal(t, registry.RewardProperties(), token.Properties)
	require.Equal(t, uint64(2), token.LastNonce)

	roles, err := mgr.RegistryRolesGet("DONATE-000001", owner)
	require.NoError(t, err)
	require.Empty(t, roles)
	require.NoError(t, mgr.RegistryRolesPut("DONATE-000001", owner, registry.RoleSet{registry.RoleCreate, registry.RoleAddQuantity}))
	roles, err = mgr.RegistryRolesGet("DONATE-000001", owner)
	require.NoError(t, err)
	require.True(t, roles.Has(registry.RoleCreate))
	require.True(t, roles.Has(registry.RoleAddQuantity))

	require.NoError(t, mgr.RegistryBatchPut(&registry.Batch{
		TokenID: "DONATE-000001",
		Nonce:   1,
		Creator: owner,
		Supply:  big.NewInt(1000),
		URIs:    []string{"ipfs://x"},
	}))
	batch, ok, err := mgr.RegistryBatchGet("DONATE-000001", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1000", batch.Supply.String())
	require.Equal(t, []string{"ipfs://x"}, batch.URIs)

	_, ok, err = mgr.RegistryBatchGet("DONATE-000001", 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBankBalancesPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	db, err := storage.Open(storage.BackendLevelDB, path)
	require.NoError(t, err)

	alice := [20]byte{0xa1}
	native := types.NativeAsset("EGLD")
	unit := types.AssetRef{TokenID: "DONATE-000001", Nonce: 1}

	mgr := NewManager(db)
	zero, err := mgr.BankBalanceGet(alice, native)
	require.NoError(t, err)
	require.Equal(t, 0, zero.Sign())

	require.NoError(t, mgr.BankBalancesPut([]types.BalanceEntry{
		{Owner: alice, Asset: native, Amount: big.NewInt(500)},
		{Owner: alice, Asset: unit, Amount: big.NewInt(1)},
	}))
	require.NoError(t, db.Close())

	db, err = storage.Open(storage.BackendLevelDB, path)
	require.NoError(t, err)
	defer db.Close()
	mgr = NewManager(db)

	bal, err := mgr.BankBalanceGet(alice, native)
	require.NoError(t, err)
	require.Equal(t, "500", bal.String())
	bal, err = mgr.BankBalanceGet(alice, unit)
	require.NoError(t, err)
	require.Equal(t, "1", bal.String())
}
