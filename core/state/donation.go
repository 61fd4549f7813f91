package state

import (
	"fmt"
	"math/big"

	"rewardvault/native/donation"
)

type storedDonationLedger struct {
	FundsRaised    *big.Int
	UnitsGranted   uint32
	UnitsRemaining uint32
}

type storedAssetClass struct {
	RegistryID string
	UnitNonce  uint64
	Minted     bool
}

type storedRewardBatch struct {
	TokenID        string
	Nonce          uint64
	Name           string
	TotalUnits     uint32
	ProvenanceHash [32]byte
	Attributes     []byte
	ResourceURI    string
	Royalties      *big.Int
	MintedAt       uint64
}

func nonNegative(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// DonationLedgerGet loads the donation counters.
func (m *Manager) DonationLedgerGet() (*donation.Ledger, bool, error) {
	var stored storedDonationLedger
	ok, err := m.KVGet(donationLedgerKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &donation.Ledger{
		FundsRaised:    nonNegative(stored.FundsRaised),
		UnitsGranted:   stored.UnitsGranted,
		UnitsRemaining: stored.UnitsRemaining,
	}, true, nil
}

// DonationLedgerPut persists the donation counters.
func (m *Manager) DonationLedgerPut(ledger *donation.Ledger) error {
	if ledger == nil {
		return fmt.Errorf("donation: nil ledger")
	}
	return m.KVPut(donationLedgerKey, toStoredLedger(ledger))
}

func toStoredLedger(ledger *donation.Ledger) *storedDonationLedger {
	return &storedDonationLedger{
		FundsRaised:    nonNegative(ledger.FundsRaised),
		UnitsGranted:   ledger.UnitsGranted,
		UnitsRemaining: ledger.UnitsRemaining,
	}
}

// DonationAssetClassGet loads the reward asset class identity.
func (m *Manager) DonationAssetClassGet() (*donation.AssetClass, bool, error) {
	var stored storedAssetClass
	ok, err := m.KVGet(donationAssetClassKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &donation.AssetClass{
		RegistryID: stored.RegistryID,
		UnitNonce:  stored.UnitNonce,
		Minted:     stored.Minted,
	}, true, nil
}

// DonationAssetClassPut persists the reward asset class identity.
func (m *Manager) DonationAssetClassPut(asset *donation.AssetClass) error {
	if asset == nil {
		return fmt.Errorf("donation: nil asset class")
	}
	return m.KVPut(donationAssetClassKey, toStoredAssetClass(asset))
}

func toStoredAssetClass(asset *donation.AssetClass) *storedAssetClass {
	return &storedAssetClass{
		RegistryID: asset.RegistryID,
		UnitNonce:  asset.UnitNonce,
		Minted:     asset.Minted,
	}
}

// DonationRewardBatchGet loads the minted reward batch.
func (m *Manager) DonationRewardBatchGet() (*donation.RewardBatch, bool, error) {
	var stored storedRewardBatch
	ok, err := m.KVGet(donationRewardBatchKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &donation.RewardBatch{
		TokenID:        stored.TokenID,
		Nonce:          stored.Nonce,
		Name:           stored.Name,
		TotalUnits:     stored.TotalUnits,
		ProvenanceHash: stored.ProvenanceHash,
		Attributes:     stored.Attributes,
		ResourceURI:    stored.ResourceURI,
		Royalties:      nonNegative(stored.Royalties),
		MintedAt:       int64(stored.MintedAt),
	}, true, nil
}

// DonationRewardBatchPut persists the minted reward batch.
func (m *Manager) DonationRewardBatchPut(batch *donation.RewardBatch) error {
	if batch == nil {
		return fmt.Errorf("donation: nil reward batch")
	}
	return m.KVPut(donationRewardBatchKey, toStoredBatch(batch))
}

func toStoredBatch(batch *donation.RewardBatch) *storedRewardBatch {
	mintedAt := uint64(0)
	if batch.MintedAt > 0 {
		mintedAt = uint64(batch.MintedAt)
	}
	return &storedRewardBatch{
		TokenID:        batch.TokenID,
		Nonce:          batch.Nonce,
		Name:           batch.Name,
		TotalUnits:     batch.TotalUnits,
		ProvenanceHash: batch.ProvenanceHash,
		Attributes:     batch.Attributes,
		ResourceURI:    batch.ResourceURI,
		Royalties:      nonNegative(batch.Royalties),
		MintedAt:       mintedAt,
	}
}

// DonationMintCommit persists the minted batch, the reset counters and the
// minted asset class in one batch write.
func (m *Manager) DonationMintCommit(batch *donation.RewardBatch, ledger *donation.Ledger, asset *donation.AssetClass) error {
	if batch == nil || ledger == nil || asset == nil {
		return fmt.Errorf("donation: incomplete mint commit")
	}
	return m.kvBatch(
		[][]byte{donationRewardBatchKey, donationLedgerKey, donationAssetClassKey},
		[]interface{}{toStoredBatch(batch), toStoredLedger(ledger), toStoredAssetClass(asset)},
	)
}
