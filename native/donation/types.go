package donation

import (
	"math/big"
	"strings"

	"rewardvault/core/types"
)

// Ledger holds the aggregate donation counters. Once the reward batch is
// minted UnitsGranted + UnitsRemaining equals the batch supply.
type Ledger struct {
	FundsRaised    *big.Int `json:"fundsRaised"`
	UnitsGranted   uint32   `json:"unitsGranted"`
	UnitsRemaining uint32   `json:"unitsRemaining"`
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	clone := *l
	clone.FundsRaised = newBigInt(l.FundsRaised)
	return &clone
}

// AssetClass is the identity of the reward class at the external registry.
type AssetClass struct {
	// RegistryID is assigned by the registry on successful issuance and never
	// overwritten.
	RegistryID string `json:"registryId"`
	// UnitNonce identifies the single minted batch.
	UnitNonce uint64 `json:"unitNonce"`
	// Minted is set once the reward batch exists. Donations are gated on it.
	Minted bool `json:"minted"`
}

// Issued reports whether the registry has assigned an identifier.
func (a *AssetClass) Issued() bool { return a != nil && a.RegistryID != "" }

// Unit returns the reference of one reward unit.
func (a *AssetClass) Unit() types.AssetRef {
	return types.AssetRef{TokenID: a.RegistryID, Nonce: a.UnitNonce}
}

// RewardBatch is the fixed-supply batch created by MintRewardBatch.
type RewardBatch struct {
	TokenID        string   `json:"tokenId"`
	Nonce          uint64   `json:"nonce"`
	Name           string   `json:"name"`
	TotalUnits     uint32   `json:"totalUnits"`
	ProvenanceHash [32]byte `json:"provenanceHash"`
	Attributes     []byte   `json:"attributes"`
	ResourceURI    string   `json:"resourceUri"`
	Royalties      *big.Int `json:"royalties"`
	MintedAt       int64    `json:"mintedAt"`
}

// PendingRegistration marks an in-flight issue request. It lives only in
// memory and is consumed by the registration callback.
type PendingRegistration struct {
	RequestID string
	Name      string
	Ticker    string
	Fee       *big.Int
	IssuedAt  int64
}

// Attributes is the provenance payload attached to the reward batch.
type Attributes struct {
	MetadataURI string
	Tags        []string
}

// Encode serialises the attributes as "metadata:<uri>;tags:<a>,<b>".
func (a Attributes) Encode() []byte {
	tags := make([]string, 0, len(a.Tags))
	for _, tag := range a.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return []byte("metadata:" + strings.TrimSpace(a.MetadataURI) + ";tags:" + strings.Join(tags, ","))
}

// Status is the derived lifecycle position of the asset class.
type Status string

const (
	StatusUnregistered        Status = "unregistered"
	StatusRegistrationPending Status = "registration_pending"
	StatusRegistered          Status = "registered"
	StatusMinted              Status = "minted"
)

// View is a read-only snapshot of the engine.
type View struct {
	Status         Status       `json:"status"`
	AmountRaised   *big.Int     `json:"amountRaised"`
	UnitsGranted   uint32       `json:"unitsGranted"`
	UnitsRemaining uint32       `json:"unitsRemaining"`
	TokenID        string       `json:"tokenId,omitempty"`
	UnitNonce      uint64       `json:"unitNonce,omitempty"`
	PendingRequest string       `json:"pendingRequest,omitempty"`
	Batch          *RewardBatch `json:"batch,omitempty"`
}

// Receipt describes the effect of one donation.
type Receipt struct {
	Donor          [20]byte
	Amount         *big.Int
	Granted        bool
	Unit           types.AssetRef
	UnitsRemaining uint32
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
