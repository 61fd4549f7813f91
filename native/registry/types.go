package registry

import (
	"context"
	"math/big"

	"rewardvault/core/types"
)

// Role is a local permission held by an address on a registered asset class.
type Role string

const (
	// RoleCreate allows the holder to create new unit batches.
	RoleCreate Role = "ESDTRoleNFTCreate"
	// RoleAddQuantity allows the holder to add quantity to an existing batch.
	RoleAddQuantity Role = "ESDTRoleNFTAddQuantity"
)

// RoleSet is the set of local roles held by one address on one asset class.
type RoleSet []Role

// Has reports whether the set contains role.
func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Properties are the capability flags fixed at issuance.
type Properties struct {
	CanFreeze          bool
	CanWipe            bool
	CanPause           bool
	CanChangeOwner     bool
	CanUpgrade         bool
	CanAddSpecialRoles bool
}

// RewardProperties returns the flags used for reward classes: no freeze, wipe
// or pause, owner-upgradeable and extensible with local roles.
func RewardProperties() Properties {
	return Properties{
		CanUpgrade:         true,
		CanAddSpecialRoles: true,
	}
}

// IssueRequest asks the registry to create a semi-fungible asset class.
type IssueRequest struct {
	RequestID  string
	Issuer     [20]byte
	Name       string
	Ticker     string
	Fee        *big.Int
	Properties Properties
}

// IssueResult is delivered exactly once per accepted IssueRequest.
type IssueResult struct {
	RequestID string
	// TokenID is set when the asset class was created.
	TokenID string
	// Reason describes a failure.
	Reason string
	// Returned is the value sent back with a failure, if any.
	Returned *types.Payment
}

// OK reports whether the registry created the asset class.
func (r IssueResult) OK() bool { return r.TokenID != "" && r.Reason == "" }

// IssueCallback receives the asynchronous outcome of an issue request.
type IssueCallback func(ctx context.Context, result IssueResult) error

// Token is a registered asset class.
type Token struct {
	ID         string
	Name       string
	Ticker     string
	Owner      [20]byte
	Properties Properties
	LastNonce  uint64
	IssuedAt   int64
}

// Batch is one creation event of units for a registered asset class.
type Batch struct {
	TokenID    string
	Nonce      uint64
	Creator    [20]byte
	Supply     *big.Int
	Name       string
	Royalties  *big.Int
	Hash       [32]byte
	Attributes []byte
	URIs       []string
	CreatedAt  int64
}

// CreateBatchRequest mints a new batch of units to the creator.
type CreateBatchRequest struct {
	TokenID    string
	Creator    [20]byte
	Supply     *big.Int
	Name       string
	Royalties  *big.Int
	Hash       [32]byte
	Attributes []byte
	URIs       []string
}
