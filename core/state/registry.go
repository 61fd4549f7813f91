package state

import (
	"fmt"
	"math/big"

	"rewardvault/native/registry"
)

type storedToken struct {
	ID                 string
	Name               string
	Ticker             string
	Owner              [20]byte
	CanFreeze          bool
	CanWipe            bool
	CanPause           bool
	CanChangeOwner     bool
	CanUpgrade         bool
	CanAddSpecialRoles bool
	LastNonce          uint64
	IssuedAt           uint64
}

type storedBatch struct {
	TokenID    string
	Nonce      uint64
	Creator    [20]byte
	Supply     *big.Int
	Name       string
	Royalties  *big.Int
	Hash       [32]byte
	Attributes []byte
	URIs       []string
	CreatedAt  uint64
}

func unixToUint(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func registryTokenKey(id string) []byte {
	return joinKey(registryTokenPrefix, []byte(id))
}

func registryRolesKey(tokenID string, addr [20]byte) []byte {
	return joinKey(registryRolesPrefix, []byte(tokenID), addr[:])
}

func registryBatchKey(tokenID string, nonce uint64) []byte {
	return joinKey(registryBatchPrefix, []byte(tokenID), uint64Bytes(nonce))
}

// RegistryTokenGet loads a registered asset class.
func (m *Manager) RegistryTokenGet(id string) (*registry.Token, bool, error) {
	var stored storedToken
	ok, err := m.KVGet(registryTokenKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &registry.Token{
		ID:     stored.ID,
		Name:   stored.Name,
		Ticker: stored.Ticker,
		Owner:  stored.Owner,
		Properties: registry.Properties{
			CanFreeze:          stored.CanFreeze,
			CanWipe:            stored.CanWipe,
			CanPause:           stored.CanPause,
			CanChangeOwner:     stored.CanChangeOwner,
			CanUpgrade:         stored.CanUpgrade,
			CanAddSpecialRoles: stored.CanAddSpecialRoles,
		},
		LastNonce: stored.LastNonce,
		IssuedAt:  int64(stored.IssuedAt),
	}, true, nil
}

// RegistryTokenPut persists a registered asset class.
func (m *Manager) RegistryTokenPut(token *registry.Token) error {
	if token == nil || token.ID == "" {
		return fmt.Errorf("registry: token id required")
	}
	return m.KVPut(registryTokenKey(token.ID), &storedToken{
		ID:                 token.ID,
		Name:               token.Name,
		Ticker:             token.Ticker,
		Owner:              token.Owner,
		CanFreeze:          token.Properties.CanFreeze,
		CanWipe:            token.Properties.CanWipe,
		CanPause:           token.Properties.CanPause,
		CanChangeOwner:     token.Properties.CanChangeOwner,
		CanUpgrade:         token.Properties.CanUpgrade,
		CanAddSpecialRoles: token.Properties.CanAddSpecialRoles,
		LastNonce:          token.LastNonce,
		IssuedAt:           unixToUint(token.IssuedAt),
	})
}

// RegistryRolesGet returns the local roles addr holds on tokenID.
func (m *Manager) RegistryRolesGet(tokenID string, addr [20]byte) (registry.RoleSet, error) {
	var stored []string
	ok, err := m.KVGet(registryRolesKey(tokenID, addr), &stored)
	if err != nil || !ok {
		return nil, err
	}
	roles := make(registry.RoleSet, 0, len(stored))
	for _, role := range stored {
		roles = append(roles, registry.Role(role))
	}
	return roles, nil
}

// RegistryRolesPut replaces the local roles addr holds on tokenID.
func (m *Manager) RegistryRolesPut(tokenID string, addr [20]byte, roles registry.RoleSet) error {
	stored := make([]string, 0, len(roles))
	for _, role := range roles {
		stored = append(stored, string(role))
	}
	return m.KVPut(registryRolesKey(tokenID, addr), stored)
}

// RegistryBatchGet loads a created batch.
func (m *Manager) RegistryBatchGet(tokenID string, nonce uint64) (*registry.Batch, bool, error) {
	var stored storedBatch
	ok, err := m.KVGet(registryBatchKey(tokenID, nonce), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &registry.Batch{
		TokenID:    stored.TokenID,
		Nonce:      stored.Nonce,
		Creator:    stored.Creator,
		Supply:     nonNegative(stored.Supply),
		Name:       stored.Name,
		Royalties:  nonNegative(stored.Royalties),
		Hash:       stored.Hash,
		Attributes: stored.Attributes,
		URIs:       stored.URIs,
		CreatedAt:  int64(stored.CreatedAt),
	}, true, nil
}

// RegistryBatchPut persists a created batch.
func (m *Manager) RegistryBatchPut(batch *registry.Batch) error {
	if batch == nil || batch.TokenID == "" {
		return fmt.Errorf("registry: batch token id required")
	}
	return m.KVPut(registryBatchKey(batch.TokenID, batch.Nonce), &storedBatch{
		TokenID:    batch.TokenID,
		Nonce:      batch.Nonce,
		Creator:    batch.Creator,
		Supply:     nonNegative(batch.Supply),
		Name:       batch.Name,
		Royalties:  nonNegative(batch.Royalties),
		Hash:       batch.Hash,
		Attributes: batch.Attributes,
		URIs:       batch.URIs,
		CreatedAt:  unixToUint(batch.CreatedAt),
	})
}
