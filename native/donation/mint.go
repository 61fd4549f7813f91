package donation

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"rewardvault/crypto"
	"rewardvault/native/registry"
	"rewardvault/observability/metrics"
)

// MintRewardBatch creates the single fixed-supply reward batch, tagged with a
// digest of the provenance attributes and the resource URI, and opens the
// donation gate. It runs once.
func (e *Engine) MintRewardBatch(ctx context.Context, name, resourceURI string) (nonce uint64, err error) {
	ctx, span := startSpan(ctx, "MintRewardBatch")
	defer func() { endSpan(span, err) }()
	if err := e.ready(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.authorize(ctx); err != nil {
		return 0, err
	}
	asset, err := e.loadAssetClass()
	if err != nil {
		return 0, err
	}
	if asset.Minted {
		return 0, ErrAlreadyMinted
	}
	if !asset.Issued() {
		return 0, ErrTokenNotIssued
	}
	roles, err := e.registry.LocalRoles(ctx, asset.RegistryID, e.params.Custody)
	if err != nil {
		return 0, fmt.Errorf("donation engine: read local roles: %w", err)
	}
	for _, role := range []registry.Role{registry.RoleCreate, registry.RoleAddQuantity} {
		if !roles.Has(role) {
			return 0, fmt.Errorf("%w: %s missing", ErrRolesNotSet, role)
		}
	}
	if e.params.TotalUnits == 0 {
		return 0, errors.New("donation engine: total units must be positive")
	}

	batch := e.unsettled
	if batch == nil || batch.TokenID != asset.RegistryID {
		batch, err = e.createBatch(ctx, asset.RegistryID, name, resourceURI)
		if err != nil {
			return 0, err
		}
	} else {
		e.logger.Warn("donation reward batch resumed", "tokenId", batch.TokenID, "nonce", batch.Nonce)
	}

	ledger, err := e.loadLedger()
	if err != nil {
		e.unsettled = batch
		return 0, err
	}
	ledger.UnitsRemaining = batch.TotalUnits
	ledger.UnitsGranted = 0
	asset.UnitNonce = batch.Nonce
	asset.Minted = true
	// On failure the registry batch is kept for the next attempt.
	if err := e.state.DonationMintCommit(batch, ledger, asset); err != nil {
		e.unsettled = batch
		e.logger.Error("donation reward batch commit failed", "tokenId", batch.TokenID, "nonce", batch.Nonce, "error", err)
		return 0, fmt.Errorf("donation engine: commit reward batch: %w", err)
	}
	e.unsettled = nil
	nonce = batch.Nonce
	hash := batch.ProvenanceHash

	e.emit(BatchMintedEvent(batch))
	metrics.Donation().RecordRegistration("minted")
	e.observeLedger(ledger)
	e.logger.Info("donation reward batch minted", "tokenId", batch.TokenID, "nonce", nonce,
		"units", batch.TotalUnits, "provenanceHash", hex.EncodeToString(hash[:]))
	return nonce, nil
}

func (e *Engine) createBatch(ctx context.Context, tokenID, name, resourceURI string) (*RewardBatch, error) {
	attributes := e.params.Attributes.Encode()
	hash, err := crypto.Digest(e.params.Digest, attributes)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	uri := strings.TrimSpace(resourceURI)
	nonce, err := e.registry.CreateBatch(ctx, registry.CreateBatchRequest{
		TokenID:    tokenID,
		Creator:    e.params.Custody,
		Supply:     new(big.Int).SetUint64(uint64(e.params.TotalUnits)),
		Name:       name,
		Royalties:  big.NewInt(0),
		Hash:       hash,
		Attributes: attributes,
		URIs:       []string{uri},
	})
	if err != nil {
		return nil, fmt.Errorf("donation engine: create reward batch: %w", err)
	}
	return &RewardBatch{
		TokenID:        tokenID,
		Nonce:          nonce,
		Name:           name,
		TotalUnits:     e.params.TotalUnits,
		ProvenanceHash: hash,
		Attributes:     attributes,
		ResourceURI:    uri,
		Royalties:      big.NewInt(0),
		MintedAt:       e.now(),
	}, nil
}
