package donation

import (
	"context"
	"fmt"
	"math/big"

	"rewardvault/core/types"
	"rewardvault/crypto"
	"rewardvault/observability/metrics"
)

// Donate accepts a native-currency payment from the caller. A payment of at
// least the threshold earns one reward unit while supply remains; any other
// payment is recorded as a plain donation. Funds raised always grow by the
// full payment.
func (e *Engine) Donate(ctx context.Context, payment types.Payment) (receipt *Receipt, err error) {
	ctx, span := startSpan(ctx, "Donate")
	defer func() { endSpan(span, err) }()
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	donor, err := e.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := e.validatePayment(payment)
	if err != nil {
		return nil, err
	}
	asset, err := e.loadAssetClass()
	if err != nil {
		return nil, err
	}
	if !asset.Minted {
		return nil, ErrNotReady
	}
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}

	grant := amount.Cmp(e.params.MinThreshold) >= 0 && ledger.UnitsRemaining > 0
	legs := make([]types.Transfer, 0, 2)
	if amount.Sign() > 0 {
		legs = append(legs, types.Transfer{
			From:   donor,
			To:     e.params.Custody,
			Asset:  e.native(),
			Amount: amount,
		})
	}
	if grant {
		legs = append(legs, types.Transfer{
			From:   e.params.Custody,
			To:     donor,
			Asset:  asset.Unit(),
			Amount: big.NewInt(1),
			Memo:   []byte(e.params.AckMemo),
		})
	}

	updated := ledger.Clone()
	updated.FundsRaised = new(big.Int).Add(updated.FundsRaised, amount)
	if grant {
		updated.UnitsRemaining--
		updated.UnitsGranted++
	}
	if err := e.settle(ctx, legs, func() error { return e.state.DonationLedgerPut(updated) }); err != nil {
		return nil, err
	}

	donorAddr := crypto.FormatAddress(donor)
	e.emit(DonationReceivedEvent(donorAddr, amount.String(), grant, updated.UnitsRemaining))
	metrics.Donation().RecordDonation(grant)
	e.observeLedger(updated)
	e.logger.Debug("donation accepted", "donor", donorAddr, "amount", amount.String(), "granted", grant)

	receipt = &Receipt{
		Donor:          donor,
		Amount:         newBigInt(amount),
		Granted:        grant,
		UnitsRemaining: updated.UnitsRemaining,
	}
	if grant {
		receipt.Unit = asset.Unit()
	}
	return receipt, nil
}

func (e *Engine) validatePayment(payment types.Payment) (*big.Int, error) {
	if payment.Amount == nil || payment.Amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidPayment)
	}
	asset := payment.Asset
	if asset.IsZero() {
		asset = e.native()
	}
	asset.TokenID = types.NormalizeTokenID(asset.TokenID)
	if asset != e.native() {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidPayment, e.native(), asset)
	}
	return new(big.Int).Set(payment.Amount), nil
}
