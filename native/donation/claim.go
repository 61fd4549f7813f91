package donation

import (
	"context"
	"errors"
	"math/big"

	"rewardvault/core/types"
	"rewardvault/crypto"
	"rewardvault/observability/metrics"
)

// Claim transfers the whole custody balance of the native currency to the
// operator and resets funds raised. Claiming an empty balance is not an error.
func (e *Engine) Claim(ctx context.Context) (claimed *big.Int, err error) {
	ctx, span := startSpan(ctx, "Claim")
	defer func() { endSpan(span, err) }()
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	operator, err := e.authorize(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := e.settlement.Balance(ctx, e.params.Custody, e.native())
	if err != nil {
		return nil, err
	}
	balance = newBigInt(balance)
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}

	var legs []types.Transfer
	if balance.Sign() > 0 {
		legs = append(legs, types.Transfer{
			From:   e.params.Custody,
			To:     operator,
			Asset:  e.native(),
			Amount: balance,
		})
	}
	updated := ledger.Clone()
	updated.FundsRaised = big.NewInt(0)
	if err := e.settle(ctx, legs, func() error { return e.state.DonationLedgerPut(updated) }); err != nil {
		return nil, err
	}

	operatorAddr := crypto.FormatAddress(operator)
	e.emit(FundsClaimedEvent(operatorAddr, balance.String()))
	metrics.Donation().RecordClaim("funds")
	e.observeLedger(updated)
	e.logger.Info("donation funds claimed", "operator", operatorAddr, "amount", balance.String())
	return balance, nil
}

// ClaimLeftoverUnits transfers every remaining reward unit to the operator in
// one batch and zeroes the remaining counter. Units granted are untouched. It
// is a no-op once nothing remains.
func (e *Engine) ClaimLeftoverUnits(ctx context.Context) (units uint32, err error) {
	ctx, span := startSpan(ctx, "ClaimLeftoverUnits")
	defer func() { endSpan(span, err) }()
	if err := e.ready(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	operator, err := e.authorize(ctx)
	if err != nil {
		return 0, err
	}
	ledger, err := e.loadLedger()
	if err != nil {
		return 0, err
	}
	if ledger.UnitsRemaining == 0 {
		return 0, nil
	}
	asset, err := e.loadAssetClass()
	if err != nil {
		return 0, err
	}
	if !asset.Minted {
		return 0, errors.New("donation engine: units remaining without a minted batch")
	}

	units = ledger.UnitsRemaining
	legs := []types.Transfer{{
		From:   e.params.Custody,
		To:     operator,
		Asset:  asset.Unit(),
		Amount: new(big.Int).SetUint64(uint64(units)),
	}}
	updated := ledger.Clone()
	updated.UnitsRemaining = 0
	if err := e.settle(ctx, legs, func() error { return e.state.DonationLedgerPut(updated) }); err != nil {
		return 0, err
	}

	operatorAddr := crypto.FormatAddress(operator)
	e.emit(UnitsClaimedEvent(operatorAddr, asset.Unit(), units))
	metrics.Donation().RecordClaim("units")
	e.observeLedger(updated)
	e.logger.Info("donation leftover units claimed", "operator", operatorAddr, "units", units)
	return units, nil
}
