package donation

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"rewardvault/core/types"
	"rewardvault/crypto"
	"rewardvault/native/registry"
	"rewardvault/observability/metrics"
)

// IssueAssetClass pays the registration fee and asks the registry to create
// the reward asset class. It returns as soon as the request is queued; the
// outcome arrives later through the registration callback. The returned
// request identifier names the pending registration.
func (e *Engine) IssueAssetClass(ctx context.Context, fee *big.Int, name, ticker string) (requestID string, err error) {
	ctx, span := startSpan(ctx, "IssueAssetClass")
	defer func() { endSpan(span, err) }()
	if err := e.ready(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	operator, err := e.authorize(ctx)
	if err != nil {
		return "", err
	}
	asset, err := e.loadAssetClass()
	if err != nil {
		return "", err
	}
	if asset.Issued() {
		return "", ErrAlreadyRegistered
	}
	if e.pending != nil {
		return "", ErrRegistrationPending
	}
	if fee == nil || fee.Sign() <= 0 {
		return "", fmt.Errorf("%w: registration fee must be positive", ErrInvalidPayment)
	}

	fee = new(big.Int).Set(fee)
	payment := types.Transfer{From: operator, To: e.params.Custody, Asset: e.native(), Amount: fee}
	if err := e.settlement.Apply(ctx, payment); err != nil {
		return "", fmt.Errorf("donation engine: collect registration fee: %w", err)
	}
	requestID = e.newID()
	req := registry.IssueRequest{
		RequestID:  requestID,
		Issuer:     e.params.Custody,
		Name:       strings.TrimSpace(name),
		Ticker:     strings.TrimSpace(ticker),
		Fee:        fee,
		Properties: registry.RewardProperties(),
	}
	if err := e.registry.IssueSemiFungible(ctx, req, e.onIssueResult); err != nil {
		if rbErr := e.settlement.Apply(context.WithoutCancel(ctx), reverse([]types.Transfer{payment})...); rbErr != nil {
			e.logger.Error("donation registration fee return failed", "error", rbErr)
		}
		return "", fmt.Errorf("donation engine: issue asset class: %w", err)
	}
	e.pending = &PendingRegistration{
		RequestID: requestID,
		Name:      req.Name,
		Ticker:    req.Ticker,
		Fee:       fee,
		IssuedAt:  e.now(),
	}

	e.emit(RegistrationIssuedEvent(requestID, req.Name, req.Ticker, fee.String()))
	metrics.Donation().RecordRegistration("issued")
	e.logger.Info("donation registration issued", "requestId", requestID, "name", req.Name, "ticker", req.Ticker)
	return requestID, nil
}

// onIssueResult is the registration callback. It consumes the pending marker,
// so a result is applied at most once and results for other requests are
// rejected. A success whose write fails leaves the marker in place so the same
// result can be delivered again.
func (e *Engine) onIssueResult(ctx context.Context, result registry.IssueResult) (err error) {
	ctx, span := startSpan(ctx, "IssueCallback")
	defer func() { endSpan(span, err) }()
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := e.pending
	if pending == nil || pending.RequestID != result.RequestID {
		e.logger.Warn("donation registration result without pending request", "requestId", result.RequestID)
		return ErrNoPendingRegistration
	}

	if !result.OK() {
		e.pending = nil
		reason := result.Reason
		if reason == "" {
			reason = "registry returned no identifier"
		}
		e.emit(RegistrationFailedEvent(result.RequestID, reason))
		metrics.Donation().RecordRegistration("failed")
		e.logger.Warn("donation registration failed", "requestId", result.RequestID, "reason", reason)
		e.refund(ctx, result)
		return nil
	}

	asset, err := e.loadAssetClass()
	if err != nil {
		return err
	}
	if asset.Issued() {
		e.pending = nil
		e.logger.Warn("donation registration result ignored, identifier already set",
			"requestId", result.RequestID, "tokenId", asset.RegistryID)
		return nil
	}
	asset.RegistryID = types.NormalizeTokenID(result.TokenID)
	if err := e.state.DonationAssetClassPut(asset); err != nil {
		e.logger.Error("donation registration write failed", "requestId", result.RequestID, "error", err)
		return err
	}
	e.pending = nil
	e.emit(RegistrationSucceededEvent(result.RequestID, asset.RegistryID))
	metrics.Donation().RecordRegistration("succeeded")
	e.logger.Info("donation registration succeeded", "requestId", result.RequestID, "tokenId", asset.RegistryID)
	return nil
}

// refund forwards a returned fee to the operator. Only a positive amount in the
// native denomination is forwarded; anything else stays in custody.
func (e *Engine) refund(ctx context.Context, result registry.IssueResult) {
	returned := result.Returned
	if returned == nil || returned.Amount == nil || returned.Amount.Sign() <= 0 {
		e.skipRefund(result.RequestID, types.AssetRef{}, nil, "nothing returned")
		return
	}
	asset := returned.Asset
	asset.TokenID = types.NormalizeTokenID(asset.TokenID)
	if asset != e.native() {
		e.skipRefund(result.RequestID, asset, returned.Amount, "unexpected denomination")
		return
	}
	operator := e.identity.Operator()
	amount := new(big.Int).Set(returned.Amount)
	if err := e.settlement.Apply(ctx, types.Transfer{
		From:   e.params.Custody,
		To:     operator,
		Asset:  e.native(),
		Amount: amount,
	}); err != nil {
		e.logger.Error("donation registration refund failed", "requestId", result.RequestID, "error", err)
		metrics.Donation().RecordRefund("error")
		e.emit(RefundSkippedEvent(result.RequestID, asset.String(), amount.String(), "transfer failed"))
		return
	}
	operatorAddr := crypto.FormatAddress(operator)
	e.emit(RegistrationRefundedEvent(result.RequestID, operatorAddr, amount.String()))
	metrics.Donation().RecordRefund("refunded")
	e.logger.Info("donation registration fee refunded", "requestId", result.RequestID, "operator", operatorAddr, "amount", amount.String())
}

func (e *Engine) skipRefund(requestID string, asset types.AssetRef, amount *big.Int, reason string) {
	e.emit(RefundSkippedEvent(requestID, asset.String(), newBigInt(amount).String(), reason))
	metrics.Donation().RecordRefund("skipped")
	e.logger.Warn("donation registration refund skipped", "requestId", requestID, "asset", asset.String(), "reason", reason)
}

// GrantLocalPermissions asks the registry to give the custody account the
// create and add-quantity roles on the registered asset class. The grant has
// no callback; MintRewardBatch checks its outcome.
func (e *Engine) GrantLocalPermissions(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "GrantLocalPermissions")
	defer func() { endSpan(span, err) }()
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.authorize(ctx); err != nil {
		return err
	}
	asset, err := e.loadAssetClass()
	if err != nil {
		return err
	}
	if !asset.Issued() {
		return ErrNotRegistered
	}
	roles := []registry.Role{registry.RoleCreate, registry.RoleAddQuantity}
	if err := e.registry.SetLocalRoles(ctx, e.params.Custody, asset.RegistryID, e.params.Custody, roles...); err != nil {
		return fmt.Errorf("donation engine: request local roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	e.emit(RolesRequestedEvent(asset.RegistryID, names))
	metrics.Donation().RecordRegistration("roles_requested")
	e.logger.Info("donation local roles requested", "tokenId", asset.RegistryID)
	return nil
}
