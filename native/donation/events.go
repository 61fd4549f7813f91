package donation

import (
	"encoding/hex"
	"strconv"
	"strings"

	"rewardvault/core/events"
	"rewardvault/core/types"
)

const (
	// EventTypeDonationReceived is emitted for every accepted donation.
	EventTypeDonationReceived = "donation.received"
	// EventTypeFundsClaimed is emitted when the operator withdraws funds.
	EventTypeFundsClaimed = "donation.funds.claimed"
	// EventTypeUnitsClaimed is emitted when the operator withdraws leftover units.
	EventTypeUnitsClaimed = "donation.units.claimed"
	// EventTypeRegistrationIssued is emitted when an issue request is sent.
	EventTypeRegistrationIssued = "donation.registration.issued"
	// EventTypeRegistrationSucceeded is emitted when the registry assigns an identifier.
	EventTypeRegistrationSucceeded = "donation.registration.succeeded"
	// EventTypeRegistrationFailed is emitted when the registry rejects the request.
	EventTypeRegistrationFailed = "donation.registration.failed"
	// EventTypeRegistrationRefunded is emitted when the returned fee reaches the operator.
	EventTypeRegistrationRefunded = "donation.registration.refunded"
	// EventTypeRefundSkipped is emitted when a failure payload is not refunded.
	EventTypeRefundSkipped = "donation.registration.refund_skipped"
	// EventTypeRolesRequested is emitted when local roles are requested.
	EventTypeRolesRequested = "donation.roles.requested"
	// EventTypeBatchMinted is emitted when the reward batch is created.
	EventTypeBatchMinted = "donation.batch.minted"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// DonationReceivedEvent describes an accepted donation.
func DonationReceivedEvent(donor string, amount string, granted bool, remaining uint32) *types.Event {
	return &types.Event{
		Type: EventTypeDonationReceived,
		Attributes: map[string]string{
			"donor":          donor,
			"amount":         amount,
			"granted":        strconv.FormatBool(granted),
			"unitsRemaining": strconv.FormatUint(uint64(remaining), 10),
		},
	}
}

// FundsClaimedEvent describes an operator withdrawal of funds.
func FundsClaimedEvent(operator string, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeFundsClaimed,
		Attributes: map[string]string{
			"operator": operator,
			"amount":   amount,
		},
	}
}

// UnitsClaimedEvent describes an operator withdrawal of leftover units.
func UnitsClaimedEvent(operator string, unit types.AssetRef, units uint32) *types.Event {
	return &types.Event{
		Type: EventTypeUnitsClaimed,
		Attributes: map[string]string{
			"operator": operator,
			"tokenId":  unit.TokenID,
			"nonce":    strconv.FormatUint(unit.Nonce, 10),
			"units":    strconv.FormatUint(uint64(units), 10),
		},
	}
}

// RegistrationIssuedEvent describes an issue request handed to the registry.
func RegistrationIssuedEvent(requestID, name, ticker, fee string) *types.Event {
	return &types.Event{
		Type: EventTypeRegistrationIssued,
		Attributes: map[string]string{
			"requestId": requestID,
			"name":      name,
			"ticker":    ticker,
			"fee":       fee,
		},
	}
}

// RegistrationSucceededEvent describes a successful issuance.
func RegistrationSucceededEvent(requestID, tokenID string) *types.Event {
	return &types.Event{
		Type: EventTypeRegistrationSucceeded,
		Attributes: map[string]string{
			"requestId": requestID,
			"tokenId":   tokenID,
		},
	}
}

// RegistrationFailedEvent describes a rejected issuance.
func RegistrationFailedEvent(requestID, reason string) *types.Event {
	return &types.Event{
		Type: EventTypeRegistrationFailed,
		Attributes: map[string]string{
			"requestId": requestID,
			"reason":    reason,
		},
	}
}

// RegistrationRefundedEvent describes a returned fee forwarded to the operator.
func RegistrationRefundedEvent(requestID, operator, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeRegistrationRefunded,
		Attributes: map[string]string{
			"requestId": requestID,
			"operator":  operator,
			"amount":    amount,
		},
	}
}

// RefundSkippedEvent describes a failure payload that was not refunded.
func RefundSkippedEvent(requestID, asset, amount, reason string) *types.Event {
	return &types.Event{
		Type: EventTypeRefundSkipped,
		Attributes: map[string]string{
			"requestId": requestID,
			"asset":     asset,
			"amount":    amount,
			"reason":    reason,
		},
	}
}

// RolesRequestedEvent describes a local role request.
func RolesRequestedEvent(tokenID string, roles []string) *types.Event {
	return &types.Event{
		Type: EventTypeRolesRequested,
		Attributes: map[string]string{
			"tokenId": tokenID,
			"roles":   strings.Join(roles, ","),
		},
	}
}

// BatchMintedEvent describes the reward batch creation.
func BatchMintedEvent(batch *RewardBatch) *types.Event {
	return &types.Event{
		Type: EventTypeBatchMinted,
		Attributes: map[string]string{
			"tokenId":        batch.TokenID,
			"nonce":          strconv.FormatUint(batch.Nonce, 10),
			"units":          strconv.FormatUint(uint64(batch.TotalUnits), 10),
			"provenanceHash": hex.EncodeToString(batch.ProvenanceHash[:]),
			"uri":            batch.ResourceURI,
		},
	}
}
