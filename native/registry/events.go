package registry

import (
	"strconv"

	"rewardvault/core/events"
	"rewardvault/core/types"
	"rewardvault/crypto"
)

const (
	// EventTypeTokenIssued is emitted when an asset class is created.
	EventTypeTokenIssued = "registry.token.issued"
	// EventTypeIssueRejected is emitted when an issue request fails validation.
	EventTypeIssueRejected = "registry.token.rejected"
	// EventTypeRolesSet is emitted when local roles are granted.
	EventTypeRolesSet = "registry.roles.set"
	// EventTypeBatchCreated is emitted when a unit batch is created.
	EventTypeBatchCreated = "registry.batch.created"
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

func wrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func tokenIssuedEvent(requestID string, token *Token) *types.Event {
	return &types.Event{
		Type: EventTypeTokenIssued,
		Attributes: map[string]string{
			"requestId": requestID,
			"tokenId":   token.ID,
			"owner":     crypto.FormatAddress(token.Owner),
		},
	}
}

func issueRejectedEvent(requestID string, reason string) *types.Event {
	return &types.Event{
		Type: EventTypeIssueRejected,
		Attributes: map[string]string{
			"requestId": requestID,
			"reason":    reason,
		},
	}
}

func rolesSetEvent(tokenID string, addr [20]byte, roles RoleSet) *types.Event {
	attrs := map[string]string{
		"tokenId": tokenID,
		"address": crypto.FormatAddress(addr),
		"count":   strconv.Itoa(len(roles)),
	}
	for i, role := range roles {
		attrs["role"+strconv.Itoa(i)] = string(role)
	}
	return &types.Event{Type: EventTypeRolesSet, Attributes: attrs}
}

func batchCreatedEvent(batch *Batch) *types.Event {
	return &types.Event{
		Type: EventTypeBatchCreated,
		Attributes: map[string]string{
			"tokenId": batch.TokenID,
			"nonce":   strconv.FormatUint(batch.Nonce, 10),
			"supply":  batch.Supply.String(),
			"creator": crypto.FormatAddress(batch.Creator),
		},
	}
}
