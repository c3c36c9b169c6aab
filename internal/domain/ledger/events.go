package ledger

import (
	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/shared"
)

// Event types emitted by the ledger
const (
	EventTypeTransferPosted    = "TransferPosted"
	EventTypeZoneStatusChanged = "ZoneStatusChanged"
)

// Aggregate types referenced by outbox entries
const (
	AggregateTypeTransfer = "transfer"
	AggregateTypeZone     = "zone"
)

// TransferPostedEvent is emitted in the same transaction that posts a transfer
type TransferPostedEvent struct {
	shared.BaseDomainEvent
	TransactionID uuid.UUID `json:"transaction_id"`
	RequestID     string    `json:"request_id"`
	FromAccount   string    `json:"from_account"`
	ToAccount     string    `json:"to_account"`
	AmountUnits   int64     `json:"amount_units"`
	ZoneID        string    `json:"zone_id"`
}

// NewTransferPostedEvent creates the event for a posted transfer
func NewTransferPostedEvent(t *Transfer) *TransferPostedEvent {
	return &TransferPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransferPosted, AggregateTypeTransfer, t.ID.String()),
		TransactionID:   t.ID,
		RequestID:       t.RequestID,
		FromAccount:     t.FromAccount,
		ToAccount:       t.ToAccount,
		AmountUnits:     t.AmountUnits,
		ZoneID:          t.ZoneID,
	}
}

// ZoneStatusChangedEvent is emitted when an operator changes a zone's status
type ZoneStatusChangedEvent struct {
	shared.BaseDomainEvent
	ZoneID    string     `json:"zone_id"`
	NewStatus ZoneStatus `json:"new_status"`
	Actor     string     `json:"actor"`
}

// NewZoneStatusChangedEvent creates the event for a zone status transition
func NewZoneStatusChangedEvent(zone *Zone, actor string) *ZoneStatusChangedEvent {
	return &ZoneStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeZoneStatusChanged, AggregateTypeZone, zone.ID),
		ZoneID:          zone.ID,
		NewStatus:       zone.Status,
		Actor:           actor,
	}
}
