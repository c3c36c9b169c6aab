package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the service
const (
	AuditActionSetZoneStatus   = "SET_ZONE_STATUS"
	AuditActionSetZoneControls = "SET_ZONE_CONTROLS"
	AuditActionSpoolTransfer   = "SPOOL_TRANSFER"
	AuditActionReplaySpool     = "REPLAY_SPOOL"
)

// AuditEntry is an append-only record of an administrative mutation. Entries
// are written in the same transaction as the mutation they describe.
type AuditEntry struct {
	ID         uuid.UUID
	Actor      string
	Action     string
	TargetType string
	TargetID   string
	Reason     string
	Details    map[string]any
	CreatedAt  time.Time
}

// NewAuditEntry records who did what to which target and why
func NewAuditEntry(actor, action, targetType, targetID, reason string, details map[string]any) *AuditEntry {
	return &AuditEntry{
		ID:         uuid.New(),
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     reason,
		Details:    details,
		CreatedAt:  time.Now(),
	}
}
