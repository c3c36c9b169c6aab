package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/shared"
)

// Store is the transactional persistence boundary for the ledger. Every
// engine operation runs inside Atomically: the callback receives a Store bound
// to a single database transaction, and all reads and writes made through it
// either commit together or not at all. Implementations must guarantee at
// least read-committed isolation and enforce a uniqueness constraint on
// transfer request ids so a racing duplicate insert surfaces as a conflict
// instead of a double post.
//
// Nothing read through a Store may be cached across calls: the engine
// re-reads zone status, idempotency records, and balances within each atomic
// unit.
type Store interface {
	// Atomically runs fn with a Store bound to one transaction
	Atomically(ctx context.Context, fn func(Store) error) error

	// Zones
	GetZone(ctx context.Context, zoneID string) (*Zone, error)
	ListZones(ctx context.Context) ([]Zone, error)
	UpdateZoneStatus(ctx context.Context, zoneID string, status ZoneStatus) (*Zone, error)
	GetZoneControls(ctx context.Context, zoneID string) (*ZoneControls, error)
	UpdateZoneControls(ctx context.Context, controls *ZoneControls) (*ZoneControls, error)

	// Accounts and balances
	UpsertAccount(ctx context.Context, accountID, zoneID string) error
	AdjustBalance(ctx context.Context, accountID string, delta int64) error
	GetBalance(ctx context.Context, accountID string) (*Balance, error)
	ListBalances(ctx context.Context, limit int) ([]Balance, error)

	// Transfers and postings
	FindTransferByRequestID(ctx context.Context, requestID string) (*Transfer, error)
	InsertTransferWithPostings(ctx context.Context, t *Transfer) error
	GetTransfer(ctx context.Context, id uuid.UUID) (*Transfer, error)
	ListTransfers(ctx context.Context, limit int) ([]Transfer, error)

	// Spool
	FindSpooledByRequestID(ctx context.Context, requestID string) (*SpooledTransfer, error)
	InsertSpooledTransfer(ctx context.Context, s *SpooledTransfer) error
	ListPendingSpooled(ctx context.Context, zoneID string, limit int) ([]SpooledTransfer, error)
	MarkSpooledApplied(ctx context.Context, id uuid.UUID, appliedAt time.Time) error
	MarkSpooledFailed(ctx context.Context, id uuid.UUID, reason string) error
	GetSpoolStats(ctx context.Context, zoneID string) (*SpoolStats, error)

	// Outbox, audit, incidents
	AppendOutboxEvent(ctx context.Context, entry *shared.OutboxEntry) error
	AppendAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditByZone(ctx context.Context, zoneID string, limit int) ([]AuditEntry, error)
	AppendIncident(ctx context.Context, incident *Incident) error
	UpdateIncident(ctx context.Context, incident *Incident) error
	GetIncident(ctx context.Context, id uuid.UUID) (*Incident, error)
	ListRecentIncidents(ctx context.Context, limit int) ([]Incident, error)
	ListIncidentsByZone(ctx context.Context, zoneID string, limit int) ([]Incident, error)
}
