package event

import (
	"context"
	"fmt"
	"time"

	"github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultLargeTransferThreshold is the amount above which a posted transfer
// opens a WARN incident.
const DefaultLargeTransferThreshold int64 = 1_000_000

const defaultFraudDedupTTL = 24 * time.Hour

// FraudMonitor consumes TransferPosted events and opens a WARN incident for
// transfers at or above the configured threshold. Event ids are deduplicated
// through the idempotency store because outbox delivery is at-least-once.
type FraudMonitor struct {
	store       ledger.Store
	idempotency shared.IdempotencyStore
	threshold   int64
	dedupTTL    time.Duration
	logger      *zap.Logger
}

// NewFraudMonitor creates a fraud monitor with the given threshold.
// A threshold of zero or less falls back to the default.
func NewFraudMonitor(store ledger.Store, idempotency shared.IdempotencyStore, threshold int64, logger *zap.Logger) *FraudMonitor {
	if threshold <= 0 {
		threshold = DefaultLargeTransferThreshold
	}
	return &FraudMonitor{
		store:       store,
		idempotency: idempotency,
		threshold:   threshold,
		dedupTTL:    defaultFraudDedupTTL,
		logger:      logger,
	}
}

// WithDedupTTL overrides how long processed event ids are remembered
func (m *FraudMonitor) WithDedupTTL(ttl time.Duration) *FraudMonitor {
	if ttl > 0 {
		m.dedupTTL = ttl
	}
	return m
}

// EventTypes returns the event types this handler consumes
func (m *FraudMonitor) EventTypes() []string {
	return []string{ledger.EventTypeTransferPosted}
}

// Handle inspects a posted transfer and records an incident when it crosses
// the threshold
func (m *FraudMonitor) Handle(ctx context.Context, event shared.DomainEvent) error {
	posted, ok := event.(*ledger.TransferPostedEvent)
	if !ok {
		return nil
	}
	if posted.AmountUnits < m.threshold {
		return nil
	}

	fresh, err := m.idempotency.MarkProcessed(ctx, "fraud:"+event.EventID().String(), m.dedupTTL)
	if err != nil {
		return fmt.Errorf("fraud dedup check: %w", err)
	}
	if !fresh {
		m.logger.Debug("transfer already screened",
			zap.String("event_id", event.EventID().String()),
		)
		return nil
	}

	incident := ledger.NewIncident(posted.ZoneID, ledger.SeverityWarn,
		fmt.Sprintf("large transfer of %d units", posted.AmountUnits),
		map[string]any{
			"rule":         "large_transfer",
			"request_id":   posted.RequestID,
			"from_account": posted.FromAccount,
			"to_account":   posted.ToAccount,
			"amount_units": posted.AmountUnits,
			"threshold":    m.threshold,
		})
	incident.RelatedTxnID = &posted.TransactionID

	if err := m.store.AppendIncident(ctx, incident); err != nil {
		return fmt.Errorf("record fraud incident: %w", err)
	}
	m.logger.Warn("large transfer flagged",
		zap.String("transaction_id", posted.TransactionID.String()),
		zap.String("zone_id", posted.ZoneID),
		zap.Int64("amount_units", posted.AmountUnits),
	)
	return nil
}

// Ensure FraudMonitor implements EventHandler
var _ shared.EventHandler = (*FraudMonitor)(nil)
