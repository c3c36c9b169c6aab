package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/infrastructure/cache"
	"github.com/zoneledger/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupFraudTestStore(t *testing.T) *persistence.GormLedgerStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
		CREATE TABLE incidents (
			id TEXT PRIMARY KEY,
			zone_id TEXT NOT NULL,
			related_txn_id TEXT,
			severity TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			title TEXT NOT NULL,
			details BLOB,
			detected_at DATETIME NOT NULL
		)
	`).Error)
	return persistence.NewGormLedgerStore(db)
}

func postedEvent(amount int64) *ledger.TransferPostedEvent {
	transfer := ledger.NewTransfer(ledger.TransferRequest{
		RequestID:   "req-fraud",
		FromAccount: "acct-a",
		ToAccount:   "acct-b",
		AmountUnits: amount,
		ZoneID:      "z1",
	}, "fp-fraud")
	return ledger.NewTransferPostedEvent(transfer)
}

func TestFraudMonitor_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("transfer at threshold opens a WARN incident", func(t *testing.T) {
		store := setupFraudTestStore(t)
		dedup := cache.NewInMemoryIdempotencyStore()
		defer dedup.Close()
		monitor := NewFraudMonitor(store, dedup, 1000, zap.NewNop())

		require.NoError(t, monitor.Handle(ctx, postedEvent(1000)))

		incidents, err := store.ListIncidentsByZone(ctx, "z1", 10)
		require.NoError(t, err)
		require.Len(t, incidents, 1)
		assert.Equal(t, ledger.SeverityWarn, incidents[0].Severity)
		assert.Equal(t, "large_transfer", incidents[0].Details["rule"])
		require.NotNil(t, incidents[0].RelatedTxnID)
	})

	t.Run("transfer below threshold is ignored", func(t *testing.T) {
		store := setupFraudTestStore(t)
		dedup := cache.NewInMemoryIdempotencyStore()
		defer dedup.Close()
		monitor := NewFraudMonitor(store, dedup, 1000, zap.NewNop())

		require.NoError(t, monitor.Handle(ctx, postedEvent(999)))

		incidents, err := store.ListIncidentsByZone(ctx, "z1", 10)
		require.NoError(t, err)
		assert.Empty(t, incidents)
	})

	t.Run("redelivered event does not duplicate the incident", func(t *testing.T) {
		store := setupFraudTestStore(t)
		dedup := cache.NewInMemoryIdempotencyStore()
		defer dedup.Close()
		monitor := NewFraudMonitor(store, dedup, 1000, zap.NewNop())

		event := postedEvent(5000)
		require.NoError(t, monitor.Handle(ctx, event))
		require.NoError(t, monitor.Handle(ctx, event))

		incidents, err := store.ListIncidentsByZone(ctx, "z1", 10)
		require.NoError(t, err)
		assert.Len(t, incidents, 1)
	})

	t.Run("unrelated event types are skipped", func(t *testing.T) {
		store := setupFraudTestStore(t)
		dedup := cache.NewInMemoryIdempotencyStore()
		defer dedup.Close()
		monitor := NewFraudMonitor(store, dedup, 1000, zap.NewNop())

		zone := &ledger.Zone{ID: "z1", Status: ledger.ZoneStatusDown}
		require.NoError(t, monitor.Handle(ctx, ledger.NewZoneStatusChangedEvent(zone, "operator")))

		incidents, err := store.ListIncidentsByZone(ctx, "z1", 10)
		require.NoError(t, err)
		assert.Empty(t, incidents)
	})
}
