package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/domain/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupLedgerTestDB creates an in-memory SQLite database with the ledger schema
func setupLedgerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE zones (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OK',
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE zone_controls (
			zone_id TEXT PRIMARY KEY,
			writes_blocked INTEGER NOT NULL DEFAULT 0,
			cross_zone_throttle INTEGER NOT NULL DEFAULT 100,
			spool_enabled INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE accounts (
			id TEXT PRIMARY KEY,
			zone_id TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE balances (
			account_id TEXT PRIMARY KEY,
			balance_units INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			fingerprint TEXT NOT NULL,
			from_account TEXT NOT NULL,
			to_account TEXT NOT NULL,
			amount_units INTEGER NOT NULL,
			zone_id TEXT NOT NULL,
			metadata BLOB,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE postings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			txn_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			amount_units INTEGER NOT NULL
		)`,
		`CREATE TABLE spooled_transfers (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			fingerprint TEXT NOT NULL,
			from_account TEXT NOT NULL,
			to_account TEXT NOT NULL,
			amount_units INTEGER NOT NULL,
			zone_id TEXT NOT NULL,
			metadata BLOB,
			status TEXT NOT NULL DEFAULT 'PENDING',
			fail_reason TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			applied_at DATETIME
		)`,
		`CREATE TABLE incidents (
			id TEXT PRIMARY KEY,
			zone_id TEXT NOT NULL,
			related_txn_id TEXT,
			severity TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			title TEXT NOT NULL,
			details BLOB,
			detected_at DATETIME NOT NULL
		)`,
		`CREATE TABLE audit_log (
			id TEXT PRIMARY KEY,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			reason TEXT,
			details BLOB,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			aggregate_id TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload BLOB NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 5,
			next_retry_at DATETIME,
			processed_at DATETIME,
			last_error TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedZone(t *testing.T, db *gorm.DB, id, status string) {
	require.NoError(t, db.Exec(
		"INSERT INTO zones (id, name, status, updated_at) VALUES (?, ?, ?, ?)",
		id, "Zone "+id, status, time.Now(),
	).Error)
}

func newTransfer(t *testing.T, requestID string) *ledger.Transfer {
	req := ledger.TransferRequest{
		RequestID:   requestID,
		FromAccount: "acct-a",
		ToAccount:   "acct-b",
		AmountUnits: 250,
		ZoneID:      "z1",
	}
	return ledger.NewTransfer(req, "fp-"+requestID)
}

func TestGormLedgerStore_Zones(t *testing.T) {
	db := setupLedgerTestDB(t)
	store := NewGormLedgerStore(db)
	ctx := context.Background()

	seedZone(t, db, "z1", "OK")
	seedZone(t, db, "z2", "DEGRADED")

	t.Run("get existing zone", func(t *testing.T) {
		zone, err := store.GetZone(ctx, "z1")
		require.NoError(t, err)
		assert.Equal(t, "z1", zone.ID)
		assert.Equal(t, ledger.ZoneStatusOK, zone.Status)
	})

	t.Run("get missing zone", func(t *testing.T) {
		_, err := store.GetZone(ctx, "nope")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("list zones ordered", func(t *testing.T) {
		zones, err := store.ListZones(ctx)
		require.NoError(t, err)
		require.Len(t, zones, 2)
		assert.Equal(t, "z1", zones[0].ID)
		assert.Equal(t, "z2", zones[1].ID)
	})

	t.Run("update status", func(t *testing.T) {
		zone, err := store.UpdateZoneStatus(ctx, "z1", ledger.ZoneStatusDown)
		require.NoError(t, err)
		assert.Equal(t, ledger.ZoneStatusDown, zone.Status)
	})

	t.Run("update status of missing zone", func(t *testing.T) {
		_, err := store.UpdateZoneStatus(ctx, "nope", ledger.ZoneStatusOK)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormLedgerStore_ZoneControls(t *testing.T) {
	db := setupLedgerTestDB(t)
	store := NewGormLedgerStore(db)
	ctx := context.Background()
	seedZone(t, db, "z1", "OK")

	t.Run("defaults created on first read", func(t *testing.T) {
		controls, err := store.GetZoneControls(ctx, "z1")
		require.NoError(t, err)
		assert.False(t, controls.WritesBlocked)
		assert.Equal(t, 100, controls.CrossZoneThrottle)
		assert.False(t, controls.SpoolEnabled, "spooling is opt-in")
	})

	t.Run("update and read back", func(t *testing.T) {
		updated, err := store.UpdateZoneControls(ctx, &ledger.ZoneControls{
			ZoneID:            "z1",
			WritesBlocked:     true,
			CrossZoneThrottle: 25,
			SpoolEnabled:      true,
		})
		require.NoError(t, err)
		assert.True(t, updated.WritesBlocked)

		controls, err := store.GetZoneControls(ctx, "z1")
		require.NoError(t, err)
		assert.True(t, controls.WritesBlocked)
		assert.Equal(t, 25, controls.CrossZoneThrottle)
		assert.True(t, controls.SpoolEnabled)
	})
}

func TestGormLedgerStore_Balances(t *testing.T) {
	db := setupLedgerTestDB(t)
	store := NewGormLedgerStore(db)
	ctx := context.Background()

	t.Run("upsert account is idempotent", func(t *testing.T) {
		require.NoError(t, store.UpsertAccount(ctx, "acct-a", "z1"))
		require.NoError(t, store.UpsertAccount(ctx, "acct-a", "z1"))
	})

	t.Run("adjust creates then increments", func(t *testing.T) {
		require.NoError(t, store.AdjustBalance(ctx, "acct-a", 100))
		require.NoError(t, store.AdjustBalance(ctx, "acct-a", -40))

		balance, err := store.GetBalance(ctx, "acct-a")
		require.NoError(t, err)
		assert.Equal(t, int64(60), balance.BalanceUnits)
	})

	t.Run("missing balance", func(t *testing.T) {
		_, err := store.GetBalance(ctx, "acct-none")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("list balances", func(t *testing.T) {
		require.NoError(t, store.AdjustBalance(ctx, "acct-b", 40))
		balances, err := store.ListBalances(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, balances, 2)
	})
}

func TestGormLedgerStore_Transfers(t *testing.T) {
	db := setupLedgerTestDB(t)
	store := NewGormLedgerStore(db)
	ctx := context.Background()

	transfer := newTransfer(t, "req-1")
	require.NoError(t, store.InsertTransferWithPostings(ctx, transfer))

	t.Run("duplicate request id conflicts", func(t *testing.T) {
		dup := newTransfer(t, "req-1")
		err := store.InsertTransferWithPostings(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	})

	t.Run("find by request id", func(t *testing.T) {
		found, err := store.FindTransferByRequestID(ctx, "req-1")
		require.NoError(t, err)
		assert.Equal(t, transfer.ID, found.ID)
		assert.Equal(t, "fp-req-1", found.Fingerprint)
	})

	t.Run("get loads both postings", func(t *testing.T) {
		found, err := store.GetTransfer(ctx, transfer.ID)
		require.NoError(t, err)
		require.Len(t, found.Postings, 2)

		var net int64
		for _, p := range found.Postings {
			switch p.Direction {
			case ledger.PostingDebit:
				net -= p.AmountUnits
			case ledger.PostingCredit:
				net += p.AmountUnits
			}
		}
		assert.Zero(t, net)
	})

	t.Run("list newest first", func(t *testing.T) {
		second := newTransfer(t, "req-2")
		second.CreatedAt = time.Now().Add(time.Second)
		require.NoError(t, store.InsertTransferWithPostings(ctx, second))

		transfers, err := store.ListTransfers(ctx, 10)
		require.NoError(t, err)
		require.Len(t, transfers, 2)
		assert.Equal(t, "req-2", transfers[0].RequestID)
	})
}

func TestGormLedgerStore_Spool(t *testing.T) {
	db := setupLedgerTestDB(t)
	store := NewGormLedgerStore(db)
	ctx := context.Background()

	req := ledger.TransferRequest{
		RequestID:   "req-s1",
		FromAccount: "acct-a",
		ToAccount:   "acct-b",
		AmountUnits: 90,
		ZoneID:      "z1",
	}
	spooled := ledger.NewSpooledTransfer(req, "fp-s1", "writes blocked")
	require.NoError(t, store.InsertSpooledTransfer(ctx, spooled))

	t.Run("duplicate request id conflicts", func(t *testing.T) {
		err := store.InsertSpooledTransfer(ctx, ledger.NewSpooledTransfer(req, "fp-s1", "writes blocked"))
		assert.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	})

	t.Run("find by request id", func(t *testing.T) {
		found, err := store.FindSpooledByRequestID(ctx, "req-s1")
		require.NoError(t, err)
		assert.Equal(t, ledger.SpoolStatusPending, found.Status)
	})

	t.Run("pending listing and applied transition", func(t *testing.T) {
		pending, err := store.ListPendingSpooled(ctx, "z1", 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		require.NoError(t, store.MarkSpooledApplied(ctx, spooled.ID, time.Now()))

		pending, err = store.ListPendingSpooled(ctx, "z1", 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("failed transition and stats", func(t *testing.T) {
		req2 := req
		req2.RequestID = "req-s2"
		failed := ledger.NewSpooledTransfer(req2, "fp-s2", "writes blocked")
		require.NoError(t, store.InsertSpooledTransfer(ctx, failed))
		require.NoError(t, store.MarkSpooledFailed(ctx, failed.ID, "zone is DOWN"))

		stats, err := store.GetSpoolStats(ctx, "z1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Pending)
		assert.Equal(t, int64(1), stats.Applied)
		assert.Equal(t, int64(1), stats.Failed)
	})
}

func TestGormLedgerStore_IncidentsAndAudit(t *testing.T) {
	db := setupLedgerTestDB(t)
	store := NewGormLedgerStore(db)
	ctx := context.Background()

	incident := ledger.NewIncident("z1", ledger.SeverityCritical, "zone z1 marked DOWN", nil)
	require.NoError(t, store.AppendIncident(ctx, incident))

	t.Run("get and list incidents", func(t *testing.T) {
		found, err := store.GetIncident(ctx, incident.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.SeverityCritical, found.Severity)

		byZone, err := store.ListIncidentsByZone(ctx, "z1", 10)
		require.NoError(t, err)
		assert.Len(t, byZone, 1)

		recent, err := store.ListRecentIncidents(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, recent, 1)
	})

	t.Run("update incident workflow state", func(t *testing.T) {
		incident.Apply(ledger.IncidentAction{Action: "ACK", Actor: "oncall"})
		require.NoError(t, store.UpdateIncident(ctx, incident))

		found, err := store.GetIncident(ctx, incident.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.IncidentAcked, found.Status)
	})

	t.Run("update missing incident", func(t *testing.T) {
		ghost := ledger.NewIncident("z1", ledger.SeverityWarn, "ghost", nil)
		assert.ErrorIs(t, store.UpdateIncident(ctx, ghost), shared.ErrNotFound)
	})

	t.Run("audit entries filtered by zone", func(t *testing.T) {
		entry := ledger.NewAuditEntry("operator", ledger.AuditActionSetZoneStatus, "zone", "z1", "maintenance", map[string]any{"to": "DOWN"})
		require.NoError(t, store.AppendAuditEntry(ctx, entry))
		other := ledger.NewAuditEntry("operator", ledger.AuditActionSetZoneStatus, "zone", "z2", "maintenance", nil)
		require.NoError(t, store.AppendAuditEntry(ctx, other))

		entries, err := store.ListAuditByZone(ctx, "z1", 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "z1", entries[0].TargetID)
	})
}

func TestGormLedgerStore_Atomically(t *testing.T) {
	db := setupLedgerTestDB(t)
	store := NewGormLedgerStore(db)
	ctx := context.Background()

	t.Run("commit applies all writes", func(t *testing.T) {
		err := store.Atomically(ctx, func(tx ledger.Store) error {
			if err := tx.UpsertAccount(ctx, "acct-a", "z1"); err != nil {
				return err
			}
			return tx.AdjustBalance(ctx, "acct-a", 500)
		})
		require.NoError(t, err)

		balance, err := store.GetBalance(ctx, "acct-a")
		require.NoError(t, err)
		assert.Equal(t, int64(500), balance.BalanceUnits)
	})

	t.Run("error rolls everything back", func(t *testing.T) {
		err := store.Atomically(ctx, func(tx ledger.Store) error {
			if err := tx.AdjustBalance(ctx, "acct-rollback", 100); err != nil {
				return err
			}
			return shared.ErrInvalidState
		})
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		_, err = store.GetBalance(ctx, "acct-rollback")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
