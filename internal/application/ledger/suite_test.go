package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/infrastructure/persistence"
	"github.com/zoneledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// engineFixture wires the services against an in-memory SQLite store
type engineFixture struct {
	db        *gorm.DB
	store     *persistence.GormLedgerStore
	transfers *TransferService
	zones     *ZoneService
	incidents *IncidentService
	queries   *QueryService
}

func setupEngine(t *testing.T) *engineFixture {
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
			event_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
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

	for _, zone := range []struct{ id, status string }{
		{"z1", "OK"},
		{"z2", "DEGRADED"},
		{"z3", "DOWN"},
	} {
		require.NoError(t, db.Exec(
			"INSERT INTO zones (id, name, status, updated_at) VALUES (?, ?, ?, ?)",
			zone.id, "Zone "+zone.id, zone.status, time.Now(),
		).Error)
	}

	store := persistence.NewGormLedgerStore(db)
	metrics, err := telemetry.NewLedgerMetrics()
	require.NoError(t, err)
	logger := zap.NewNop()

	return &engineFixture{
		db:        db,
		store:     store,
		transfers: NewTransferService(store, metrics, logger),
		zones:     NewZoneService(store, metrics, logger),
		incidents: NewIncidentService(store, logger),
		queries:   NewQueryService(store),
	}
}

// enableSpooling opts the zone into parking gated transfers; the default
// controls refuse them outright.
func enableSpooling(t *testing.T, fx *engineFixture, zoneID string) {
	t.Helper()
	_, err := fx.zones.SetZoneControls(context.Background(), &ledger.ZoneControls{
		ZoneID:            zoneID,
		CrossZoneThrottle: 100,
		SpoolEnabled:      true,
	}, "operator", "enable spooling")
	require.NoError(t, err)
}

func transferReq(requestID, from, to string, amount int64, zoneID string) ledger.TransferRequest {
	return ledger.TransferRequest{
		RequestID:   requestID,
		FromAccount: from,
		ToAccount:   to,
		AmountUnits: amount,
		ZoneID:      zoneID,
	}
}
