package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	appledger "github.com/zoneledger/backend/internal/application/ledger"
	"github.com/zoneledger/backend/internal/infrastructure/persistence"
	"github.com/zoneledger/backend/internal/infrastructure/telemetry"
	"github.com/zoneledger/backend/internal/interfaces/http/dto"
	"github.com/zoneledger/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// apiFixture runs the full HTTP surface against an in-memory SQLite store
type apiFixture struct {
	engine *gin.Engine
	db     *gorm.DB
}

// apiResponse mirrors the response envelope with the data left raw so each
// test can decode it into the shape it expects
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

var tableStatements = []string{
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

func setupAPI(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	for _, stmt := range tableStatements {
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
	log := zap.NewNop()

	transfers := appledger.NewTransferService(store, metrics, log)
	zones := appledger.NewZoneService(store, metrics, log)
	incidents := appledger.NewIncidentService(store, log)
	queries := appledger.NewQueryService(store)

	engine := gin.New()
	system := NewSystemHandler(db, "test")
	router.NewRouter(engine).
		Register(NewTransferHandler(transfers, queries)).
		Register(NewZoneHandler(zones, transfers)).
		Register(NewIncidentHandler(incidents)).
		Register(NewBalanceHandler(queries)).
		Register(system).
		Setup()
	system.RegisterHealthRoutes(engine)

	return &apiFixture{engine: engine, db: db}
}

// request performs an HTTP request with a JSON-encoded body and decodes the
// response envelope
func (f *apiFixture) request(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp),
			"response body: %s", rec.Body.String())
	}
	return rec, resp
}

func (f *apiFixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	return f.request(t, http.MethodGet, path, nil)
}

// enableSpooling opts the zone into parking gated transfers via the controls
// endpoint; the defaults refuse them outright.
func (f *apiFixture) enableSpooling(t *testing.T, zoneID string) {
	t.Helper()
	rec, _ := f.request(t, http.MethodPut, "/api/v1/zones/"+zoneID+"/controls", map[string]any{
		"writes_blocked":      false,
		"cross_zone_throttle": 100,
		"spool_enabled":       true,
		"actor":               "ops@example",
		"reason":              "enable spooling",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func transferBody(requestID, from, to string, amount int64, zoneID string) map[string]any {
	return map[string]any{
		"request_id":   requestID,
		"from_account": from,
		"to_account":   to,
		"amount_units": amount,
		"zone_id":      zoneID,
	}
}

func decodeData(t *testing.T, resp apiResponse, out any) {
	t.Helper()
	require.NotNil(t, resp.Data)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}
