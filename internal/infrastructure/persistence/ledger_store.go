package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/domain/shared"
	"github.com/zoneledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerStore implements ledger.Store using GORM. Atomically rebinds the
// store to a transaction handle, so every method works the same whether it is
// called inside or outside an atomic unit.
type GormLedgerStore struct {
	db *gorm.DB
}

// NewGormLedgerStore creates a new GormLedgerStore
func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

// Atomically runs fn with a store bound to a single database transaction
func (s *GormLedgerStore) Atomically(ctx context.Context, fn func(ledger.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormLedgerStore{db: tx})
	})
}

// GetZone finds a zone by ID
func (s *GormLedgerStore) GetZone(ctx context.Context, zoneID string) (*ledger.Zone, error) {
	var model models.ZoneModel
	if err := s.db.WithContext(ctx).Where("id = ?", zoneID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListZones lists all zones ordered by ID
func (s *GormLedgerStore) ListZones(ctx context.Context) ([]ledger.Zone, error) {
	var zoneModels []models.ZoneModel
	if err := s.db.WithContext(ctx).Order("id").Find(&zoneModels).Error; err != nil {
		return nil, err
	}
	zones := make([]ledger.Zone, len(zoneModels))
	for i, model := range zoneModels {
		zones[i] = *model.ToDomain()
	}
	return zones, nil
}

// UpdateZoneStatus sets a zone's status and returns the updated row
func (s *GormLedgerStore) UpdateZoneStatus(ctx context.Context, zoneID string, status ledger.ZoneStatus) (*ledger.Zone, error) {
	res := s.db.WithContext(ctx).Model(&models.ZoneModel{}).
		Where("id = ?", zoneID).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, shared.ErrNotFound
	}
	return s.GetZone(ctx, zoneID)
}

// GetZoneControls reads a zone's controls, creating the default row if absent
func (s *GormLedgerStore) GetZoneControls(ctx context.Context, zoneID string) (*ledger.ZoneControls, error) {
	defaults := models.ZoneControlsModelFromDomain(ledger.DefaultZoneControls(zoneID))
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(defaults).Error; err != nil {
		return nil, err
	}
	var model models.ZoneControlsModel
	if err := s.db.WithContext(ctx).Where("zone_id = ?", zoneID).First(&model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpdateZoneControls upserts a zone's operator controls
func (s *GormLedgerStore) UpdateZoneControls(ctx context.Context, controls *ledger.ZoneControls) (*ledger.ZoneControls, error) {
	model := models.ZoneControlsModelFromDomain(controls)
	model.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "zone_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"writes_blocked", "cross_zone_throttle", "spool_enabled", "updated_at"}),
		}).
		Create(model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpsertAccount creates an account if absent; an existing row is untouched
func (s *GormLedgerStore) UpsertAccount(ctx context.Context, accountID, zoneID string) error {
	model := &models.AccountModel{ID: accountID, ZoneID: zoneID, CreatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
}

// AdjustBalance applies a relative delta to an account's balance, initializing
// the row at the delta when none exists. The increment is expressed inside the
// upsert so concurrent adjustments compose under the database's concurrency
// control.
func (s *GormLedgerStore) AdjustBalance(ctx context.Context, accountID string, delta int64) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance_units": gorm.Expr("balances.balance_units + ?", delta),
				"updated_at":    now,
			}),
		}).
		Create(&models.BalanceModel{AccountID: accountID, BalanceUnits: delta, UpdatedAt: now}).Error
}

// GetBalance reads one account's balance projection
func (s *GormLedgerStore) GetBalance(ctx context.Context, accountID string) (*ledger.Balance, error) {
	var model models.BalanceModel
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListBalances lists balances ordered by most recent movement
func (s *GormLedgerStore) ListBalances(ctx context.Context, limit int) ([]ledger.Balance, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var balanceModels []models.BalanceModel
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&balanceModels).Error; err != nil {
		return nil, err
	}
	balances := make([]ledger.Balance, len(balanceModels))
	for i, model := range balanceModels {
		balances[i] = *model.ToDomain()
	}
	return balances, nil
}

// FindTransferByRequestID looks up a posted transfer by its idempotency key
func (s *GormLedgerStore) FindTransferByRequestID(ctx context.Context, requestID string) (*ledger.Transfer, error) {
	var model models.TransferModel
	if err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// InsertTransferWithPostings appends the immutable ledger fact: the transfer
// row plus its DEBIT and CREDIT postings. A duplicate request id surfaces as
// an idempotency conflict for the engine to resolve.
func (s *GormLedgerStore) InsertTransferWithPostings(ctx context.Context, t *ledger.Transfer) error {
	model := models.TransferModelFromDomain(t)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrIdempotencyConflict
		}
		return err
	}
	postingModels := make([]models.PostingModel, len(t.Postings))
	for i, p := range t.Postings {
		postingModels[i] = models.PostingModel{
			TransferID:  p.TransferID,
			AccountID:   p.AccountID,
			Direction:   string(p.Direction),
			AmountUnits: p.AmountUnits,
		}
	}
	return s.db.WithContext(ctx).Create(&postingModels).Error
}

// GetTransfer loads a transfer and its postings
func (s *GormLedgerStore) GetTransfer(ctx context.Context, id uuid.UUID) (*ledger.Transfer, error) {
	var model models.TransferModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	transfer := model.ToDomain()

	var postingModels []models.PostingModel
	if err := s.db.WithContext(ctx).
		Where("txn_id = ?", id).
		Order("direction ASC").
		Find(&postingModels).Error; err != nil {
		return nil, err
	}
	transfer.Postings = make([]ledger.Posting, len(postingModels))
	for i, p := range postingModels {
		transfer.Postings[i] = p.ToDomain()
	}
	return transfer, nil
}

// ListTransfers lists recent transfers, newest first
func (s *GormLedgerStore) ListTransfers(ctx context.Context, limit int) ([]ledger.Transfer, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var transferModels []models.TransferModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&transferModels).Error; err != nil {
		return nil, err
	}
	transfers := make([]ledger.Transfer, len(transferModels))
	for i, model := range transferModels {
		transfers[i] = *model.ToDomain()
	}
	return transfers, nil
}

// FindSpooledByRequestID looks up a parked transfer by its idempotency key
func (s *GormLedgerStore) FindSpooledByRequestID(ctx context.Context, requestID string) (*ledger.SpooledTransfer, error) {
	var model models.SpooledTransferModel
	if err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// InsertSpooledTransfer parks a blocked transfer
func (s *GormLedgerStore) InsertSpooledTransfer(ctx context.Context, spooled *ledger.SpooledTransfer) error {
	if err := s.db.WithContext(ctx).Create(models.SpooledTransferModelFromDomain(spooled)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// ListPendingSpooled lists a zone's pending spooled transfers, oldest first
func (s *GormLedgerStore) ListPendingSpooled(ctx context.Context, zoneID string, limit int) ([]ledger.SpooledTransfer, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var spoolModels []models.SpooledTransferModel
	if err := s.db.WithContext(ctx).
		Where("zone_id = ? AND status = ?", zoneID, string(ledger.SpoolStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&spoolModels).Error; err != nil {
		return nil, err
	}
	spooled := make([]ledger.SpooledTransfer, len(spoolModels))
	for i, model := range spoolModels {
		spooled[i] = *model.ToDomain()
	}
	return spooled, nil
}

// MarkSpooledApplied marks a spooled transfer as applied
func (s *GormLedgerStore) MarkSpooledApplied(ctx context.Context, id uuid.UUID, appliedAt time.Time) error {
	return s.db.WithContext(ctx).Model(&models.SpooledTransferModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(ledger.SpoolStatusApplied),
			"applied_at": appliedAt,
			"updated_at": time.Now(),
		}).Error
}

// MarkSpooledFailed marks a spooled transfer as failed with a reason
func (s *GormLedgerStore) MarkSpooledFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.db.WithContext(ctx).Model(&models.SpooledTransferModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      string(ledger.SpoolStatusFailed),
			"fail_reason": reason,
			"updated_at":  time.Now(),
		}).Error
}

// GetSpoolStats summarizes a zone's spool backlog
func (s *GormLedgerStore) GetSpoolStats(ctx context.Context, zoneID string) (*ledger.SpoolStats, error) {
	stats := &ledger.SpoolStats{ZoneID: zoneID}
	rows := []struct {
		Status string
		Count  int64
	}{}
	if err := s.db.WithContext(ctx).Model(&models.SpooledTransferModel{}).
		Select("status, COUNT(*) as count").
		Where("zone_id = ?", zoneID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		switch ledger.SpoolStatus(row.Status) {
		case ledger.SpoolStatusPending:
			stats.Pending = row.Count
		case ledger.SpoolStatusApplied:
			stats.Applied = row.Count
		case ledger.SpoolStatusFailed:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}

// AppendOutboxEvent appends an outbox entry in the current transaction
func (s *GormLedgerStore) AppendOutboxEvent(ctx context.Context, entry *shared.OutboxEntry) error {
	return s.db.WithContext(ctx).Create(models.OutboxEntryModelFromDomain(entry)).Error
}

// AppendAuditEntry appends an audit log row in the current transaction
func (s *GormLedgerStore) AppendAuditEntry(ctx context.Context, entry *ledger.AuditEntry) error {
	return s.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error
}

// ListAuditByZone reads the audit tail for a zone, newest first
func (s *GormLedgerStore) ListAuditByZone(ctx context.Context, zoneID string, limit int) ([]ledger.AuditEntry, error) {
	if limit <= 0 || limit > 2000 {
		limit = 200
	}
	var auditModels []models.AuditLogModel
	if err := s.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", "zone", zoneID).
		Order("created_at DESC").
		Limit(limit).
		Find(&auditModels).Error; err != nil {
		return nil, err
	}
	entries := make([]ledger.AuditEntry, len(auditModels))
	for i, model := range auditModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// AppendIncident records a new incident in the current transaction
func (s *GormLedgerStore) AppendIncident(ctx context.Context, incident *ledger.Incident) error {
	return s.db.WithContext(ctx).Create(models.IncidentModelFromDomain(incident)).Error
}

// UpdateIncident persists incident workflow changes (status, details)
func (s *GormLedgerStore) UpdateIncident(ctx context.Context, incident *ledger.Incident) error {
	model := models.IncidentModelFromDomain(incident)
	res := s.db.WithContext(ctx).Model(&models.IncidentModel{}).
		Where("id = ?", incident.ID).
		Updates(map[string]any{"status": model.Status, "details": model.Details})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetIncident finds an incident by ID
func (s *GormLedgerStore) GetIncident(ctx context.Context, id uuid.UUID) (*ledger.Incident, error) {
	var model models.IncidentModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListRecentIncidents lists incidents across all zones, newest first
func (s *GormLedgerStore) ListRecentIncidents(ctx context.Context, limit int) ([]ledger.Incident, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	var incidentModels []models.IncidentModel
	if err := s.db.WithContext(ctx).Order("detected_at DESC").Limit(limit).Find(&incidentModels).Error; err != nil {
		return nil, err
	}
	incidents := make([]ledger.Incident, len(incidentModels))
	for i, model := range incidentModels {
		incidents[i] = *model.ToDomain()
	}
	return incidents, nil
}

// ListIncidentsByZone lists one zone's incidents, newest first
func (s *GormLedgerStore) ListIncidentsByZone(ctx context.Context, zoneID string, limit int) ([]ledger.Incident, error) {
	if limit <= 0 || limit > 2000 {
		limit = 200
	}
	var incidentModels []models.IncidentModel
	if err := s.db.WithContext(ctx).
		Where("zone_id = ?", zoneID).
		Order("detected_at DESC").
		Limit(limit).
		Find(&incidentModels).Error; err != nil {
		return nil, err
	}
	incidents := make([]ledger.Incident, len(incidentModels))
	for i, model := range incidentModels {
		incidents[i] = *model.ToDomain()
	}
	return incidents, nil
}

// Ensure GormLedgerStore implements ledger.Store
var _ ledger.Store = (*GormLedgerStore)(nil)
