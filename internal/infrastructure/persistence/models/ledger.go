package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/ledger"
)

// ZoneModel is the persistence model for zones
type ZoneModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Status    string    `gorm:"type:varchar(16);not null;default:OK"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ZoneModel) TableName() string { return "zones" }

// ToDomain converts the persistence model to a domain Zone
func (m *ZoneModel) ToDomain() *ledger.Zone {
	return &ledger.Zone{
		ID:        m.ID,
		Name:      m.Name,
		Status:    ledger.ZoneStatus(m.Status),
		UpdatedAt: m.UpdatedAt,
	}
}

// ZoneControlsModel is the persistence model for per-zone operator controls
type ZoneControlsModel struct {
	ZoneID            string    `gorm:"type:varchar(64);primaryKey"`
	WritesBlocked     bool      `gorm:"not null;default:false"`
	CrossZoneThrottle int       `gorm:"not null;default:100"`
	SpoolEnabled      bool      `gorm:"not null;default:true"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ZoneControlsModel) TableName() string { return "zone_controls" }

// ToDomain converts the persistence model to domain ZoneControls
func (m *ZoneControlsModel) ToDomain() *ledger.ZoneControls {
	return &ledger.ZoneControls{
		ZoneID:            m.ZoneID,
		WritesBlocked:     m.WritesBlocked,
		CrossZoneThrottle: m.CrossZoneThrottle,
		SpoolEnabled:      m.SpoolEnabled,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ZoneControlsModelFromDomain creates a persistence model from domain ZoneControls
func ZoneControlsModelFromDomain(c *ledger.ZoneControls) *ZoneControlsModel {
	return &ZoneControlsModel{
		ZoneID:            c.ZoneID,
		WritesBlocked:     c.WritesBlocked,
		CrossZoneThrottle: c.CrossZoneThrottle,
		SpoolEnabled:      c.SpoolEnabled,
		UpdatedAt:         c.UpdatedAt,
	}
}

// AccountModel is the persistence model for accounts
type AccountModel struct {
	ID        string    `gorm:"type:varchar(128);primaryKey"`
	ZoneID    string    `gorm:"type:varchar(64);not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string { return "accounts" }

// BalanceModel is the persistence model for the balance projection
type BalanceModel struct {
	AccountID    string    `gorm:"type:varchar(128);primaryKey"`
	BalanceUnits int64     `gorm:"not null;default:0"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BalanceModel) TableName() string { return "balances" }

// ToDomain converts the persistence model to a domain Balance
func (m *BalanceModel) ToDomain() *ledger.Balance {
	return &ledger.Balance{
		AccountID:    m.AccountID,
		BalanceUnits: m.BalanceUnits,
		UpdatedAt:    m.UpdatedAt,
	}
}

// TransferModel is the persistence model for posted transfers (transactions).
// RequestID carries a unique index so a racing duplicate insert surfaces as a
// duplicated-key error instead of a double post.
type TransferModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequestID   string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	Fingerprint string    `gorm:"type:varchar(64);not null"`
	FromAccount string    `gorm:"type:varchar(128);not null;index"`
	ToAccount   string    `gorm:"type:varchar(128);not null;index"`
	AmountUnits int64     `gorm:"not null"`
	ZoneID      string    `gorm:"type:varchar(64);not null;index"`
	Metadata    []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (TransferModel) TableName() string { return "transactions" }

// ToDomain converts the persistence model to a domain Transfer
func (m *TransferModel) ToDomain() *ledger.Transfer {
	var meta map[string]any
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return &ledger.Transfer{
		ID:          m.ID,
		RequestID:   m.RequestID,
		Fingerprint: m.Fingerprint,
		FromAccount: m.FromAccount,
		ToAccount:   m.ToAccount,
		AmountUnits: m.AmountUnits,
		ZoneID:      m.ZoneID,
		Metadata:    meta,
		CreatedAt:   m.CreatedAt,
	}
}

// TransferModelFromDomain creates a persistence model from a domain Transfer
func TransferModelFromDomain(t *ledger.Transfer) *TransferModel {
	meta, _ := json.Marshal(t.Metadata)
	return &TransferModel{
		ID:          t.ID,
		RequestID:   t.RequestID,
		Fingerprint: t.Fingerprint,
		FromAccount: t.FromAccount,
		ToAccount:   t.ToAccount,
		AmountUnits: t.AmountUnits,
		ZoneID:      t.ZoneID,
		Metadata:    meta,
		CreatedAt:   t.CreatedAt,
	}
}

// PostingModel is the persistence model for one leg of a transfer
type PostingModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	TransferID  uuid.UUID `gorm:"type:uuid;not null;index;column:txn_id"`
	AccountID   string    `gorm:"type:varchar(128);not null;index"`
	Direction   string    `gorm:"type:varchar(8);not null"`
	AmountUnits int64     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PostingModel) TableName() string { return "postings" }

// ToDomain converts the persistence model to a domain Posting
func (m *PostingModel) ToDomain() ledger.Posting {
	return ledger.Posting{
		TransferID:  m.TransferID,
		AccountID:   m.AccountID,
		Direction:   ledger.PostingDirection(m.Direction),
		AmountUnits: m.AmountUnits,
	}
}

// SpooledTransferModel is the persistence model for parked transfers
type SpooledTransferModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RequestID   string     `gorm:"type:varchar(128);not null;uniqueIndex"`
	Fingerprint string     `gorm:"type:varchar(64);not null"`
	FromAccount string     `gorm:"type:varchar(128);not null"`
	ToAccount   string     `gorm:"type:varchar(128);not null"`
	AmountUnits int64      `gorm:"not null"`
	ZoneID      string     `gorm:"type:varchar(64);not null;index"`
	Metadata    []byte     `gorm:"type:jsonb"`
	Status      string     `gorm:"type:varchar(16);not null;default:PENDING;index"`
	FailReason  string     `gorm:"type:text"`
	CreatedAt   time.Time  `gorm:"not null;index"`
	UpdatedAt   time.Time  `gorm:"not null"`
	AppliedAt   *time.Time
}

// TableName returns the table name for GORM
func (SpooledTransferModel) TableName() string { return "spooled_transfers" }

// ToDomain converts the persistence model to a domain SpooledTransfer
func (m *SpooledTransferModel) ToDomain() *ledger.SpooledTransfer {
	var meta map[string]any
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return &ledger.SpooledTransfer{
		ID:          m.ID,
		RequestID:   m.RequestID,
		Fingerprint: m.Fingerprint,
		FromAccount: m.FromAccount,
		ToAccount:   m.ToAccount,
		AmountUnits: m.AmountUnits,
		ZoneID:      m.ZoneID,
		Metadata:    meta,
		Status:      ledger.SpoolStatus(m.Status),
		FailReason:  m.FailReason,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		AppliedAt:   m.AppliedAt,
	}
}

// SpooledTransferModelFromDomain creates a persistence model from a domain SpooledTransfer
func SpooledTransferModelFromDomain(s *ledger.SpooledTransfer) *SpooledTransferModel {
	meta, _ := json.Marshal(s.Metadata)
	return &SpooledTransferModel{
		ID:          s.ID,
		RequestID:   s.RequestID,
		Fingerprint: s.Fingerprint,
		FromAccount: s.FromAccount,
		ToAccount:   s.ToAccount,
		AmountUnits: s.AmountUnits,
		ZoneID:      s.ZoneID,
		Metadata:    meta,
		Status:      string(s.Status),
		FailReason:  s.FailReason,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		AppliedAt:   s.AppliedAt,
	}
}

// IncidentModel is the persistence model for incidents
type IncidentModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ZoneID       string     `gorm:"type:varchar(64);not null;index"`
	RelatedTxnID *uuid.UUID `gorm:"type:uuid"`
	Severity     string     `gorm:"type:varchar(16);not null"`
	Status       string     `gorm:"type:varchar(16);not null;default:OPEN"`
	Title        string     `gorm:"type:varchar(255);not null"`
	Details      []byte     `gorm:"type:jsonb"`
	DetectedAt   time.Time  `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (IncidentModel) TableName() string { return "incidents" }

// ToDomain converts the persistence model to a domain Incident
func (m *IncidentModel) ToDomain() *ledger.Incident {
	var details map[string]any
	if len(m.Details) > 0 {
		_ = json.Unmarshal(m.Details, &details)
	}
	return &ledger.Incident{
		ID:           m.ID,
		ZoneID:       m.ZoneID,
		RelatedTxnID: m.RelatedTxnID,
		Severity:     ledger.IncidentSeverity(m.Severity),
		Status:       ledger.IncidentStatus(m.Status),
		Title:        m.Title,
		Details:      details,
		DetectedAt:   m.DetectedAt,
	}
}

// IncidentModelFromDomain creates a persistence model from a domain Incident
func IncidentModelFromDomain(i *ledger.Incident) *IncidentModel {
	details, _ := json.Marshal(i.Details)
	return &IncidentModel{
		ID:           i.ID,
		ZoneID:       i.ZoneID,
		RelatedTxnID: i.RelatedTxnID,
		Severity:     string(i.Severity),
		Status:       string(i.Status),
		Title:        i.Title,
		Details:      details,
		DetectedAt:   i.DetectedAt,
	}
}

// AuditLogModel is the persistence model for the append-only audit log
type AuditLogModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Actor      string    `gorm:"type:varchar(128);not null"`
	Action     string    `gorm:"type:varchar(64);not null"`
	TargetType string    `gorm:"type:varchar(32);not null;index:idx_audit_target,priority:1"`
	TargetID   string    `gorm:"type:varchar(128);not null;index:idx_audit_target,priority:2"`
	Reason     string    `gorm:"type:text"`
	Details    []byte    `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string { return "audit_log" }

// ToDomain converts the persistence model to a domain AuditEntry
func (m *AuditLogModel) ToDomain() *ledger.AuditEntry {
	var details map[string]any
	if len(m.Details) > 0 {
		_ = json.Unmarshal(m.Details, &details)
	}
	return &ledger.AuditEntry{
		ID:         m.ID,
		Actor:      m.Actor,
		Action:     m.Action,
		TargetType: m.TargetType,
		TargetID:   m.TargetID,
		Reason:     m.Reason,
		Details:    details,
		CreatedAt:  m.CreatedAt,
	}
}

// AuditLogModelFromDomain creates a persistence model from a domain AuditEntry
func AuditLogModelFromDomain(e *ledger.AuditEntry) *AuditLogModel {
	details, _ := json.Marshal(e.Details)
	return &AuditLogModel{
		ID:         e.ID,
		Actor:      e.Actor,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Reason:     e.Reason,
		Details:    details,
		CreatedAt:  e.CreatedAt,
	}
}
