package handler

import (
	"time"

	"github.com/zoneledger/backend/internal/application/ledger"
	domain "github.com/zoneledger/backend/internal/domain/ledger"
)

// TransferRequestBody is the wire form of a transfer submission
type TransferRequestBody struct {
	RequestID   string         `json:"request_id"`
	FromAccount string         `json:"from_account"`
	ToAccount   string         `json:"to_account"`
	AmountUnits int64          `json:"amount_units"`
	ZoneID      string         `json:"zone_id"`
	Metadata    map[string]any `json:"metadata"`
}

// PostingResponse is one leg of a posted transfer
type PostingResponse struct {
	AccountID   string `json:"account_id"`
	Direction   string `json:"direction"`
	AmountUnits int64  `json:"amount_units"`
}

// TransferResponse is the wire form of a posted transfer
type TransferResponse struct {
	ID          string            `json:"id"`
	RequestID   string            `json:"request_id"`
	FromAccount string            `json:"from_account"`
	ToAccount   string            `json:"to_account"`
	AmountUnits int64             `json:"amount_units"`
	ZoneID      string            `json:"zone_id"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Postings    []PostingResponse `json:"postings,omitempty"`
}

// TransferOutcomeResponse reports what happened to a submission
type TransferOutcomeResponse struct {
	Outcome  string            `json:"outcome"`
	Transfer *TransferResponse `json:"transfer,omitempty"`
	SpoolID  string            `json:"spool_id,omitempty"`
}

func toTransferResponse(t *domain.Transfer) *TransferResponse {
	if t == nil {
		return nil
	}
	resp := &TransferResponse{
		ID:          t.ID.String(),
		RequestID:   t.RequestID,
		FromAccount: t.FromAccount,
		ToAccount:   t.ToAccount,
		AmountUnits: t.AmountUnits,
		ZoneID:      t.ZoneID,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
	}
	for _, p := range t.Postings {
		resp.Postings = append(resp.Postings, PostingResponse{
			AccountID:   p.AccountID,
			Direction:   string(p.Direction),
			AmountUnits: p.AmountUnits,
		})
	}
	return resp
}

func toOutcomeResponse(r *ledger.TransferResult) TransferOutcomeResponse {
	resp := TransferOutcomeResponse{
		Outcome:  string(r.Outcome),
		Transfer: toTransferResponse(r.Transfer),
	}
	if r.SpoolID != nil {
		resp.SpoolID = r.SpoolID.String()
	}
	return resp
}

// ZoneResponse is the wire form of a zone
type ZoneResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toZoneResponse(z *domain.Zone) ZoneResponse {
	return ZoneResponse{
		ID:        z.ID,
		Name:      z.Name,
		Status:    string(z.Status),
		UpdatedAt: z.UpdatedAt,
	}
}

// SetZoneStatusRequest is an operator request to change a zone's status
type SetZoneStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason"`
}

// ZoneControlsRequest is an operator request to change a zone's controls
type ZoneControlsRequest struct {
	WritesBlocked     bool   `json:"writes_blocked"`
	CrossZoneThrottle int    `json:"cross_zone_throttle"`
	SpoolEnabled      bool   `json:"spool_enabled"`
	Actor             string `json:"actor" binding:"required"`
	Reason            string `json:"reason"`
}

// ZoneControlsResponse is the wire form of zone controls
type ZoneControlsResponse struct {
	ZoneID            string    `json:"zone_id"`
	WritesBlocked     bool      `json:"writes_blocked"`
	CrossZoneThrottle int       `json:"cross_zone_throttle"`
	SpoolEnabled      bool      `json:"spool_enabled"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toControlsResponse(c *domain.ZoneControls) ZoneControlsResponse {
	return ZoneControlsResponse{
		ZoneID:            c.ZoneID,
		WritesBlocked:     c.WritesBlocked,
		CrossZoneThrottle: c.CrossZoneThrottle,
		SpoolEnabled:      c.SpoolEnabled,
		UpdatedAt:         c.UpdatedAt,
	}
}

// ReplaySpoolRequest is an operator request to drain a zone's spool
type ReplaySpoolRequest struct {
	Limit  int    `json:"limit"`
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason"`
}

// IncidentResponse is the wire form of an incident
type IncidentResponse struct {
	ID           string         `json:"id"`
	ZoneID       string         `json:"zone_id"`
	RelatedTxnID string         `json:"related_txn_id,omitempty"`
	Severity     string         `json:"severity"`
	Status       string         `json:"status"`
	Title        string         `json:"title"`
	Details      map[string]any `json:"details,omitempty"`
	DetectedAt   time.Time      `json:"detected_at"`
}

func toIncidentResponse(i *domain.Incident) IncidentResponse {
	resp := IncidentResponse{
		ID:         i.ID.String(),
		ZoneID:     i.ZoneID,
		Severity:   string(i.Severity),
		Status:     string(i.Status),
		Title:      i.Title,
		Details:    i.Details,
		DetectedAt: i.DetectedAt,
	}
	if i.RelatedTxnID != nil {
		resp.RelatedTxnID = i.RelatedTxnID.String()
	}
	return resp
}

// IncidentActionRequest is an operator action on an incident
type IncidentActionRequest struct {
	Action   string `json:"action" binding:"required"`
	Assignee string `json:"assignee"`
	Note     string `json:"note"`
	Actor    string `json:"actor" binding:"required"`
	Reason   string `json:"reason"`
}

// BalanceResponse is the wire form of an account balance
type BalanceResponse struct {
	AccountID    string    `json:"account_id"`
	BalanceUnits int64     `json:"balance_units"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toBalanceResponse(b *domain.Balance) BalanceResponse {
	return BalanceResponse{
		AccountID:    b.AccountID,
		BalanceUnits: b.BalanceUnits,
		UpdatedAt:    b.UpdatedAt,
	}
}

// AuditEntryResponse is the wire form of an audit log entry
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Reason     string         `json:"reason,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func toAuditResponse(e *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID.String(),
		Actor:      e.Actor,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Reason:     e.Reason,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt,
	}
}
