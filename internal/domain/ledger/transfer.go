package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/shared"
)

// PostingDirection identifies one leg of a double-entry transaction
type PostingDirection string

const (
	PostingDebit  PostingDirection = "DEBIT"
	PostingCredit PostingDirection = "CREDIT"
)

// TransferRequest is the caller-supplied input to the transfer engine.
// RequestID is the idempotency key: retrying with the same id and payload is
// always safe, retrying with the same id and a different payload is always a
// conflict.
type TransferRequest struct {
	RequestID   string         `json:"request_id"`
	FromAccount string         `json:"from_account"`
	ToAccount   string         `json:"to_account"`
	AmountUnits int64          `json:"amount_units"`
	ZoneID      string         `json:"zone_id"`
	Metadata    map[string]any `json:"metadata"`
}

// Validate rejects malformed requests before any write happens
func (r *TransferRequest) Validate() error {
	if r.RequestID == "" {
		return shared.NewDomainError("INVALID_INPUT", "request_id is required")
	}
	if r.FromAccount == "" || r.ToAccount == "" {
		return shared.NewDomainError("INVALID_INPUT", "from_account and to_account are required")
	}
	if r.ZoneID == "" {
		return shared.NewDomainError("INVALID_INPUT", "zone_id is required")
	}
	if r.AmountUnits <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "amount_units must be a positive integer")
	}
	return nil
}

// Transfer is the immutable ledger fact recorded for an admitted request.
// Fingerprint is the canonical digest of the request used for replay/conflict
// detection; for a given request id it never changes.
type Transfer struct {
	ID          uuid.UUID
	RequestID   string
	Fingerprint string
	FromAccount string
	ToAccount   string
	AmountUnits int64
	ZoneID      string
	Metadata    map[string]any
	CreatedAt   time.Time
	Postings    []Posting
}

// Posting is one leg (DEBIT or CREDIT) of a transfer. Every transfer carries
// exactly two postings of equal magnitude, so their signed sum is zero.
type Posting struct {
	TransferID  uuid.UUID
	AccountID   string
	Direction   PostingDirection
	AmountUnits int64
}

// NewTransfer builds the ledger fact and its two postings for a validated,
// fingerprinted request.
func NewTransfer(req TransferRequest, fingerprint string) *Transfer {
	id := uuid.New()
	return &Transfer{
		ID:          id,
		RequestID:   req.RequestID,
		Fingerprint: fingerprint,
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		AmountUnits: req.AmountUnits,
		ZoneID:      req.ZoneID,
		Metadata:    req.Metadata,
		CreatedAt:   time.Now(),
		Postings: []Posting{
			{TransferID: id, AccountID: req.FromAccount, Direction: PostingDebit, AmountUnits: req.AmountUnits},
			{TransferID: id, AccountID: req.ToAccount, Direction: PostingCredit, AmountUnits: req.AmountUnits},
		},
	}
}

// SpoolStatus tracks the lifecycle of a parked transfer
type SpoolStatus string

const (
	SpoolStatusPending SpoolStatus = "PENDING"
	SpoolStatusApplied SpoolStatus = "APPLIED"
	SpoolStatusFailed  SpoolStatus = "FAILED"
)

// SpooledTransfer is a transfer that was blocked by the zone gate and parked
// durably for later replay. The same request id / fingerprint idempotency
// rules apply to the spool as to the ledger itself.
type SpooledTransfer struct {
	ID          uuid.UUID
	RequestID   string
	Fingerprint string
	FromAccount string
	ToAccount   string
	AmountUnits int64
	ZoneID      string
	Metadata    map[string]any
	Status      SpoolStatus
	FailReason  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AppliedAt   *time.Time
}

// NewSpooledTransfer parks a gated request with the reason it was blocked
func NewSpooledTransfer(req TransferRequest, fingerprint, failReason string) *SpooledTransfer {
	now := time.Now()
	return &SpooledTransfer{
		ID:          uuid.New(),
		RequestID:   req.RequestID,
		Fingerprint: fingerprint,
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		AmountUnits: req.AmountUnits,
		ZoneID:      req.ZoneID,
		Metadata:    req.Metadata,
		Status:      SpoolStatusPending,
		FailReason:  failReason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Request reconstructs the original transfer request from a spooled entry
func (s *SpooledTransfer) Request() TransferRequest {
	return TransferRequest{
		RequestID:   s.RequestID,
		FromAccount: s.FromAccount,
		ToAccount:   s.ToAccount,
		AmountUnits: s.AmountUnits,
		ZoneID:      s.ZoneID,
		Metadata:    s.Metadata,
	}
}

// SpoolStats summarizes the spool backlog for a zone
type SpoolStats struct {
	ZoneID  string `json:"zone_id"`
	Pending int64  `json:"pending"`
	Applied int64  `json:"applied"`
	Failed  int64  `json:"failed"`
}
