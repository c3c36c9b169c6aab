package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/domain/shared"
	"github.com/zoneledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TransferOutcome describes how a submission was settled
type TransferOutcome string

const (
	// OutcomeApplied means the transfer was posted to the ledger
	OutcomeApplied TransferOutcome = "APPLIED"
	// OutcomeReplayed means the request id was already posted with the same
	// payload and the stored transaction was returned
	OutcomeReplayed TransferOutcome = "REPLAYED"
	// OutcomeSpooled means the transfer was parked for later replay
	OutcomeSpooled TransferOutcome = "SPOOLED"
)

// TransferResult is the outcome of a transfer submission
type TransferResult struct {
	Outcome  TransferOutcome
	Transfer *ledger.Transfer
	SpoolID  *uuid.UUID
}

// ReplayResult summarizes one spool replay run
type ReplayResult struct {
	ZoneID  string `json:"zone_id"`
	Applied int    `json:"applied"`
	Failed  int    `json:"failed"`
}

// TransferService posts transfers through the zone gate. All decisions are
// made inside one atomic unit per submission: zone state, idempotency
// records, and balances are read and written in the same transaction.
type TransferService struct {
	store   ledger.Store
	metrics *telemetry.LedgerMetrics
	logger  *zap.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(store ledger.Store, metrics *telemetry.LedgerMetrics, logger *zap.Logger) *TransferService {
	return &TransferService{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// CreateTransfer runs one submission through the gate. The same request id
// with the same payload always converges on one stored transaction; the same
// request id with a different payload is a conflict.
func (s *TransferService) CreateTransfer(ctx context.Context, req ledger.TransferRequest) (*TransferResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		"request_id", req.RequestID,
		"zone_id", req.ZoneID,
		"amount_units", req.AmountUnits,
	)

	if err := req.Validate(); err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordRejected(ctx, req.ZoneID, "validation")
		return nil, err
	}
	fingerprint, err := ledger.Fingerprint(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.submit(ctx, req, fingerprint)
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		// A concurrent duplicate may have landed first. Resolve against
		// whatever is stored now: same fingerprint converges, different
		// fingerprint stays a conflict.
		result, err = s.resolveExisting(ctx, req, fingerprint)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordFailureMetric(ctx, req.ZoneID, err)
		return nil, err
	}

	switch result.Outcome {
	case OutcomeApplied:
		s.metrics.RecordPosted(ctx, req.ZoneID)
		s.logger.Info("transfer posted",
			zap.String("request_id", req.RequestID),
			zap.String("transaction_id", result.Transfer.ID.String()),
			zap.String("zone_id", req.ZoneID),
			zap.Int64("amount_units", req.AmountUnits),
		)
	case OutcomeReplayed:
		s.metrics.RecordReplayed(ctx, req.ZoneID)
		s.logger.Debug("transfer replayed",
			zap.String("request_id", req.RequestID),
			zap.String("transaction_id", result.Transfer.ID.String()),
		)
	case OutcomeSpooled:
		s.metrics.RecordSpooled(ctx, req.ZoneID)
		s.logger.Info("transfer spooled",
			zap.String("request_id", req.RequestID),
			zap.String("zone_id", req.ZoneID),
		)
	}
	return result, nil
}

// submit runs the gate, idempotency lookup, and posting inside one
// transaction
func (s *TransferService) submit(ctx context.Context, req ledger.TransferRequest, fingerprint string) (*TransferResult, error) {
	var result *TransferResult
	err := s.store.Atomically(ctx, func(tx ledger.Store) error {
		zone, err := tx.GetZone(ctx, req.ZoneID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				// a transfer referencing a zone with no row is a
				// provisioning problem, not a caller mistake
				return fmt.Errorf("zone %q not provisioned", req.ZoneID)
			}
			return err
		}
		controls, err := tx.GetZoneControls(ctx, req.ZoneID)
		if err != nil {
			return err
		}
		blockedReason := gateReason(zone.Status, controls, req.RequestID)

		// Idempotency applies to posted and spooled submissions alike,
		// and is checked before the gate verdict is acted on.
		existing, err := tx.FindTransferByRequestID(ctx, req.RequestID)
		if err == nil {
			if existing.Fingerprint != fingerprint {
				return shared.ErrIdempotencyConflict
			}
			result = &TransferResult{Outcome: OutcomeReplayed, Transfer: existing}
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		spooled, err := tx.FindSpooledByRequestID(ctx, req.RequestID)
		if err == nil {
			if spooled.Fingerprint != fingerprint {
				return shared.ErrIdempotencyConflict
			}
			result = &TransferResult{Outcome: OutcomeSpooled, SpoolID: &spooled.ID}
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		if blockedReason != "" {
			if controls.SpoolEnabled {
				parked := ledger.NewSpooledTransfer(req, fingerprint, blockedReason)
				if err := tx.InsertSpooledTransfer(ctx, parked); err != nil {
					return err
				}
				audit := ledger.NewAuditEntry("system", ledger.AuditActionSpoolTransfer,
					"zone", req.ZoneID, blockedReason, map[string]any{
						"request_id": req.RequestID,
						"spool_id":   parked.ID.String(),
					})
				if err := tx.AppendAuditEntry(ctx, audit); err != nil {
					return err
				}
				result = &TransferResult{Outcome: OutcomeSpooled, SpoolID: &parked.ID}
				return nil
			}
			return shared.NewDomainError("ZONE_UNAVAILABLE",
				fmt.Sprintf("zone %s not accepting transfers: %s", req.ZoneID, blockedReason))
		}

		transfer, err := postTransfer(ctx, tx, req, fingerprint)
		if err != nil {
			return err
		}
		result = &TransferResult{Outcome: OutcomeApplied, Transfer: transfer}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// postTransfer appends the transfer fact and its derived state: accounts,
// postings, balance deltas, and the outbox event. Callers run it inside an
// atomic unit.
func postTransfer(ctx context.Context, tx ledger.Store, req ledger.TransferRequest, fingerprint string) (*ledger.Transfer, error) {
	if err := tx.UpsertAccount(ctx, req.FromAccount, req.ZoneID); err != nil {
		return nil, err
	}
	if err := tx.UpsertAccount(ctx, req.ToAccount, req.ZoneID); err != nil {
		return nil, err
	}

	transfer := ledger.NewTransfer(req, fingerprint)
	if err := tx.InsertTransferWithPostings(ctx, transfer); err != nil {
		return nil, err
	}
	if err := tx.AdjustBalance(ctx, req.FromAccount, -req.AmountUnits); err != nil {
		return nil, err
	}
	if err := tx.AdjustBalance(ctx, req.ToAccount, req.AmountUnits); err != nil {
		return nil, err
	}

	event := ledger.NewTransferPostedEvent(transfer)
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	if err := tx.AppendOutboxEvent(ctx, shared.NewOutboxEntry(event, payload)); err != nil {
		return nil, err
	}
	return transfer, nil
}

// resolveExisting settles a conflict signal against the stored record
func (s *TransferService) resolveExisting(ctx context.Context, req ledger.TransferRequest, fingerprint string) (*TransferResult, error) {
	existing, err := s.store.FindTransferByRequestID(ctx, req.RequestID)
	if err == nil {
		if existing.Fingerprint != fingerprint {
			return nil, shared.ErrIdempotencyConflict
		}
		return &TransferResult{Outcome: OutcomeReplayed, Transfer: existing}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	spooled, err := s.store.FindSpooledByRequestID(ctx, req.RequestID)
	if err == nil {
		if spooled.Fingerprint != fingerprint {
			return nil, shared.ErrIdempotencyConflict
		}
		return &TransferResult{Outcome: OutcomeSpooled, SpoolID: &spooled.ID}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return nil, shared.ErrIdempotencyConflict
}

// ReplaySpool applies a zone's pending spooled transfers oldest-first. The
// gate is bypassed for replayed entries; idempotency still holds. Replay
// refuses to run while the zone is DOWN, write-blocked, or fully throttled.
func (s *TransferService) ReplaySpool(ctx context.Context, zoneID string, limit int, actor, reason string) (*ReplayResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer", "replay_spool")
	defer span.End()
	telemetry.SetAttributes(span, "zone_id", zoneID, "limit", limit)

	if limit <= 0 || limit > 500 {
		limit = 50
	}

	zone, err := s.store.GetZone(ctx, zoneID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	controls, err := s.store.GetZoneControls(ctx, zoneID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if zone.Status == ledger.ZoneStatusDown || controls.WritesBlocked || controls.CrossZoneThrottle == 0 {
		err := shared.NewDomainError("ZONE_UNAVAILABLE", fmt.Sprintf("zone %s not ready for replay", zoneID))
		telemetry.RecordError(span, err)
		return nil, err
	}

	pending, err := s.store.ListPendingSpooled(ctx, zoneID, limit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ReplayResult{ZoneID: zoneID}
	for i := range pending {
		entry := &pending[i]
		if err := s.applySpooled(ctx, entry); err != nil {
			result.Failed++
			if markErr := s.store.MarkSpooledFailed(ctx, entry.ID, err.Error()); markErr != nil {
				s.logger.Error("failed to mark spooled transfer",
					zap.String("spool_id", entry.ID.String()),
					zap.Error(markErr),
				)
			}
			s.logger.Warn("spooled transfer failed to apply",
				zap.String("spool_id", entry.ID.String()),
				zap.String("request_id", entry.RequestID),
				zap.Error(err),
			)
			continue
		}
		result.Applied++
		s.metrics.RecordPosted(ctx, zoneID)
	}

	audit := ledger.NewAuditEntry(actor, ledger.AuditActionReplaySpool, "zone", zoneID, reason, map[string]any{
		"applied": result.Applied,
		"failed":  result.Failed,
		"limit":   limit,
	})
	if err := s.store.AppendAuditEntry(ctx, audit); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("spool replay finished",
		zap.String("zone_id", zoneID),
		zap.Int("applied", result.Applied),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// applySpooled posts one parked transfer and marks it applied in the same
// transaction
func (s *TransferService) applySpooled(ctx context.Context, entry *ledger.SpooledTransfer) error {
	return s.store.Atomically(ctx, func(tx ledger.Store) error {
		req := entry.Request()

		existing, err := tx.FindTransferByRequestID(ctx, entry.RequestID)
		if err == nil {
			if existing.Fingerprint != entry.Fingerprint {
				return shared.ErrIdempotencyConflict
			}
			return tx.MarkSpooledApplied(ctx, entry.ID, time.Now())
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		if _, err := postTransfer(ctx, tx, req, entry.Fingerprint); err != nil {
			return err
		}
		return tx.MarkSpooledApplied(ctx, entry.ID, time.Now())
	})
}

func (s *TransferService) recordFailureMetric(ctx context.Context, zoneID string, err error) {
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		s.metrics.RecordConflict(ctx, zoneID)
	default:
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "ZONE_UNAVAILABLE" {
			s.metrics.RecordRejected(ctx, zoneID, "gated")
		}
	}
}

// gateReason returns the blocking reason for a submission, or "" when the
// zone admits it. DEGRADED admits; only DOWN, blocked writes, and the
// throttle keep transfers out. The throttle is deterministic per request id
// so retries of the same request get the same verdict.
func gateReason(status ledger.ZoneStatus, controls *ledger.ZoneControls, requestID string) string {
	switch {
	case status == ledger.ZoneStatusDown:
		return "zone down"
	case controls.WritesBlocked:
		return "writes blocked"
	case controls.CrossZoneThrottle < 100:
		if controls.CrossZoneThrottle <= 0 {
			return "throttled"
		}
		if ledger.ThrottlePercent(requestID) >= controls.CrossZoneThrottle {
			return "throttled"
		}
	}
	return ""
}
