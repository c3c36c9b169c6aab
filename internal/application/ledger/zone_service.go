package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/domain/shared"
	"github.com/zoneledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ZoneService handles operator mutations of zone health and controls. Every
// mutation lands with its audit entry in one transaction, and marking a zone
// DOWN opens a CRITICAL incident in the same unit.
type ZoneService struct {
	store   ledger.Store
	metrics *telemetry.LedgerMetrics
	logger  *zap.Logger
}

// NewZoneService creates a new ZoneService
func NewZoneService(store ledger.Store, metrics *telemetry.LedgerMetrics, logger *zap.Logger) *ZoneService {
	return &ZoneService{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// ListZones returns all zones
func (s *ZoneService) ListZones(ctx context.Context) ([]ledger.Zone, error) {
	return s.store.ListZones(ctx)
}

// GetZone returns one zone
func (s *ZoneService) GetZone(ctx context.Context, zoneID string) (*ledger.Zone, error) {
	return s.store.GetZone(ctx, zoneID)
}

// SetZoneStatus transitions a zone's health status
func (s *ZoneService) SetZoneStatus(ctx context.Context, zoneID string, status ledger.ZoneStatus, actor, reason string) (*ledger.Zone, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "zone", "set_status")
	defer span.End()
	telemetry.SetAttributes(span, "zone_id", zoneID, "status", string(status))

	if !status.IsValid() {
		err := shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid zone status %q", status))
		telemetry.RecordError(span, err)
		return nil, err
	}
	if actor == "" {
		err := shared.NewDomainError("INVALID_INPUT", "actor is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var zone *ledger.Zone
	err := s.store.Atomically(ctx, func(tx ledger.Store) error {
		updated, err := tx.UpdateZoneStatus(ctx, zoneID, status)
		if err != nil {
			return err
		}
		zone = updated

		audit := ledger.NewAuditEntry(actor, ledger.AuditActionSetZoneStatus, "zone", zoneID, reason, map[string]any{
			"status": string(status),
		})
		if err := tx.AppendAuditEntry(ctx, audit); err != nil {
			return err
		}

		if status == ledger.ZoneStatusDown {
			incident := ledger.NewIncident(zoneID, ledger.SeverityCritical, "Zone marked DOWN", map[string]any{
				"reason": reason,
				"actor":  actor,
			})
			if err := tx.AppendIncident(ctx, incident); err != nil {
				return err
			}
		}

		event := ledger.NewZoneStatusChangedEvent(zone, actor)
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return tx.AppendOutboxEvent(ctx, shared.NewOutboxEntry(event, payload))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordZoneTransition(ctx, zoneID, string(status))
	s.logger.Info("zone status changed",
		zap.String("zone_id", zoneID),
		zap.String("status", string(status)),
		zap.String("actor", actor),
		zap.String("reason", reason),
	)
	return zone, nil
}

// GetZoneControls returns the zone's operator controls, defaults included
func (s *ZoneService) GetZoneControls(ctx context.Context, zoneID string) (*ledger.ZoneControls, error) {
	if _, err := s.store.GetZone(ctx, zoneID); err != nil {
		return nil, err
	}
	return s.store.GetZoneControls(ctx, zoneID)
}

// SetZoneControls updates a zone's operator dials. Tightening the controls
// records an incident alongside the audit entry: CRITICAL for a write block,
// WARN for a full throttle.
func (s *ZoneService) SetZoneControls(ctx context.Context, controls *ledger.ZoneControls, actor, reason string) (*ledger.ZoneControls, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "zone", "set_controls")
	defer span.End()
	telemetry.SetAttributes(span,
		"zone_id", controls.ZoneID,
		"writes_blocked", controls.WritesBlocked,
		"cross_zone_throttle", controls.CrossZoneThrottle,
	)

	if err := ledger.ValidateControls(controls.CrossZoneThrottle); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if actor == "" {
		err := shared.NewDomainError("INVALID_INPUT", "actor is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, err := s.store.GetZone(ctx, controls.ZoneID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var updated *ledger.ZoneControls
	err := s.store.Atomically(ctx, func(tx ledger.Store) error {
		var err error
		updated, err = tx.UpdateZoneControls(ctx, controls)
		if err != nil {
			return err
		}

		audit := ledger.NewAuditEntry(actor, ledger.AuditActionSetZoneControls, "zone", controls.ZoneID, reason, map[string]any{
			"writes_blocked":      controls.WritesBlocked,
			"cross_zone_throttle": controls.CrossZoneThrottle,
			"spool_enabled":       controls.SpoolEnabled,
		})
		if err := tx.AppendAuditEntry(ctx, audit); err != nil {
			return err
		}

		if controls.WritesBlocked || controls.CrossZoneThrottle == 0 {
			severity := ledger.SeverityWarn
			title := "Zone controls tightened"
			if controls.WritesBlocked {
				severity = ledger.SeverityCritical
				title = "Writes blocked by operator"
			}
			incident := ledger.NewIncident(controls.ZoneID, severity, title, map[string]any{
				"reason":              reason,
				"actor":               actor,
				"writes_blocked":      controls.WritesBlocked,
				"cross_zone_throttle": controls.CrossZoneThrottle,
				"spool_enabled":       controls.SpoolEnabled,
			})
			if err := tx.AppendIncident(ctx, incident); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("zone controls updated",
		zap.String("zone_id", controls.ZoneID),
		zap.Bool("writes_blocked", controls.WritesBlocked),
		zap.Int("cross_zone_throttle", controls.CrossZoneThrottle),
		zap.Bool("spool_enabled", controls.SpoolEnabled),
		zap.String("actor", actor),
	)
	return updated, nil
}

// GetSpoolStats summarizes a zone's spool backlog
func (s *ZoneService) GetSpoolStats(ctx context.Context, zoneID string) (*ledger.SpoolStats, error) {
	if _, err := s.store.GetZone(ctx, zoneID); err != nil {
		return nil, err
	}
	return s.store.GetSpoolStats(ctx, zoneID)
}

// ListAudit returns the audit tail for a zone, newest first
func (s *ZoneService) ListAudit(ctx context.Context, zoneID string, limit int) ([]ledger.AuditEntry, error) {
	if _, err := s.store.GetZone(ctx, zoneID); err != nil {
		return nil, err
	}
	return s.store.ListAuditByZone(ctx, zoneID, limit)
}
