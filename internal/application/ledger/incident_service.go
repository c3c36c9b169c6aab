package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// IncidentService exposes the incident workflow: listing, inspection, and
// operator actions
type IncidentService struct {
	store  ledger.Store
	logger *zap.Logger
}

// NewIncidentService creates a new IncidentService
func NewIncidentService(store ledger.Store, logger *zap.Logger) *IncidentService {
	return &IncidentService{store: store, logger: logger}
}

// ListRecent returns incidents across all zones, newest first
func (s *IncidentService) ListRecent(ctx context.Context, limit int) ([]ledger.Incident, error) {
	return s.store.ListRecentIncidents(ctx, limit)
}

// ListByZone returns one zone's incidents, newest first
func (s *IncidentService) ListByZone(ctx context.Context, zoneID string, limit int) ([]ledger.Incident, error) {
	return s.store.ListIncidentsByZone(ctx, zoneID, limit)
}

// Get returns a single incident
func (s *IncidentService) Get(ctx context.Context, id uuid.UUID) (*ledger.Incident, error) {
	return s.store.GetIncident(ctx, id)
}

// ApplyAction applies an operator action (ACK, ASSIGN, RESOLVE) to an
// incident and records it in the audit log within the same transaction
func (s *IncidentService) ApplyAction(ctx context.Context, id uuid.UUID, action ledger.IncidentAction) (*ledger.Incident, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "incident", "apply_action")
	defer span.End()
	telemetry.SetAttributes(span, "incident_id", id.String(), "action", action.Action)

	if err := action.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var incident *ledger.Incident
	err := s.store.Atomically(ctx, func(tx ledger.Store) error {
		found, err := tx.GetIncident(ctx, id)
		if err != nil {
			return err
		}
		found.Apply(action)
		if err := tx.UpdateIncident(ctx, found); err != nil {
			return err
		}
		incident = found

		audit := ledger.NewAuditEntry(action.Actor, "INCIDENT_"+action.Action, "incident", id.String(), action.Reason, map[string]any{
			"assignee": action.Assignee,
			"note":     action.Note,
			"status":   string(found.Status),
		})
		return tx.AppendAuditEntry(ctx, audit)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("incident action applied",
		zap.String("incident_id", id.String()),
		zap.String("action", action.Action),
		zap.String("actor", action.Actor),
		zap.String("status", string(incident.Status)),
	)
	return incident, nil
}
