package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/shared"
)

// IncidentSeverity classifies how serious an incident is
type IncidentSeverity string

const (
	SeverityInfo     IncidentSeverity = "INFO"
	SeverityWarn     IncidentSeverity = "WARN"
	SeverityCritical IncidentSeverity = "CRITICAL"
)

// IncidentStatus tracks the incident workflow
type IncidentStatus string

const (
	IncidentOpen     IncidentStatus = "OPEN"
	IncidentAcked    IncidentStatus = "ACK"
	IncidentResolved IncidentStatus = "RESOLVED"
)

// Incident records an operational problem for a zone, optionally tied to a
// specific transaction.
type Incident struct {
	ID           uuid.UUID
	ZoneID       string
	RelatedTxnID *uuid.UUID
	Severity     IncidentSeverity
	Status       IncidentStatus
	Title        string
	Details      map[string]any
	DetectedAt   time.Time
}

// NewIncident opens a new incident for a zone
func NewIncident(zoneID string, severity IncidentSeverity, title string, details map[string]any) *Incident {
	return &Incident{
		ID:         uuid.New(),
		ZoneID:     zoneID,
		Severity:   severity,
		Status:     IncidentOpen,
		Title:      title,
		Details:    details,
		DetectedAt: time.Now(),
	}
}

// IncidentAction is an operator action applied to an incident
type IncidentAction struct {
	Action   string `json:"action"` // ACK | ASSIGN | RESOLVE
	Assignee string `json:"assignee"`
	Note     string `json:"note"`
	Actor    string `json:"actor"`
	Reason   string `json:"reason"`
}

// Validate checks the action fields
func (a *IncidentAction) Validate() error {
	if a.Actor == "" {
		return shared.NewDomainError("INVALID_INPUT", "actor is required")
	}
	switch a.Action {
	case "ACK", "ASSIGN", "RESOLVE":
	default:
		return shared.NewDomainError("INVALID_INPUT", "action must be one of ACK, ASSIGN, RESOLVE")
	}
	if a.Action == "ASSIGN" && a.Assignee == "" {
		return shared.NewDomainError("INVALID_INPUT", "assignee is required for ASSIGN")
	}
	return nil
}

// Apply mutates the incident according to a validated operator action
func (i *Incident) Apply(a IncidentAction) {
	if i.Details == nil {
		i.Details = map[string]any{}
	}
	if a.Action == "ASSIGN" {
		i.Details["assignee"] = a.Assignee
	}
	if a.Note != "" {
		notes, _ := i.Details["notes"].([]any)
		i.Details["notes"] = append(notes, map[string]any{
			"at":     time.Now().UTC().Format(time.RFC3339Nano),
			"actor":  a.Actor,
			"note":   a.Note,
			"action": a.Action,
		})
	}
	switch a.Action {
	case "ACK":
		i.Status = IncidentAcked
	case "RESOLVE":
		i.Status = IncidentResolved
	}
}
