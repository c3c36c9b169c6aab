package ledger

import (
	"time"

	"github.com/zoneledger/backend/internal/domain/shared"
)

// ZoneStatus represents the operational health of a zone
type ZoneStatus string

const (
	ZoneStatusOK       ZoneStatus = "OK"
	ZoneStatusDegraded ZoneStatus = "DEGRADED"
	ZoneStatusDown     ZoneStatus = "DOWN"
)

// IsValid returns true if the status is one of the enumerated values
func (s ZoneStatus) IsValid() bool {
	switch s {
	case ZoneStatusOK, ZoneStatusDegraded, ZoneStatusDown:
		return true
	}
	return false
}

// Zone is an operational grouping of accounts with its own health status.
// Status is mutated only through the zone service; the transfer engine only
// ever reads it.
type Zone struct {
	ID        string
	Name      string
	Status    ZoneStatus
	UpdatedAt time.Time
}

// ZoneControls holds the per-zone operator dials checked by the transfer gate.
// CrossZoneThrottle is the percentage of requests admitted (0-100); 100 means
// no throttling. A throttled or blocked transfer may be spooled for later
// replay when SpoolEnabled is set.
type ZoneControls struct {
	ZoneID            string
	WritesBlocked     bool
	CrossZoneThrottle int
	SpoolEnabled      bool
	UpdatedAt         time.Time
}

// DefaultZoneControls returns the controls a zone starts with. Spooling is
// an operator opt-in: with untouched controls a gated zone refuses transfers
// outright instead of parking them.
func DefaultZoneControls(zoneID string) *ZoneControls {
	return &ZoneControls{
		ZoneID:            zoneID,
		CrossZoneThrottle: 100,
		SpoolEnabled:      false,
		UpdatedAt:         time.Now(),
	}
}

// ValidateControls checks operator-supplied control values
func ValidateControls(crossZoneThrottle int) error {
	if crossZoneThrottle < 0 || crossZoneThrottle > 100 {
		return shared.NewDomainError("INVALID_INPUT", "cross_zone_throttle must be between 0 and 100")
	}
	return nil
}
