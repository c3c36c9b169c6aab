package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics tracks transfer throughput and gating outcomes
type LedgerMetrics struct {
	transfersPosted   metric.Int64Counter
	transfersReplayed metric.Int64Counter
	transfersSpooled  metric.Int64Counter
	transfersRejected metric.Int64Counter
	conflicts         metric.Int64Counter
	zoneTransitions   metric.Int64Counter
}

// NewLedgerMetrics registers the ledger instruments on the global meter
func NewLedgerMetrics() (*LedgerMetrics, error) {
	meter := otel.GetMeterProvider().Meter(TracerName)
	m := &LedgerMetrics{}

	var err error
	if m.transfersPosted, err = meter.Int64Counter(
		"ledger_transfers_posted_total",
		metric.WithDescription("Transfers posted to the ledger"),
		metric.WithUnit("{transfers}"),
	); err != nil {
		return nil, err
	}
	if m.transfersReplayed, err = meter.Int64Counter(
		"ledger_transfers_replayed_total",
		metric.WithDescription("Duplicate submissions answered from the idempotency record"),
		metric.WithUnit("{transfers}"),
	); err != nil {
		return nil, err
	}
	if m.transfersSpooled, err = meter.Int64Counter(
		"ledger_transfers_spooled_total",
		metric.WithDescription("Transfers parked while zone writes were blocked"),
		metric.WithUnit("{transfers}"),
	); err != nil {
		return nil, err
	}
	if m.transfersRejected, err = meter.Int64Counter(
		"ledger_transfers_rejected_total",
		metric.WithDescription("Transfers rejected by gating or validation"),
		metric.WithUnit("{transfers}"),
	); err != nil {
		return nil, err
	}
	if m.conflicts, err = meter.Int64Counter(
		"ledger_idempotency_conflicts_total",
		metric.WithDescription("Request id reuse with a different payload"),
		metric.WithUnit("{requests}"),
	); err != nil {
		return nil, err
	}
	if m.zoneTransitions, err = meter.Int64Counter(
		"ledger_zone_status_changes_total",
		metric.WithDescription("Operator zone status transitions"),
		metric.WithUnit("{changes}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPosted counts a freshly posted transfer
func (m *LedgerMetrics) RecordPosted(ctx context.Context, zoneID string) {
	m.transfersPosted.Add(ctx, 1, metric.WithAttributes(attribute.String("zone_id", zoneID)))
}

// RecordReplayed counts an idempotent replay
func (m *LedgerMetrics) RecordReplayed(ctx context.Context, zoneID string) {
	m.transfersReplayed.Add(ctx, 1, metric.WithAttributes(attribute.String("zone_id", zoneID)))
}

// RecordSpooled counts a parked transfer
func (m *LedgerMetrics) RecordSpooled(ctx context.Context, zoneID string) {
	m.transfersSpooled.Add(ctx, 1, metric.WithAttributes(attribute.String("zone_id", zoneID)))
}

// RecordRejected counts a rejected transfer with the rejection reason
func (m *LedgerMetrics) RecordRejected(ctx context.Context, zoneID, reason string) {
	m.transfersRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("zone_id", zoneID),
		attribute.String("reason", reason),
	))
}

// RecordConflict counts an idempotency conflict
func (m *LedgerMetrics) RecordConflict(ctx context.Context, zoneID string) {
	m.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("zone_id", zoneID)))
}

// RecordZoneTransition counts a zone status change
func (m *LedgerMetrics) RecordZoneTransition(ctx context.Context, zoneID, status string) {
	m.zoneTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("zone_id", zoneID),
		attribute.String("status", status),
	))
}
