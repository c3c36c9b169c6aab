package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RelayConfig holds configuration for the outbox relay
type RelayConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultRelayConfig returns the default relay configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:        100,
		PollInterval:     2 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxRelay polls the outbox table and publishes committed events to the
// bus. Delivery is at-least-once: consumers must deduplicate on event id.
// Entries that exhaust their retries move to DEAD and stay in the table for
// inspection.
type OutboxRelay struct {
	repo       shared.OutboxRepository
	eventBus   shared.EventBus
	serializer *EventSerializer
	config     RelayConfig
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(
	repo shared.OutboxRepository,
	eventBus shared.EventBus,
	serializer *EventSerializer,
	config RelayConfig,
	logger *zap.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		repo:       repo,
		eventBus:   eventBus,
		serializer: serializer,
		config:     config,
		logger:     logger,
	}
}

// Start starts the background polling loops
func (r *OutboxRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.pollLoop(ctx)

	if r.config.CleanupEnabled {
		r.wg.Add(1)
		go r.cleanupLoop(ctx)
	}

	r.logger.Info("outbox relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the relay
func (r *OutboxRelay) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("outbox relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *OutboxRelay) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RelayBatch(ctx)
		}
	}
}

// RelayBatch drains one batch of pending and retryable entries. Exported so
// tests and the readiness probe can drive the relay without the poll loop.
func (r *OutboxRelay) RelayBatch(ctx context.Context) {
	pending, err := r.repo.FindPending(ctx, r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to find pending outbox entries", zap.Error(err))
		return
	}
	if len(pending) > 0 {
		r.relayEntries(ctx, pending)
	}

	retryable, err := r.repo.FindRetryable(ctx, time.Now(), r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to find retryable outbox entries", zap.Error(err))
		return
	}
	if len(retryable) > 0 {
		r.relayEntries(ctx, retryable)
	}
}

func (r *OutboxRelay) relayEntries(ctx context.Context, entries []*shared.OutboxEntry) {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	claimed, err := r.repo.MarkProcessing(ctx, ids)
	if err != nil {
		r.logger.Error("failed to claim outbox entries", zap.Error(err))
		return
	}
	for _, entry := range claimed {
		r.relayEntry(ctx, entry)
	}
}

func (r *OutboxRelay) relayEntry(ctx context.Context, entry *shared.OutboxEntry) {
	event, err := r.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		r.recordFailure(ctx, entry, err)
		return
	}

	if err := r.eventBus.Publish(ctx, event); err != nil {
		r.recordFailure(ctx, entry, err)
		return
	}

	entry.MarkSent()
	if err := r.repo.Update(ctx, entry); err != nil {
		r.logger.Error("failed to mark outbox entry as sent",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("outbox event relayed",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)
}

func (r *OutboxRelay) recordFailure(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	r.logger.Error("failed to relay outbox event",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.Error(cause),
	)
	entry.MarkFailed(cause.Error())
	if entry.IsDead() {
		r.logger.Warn("outbox event moved to dead letter status",
			zap.String("event_id", entry.EventID.String()),
			zap.String("event_type", entry.EventType),
			zap.String("aggregate_id", entry.AggregateID),
			zap.Int("retry_count", entry.RetryCount),
			zap.String("last_error", entry.LastError),
		)
	}
	if err := r.repo.Update(ctx, entry); err != nil {
		r.logger.Error("failed to update outbox entry", zap.Error(err))
	}
}

func (r *OutboxRelay) cleanupLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanup(ctx)
		}
	}
}

func (r *OutboxRelay) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-r.config.CleanupRetention)
	deleted, err := r.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to clean up delivered outbox entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		r.logger.Info("cleaned up delivered outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
