package cache

import (
	"github.com/zoneledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NewIdempotencyStore selects the dedup store for the deployment. With Redis
// enabled it connects there and falls back to the in-memory store when the
// connection fails; otherwise it goes straight to in-memory.
func NewIdempotencyStore(cfg RedisConfig, useRedis bool, logger *zap.Logger) shared.IdempotencyStore {
	if !useRedis {
		logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore()
	}

	store, err := NewRedisIdempotencyStore(cfg)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory idempotency store",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore()
	}

	logger.Info("using redis idempotency store",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)
	return store
}
