package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/domain/ledger"
)

// QueryService serves read-only views of the ledger
type QueryService struct {
	store ledger.Store
}

// NewQueryService creates a new QueryService
func NewQueryService(store ledger.Store) *QueryService {
	return &QueryService{store: store}
}

// GetBalance returns one account's balance projection
func (s *QueryService) GetBalance(ctx context.Context, accountID string) (*ledger.Balance, error) {
	return s.store.GetBalance(ctx, accountID)
}

// ListBalances returns balances ordered by most recent movement
func (s *QueryService) ListBalances(ctx context.Context, limit int) ([]ledger.Balance, error) {
	return s.store.ListBalances(ctx, limit)
}

// GetTransfer returns a transfer with its postings
func (s *QueryService) GetTransfer(ctx context.Context, id uuid.UUID) (*ledger.Transfer, error) {
	return s.store.GetTransfer(ctx, id)
}

// ListTransfers returns recent transfers, newest first
func (s *QueryService) ListTransfers(ctx context.Context, limit int) ([]ledger.Transfer, error) {
	return s.store.ListTransfers(ctx, limit)
}
