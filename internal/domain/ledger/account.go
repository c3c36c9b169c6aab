package ledger

import "time"

// Account belongs to exactly one zone for its lifetime. Accounts are created
// implicitly on first reference by a transfer and are never deleted.
type Account struct {
	ID        string
	ZoneID    string
	CreatedAt time.Time
}

// Balance is the eagerly maintained per-account projection of posting sums.
// It is only ever moved by relative adjustments inside the posting transaction,
// never recomputed in the read path.
type Balance struct {
	AccountID    string
	BalanceUnits int64
	UpdatedAt    time.Time
}
