package domain

import (
	"context"
	"math/big"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// AccountStore persists ledger accounts. Credit and Debit are linearizable
// per account: two concurrent debits must never both succeed when their sum
// exceeds the balance, and no sequence of operations may drive a balance
// negative.
type AccountStore interface {
	Create(ctx context.Context, account Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	GetByUsername(ctx context.Context, username string) (Account, error)
	// Credit atomically increases the balance. A zero amount is a legal no-op.
	Credit(ctx context.Context, id string, amount *big.Int) error
	// Debit atomically decreases the balance, failing with
	// ErrInsufficientFunds when the balance is smaller than amount.
	Debit(ctx context.Context, id string, amount *big.Int) error
	// ClaimBonus credits amount and stamps LastBonusAt, failing with
	// ErrInvalidState when a bonus was already claimed on or after dayStart.
	// The guard and the credit are a single atomic step.
	ClaimBonus(ctx context.Context, id string, amount *big.Int, now, dayStart time.Time) error
}

// MarketStore persists markets and their option sets.
type MarketStore interface {
	// Create inserts a market and all of its options atomically.
	Create(ctx context.Context, market Market, options []Option) error
	GetByID(ctx context.Context, id string) (Market, error)
	Options(ctx context.Context, marketID string) ([]Option, error)
	List(ctx context.Context, statuses []MarketStatus, opts ListOpts) ([]Market, error)
	// Count returns the number of markets matching the status filter; an
	// empty filter counts all markets.
	Count(ctx context.Context, statuses []MarketStatus) (int64, error)
	// Close transitions open -> closed, failing with ErrInvalidState when the
	// market is in any other state.
	Close(ctx context.Context, marketID string) error
	// Aggregate loads the market, its options, and all of its stakes as one
	// consistent snapshot: the pool total always matches the option sums and
	// the stake sums within the returned value.
	Aggregate(ctx context.Context, marketID string) (MarketAggregate, error)
	// ListSettledBefore returns aggregates of markets settled strictly before
	// the cutoff, for archival.
	ListSettledBefore(ctx context.Context, before time.Time) ([]MarketAggregate, error)
}

// StakeStore persists stakes.
type StakeStore interface {
	// Place applies one wager as a single atomic unit: debit the account,
	// insert the stake, increase the option total, and increase the market
	// pool. No partial placement is ever observable. It re-verifies the
	// market is open (ErrInvalidState), the option belongs to the market
	// (ErrNotFound), and the balance covers the amount
	// (ErrInsufficientFunds).
	Place(ctx context.Context, stake Stake) error
	ListByAccount(ctx context.Context, accountID string, opts ListOpts) ([]Stake, error)
	ListByMarket(ctx context.Context, marketID string) ([]Stake, error)
}

// SettlementStore applies settlements.
type SettlementStore interface {
	// Apply writes every payout's stake reward, credits every winning
	// account, and transitions the market closed -> settled with the correct
	// option recorded, all in one atomic unit. A market not currently closed
	// fails with ErrInvalidState and nothing is written, so a retried or
	// duplicated call can never double-pay.
	Apply(ctx context.Context, settlement Settlement) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of privileged operations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
