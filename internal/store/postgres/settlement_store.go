package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given
// connection pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Apply writes the settlement in one transaction. The closed -> settled
// transition is a compare-and-set leading the transaction, so a concurrent or
// repeated settlement loses the CAS and nothing else executes. Payouts are
// batched: one reward write and one account credit per winning stake.
func (s *SettlementStore) Apply(ctx context.Context, st domain.Settlement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settlement: %w", translateErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE markets
		 SET status = 'settled', correct_option_id = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'closed'`,
		st.MarketID, st.CorrectOptionID)
	if err != nil {
		return fmt.Errorf("postgres: settle market %s: %w", st.MarketID, translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)`, st.MarketID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: settle market %s: %w", st.MarketID, translateErr(err))
		}
		if !exists {
			return fmt.Errorf("postgres: settle market %s: %w", st.MarketID, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: settle market %s: %w", st.MarketID, domain.ErrInvalidState)
	}

	if len(st.Payouts) == 0 {
		// No winners: the whole pool is forfeited and only the transition
		// is recorded.
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("postgres: commit settlement %s: %w", st.MarketID, translateErr(err))
		}
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range st.Payouts {
		batch.Queue(
			`UPDATE stakes SET reward = $2::numeric WHERE id = $1`,
			p.StakeID, bigToNumeric(p.Reward))
		batch.Queue(
			`UPDATE accounts SET balance = balance + $2::numeric WHERE id = $1`,
			p.AccountID, bigToNumeric(p.Reward))
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: settlement payout batch item %d: %w", i, translateErr(err))
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close settlement batch: %w", translateErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settlement %s: %w", st.MarketID, translateErr(err))
	}
	return nil
}
