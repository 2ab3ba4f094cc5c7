package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// StakeStore implements domain.StakeStore using PostgreSQL.
type StakeStore struct {
	pool *pgxpool.Pool
}

// NewStakeStore creates a new StakeStore backed by the given connection pool.
func NewStakeStore(pool *pgxpool.Pool) *StakeStore {
	return &StakeStore{pool: pool}
}

// Place applies one wager in a single transaction. Each precondition rides in
// the WHERE clause of its own update, so a closed market, a foreign option, or
// an underfunded account rolls the whole placement back.
func (s *StakeStore) Place(ctx context.Context, st domain.Stake) error {
	amount := bigToNumeric(st.Amount)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin place stake: %w", translateErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Pool bump doubles as the open-market gate.
	tag, err := tx.Exec(ctx,
		`UPDATE markets
		 SET total_pool = total_pool + $2::numeric, updated_at = NOW()
		 WHERE id = $1 AND status = 'open'`,
		st.MarketID, amount)
	if err != nil {
		return fmt.Errorf("postgres: bump pool for %s: %w", st.MarketID, translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)`, st.MarketID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: place stake on %s: %w", st.MarketID, translateErr(err))
		}
		if !exists {
			return fmt.Errorf("postgres: place stake on %s: %w", st.MarketID, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: place stake on %s: %w", st.MarketID, domain.ErrInvalidState)
	}

	// Option bump also verifies the option belongs to this market.
	tag, err = tx.Exec(ctx,
		`UPDATE options
		 SET total_amount = total_amount + $3::numeric
		 WHERE id = $1 AND market_id = $2`,
		st.OptionID, st.MarketID, amount)
	if err != nil {
		return fmt.Errorf("postgres: bump option %s: %w", st.OptionID, translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: option %s on market %s: %w", st.OptionID, st.MarketID, domain.ErrNotFound)
	}

	// Conditional debit: the sufficiency check is the WHERE clause.
	tag, err = tx.Exec(ctx,
		`UPDATE accounts
		 SET balance = balance - $2::numeric
		 WHERE id = $1 AND balance >= $2::numeric`,
		st.AccountID, amount)
	if err != nil {
		return fmt.Errorf("postgres: debit account %s: %w", st.AccountID, translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, st.AccountID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: debit account %s: %w", st.AccountID, translateErr(err))
		}
		if !exists {
			return fmt.Errorf("postgres: debit account %s: %w", st.AccountID, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: debit account %s: %w", st.AccountID, domain.ErrInsufficientFunds)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO stakes (id, account_id, market_id, option_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		st.ID, st.AccountID, st.MarketID, st.OptionID, amount, st.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert stake %s: %w", st.ID, translateErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit place stake %s: %w", st.ID, translateErr(err))
	}
	return nil
}

const stakeColumns = `id, account_id, market_id, option_id, amount::text, reward::text, created_at`

// ListByAccount returns the account's stakes, newest first.
func (s *StakeStore) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Stake, error) {
	query := `SELECT ` + stakeColumns + ` FROM stakes WHERE account_id = $1 ORDER BY created_at DESC`
	args := []any{accountID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stakes for account %s: %w", accountID, translateErr(err))
	}
	defer rows.Close()
	return collectStakes(rows)
}

// ListByMarket returns every stake on the market in placement order.
func (s *StakeStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Stake, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE market_id = $1 ORDER BY created_at`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stakes for market %s: %w", marketID, translateErr(err))
	}
	defer rows.Close()
	return collectStakes(rows)
}

// collectStakes drains stake rows into domain values.
func collectStakes(rows pgx.Rows) ([]domain.Stake, error) {
	var stakes []domain.Stake
	for rows.Next() {
		var st domain.Stake
		var amount string
		var reward *string
		if err := rows.Scan(&st.ID, &st.AccountID, &st.MarketID, &st.OptionID,
			&amount, &reward, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan stake: %w", translateErr(err))
		}
		var err error
		if st.Amount, err = numericToBig(amount); err != nil {
			return nil, err
		}
		if reward != nil {
			if st.Reward, err = numericToBig(*reward); err != nil {
				return nil, err
			}
		}
		stakes = append(stakes, st)
	}
	return stakes, translateErr(rows.Err())
}
