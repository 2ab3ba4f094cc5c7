package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Create inserts a market and all of its options in one transaction.
func (s *MarketStore) Create(ctx context.Context, m domain.Market, options []domain.Option) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create market: %w", translateErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertMarket = `
		INSERT INTO markets (id, title, description, creator_id, status, total_pool, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err = tx.Exec(ctx, insertMarket,
		m.ID, m.Title, m.Description, m.CreatorID, string(m.Status),
		bigToNumeric(m.TotalPool), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert market %s: %w", m.ID, translateErr(err))
	}

	batch := &pgx.Batch{}
	const insertOption = `
		INSERT INTO options (id, market_id, name, total_amount)
		VALUES ($1, $2, $3, $4)`
	for _, o := range options {
		batch.Queue(insertOption, o.ID, m.ID, o.Name, bigToNumeric(o.TotalAmount))
	}

	br := tx.SendBatch(ctx, batch)
	for i := range options {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: insert option %d for market %s: %w", i, m.ID, translateErr(err))
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close option batch: %w", translateErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create market %s: %w", m.ID, translateErr(err))
	}
	return nil
}

const marketColumns = `id, title, description, creator_id, status, total_pool::text, correct_option_id, created_at, updated_at`

// GetByID returns the market with the given ID.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, translateErr(err))
	}
	return m, nil
}

// Options returns the option set of the given market, in name order.
func (s *MarketStore) Options(ctx context.Context, marketID string) ([]domain.Option, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, name, total_amount::text
		 FROM options WHERE market_id = $1 ORDER BY name`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list options for %s: %w", marketID, translateErr(err))
	}
	defer rows.Close()
	return collectOptions(rows, marketID)
}

// List returns markets filtered by status, newest first. An empty status list
// means all statuses.
func (s *MarketStore) List(ctx context.Context, statuses []domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets`
	args := []any{}
	argIdx := 1

	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += fmt.Sprintf(" WHERE status = ANY($%d)", argIdx)
		args = append(args, names)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list markets: %w", translateErr(err))
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", translateErr(err))
		}
		markets = append(markets, m)
	}
	return markets, translateErr(rows.Err())
}

// Count returns the number of markets matching the status filter. An empty
// status list means all statuses.
func (s *MarketStore) Count(ctx context.Context, statuses []domain.MarketStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM markets`
	args := []any{}

	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += " WHERE status = ANY($1)"
		args = append(args, names)
	}

	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", translateErr(err))
	}
	return n, nil
}

// Close transitions the market open -> closed. The status check rides in the
// WHERE clause, so a market in any other state fails with ErrInvalidState.
func (s *MarketStore) Close(ctx context.Context, marketID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = 'closed', updated_at = NOW()
		 WHERE id = $1 AND status = 'open'`, marketID)
	if err != nil {
		return fmt.Errorf("postgres: close market %s: %w", marketID, translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)`, marketID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: close market %s: %w", marketID, translateErr(err))
		}
		if !exists {
			return fmt.Errorf("postgres: close market %s: %w", marketID, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: close market %s: %w", marketID, domain.ErrInvalidState)
	}
	return nil
}

// Aggregate loads the market, its options, and its stakes in one
// repeatable-read transaction so the returned snapshot is internally
// consistent.
func (s *MarketStore) Aggregate(ctx context.Context, marketID string) (domain.MarketAggregate, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return domain.MarketAggregate{}, fmt.Errorf("postgres: begin aggregate: %w", translateErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	agg, err := loadAggregate(ctx, tx, marketID)
	if err != nil {
		return domain.MarketAggregate{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.MarketAggregate{}, fmt.Errorf("postgres: commit aggregate: %w", translateErr(err))
	}
	return agg, nil
}

// ListSettledBefore returns aggregates of markets settled before the cutoff.
func (s *MarketStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.MarketAggregate, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin settled listing: %w", translateErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT id FROM markets
		 WHERE status = 'settled' AND updated_at < $1
		 ORDER BY updated_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled markets: %w", translateErr(err))
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan settled market id: %w", translateErr(err))
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}

	aggregates := make([]domain.MarketAggregate, 0, len(ids))
	for _, id := range ids {
		agg, err := loadAggregate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit settled listing: %w", translateErr(err))
	}
	return aggregates, nil
}

// loadAggregate reads a market with its options and stakes inside tx.
func loadAggregate(ctx context.Context, tx pgx.Tx, marketID string) (domain.MarketAggregate, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, marketID)
	m, err := scanMarket(row)
	if err != nil {
		return domain.MarketAggregate{}, fmt.Errorf("postgres: aggregate market %s: %w", marketID, translateErr(err))
	}

	optRows, err := tx.Query(ctx,
		`SELECT id, market_id, name, total_amount::text
		 FROM options WHERE market_id = $1 ORDER BY name`, marketID)
	if err != nil {
		return domain.MarketAggregate{}, fmt.Errorf("postgres: aggregate options for %s: %w", marketID, translateErr(err))
	}
	options, err := collectOptions(optRows, marketID)
	optRows.Close()
	if err != nil {
		return domain.MarketAggregate{}, err
	}

	stakeRows, err := tx.Query(ctx,
		`SELECT id, account_id, market_id, option_id, amount::text, reward::text, created_at
		 FROM stakes WHERE market_id = $1 ORDER BY created_at`, marketID)
	if err != nil {
		return domain.MarketAggregate{}, fmt.Errorf("postgres: aggregate stakes for %s: %w", marketID, translateErr(err))
	}
	stakes, err := collectStakes(stakeRows)
	stakeRows.Close()
	if err != nil {
		return domain.MarketAggregate{}, err
	}

	return domain.MarketAggregate{Market: m, Options: options, Stakes: stakes}, nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status, pool string
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.CreatorID,
		&status, &pool, &m.CorrectOptionID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	if m.TotalPool, err = numericToBig(pool); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// collectOptions drains option rows into domain values.
func collectOptions(rows pgx.Rows, marketID string) ([]domain.Option, error) {
	var options []domain.Option
	for rows.Next() {
		var o domain.Option
		var total string
		if err := rows.Scan(&o.ID, &o.MarketID, &o.Name, &total); err != nil {
			return nil, fmt.Errorf("postgres: scan option for %s: %w", marketID, translateErr(err))
		}
		var err error
		if o.TotalAmount, err = numericToBig(total); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, translateErr(rows.Err())
}
