package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL. Balance
// mutations are conditional single-statement updates, so concurrent debits
// serialize on the row and can never drive a balance negative.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Create inserts a new account. A duplicate username fails with
// domain.ErrAlreadyExists.
func (s *AccountStore) Create(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO accounts (id, username, password_hash, is_admin, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Username, a.PasswordHash, a.Admin, bigToNumeric(a.Balance), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create account %s: %w", a.Username, translateErr(err))
	}
	return nil
}

const accountColumns = `id, username, password_hash, is_admin, balance::text, last_bonus_at, created_at`

// GetByID returns the account with the given ID.
func (s *AccountStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, translateErr(err))
	}
	return a, nil
}

// GetByUsername returns the account with the given username.
func (s *AccountStore) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: get account by username %s: %w", username, translateErr(err))
	}
	return a, nil
}

// Credit atomically increases the balance.
func (s *AccountStore) Credit(ctx context.Context, id string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2::numeric WHERE id = $1`,
		id, bigToNumeric(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: credit account %s: %w", id, translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: credit account %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Debit atomically decreases the balance. The WHERE clause carries the
// sufficiency check, so of two racing debits only one can win the row.
func (s *AccountStore) Debit(ctx context.Context, id string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET balance = balance - $2::numeric
		 WHERE id = $1 AND balance >= $2::numeric`,
		id, bigToNumeric(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: debit account %s: %w", id, translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing account from an underfunded one.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: debit account %s: %w", id, translateErr(err))
		}
		if !exists {
			return fmt.Errorf("postgres: debit account %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: debit account %s: %w", id, domain.ErrInsufficientFunds)
	}
	return nil
}

// ClaimBonus credits the bonus and stamps last_bonus_at in one statement.
// The WHERE clause rejects a second claim within the same day window.
func (s *AccountStore) ClaimBonus(ctx context.Context, id string, amount *big.Int, now, dayStart time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET balance = balance + $2::numeric, last_bonus_at = $3
		 WHERE id = $1 AND (last_bonus_at IS NULL OR last_bonus_at < $4)`,
		id, bigToNumeric(amount), now, dayStart,
	)
	if err != nil {
		return fmt.Errorf("postgres: claim bonus for %s: %w", id, translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: claim bonus for %s: %w", id, translateErr(err))
		}
		if !exists {
			return fmt.Errorf("postgres: claim bonus for %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: claim bonus for %s: %w", id, domain.ErrInvalidState)
	}
	return nil
}

// scanAccount scans a single account row into a domain.Account.
func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var balance string
	err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.Admin,
		&balance, &a.LastBonusAt, &a.CreatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	if a.Balance, err = numericToBig(balance); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}
