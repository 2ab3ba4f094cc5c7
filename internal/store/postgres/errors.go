package postgres

import (
	"errors"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// taxonomy lists the sentinels an error may already carry; translateErr
// leaves those untouched so repeated translation never reclassifies.
var taxonomy = []error{
	domain.ErrInvalidInput,
	domain.ErrNotFound,
	domain.ErrAlreadyExists,
	domain.ErrInvalidState,
	domain.ErrInsufficientFunds,
	domain.ErrForbidden,
	domain.ErrUnavailable,
}

// translateErr maps low-level pgx errors onto domain sentinels so callers can
// branch with errors.Is instead of inspecting SQLSTATE codes. Anything that
// does not classify (connection failures, timeouts, serialization aborts) is
// a driver or transport fault and surfaces as ErrUnavailable with the
// original error kept in the chain. Such failures are retry-safe: nothing
// committed.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return errors.Join(domain.ErrUnavailable, err)
}

// numericToBig converts a NUMERIC column scanned as text into a big.Int.
// Amounts are whole units, so the text never carries a fraction.
func numericToBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("postgres: numeric value " + s + " is not an integer")
	}
	return n, nil
}

// bigToNumeric renders a big.Int for a NUMERIC parameter. Nil is treated as
// zero so partially constructed domain values still insert cleanly.
func bigToNumeric(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
