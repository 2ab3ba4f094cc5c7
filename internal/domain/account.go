package domain

import (
	"math/big"
	"time"
)

// Account is a ledger account. Balance is the single source of truth for a
// user's coins and is only ever mutated through AccountStore Credit/Debit
// (and the daily bonus claim, which is a guarded credit).
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	Admin        bool
	Balance      *big.Int
	LastBonusAt  *time.Time
	CreatedAt    time.Time
}
