package domain

import (
	"math/big"
	"time"
)

// Stake is an immutable record of one wager: an account staking Amount on one
// option of one market. Reward is nil until the market settles with this
// stake's option as the winner; it is written exactly once at settlement and
// never changes afterwards. Losing stakes keep a nil Reward forever.
type Stake struct {
	ID        string
	AccountID string
	MarketID  string
	OptionID  string
	Amount    *big.Int
	Reward    *big.Int
	CreatedAt time.Time
}
