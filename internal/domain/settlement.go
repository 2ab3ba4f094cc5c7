package domain

import "math/big"

// Payout is one stake's computed reward within a settlement.
type Payout struct {
	StakeID   string
	AccountID string
	Reward    *big.Int
}

// Settlement is the bounded write set applied atomically when a market is
// settled: every payout (stake reward + account credit) plus the market's
// closed -> settled transition commit together or not at all. Payouts is
// empty in the no-winner case; the pool is then forfeited.
type Settlement struct {
	MarketID        string
	CorrectOptionID string
	Payouts         []Payout
}

// Total returns the sum of all rewards in the settlement.
func (s Settlement) Total() *big.Int {
	total := new(big.Int)
	for _, p := range s.Payouts {
		total.Add(total, p.Reward)
	}
	return total
}
