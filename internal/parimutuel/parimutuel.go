// Package parimutuel implements proportional pool settlement: winning stakes
// split the entire pool in proportion to their size, losers forfeit. All
// arithmetic is exact integer math on big.Int so intermediate products never
// lose precision at large pool sizes.
package parimutuel

import (
	"math/big"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// Winners returns the stakes placed on the given option.
func Winners(stakes []domain.Stake, optionID string) []domain.Stake {
	var winners []domain.Stake
	for _, s := range stakes {
		if s.OptionID == optionID {
			winners = append(winners, s)
		}
	}
	return winners
}

// WinningTotal returns the sum of the winners' stake amounts.
func WinningTotal(winners []domain.Stake) *big.Int {
	total := new(big.Int)
	for _, s := range winners {
		total.Add(total, s.Amount)
	}
	return total
}

// Payouts computes each winner's reward as floor(pool * amount / winningTotal).
// The floor division leaves a residual of at most len(winners)-1 units; that
// residual is forfeited, never redistributed. An empty winner set yields no
// payouts (the whole pool is forfeited).
func Payouts(pool *big.Int, winners []domain.Stake) []domain.Payout {
	if len(winners) == 0 {
		return nil
	}

	winningTotal := WinningTotal(winners)
	payouts := make([]domain.Payout, 0, len(winners))
	for _, s := range winners {
		reward := new(big.Int).Mul(pool, s.Amount)
		reward.Quo(reward, winningTotal)
		payouts = append(payouts, domain.Payout{
			StakeID:   s.ID,
			AccountID: s.AccountID,
			Reward:    reward,
		})
	}
	return payouts
}

// Residual returns pool minus the sum of the payouts' rewards.
func Residual(pool *big.Int, payouts []domain.Payout) *big.Int {
	residual := new(big.Int).Set(pool)
	for _, p := range payouts {
		residual.Sub(residual, p.Reward)
	}
	return residual
}
