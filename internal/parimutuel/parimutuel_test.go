package parimutuel

import (
	"math/big"
	"testing"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

func stake(id, optionID string, amount int64) domain.Stake {
	return domain.Stake{
		ID:        id,
		AccountID: "acct-" + id,
		OptionID:  optionID,
		Amount:    big.NewInt(amount),
	}
}

func TestPayoutsProportional(t *testing.T) {
	// Pool 10000: option A holds 2000+3000, option B holds 5000.
	stakes := []domain.Stake{
		stake("s1", "A", 2000),
		stake("s2", "A", 3000),
		stake("s3", "B", 5000),
	}

	winners := Winners(stakes, "A")
	if len(winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(winners))
	}
	if got := WinningTotal(winners); got.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("winning total = %s, want 5000", got)
	}

	pool := big.NewInt(10000)
	payouts := Payouts(pool, winners)
	if len(payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(payouts))
	}
	if payouts[0].Reward.Cmp(big.NewInt(4000)) != 0 {
		t.Errorf("reward for 2000 stake = %s, want 4000", payouts[0].Reward)
	}
	if payouts[1].Reward.Cmp(big.NewInt(6000)) != 0 {
		t.Errorf("reward for 3000 stake = %s, want 6000", payouts[1].Reward)
	}
	if res := Residual(pool, payouts); res.Sign() != 0 {
		t.Errorf("residual = %s, want 0", res)
	}
}

func TestPayoutsEqualWinners(t *testing.T) {
	// Two winning stakes of 1000 each plus a losing 8000: pool 10000,
	// each winner gets exactly half the pool.
	stakes := []domain.Stake{
		stake("s1", "A", 1000),
		stake("s2", "A", 1000),
		stake("s3", "B", 8000),
	}

	pool := big.NewInt(10000)
	payouts := Payouts(pool, Winners(stakes, "A"))
	for _, p := range payouts {
		if p.Reward.Cmp(big.NewInt(5000)) != 0 {
			t.Errorf("reward = %s, want 5000", p.Reward)
		}
	}
	if res := Residual(pool, payouts); res.Sign() != 0 {
		t.Errorf("residual = %s, want 0", res)
	}
}

func TestPayoutsRoundingLossBound(t *testing.T) {
	// 10000 over three winners of 3333 each: floor division loses at most
	// len(winners)-1 units.
	stakes := []domain.Stake{
		stake("s1", "A", 3333),
		stake("s2", "A", 3333),
		stake("s3", "A", 3333),
		stake("s4", "B", 1),
	}

	pool := big.NewInt(10000)
	winners := Winners(stakes, "A")
	payouts := Payouts(pool, winners)

	res := Residual(pool, payouts)
	if res.Sign() < 0 {
		t.Fatalf("residual negative: %s", res)
	}
	if res.Cmp(big.NewInt(int64(len(winners)))) >= 0 {
		t.Fatalf("residual %s >= winner count %d", res, len(winners))
	}
}

func TestPayoutsNoWinners(t *testing.T) {
	stakes := []domain.Stake{stake("s1", "B", 5000)}
	if payouts := Payouts(big.NewInt(5000), Winners(stakes, "A")); payouts != nil {
		t.Fatalf("expected no payouts, got %d", len(payouts))
	}
}

func TestPayoutsLargePoolPrecision(t *testing.T) {
	// Pools in the hundreds of millions: the intermediate product
	// pool*amount overflows int64 but must stay exact.
	pool := new(big.Int).SetInt64(900_000_000)
	winners := []domain.Stake{
		stake("s1", "A", 600_000_000),
		stake("s2", "A", 150_000_000),
	}

	payouts := Payouts(pool, winners)
	// winningTotal = 750_000_000; s1 gets 900M*600M/750M = 720M.
	if payouts[0].Reward.Cmp(big.NewInt(720_000_000)) != 0 {
		t.Errorf("reward = %s, want 720000000", payouts[0].Reward)
	}
	if payouts[1].Reward.Cmp(big.NewInt(180_000_000)) != 0 {
		t.Errorf("reward = %s, want 180000000", payouts[1].Reward)
	}
}

func TestPayoutsNeverExceedPool(t *testing.T) {
	pool := big.NewInt(1_000_003)
	winners := []domain.Stake{
		stake("s1", "A", 7),
		stake("s2", "A", 11),
		stake("s3", "A", 13),
		stake("s4", "A", 1009),
	}

	payouts := Payouts(pool, winners)
	total := new(big.Int)
	for _, p := range payouts {
		total.Add(total, p.Reward)
	}
	if total.Cmp(pool) > 0 {
		t.Fatalf("disbursed %s exceeds pool %s", total, pool)
	}
}
