package memory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

func newAccount(t *testing.T, s *Store, id string, balance int64) {
	t.Helper()
	err := s.Create(context.Background(), domain.Account{
		ID:        id,
		Username:  "user-" + id,
		Balance:   big.NewInt(balance),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
}

func newMarket(t *testing.T, s *Store, id string, optionIDs ...string) {
	t.Helper()
	options := make([]domain.Option, 0, len(optionIDs))
	for _, optID := range optionIDs {
		options = append(options, domain.Option{
			ID:   optID,
			Name: "option " + optID,
		})
	}
	err := s.CreateMarket(context.Background(), domain.Market{
		ID:        id,
		Title:     "market " + id,
		Status:    domain.MarketStatusOpen,
		CreatedAt: time.Now().UTC(),
	}, options)
	if err != nil {
		t.Fatalf("create market %s: %v", id, err)
	}
}

func TestConcurrentDebitExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newAccount(t, s, "a1", 1000)

	// Twenty racing debits of 600: the balance covers exactly one.
	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Debit(ctx, "a1", big.NewInt(600))
		}(i)
	}
	wg.Wait()

	var wins, rejections int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrInsufficientFunds):
			rejections++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	if rejections != attempts-1 {
		t.Fatalf("rejections = %d, want %d", rejections, attempts-1)
	}

	a, err := s.GetByID(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Balance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("balance = %s, want 400", a.Balance)
	}
}

func TestDebitNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newAccount(t, s, "a1", 100)

	if err := s.Debit(ctx, "a1", big.NewInt(101)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	a, _ := s.GetByID(ctx, "a1")
	if a.Balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed debit must not change balance, got %s", a.Balance)
	}
}

func TestPlaceRejectsClosedMarket(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newAccount(t, s, "a1", 10_000)
	newMarket(t, s, "m1", "o1", "o2")

	if err := s.Close(ctx, "m1"); err != nil {
		t.Fatal(err)
	}

	err := s.Place(ctx, domain.Stake{
		ID: "s1", AccountID: "a1", MarketID: "m1", OptionID: "o1",
		Amount: big.NewInt(1000), CreatedAt: time.Now().UTC(),
	})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	// The rejected placement must leave the balance untouched.
	a, _ := s.GetByID(ctx, "a1")
	if a.Balance.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("balance = %s, want 10000", a.Balance)
	}
}

func TestPlaceRejectsForeignOption(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newAccount(t, s, "a1", 10_000)
	newMarket(t, s, "m1", "o1", "o2")
	newMarket(t, s, "m2", "o3", "o4")

	err := s.Place(ctx, domain.Stake{
		ID: "s1", AccountID: "a1", MarketID: "m1", OptionID: "o3",
		Amount: big.NewInt(1000), CreatedAt: time.Now().UTC(),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlaceKeepsPoolConsistent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newMarket(t, s, "m1", "o1", "o2")

	// Many accounts staking concurrently: pool must equal option sums and
	// total debits.
	const players = 16
	for i := 0; i < players; i++ {
		newAccount(t, s, fmt.Sprintf("a%d", i), 5000)
	}

	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			optionID := "o1"
			if i%2 == 1 {
				optionID = "o2"
			}
			err := s.Place(ctx, domain.Stake{
				ID:        fmt.Sprintf("s%d", i),
				AccountID: fmt.Sprintf("a%d", i),
				MarketID:  "m1",
				OptionID:  optionID,
				Amount:    big.NewInt(1000),
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				t.Errorf("place %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	agg, err := s.Aggregate(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	want := big.NewInt(players * 1000)
	if agg.Market.TotalPool.Cmp(want) != 0 {
		t.Fatalf("pool = %s, want %s", agg.Market.TotalPool, want)
	}

	optionSum := new(big.Int)
	for _, o := range agg.Options {
		optionSum.Add(optionSum, o.TotalAmount)
	}
	if optionSum.Cmp(agg.Market.TotalPool) != 0 {
		t.Fatalf("option sum %s != pool %s", optionSum, agg.Market.TotalPool)
	}

	stakeSum := new(big.Int)
	for _, st := range agg.Stakes {
		stakeSum.Add(stakeSum, st.Amount)
	}
	if stakeSum.Cmp(agg.Market.TotalPool) != 0 {
		t.Fatalf("stake sum %s != pool %s", stakeSum, agg.Market.TotalPool)
	}
}

func TestApplyOnlyFromClosed(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newAccount(t, s, "a1", 10_000)
	newMarket(t, s, "m1", "o1", "o2")

	settlement := domain.Settlement{MarketID: "m1", CorrectOptionID: "o1"}

	// Open market cannot settle.
	if err := s.Apply(ctx, settlement); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("settling open market: expected ErrInvalidState, got %v", err)
	}

	if err := s.Close(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Apply(ctx, settlement); err != nil {
		t.Fatalf("settling closed market: %v", err)
	}

	// Second settlement must be rejected, not double-paid.
	if err := s.Apply(ctx, settlement); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("re-settling: expected ErrInvalidState, got %v", err)
	}

	m, _ := s.GetMarket(ctx, "m1")
	if m.Status != domain.MarketStatusSettled {
		t.Fatalf("status = %s, want settled", m.Status)
	}
	if m.CorrectOptionID == nil || *m.CorrectOptionID != "o1" {
		t.Fatalf("correct option = %v, want o1", m.CorrectOptionID)
	}
}

func TestApplyCreditsWinners(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newAccount(t, s, "a1", 10_000)
	newAccount(t, s, "a2", 10_000)
	newMarket(t, s, "m1", "o1", "o2")

	place := func(id, acct, opt string, amount int64) {
		t.Helper()
		err := s.Place(ctx, domain.Stake{
			ID: id, AccountID: acct, MarketID: "m1", OptionID: opt,
			Amount: big.NewInt(amount), CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	place("s1", "a1", "o1", 2000)
	place("s2", "a2", "o2", 3000)

	if err := s.Close(ctx, "m1"); err != nil {
		t.Fatal(err)
	}

	// a1 wins the whole 5000 pool.
	err := s.Apply(ctx, domain.Settlement{
		MarketID:        "m1",
		CorrectOptionID: "o1",
		Payouts: []domain.Payout{
			{StakeID: "s1", AccountID: "a1", Reward: big.NewInt(5000)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	a1, _ := s.GetByID(ctx, "a1")
	if a1.Balance.Cmp(big.NewInt(13_000)) != 0 {
		t.Fatalf("winner balance = %s, want 13000", a1.Balance)
	}
	a2, _ := s.GetByID(ctx, "a2")
	if a2.Balance.Cmp(big.NewInt(7000)) != 0 {
		t.Fatalf("loser balance = %s, want 7000", a2.Balance)
	}

	stakes, _ := s.ListByMarket(ctx, "m1")
	for _, st := range stakes {
		switch st.ID {
		case "s1":
			if st.Reward == nil || st.Reward.Cmp(big.NewInt(5000)) != 0 {
				t.Errorf("winning stake reward = %v, want 5000", st.Reward)
			}
		case "s2":
			if st.Reward != nil {
				t.Errorf("losing stake reward = %s, want nil", st.Reward)
			}
		}
	}
}

func TestClaimBonusOncePerDay(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newAccount(t, s, "a1", 0)

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	if err := s.ClaimBonus(ctx, "a1", big.NewInt(75_000), now, dayStart); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	err := s.ClaimBonus(ctx, "a1", big.NewInt(75_000), now.Add(time.Hour), dayStart)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second claim same day: expected ErrInvalidState, got %v", err)
	}

	// Next day's window accepts again.
	nextDay := dayStart.AddDate(0, 0, 1)
	if err := s.ClaimBonus(ctx, "a1", big.NewInt(75_000), nextDay.Add(9*time.Hour), nextDay); err != nil {
		t.Fatalf("next-day claim: %v", err)
	}

	a, _ := s.GetByID(ctx, "a1")
	if a.Balance.Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("balance = %s, want 150000", a.Balance)
	}
}

func TestCreateDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	newAccount(t, s, "a1", 0)

	err := s.Create(ctx, domain.Account{ID: "a2", Username: "user-a1", Balance: big.NewInt(0)})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}
