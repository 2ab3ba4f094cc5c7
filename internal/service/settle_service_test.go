package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/alanyoungcy/poolbook/internal/domain"
	"github.com/alanyoungcy/poolbook/internal/store/memory"
)

type settleFixture struct {
	store   *memory.Store
	markets *MarketService
	stakes  *StakeService
	settle  *SettleService
	locks   *fakeLocks
	bus     *fakeBus

	market  domain.Market
	options []domain.Option
}

func newSettleFixture(t *testing.T) *settleFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	cache := newFakeCache()
	bus := newFakeBus()
	locks := newFakeLocks()

	f := &settleFixture{
		store:   store,
		markets: newMarketService(store, cache, bus),
		stakes:  NewStakeService(store.Markets(), store.Stakes(), cache, bus, testLogger(), 1000),
		settle: NewSettleService(store.Markets(), store.Settlements(), store.Audit(),
			locks, cache, bus, testLogger()),
		locks: locks,
		bus:   bus,
	}

	for _, id := range []string{"user-1", "user-2", "user-3"} {
		if err := seedAccount(store.Accounts(), id, 100_000); err != nil {
			t.Fatal(err)
		}
	}

	market, options, err := f.markets.Open(ctx, adminIdentity, "A market", "", []string{"Yes", "No"})
	if err != nil {
		t.Fatal(err)
	}
	f.market = market
	f.options = options
	return f
}

func (f *settleFixture) place(t *testing.T, account string, optionIdx int, amount int64) {
	t.Helper()
	_, err := f.stakes.Place(context.Background(),
		domain.Identity{AccountID: account}, f.market.ID, f.options[optionIdx].ID, big.NewInt(amount))
	if err != nil {
		t.Fatal(err)
	}
}

func TestSettleProportionalPayouts(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	// Pool 10000: winners 2000 + 3000 on Yes, loser 5000 on No.
	f.place(t, "user-1", 0, 2000)
	f.place(t, "user-2", 0, 3000)
	f.place(t, "user-3", 1, 5000)

	if err := f.markets.Close(ctx, adminIdentity, f.market.ID); err != nil {
		t.Fatal(err)
	}

	settlement, err := f.settle.Settle(ctx, adminIdentity, f.market.ID, f.options[0].ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(settlement.Payouts) != 2 {
		t.Fatalf("payouts = %d, want 2", len(settlement.Payouts))
	}
	if settlement.Total().Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("disbursed = %s, want 10000", settlement.Total())
	}

	// user-1: 100000 - 2000 + 4000 = 102000; user-2: 100000 - 3000 + 6000 =
	// 103000; user-3: 95000.
	wantBalances := map[string]int64{"user-1": 102_000, "user-2": 103_000, "user-3": 95_000}
	for id, want := range wantBalances {
		account, err := f.store.GetByID(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if account.Balance.Cmp(big.NewInt(want)) != 0 {
			t.Errorf("%s balance = %s, want %d", id, account.Balance, want)
		}
	}

	m, _ := f.store.GetMarket(ctx, f.market.ID)
	if m.Status != domain.MarketStatusSettled {
		t.Fatalf("status = %s, want settled", m.Status)
	}
	if m.CorrectOptionID == nil || *m.CorrectOptionID != f.options[0].ID {
		t.Fatalf("correct option = %v, want %s", m.CorrectOptionID, f.options[0].ID)
	}
}

func TestSettleNoWinnersForfeitsPool(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	f.place(t, "user-1", 1, 5000)

	if err := f.markets.Close(ctx, adminIdentity, f.market.ID); err != nil {
		t.Fatal(err)
	}

	settlement, err := f.settle.Settle(ctx, adminIdentity, f.market.ID, f.options[0].ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(settlement.Payouts) != 0 {
		t.Fatalf("payouts = %d, want 0", len(settlement.Payouts))
	}

	// Nobody gets anything back.
	account, _ := f.store.GetByID(ctx, "user-1")
	if account.Balance.Cmp(big.NewInt(95_000)) != 0 {
		t.Fatalf("balance = %s, want 95000", account.Balance)
	}
}

func TestSettleRequiresAdmin(t *testing.T) {
	f := newSettleFixture(t)

	_, err := f.settle.Settle(context.Background(), userIdentity, f.market.ID, f.options[0].ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSettleOnlyFromClosed(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	// Open market.
	_, err := f.settle.Settle(ctx, adminIdentity, f.market.ID, f.options[0].ID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("open market: expected ErrInvalidState, got %v", err)
	}

	if err := f.markets.Close(ctx, adminIdentity, f.market.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.settle.Settle(ctx, adminIdentity, f.market.ID, f.options[0].ID); err != nil {
		t.Fatal(err)
	}

	// Settled market: a repeat cannot double-pay.
	_, err = f.settle.Settle(ctx, adminIdentity, f.market.ID, f.options[0].ID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("re-settle: expected ErrInvalidState, got %v", err)
	}
}

func TestSettleUnknownOption(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	if err := f.markets.Close(ctx, adminIdentity, f.market.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.settle.Settle(ctx, adminIdentity, f.market.ID, "no-such-option")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettleLockHeldMapsToUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	if err := f.markets.Close(ctx, adminIdentity, f.market.ID); err != nil {
		t.Fatal(err)
	}

	// Another party holds the settlement lock.
	unlock, err := f.locks.Acquire(ctx, "settle:"+f.market.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	_, err = f.settle.Settle(ctx, adminIdentity, f.market.ID, f.options[0].ID)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSettleConservation(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	// Amounts chosen so floor division leaves a residual.
	f.place(t, "user-1", 0, 3333)
	f.place(t, "user-2", 0, 3333)
	f.place(t, "user-3", 1, 3334)

	if err := f.markets.Close(ctx, adminIdentity, f.market.ID); err != nil {
		t.Fatal(err)
	}
	settlement, err := f.settle.Settle(ctx, adminIdentity, f.market.ID, f.options[0].ID)
	if err != nil {
		t.Fatal(err)
	}

	// Sum of final balances never exceeds the initial total; the shortfall
	// is exactly the forfeited residual.
	total := new(big.Int)
	for _, id := range []string{"user-1", "user-2", "user-3"} {
		account, _ := f.store.GetByID(ctx, id)
		total.Add(total, account.Balance)
	}
	initial := big.NewInt(300_000)
	forfeited := new(big.Int).Sub(big.NewInt(10_000), settlement.Total())
	if forfeited.Sign() < 0 {
		t.Fatalf("disbursed more than the pool: %s", settlement.Total())
	}
	want := new(big.Int).Sub(initial, forfeited)
	if total.Cmp(want) != 0 {
		t.Fatalf("total balances = %s, want %s (forfeited %s)", total, want, forfeited)
	}
}
