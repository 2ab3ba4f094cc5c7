package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
	"github.com/alanyoungcy/poolbook/internal/store/memory"
)

func TestClaimBonusWithinBounds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if err := seedAccount(store.Accounts(), "user-1", 0); err != nil {
		t.Fatal(err)
	}

	ledger := NewLedgerService(store.Accounts(), newFakeBus(), testLogger(), 50_000, 1_000_000)

	amount, err := ledger.ClaimBonus(ctx, userIdentity)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount.Cmp(big.NewInt(50_000)) < 0 || amount.Cmp(big.NewInt(1_000_000)) > 0 {
		t.Fatalf("bonus %s out of [50000, 1000000]", amount)
	}

	account, err := ledger.Account(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if account.Balance.Cmp(amount) != 0 {
		t.Fatalf("balance = %s, want %s", account.Balance, amount)
	}
	if account.LastBonusAt == nil {
		t.Fatal("LastBonusAt must be stamped")
	}
}

func TestClaimBonusOncePerUTCDay(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if err := seedAccount(store.Accounts(), "user-1", 0); err != nil {
		t.Fatal(err)
	}

	ledger := NewLedgerService(store.Accounts(), newFakeBus(), testLogger(), 1000, 1000)

	// Pin the clock late in a UTC day.
	day1 := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	ledger.now = func() time.Time { return day1 }

	if _, err := ledger.ClaimBonus(ctx, userIdentity); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := ledger.ClaimBonus(ctx, userIdentity); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second claim same day: expected ErrInvalidState, got %v", err)
	}

	// Half an hour later it is a new UTC day and the claim succeeds.
	ledger.now = func() time.Time { return day1.Add(time.Hour) }
	if _, err := ledger.ClaimBonus(ctx, userIdentity); err != nil {
		t.Fatalf("next-day claim: %v", err)
	}

	account, _ := ledger.Account(ctx, "user-1")
	if account.Balance.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("balance = %s, want 2000", account.Balance)
	}
}

func TestClaimBonusUnknownAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ledger := NewLedgerService(store.Accounts(), newFakeBus(), testLogger(), 1000, 1000)

	_, err := ledger.ClaimBonus(ctx, domain.Identity{AccountID: "ghost"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
