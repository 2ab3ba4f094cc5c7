package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// LedgerService exposes account balance reads and the daily bonus claim.
type LedgerService struct {
	accounts domain.AccountStore
	bus      domain.SignalBus
	logger   *slog.Logger

	bonusMin int64
	bonusMax int64

	// now is swappable for tests.
	now func() time.Time
}

// NewLedgerService creates a LedgerService with all required dependencies.
func NewLedgerService(
	accounts domain.AccountStore,
	bus domain.SignalBus,
	logger *slog.Logger,
	bonusMin, bonusMax int64,
) *LedgerService {
	return &LedgerService{
		accounts: accounts,
		bus:      bus,
		logger:   logger,
		bonusMin: bonusMin,
		bonusMax: bonusMax,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Account returns the account with the given ID.
func (s *LedgerService) Account(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("ledger: get account %s: %w", id, err)
	}
	return account, nil
}

// ClaimBonus credits a uniformly random bonus in [bonusMin, bonusMax] once
// per UTC calendar day. A second claim within the same day fails with
// domain.ErrInvalidState; the guard and the credit are one atomic store
// operation, so racing claims cannot double-credit.
func (s *LedgerService) ClaimBonus(ctx context.Context, identity domain.Identity) (*big.Int, error) {
	amount := big.NewInt(s.bonusMin + rand.Int64N(s.bonusMax-s.bonusMin+1))

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if err := s.accounts.ClaimBonus(ctx, identity.AccountID, amount, now, dayStart); err != nil {
		return nil, fmt.Errorf("ledger: claim bonus: %w", err)
	}

	s.logger.InfoContext(ctx, "bonus claimed",
		slog.String("account_id", identity.AccountID),
		slog.String("amount", amount.String()),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelStakes, domain.Event{
		Type: domain.EventBonusClaimed,
		Detail: map[string]any{
			"account_id": identity.AccountID,
			"amount":     amount.String(),
		},
	})
	return amount, nil
}
