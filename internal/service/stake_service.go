package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// StakeService handles wager placement and stake listings.
type StakeService struct {
	markets domain.MarketStore
	stakes  domain.StakeStore
	cache   domain.MarketSummaryCache
	bus     domain.SignalBus
	logger  *slog.Logger

	minStake int64
}

// NewStakeService creates a StakeService with all required dependencies.
func NewStakeService(
	markets domain.MarketStore,
	stakes domain.StakeStore,
	cache domain.MarketSummaryCache,
	bus domain.SignalBus,
	logger *slog.Logger,
	minStake int64,
) *StakeService {
	return &StakeService{
		markets:  markets,
		stakes:   stakes,
		cache:    cache,
		bus:      bus,
		logger:   logger,
		minStake: minStake,
	}
}

// Place validates and applies one wager. The store placement is the atomic
// unit: debit, stake insert, option bump, and pool bump commit together. The
// pre-checks here only produce precise errors early; the store re-verifies
// every precondition inside its transaction, so a race cannot slip a stake
// into a closed market or overdraw an account.
func (s *StakeService) Place(ctx context.Context, identity domain.Identity, marketID, optionID string, amount *big.Int) (domain.Stake, error) {
	if amount == nil || amount.Cmp(big.NewInt(s.minStake)) < 0 {
		return domain.Stake{}, fmt.Errorf("stake: amount must be at least %d: %w",
			s.minStake, domain.ErrInvalidInput)
	}

	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("stake: market %s: %w", marketID, err)
	}
	if market.Status != domain.MarketStatusOpen {
		return domain.Stake{}, fmt.Errorf("stake: market %s is %s: %w",
			marketID, market.Status, domain.ErrInvalidState)
	}

	options, err := s.markets.Options(ctx, marketID)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("stake: options for %s: %w", marketID, err)
	}
	found := false
	for _, o := range options {
		if o.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return domain.Stake{}, fmt.Errorf("stake: option %s on market %s: %w",
			optionID, marketID, domain.ErrNotFound)
	}

	stake := domain.Stake{
		ID:        uuid.New().String(),
		AccountID: identity.AccountID,
		MarketID:  marketID,
		OptionID:  optionID,
		Amount:    new(big.Int).Set(amount),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.stakes.Place(ctx, stake); err != nil {
		return domain.Stake{}, fmt.Errorf("stake: place: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, marketID); err != nil {
			s.logger.WarnContext(ctx, "summary cache invalidate failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "stake placed",
		slog.String("stake_id", stake.ID),
		slog.String("market_id", marketID),
		slog.String("amount", amount.String()),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelStakes, domain.Event{
		Type:     domain.EventStakePlaced,
		MarketID: marketID,
		Title:    market.Title,
		Detail: map[string]any{
			"stake_id":  stake.ID,
			"option_id": optionID,
			"amount":    amount.String(),
		},
	})
	return stake, nil
}

// ListByAccount returns the caller's stakes, newest first.
func (s *StakeService) ListByAccount(ctx context.Context, identity domain.Identity, opts domain.ListOpts) ([]domain.Stake, error) {
	stakes, err := s.stakes.ListByAccount(ctx, identity.AccountID, opts)
	if err != nil {
		return nil, fmt.Errorf("stake: list for %s: %w", identity.AccountID, err)
	}
	return stakes, nil
}
