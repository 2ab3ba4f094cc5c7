package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
	"github.com/alanyoungcy/poolbook/internal/parimutuel"
)

// settleLockTTL bounds how long a crashed settlement can block the market.
const settleLockTTL = 30 * time.Second

// SettleService resolves closed markets: it computes the parimutuel payouts
// from a consistent aggregate snapshot and applies them through the
// settlement store's atomic write set.
type SettleService struct {
	markets     domain.MarketStore
	settlements domain.SettlementStore
	audit       domain.AuditStore
	locks       domain.LockManager
	cache       domain.MarketSummaryCache
	bus         domain.SignalBus
	logger      *slog.Logger
}

// NewSettleService creates a SettleService with all required dependencies.
func NewSettleService(
	markets domain.MarketStore,
	settlements domain.SettlementStore,
	audit domain.AuditStore,
	locks domain.LockManager,
	cache domain.MarketSummaryCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *SettleService {
	return &SettleService{
		markets:     markets,
		settlements: settlements,
		audit:       audit,
		locks:       locks,
		cache:       cache,
		bus:         bus,
		logger:      logger,
	}
}

// Settle resolves a closed market with the given winning option. Only admins
// may settle. A per-market lock serializes settlement attempts across
// processes; the store's closed -> settled compare-and-set is the final
// guard, so even a lost lock cannot double-pay.
func (s *SettleService) Settle(ctx context.Context, identity domain.Identity, marketID, optionID string) (domain.Settlement, error) {
	if !identity.Admin {
		return domain.Settlement{}, fmt.Errorf("settle: market %s: %w", marketID, domain.ErrForbidden)
	}

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "settle:"+marketID, settleLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.Settlement{}, fmt.Errorf("settle: market %s is being settled: %w",
					marketID, domain.ErrUnavailable)
			}
			return domain.Settlement{}, fmt.Errorf("settle: lock market %s: %w", marketID, err)
		}
		defer unlock()
	}

	agg, err := s.markets.Aggregate(ctx, marketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle: load market %s: %w", marketID, err)
	}
	if agg.Market.Status != domain.MarketStatusClosed {
		return domain.Settlement{}, fmt.Errorf("settle: market %s is %s: %w",
			marketID, agg.Market.Status, domain.ErrInvalidState)
	}
	if _, ok := agg.Option(optionID); !ok {
		return domain.Settlement{}, fmt.Errorf("settle: option %s on market %s: %w",
			optionID, marketID, domain.ErrNotFound)
	}

	winners := parimutuel.Winners(agg.Stakes, optionID)
	settlement := domain.Settlement{
		MarketID:        marketID,
		CorrectOptionID: optionID,
		Payouts:         parimutuel.Payouts(agg.Market.TotalPool, winners),
	}

	if err := s.settlements.Apply(ctx, settlement); err != nil {
		return domain.Settlement{}, fmt.Errorf("settle: apply %s: %w", marketID, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, marketID); err != nil {
			s.logger.WarnContext(ctx, "summary cache invalidate failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	disbursed := settlement.Total()
	forfeited := parimutuel.Residual(agg.Market.TotalPool, settlement.Payouts)

	if s.audit != nil {
		if err := s.audit.Log(ctx, "market.settle", map[string]any{
			"market_id":  marketID,
			"option_id":  optionID,
			"actor_id":   identity.AccountID,
			"pool":       agg.Market.TotalPool.String(),
			"disbursed":  disbursed.String(),
			"forfeited":  forfeited.String(),
			"winners":    len(settlement.Payouts),
			"stake_rows": len(agg.Stakes),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "market settled",
		slog.String("market_id", marketID),
		slog.String("option_id", optionID),
		slog.String("pool", agg.Market.TotalPool.String()),
		slog.String("disbursed", disbursed.String()),
		slog.String("forfeited", forfeited.String()),
		slog.Int("winners", len(settlement.Payouts)),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type:     domain.EventMarketSettled,
		MarketID: marketID,
		Title:    agg.Market.Title,
		Detail: map[string]any{
			"option_id": optionID,
			"pool":      agg.Market.TotalPool.String(),
			"disbursed": disbursed.String(),
			"forfeited": forfeited.String(),
		},
	})
	return settlement, nil
}
