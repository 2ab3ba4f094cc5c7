package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

const (
	minTitleLen = 2
	minOptions  = 2
)

// MarketService handles the market lifecycle up to settlement and serves
// read-only projections through the summary cache.
type MarketService struct {
	markets domain.MarketStore
	cache   domain.MarketSummaryCache
	bus     domain.SignalBus
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	cache domain.MarketSummaryCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		cache:   cache,
		bus:     bus,
		audit:   audit,
		logger:  logger,
	}
}

// Open creates a new market in the open state. Only admins may open markets.
// The title needs at least two characters and the option names must be at
// least two distinct non-empty strings.
func (s *MarketService) Open(ctx context.Context, identity domain.Identity, title, description string, optionNames []string) (domain.Market, []domain.Option, error) {
	if !identity.Admin {
		return domain.Market{}, nil, fmt.Errorf("market: open: %w", domain.ErrForbidden)
	}

	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) < minTitleLen {
		return domain.Market{}, nil, fmt.Errorf("market: title must be at least %d characters: %w",
			minTitleLen, domain.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(optionNames))
	cleaned := make([]string, 0, len(optionNames))
	for _, name := range optionNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return domain.Market{}, nil, fmt.Errorf("market: option names must not be empty: %w",
				domain.ErrInvalidInput)
		}
		if seen[name] {
			return domain.Market{}, nil, fmt.Errorf("market: duplicate option %q: %w",
				name, domain.ErrInvalidInput)
		}
		seen[name] = true
		cleaned = append(cleaned, name)
	}
	if len(cleaned) < minOptions {
		return domain.Market{}, nil, fmt.Errorf("market: at least %d options required: %w",
			minOptions, domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	market := domain.Market{
		ID:          uuid.New().String(),
		Title:       title,
		Description: strings.TrimSpace(description),
		CreatorID:   identity.AccountID,
		Status:      domain.MarketStatusOpen,
		TotalPool:   new(big.Int),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	options := make([]domain.Option, 0, len(cleaned))
	for _, name := range cleaned {
		options = append(options, domain.Option{
			ID:          uuid.New().String(),
			MarketID:    market.ID,
			Name:        name,
			TotalAmount: new(big.Int),
		})
	}

	if err := s.markets.Create(ctx, market, options); err != nil {
		return domain.Market{}, nil, fmt.Errorf("market: create: %w", err)
	}

	s.logger.InfoContext(ctx, "market opened",
		slog.String("market_id", market.ID),
		slog.String("title", market.Title),
		slog.Int("options", len(options)),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type:     domain.EventMarketOpened,
		MarketID: market.ID,
		Title:    market.Title,
	})
	return market, options, nil
}

// Close transitions a market open -> closed, freezing its stake set. Only
// admins may close markets.
func (s *MarketService) Close(ctx context.Context, identity domain.Identity, marketID string) error {
	if !identity.Admin {
		return fmt.Errorf("market: close %s: %w", marketID, domain.ErrForbidden)
	}

	if err := s.markets.Close(ctx, marketID); err != nil {
		return fmt.Errorf("market: close %s: %w", marketID, err)
	}
	s.invalidate(ctx, marketID)

	if s.audit != nil {
		if err := s.audit.Log(ctx, "market.close", map[string]any{
			"market_id": marketID,
			"actor_id":  identity.AccountID,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "market closed", slog.String("market_id", marketID))
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type:     domain.EventMarketClosed,
		MarketID: marketID,
	})
	return nil
}

// Summary returns the market projection, checking the cache first and
// rebuilding from an aggregate snapshot on a miss.
func (s *MarketService) Summary(ctx context.Context, marketID string) (domain.MarketSummary, error) {
	if s.cache != nil {
		if summary, err := s.cache.Get(ctx, marketID); err == nil {
			return summary, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "summary cache read failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	agg, err := s.markets.Aggregate(ctx, marketID)
	if err != nil {
		return domain.MarketSummary{}, fmt.Errorf("market: summary %s: %w", marketID, err)
	}
	summary := buildSummary(agg)

	if s.cache != nil {
		if err := s.cache.Set(ctx, summary); err != nil {
			s.logger.WarnContext(ctx, "summary cache write failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	return summary, nil
}

// List returns markets filtered by status, newest first.
func (s *MarketService) List(ctx context.Context, statuses []domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx, statuses, opts)
	if err != nil {
		return nil, fmt.Errorf("market: list: %w", err)
	}
	return markets, nil
}

// Count returns the number of markets matching the status filter.
func (s *MarketService) Count(ctx context.Context, statuses []domain.MarketStatus) (int64, error) {
	n, err := s.markets.Count(ctx, statuses)
	if err != nil {
		return 0, fmt.Errorf("market: count: %w", err)
	}
	return n, nil
}

func (s *MarketService) invalidate(ctx context.Context, marketID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "summary cache invalidate failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

// buildSummary projects an aggregate snapshot into the presentation shape.
// Percentages come from exact big.Rat division, converted to float only at
// the edge.
func buildSummary(agg domain.MarketAggregate) domain.MarketSummary {
	summary := domain.MarketSummary{
		Market:     agg.Market,
		Options:    make([]domain.OptionSummary, 0, len(agg.Options)),
		StakeCount: int64(len(agg.Stakes)),
	}

	pool := agg.Market.TotalPool
	for _, o := range agg.Options {
		os := domain.OptionSummary{Option: o}
		if pool != nil && pool.Sign() > 0 && o.TotalAmount != nil {
			share := new(big.Rat).SetFrac(
				new(big.Int).Mul(o.TotalAmount, big.NewInt(100)),
				pool,
			)
			os.Percent, _ = share.Float64()
		}
		summary.Options = append(summary.Options, os)
	}
	return summary
}
