package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// summaryTTL bounds staleness in case an invalidation is lost; every market
// mutation invalidates explicitly, so the TTL is a backstop only.
const summaryTTL = 5 * time.Minute

// SummaryCache implements domain.MarketSummaryCache using JSON-serialized
// summaries under per-market string keys.
//
// Key schema:
//
//	market:summary:{id} - JSON-encoded domain.MarketSummary
type SummaryCache struct {
	rdb *redis.Client
}

// NewSummaryCache creates a SummaryCache backed by the given Client.
func NewSummaryCache(c *Client) *SummaryCache {
	return &SummaryCache{rdb: c.Underlying()}
}

func summaryKey(id string) string { return "market:summary:" + id }

// Get retrieves a cached summary by market ID. It returns domain.ErrNotFound
// when the key does not exist.
func (sc *SummaryCache) Get(ctx context.Context, marketID string) (domain.MarketSummary, error) {
	data, err := sc.rdb.Get(ctx, summaryKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSummary{}, domain.ErrNotFound
		}
		return domain.MarketSummary{}, fmt.Errorf("redis: get summary %s: %w", marketID, err)
	}

	var summary domain.MarketSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return domain.MarketSummary{}, fmt.Errorf("redis: unmarshal summary %s: %w", marketID, err)
	}
	return summary, nil
}

// Set stores a summary with the backstop TTL.
func (sc *SummaryCache) Set(ctx context.Context, summary domain.MarketSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("redis: marshal summary %s: %w", summary.Market.ID, err)
	}
	if err := sc.rdb.Set(ctx, summaryKey(summary.Market.ID), data, summaryTTL).Err(); err != nil {
		return fmt.Errorf("redis: set summary %s: %w", summary.Market.ID, err)
	}
	return nil
}

// Invalidate removes a market's summary from the cache.
func (sc *SummaryCache) Invalidate(ctx context.Context, marketID string) error {
	if err := sc.rdb.Del(ctx, summaryKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate summary %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketSummaryCache = (*SummaryCache)(nil)
