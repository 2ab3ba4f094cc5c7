package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBus records published events in memory.
type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	stream    [][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string][][]byte)}
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stream = append(b.stream, payload)
	return nil
}

func (b *fakeBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

// fakeCache is an in-memory MarketSummaryCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.MarketSummary
	sets    int
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.MarketSummary)}
}

func (c *fakeCache) Get(ctx context.Context, marketID string) (domain.MarketSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary, ok := c.entries[marketID]
	if !ok {
		return domain.MarketSummary{}, domain.ErrNotFound
	}
	c.hits++
	return summary, nil
}

func (c *fakeCache) Set(ctx context.Context, summary domain.MarketSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[summary.Market.ID] = summary
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, marketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, marketID)
	return nil
}

// fakeLocks is an in-process LockManager.
type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (l *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.held, key)
		})
	}, nil
}

// admin and user are the identities used across the service tests.
var (
	adminIdentity = domain.Identity{AccountID: "admin-1", Admin: true}
	userIdentity  = domain.Identity{AccountID: "user-1"}
)

func seedAccount(store domain.AccountStore, id string, balance int64) error {
	return store.Create(context.Background(), domain.Account{
		ID:        id,
		Username:  "u-" + id,
		Balance:   big.NewInt(balance),
		CreatedAt: time.Now().UTC(),
	})
}
