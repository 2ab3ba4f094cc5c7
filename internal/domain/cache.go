package domain

import (
	"context"
	"time"
)

// MarketSummaryCache caches read-only market projections. A cached summary is
// always a point-in-time consistent snapshot; every market mutation
// invalidates the entry.
type MarketSummaryCache interface {
	Get(ctx context.Context, marketID string) (MarketSummary, error)
	Set(ctx context.Context, summary MarketSummary) error
	Invalidate(ctx context.Context, marketID string) error
}

// LockManager provides short-lived distributed locks. Acquire returns
// ErrLockHeld when the lock is owned by another party; the returned unlock
// function is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter limits request rates per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage is one durable message read from an event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus is the process-external event fabric: ephemeral pub/sub for live
// listeners (WebSocket hub, notifier) and durable streams for replayable
// event history.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
