package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market snapshot lookups for the query API.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id Pubkey) (Market, error)
	Invalidate(ctx context.Context, id Pubkey) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RandomnessSource returns the latest oracle reading published for a market.
type RandomnessSource interface {
	Latest(ctx context.Context, market Pubkey) (RandomnessReading, error)
}

// SlotClock reports the host's current time and ledger slot.
type SlotClock interface {
	Now() (time.Time, uint64)
}

// RateDecision is the outcome of one RateLimiter.Allow call. Used counts
// the requests inside the window, including this one when it was allowed.
type RateDecision struct {
	Allowed bool
	Used    int
}

// Remaining is the number of further requests the window admits.
func (d RateDecision) Remaining(limit int) int {
	return max(0, limit-d.Used)
}

// RateLimiter enforces per-key request budgets over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error)
}
