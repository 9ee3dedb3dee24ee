package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// RandomnessFeed stores the latest oracle sample per market in a hash under
// {ns}:randomness:{market} with fields value (0x hex), slot and ts (unix ms).
// An external oracle relay writes it with Publish; the engine host reads it
// with Latest.
type RandomnessFeed struct {
	c *Client
}

// NewRandomnessFeed creates a RandomnessFeed backed by the given Client.
func NewRandomnessFeed(c *Client) *RandomnessFeed {
	return &RandomnessFeed{c: c}
}

func (rf *RandomnessFeed) feedKey(market domain.Pubkey) string {
	return rf.c.key("randomness", market.String())
}

// Publish replaces the latest reading for market.
func (rf *RandomnessFeed) Publish(ctx context.Context, market domain.Pubkey, r domain.RandomnessReading) error {
	err := rf.c.rdb.HSet(ctx, rf.feedKey(market),
		"value", hexutil.Encode(r.Value[:]),
		"slot", r.Slot,
		"ts", r.Timestamp.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: publish randomness %s: %w", market, err)
	}
	return nil
}

// Latest returns the most recent reading, or domain.ErrNotFound when the
// relay has not published one yet.
func (rf *RandomnessFeed) Latest(ctx context.Context, market domain.Pubkey) (domain.RandomnessReading, error) {
	fields, err := rf.c.rdb.HGetAll(ctx, rf.feedKey(market)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.RandomnessReading{}, fmt.Errorf("redis: read randomness %s: %w", market, err)
	}
	if len(fields) == 0 {
		return domain.RandomnessReading{}, fmt.Errorf("redis: randomness %s: %w", market, domain.ErrNotFound)
	}

	var r domain.RandomnessReading
	raw, err := hexutil.Decode(fields["value"])
	if err != nil || len(raw) != len(r.Value) {
		return domain.RandomnessReading{}, fmt.Errorf("redis: randomness %s: malformed value %q", market, fields["value"])
	}
	copy(r.Value[:], raw)

	if r.Slot, err = strconv.ParseUint(fields["slot"], 10, 64); err != nil {
		return domain.RandomnessReading{}, fmt.Errorf("redis: randomness %s: slot: %w", market, err)
	}
	ms, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return domain.RandomnessReading{}, fmt.Errorf("redis: randomness %s: ts: %w", market, err)
	}
	r.Timestamp = time.UnixMilli(ms).UTC()
	return r, nil
}

var _ domain.RandomnessSource = (*RandomnessFeed)(nil)
