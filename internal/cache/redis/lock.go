package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// unlockLua deletes a lock key only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const lockPollInterval = 20 * time.Millisecond

// LockManager implements domain.LockManager with SET NX PX and a token-checked
// Lua release. Acquire waits for a held lock until ctx is done.
type LockManager struct {
	c        *Client
	unlockSc *redis.Script
	poll     time.Duration
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{c: c, unlockSc: redis.NewScript(unlockLua), poll: lockPollInterval}
}

// Acquire obtains the lock for key, retrying while another holder has it.
// It returns domain.ErrLockHeld if ctx ends first. The returned unlock is
// idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.c.key("lock", key)

	for {
		ok, err := lm.c.rdb.SetNX(ctx, lk, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
			}
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(lm.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("redis: lock %s: %w", key, errors.Join(domain.ErrLockHeld, ctx.Err()))
		case <-timer.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lm.unlockSc.Run(unlockCtx, lm.c.rdb, []string{lk}, token).Err()
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
