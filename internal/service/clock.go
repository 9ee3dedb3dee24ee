package service

import (
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// WallClock derives the ledger slot from wall time: one slot per
// SlotDuration since Genesis.
type WallClock struct {
	Genesis      time.Time
	SlotDuration time.Duration
	now          func() time.Time
}

// NewWallClock returns a WallClock. A non-positive slot duration defaults to
// 400ms.
func NewWallClock(genesis time.Time, slot time.Duration) *WallClock {
	if slot <= 0 {
		slot = 400 * time.Millisecond
	}
	return &WallClock{Genesis: genesis, SlotDuration: slot, now: time.Now}
}

// Now returns the current time and slot. Times before genesis map to slot 0.
func (c *WallClock) Now() (time.Time, uint64) {
	now := c.now().UTC()
	elapsed := now.Sub(c.Genesis)
	if elapsed <= 0 {
		return now, 0
	}
	return now, uint64(elapsed / c.SlotDuration)
}

var _ domain.SlotClock = (*WallClock)(nil)
