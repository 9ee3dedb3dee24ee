package fill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

var now = time.Unix(1_700_000_000, 0)

func TestTouch(t *testing.T) {
	var rec domain.OrderFill
	require.NoError(t, Touch(&rec, domain.Hash{1}, 100, now))
	assert.Equal(t, uint64(100), rec.Remaining)

	// A second touch with the same hash leaves the record alone.
	rec.Remaining = 40
	require.NoError(t, Touch(&rec, domain.Hash{1}, 100, now))
	assert.Equal(t, uint64(40), rec.Remaining)

	assert.ErrorIs(t, Touch(&rec, domain.Hash{2}, 100, now), domain.ErrOrderHashMismatch)
}

func TestPartialFillsAreMonotonic(t *testing.T) {
	var rec domain.OrderFill
	require.NoError(t, Touch(&rec, domain.Hash{1}, 100, now))

	prev := rec.Remaining
	for _, req := range []uint64{30, 0, 50, 45} {
		got, err := Fill(&rec, req, now)
		require.NoError(t, err)
		assert.LessOrEqual(t, got, req)
		assert.LessOrEqual(t, rec.Remaining, prev)
		prev = rec.Remaining
	}
	assert.Zero(t, rec.Remaining)
	assert.True(t, rec.Done)

	_, err := Fill(&rec, 1, now)
	assert.ErrorIs(t, err, domain.ErrOrderNotFillable)
}

func TestFillCapsAtRemaining(t *testing.T) {
	rec := domain.OrderFill{Hash: domain.Hash{1}, Remaining: 10}
	got, err := Fill(&rec, 25, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got)
	assert.True(t, rec.Done)
}

func TestCancel(t *testing.T) {
	var rec domain.OrderFill
	require.NoError(t, Touch(&rec, domain.Hash{1}, 100, now))
	require.NoError(t, Cancel(&rec, now))
	assert.ErrorIs(t, Cancel(&rec, now), domain.ErrOrderCancelledOrFilled)

	_, err := Fill(&rec, 1, now)
	assert.ErrorIs(t, err, domain.ErrOrderNotFillable)
}
