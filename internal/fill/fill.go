// Package fill tracks how much of each signed order remains fillable.
//
// A record moves Unset -> Fillable(remaining > 0) -> Done (filled or
// cancelled). Done is terminal.
package fill

import (
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Touch lazily initializes rec for hash with the order's full maker amount,
// or checks that an existing record belongs to hash.
func Touch(rec *domain.OrderFill, hash domain.Hash, makerAmount uint64, now time.Time) error {
	if rec.Hash.IsZero() {
		rec.Hash = hash
		rec.Remaining = makerAmount
		rec.Done = false
		rec.UpdatedAt = now
		return nil
	}
	if rec.Hash != hash {
		return domain.ErrOrderHashMismatch
	}
	return nil
}

// Fill consumes up to amount from rec and returns the amount actually
// filled, which callers must use instead of the request.
func Fill(rec *domain.OrderFill, amount uint64, now time.Time) (uint64, error) {
	if !rec.Fillable() {
		return 0, domain.ErrOrderNotFillable
	}
	actual := min(amount, rec.Remaining)
	rec.Remaining -= actual
	if rec.Remaining == 0 {
		rec.Done = true
	}
	rec.UpdatedAt = now
	return actual, nil
}

// Cancel marks rec done. Cancelling a done record fails.
func Cancel(rec *domain.OrderFill, now time.Time) error {
	if rec.Done {
		return domain.ErrOrderCancelledOrFilled
	}
	rec.Done = true
	rec.UpdatedAt = now
	return nil
}
