// Package matching combines signed orders into balance movements. A taker
// order is matched against up to five maker orders; each pair is classified
// into one of three modes and settled against a position.Book.
package matching

import (
	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
	"github.com/alanyoungcy/marketengine/internal/order"
)

// Mode is the execution mode of a taker/maker pair.
type Mode uint8

const (
	// Complementary is a direct swap: opposite sides, same outcome token.
	Complementary Mode = iota
	// Synthesize mints a fresh pair from both buyers' collateral.
	Synthesize
	// Redeem burns a pair from both sellers and releases collateral.
	Redeem
)

func (m Mode) String() string {
	switch m {
	case Complementary:
		return "complementary"
	case Synthesize:
		return "synthesize"
	case Redeem:
		return "redeem"
	default:
		return "unknown"
	}
}

// Classify returns the execution mode of taker against maker, or
// domain.ErrInvalidMatch for any other side/asset combination.
func Classify(taker, maker domain.Order) (Mode, error) {
	if !taker.TokenID.IsOutcome() || !maker.TokenID.IsOutcome() {
		return 0, domain.ErrInvalidMatch
	}
	sameToken := taker.TokenID == maker.TokenID
	switch {
	case taker.Side != maker.Side && sameToken:
		return Complementary, nil
	case taker.Side == domain.SideBuy && maker.Side == domain.SideBuy && !sameToken:
		return Synthesize, nil
	case taker.Side == domain.SideSell && maker.Side == domain.SideSell && !sameToken:
		return Redeem, nil
	}
	return 0, domain.ErrInvalidMatch
}

// Crossing reports whether the two orders' prices are compatible in mode.
func Crossing(taker, maker domain.Order, mode Mode) (bool, error) {
	tp, err := order.Price(taker)
	if err != nil {
		return false, err
	}
	mp, err := order.Price(maker)
	if err != nil {
		return false, err
	}
	if !fixedpoint.ValidPrice(tp) || !fixedpoint.ValidPrice(mp) {
		return false, domain.ErrInvalidPrice
	}
	switch mode {
	case Complementary:
		if taker.Side == domain.SideBuy {
			return tp >= mp, nil
		}
		return tp <= mp, nil
	case Synthesize:
		return tp+mp <= fixedpoint.Scale, nil
	case Redeem:
		return tp+mp >= fixedpoint.Scale, nil
	}
	return false, domain.ErrInvalidMatch
}

// TakingAmount returns making*takerAmount/makerAmount, the amount a maker
// order receives for giving making. A zero makerAmount yields 0.
func TakingAmount(making, makerAmount, takerAmount uint64) (uint64, error) {
	return fixedpoint.MulDivOrZero(making, takerAmount, makerAmount)
}

func assetIDs(o domain.Order) (makerAsset, takerAsset domain.TokenID) {
	if o.Side == domain.SideBuy {
		return domain.TokenCollateral, o.TokenID
	}
	return o.TokenID, domain.TokenCollateral
}
