package matching

import (
	"fmt"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fee"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
	"github.com/alanyoungcy/marketengine/internal/position"
)

// leg is one taker/maker pair after validation, with the maker-side
// amounts already capped by the maker's fill record.
type leg struct {
	taker    domain.Order
	maker    domain.Order
	mode     Mode
	making   uint64
	taking   uint64

	takerPrice uint64
	makerPrice uint64

	operator domain.Pubkey
	maxFee   uint16
}

// settlement is what a leg moved.
type settlement struct {
	// takerGot is in the taker order's taker-asset units.
	takerGot uint64
	fee      uint64
}

func outcomeOf(t domain.TokenID) domain.Outcome {
	o, _ := t.Outcome()
	return o
}

// execute applies l to the book.
func execute(b *position.Book, l leg) (settlement, error) {
	switch l.mode {
	case Complementary:
		return executeComplementary(b, l)
	case Synthesize:
		return executeSynthesize(b, l)
	case Redeem:
		return executeRedeem(b, l)
	}
	return settlement{}, domain.ErrInvalidMatch
}

// executeComplementary swaps shares for collateral. The legacy order fee is
// taken from the seller's collateral proceeds and credited to the operator.
func executeComplementary(b *position.Book, l leg) (settlement, error) {
	taker, maker := l.taker.Maker, l.maker.Maker
	outcome := outcomeOf(l.maker.TokenID)

	if l.maker.Side == domain.SideSell {
		// Maker gives making shares, taker pays taking collateral.
		f, err := fee.OrderFee(l.maker.FeeRateBps, l.maxFee, l.taking, l.maker.MakerAmount, l.maker.TakerAmount, l.maker.Side)
		if err != nil {
			return settlement{}, err
		}
		net, err := fixedpoint.Sub(l.taking, f, domain.ErrArithmeticOverflow)
		if err != nil {
			return settlement{}, err
		}
		if err := b.MoveShares(maker, taker, outcome, l.making); err != nil {
			return settlement{}, err
		}
		if err := b.DebitCollateral(taker, l.taking); err != nil {
			return settlement{}, err
		}
		if err := b.CreditCollateral(maker, net); err != nil {
			return settlement{}, err
		}
		if err := b.CreditCollateral(l.operator, f); err != nil {
			return settlement{}, err
		}
		return settlement{takerGot: l.making, fee: f}, nil
	}

	// Maker pays making collateral for taking shares from the taker.
	f, err := fee.OrderFee(l.maker.FeeRateBps, l.maxFee, l.making, l.maker.MakerAmount, l.maker.TakerAmount, l.maker.Side)
	if err != nil {
		return settlement{}, err
	}
	net, err := fixedpoint.Sub(l.making, f, domain.ErrArithmeticOverflow)
	if err != nil {
		return settlement{}, err
	}
	if err := b.DebitCollateral(maker, l.making); err != nil {
		return settlement{}, err
	}
	if err := b.MoveShares(taker, maker, outcome, l.taking); err != nil {
		return settlement{}, err
	}
	if err := b.CreditCollateral(taker, net); err != nil {
		return settlement{}, err
	}
	if err := b.CreditCollateral(l.operator, f); err != nil {
		return settlement{}, err
	}
	return settlement{takerGot: net, fee: f}, nil
}

// split divides total collateral between taker and maker in proportion to
// their stated prices. The maker share is rounded down.
func split(total uint64, l leg) (takerPart, makerPart uint64, err error) {
	sum := l.takerPrice + l.makerPrice
	if sum == 0 {
		return 0, 0, domain.ErrInvalidPrice
	}
	makerPart, err = fixedpoint.MulDiv(total, l.makerPrice, sum)
	if err != nil {
		return 0, 0, err
	}
	return total - makerPart, makerPart, nil
}

// executeSynthesize mints one pair per share the maker buys. Collateral is
// pulled from both sides in proportion to price, so exactly shares
// collateral enters the market.
func executeSynthesize(b *position.Book, l leg) (settlement, error) {
	shares := l.taking
	takerPays, makerPays, err := split(shares, l)
	if err != nil {
		return settlement{}, fmt.Errorf("matching: synthesize %d shares: %w", shares, err)
	}
	if err := b.DebitCollateral(l.maker.Maker, makerPays); err != nil {
		return settlement{}, err
	}
	if err := b.DebitCollateral(l.taker.Maker, takerPays); err != nil {
		return settlement{}, err
	}
	err = b.Mint(l.taker.Maker, outcomeOf(l.taker.TokenID), l.maker.Maker, outcomeOf(l.maker.TokenID), shares)
	if err != nil {
		return settlement{}, err
	}
	return settlement{takerGot: shares}, nil
}

// executeRedeem burns one pair per share the maker sells. Collateral is
// returned to both sides in proportion to price, so exactly shares
// collateral leaves the market.
func executeRedeem(b *position.Book, l leg) (settlement, error) {
	shares := l.making
	takerGets, makerGets, err := split(shares, l)
	if err != nil {
		return settlement{}, fmt.Errorf("matching: redeem %d shares: %w", shares, err)
	}
	err = b.Burn(l.taker.Maker, outcomeOf(l.taker.TokenID), l.maker.Maker, outcomeOf(l.maker.TokenID), shares)
	if err != nil {
		return settlement{}, err
	}
	if err := b.CreditCollateral(l.maker.Maker, makerGets); err != nil {
		return settlement{}, err
	}
	if err := b.CreditCollateral(l.taker.Maker, takerGets); err != nil {
		return settlement{}, err
	}
	return settlement{takerGot: takerGets}, nil
}
