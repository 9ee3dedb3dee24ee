// Package fee implements the price-dependent taker fee curve, the legacy
// basis-point order fee, and the split of a collected fee between the
// platform, the maker and the market creator.
package fee

import (
	"fmt"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
)

// BpsDivisor converts basis points to a fraction.
const BpsDivisor uint64 = 10_000

// RoundingTolerance is the largest shortfall, in smallest units, allowed
// between a fee and the sum of its distributed parts.
const RoundingTolerance uint64 = 3

// Rate returns the taker fee rate in ppm at price:
//
//	center - (center-extreme) * |price-0.5| / 0.5
//
// The curve is symmetric around 0.5 and never drops below zero.
func Rate(cfg domain.FeeConfig, price uint64) (uint32, error) {
	if !fixedpoint.ValidPrice(price) {
		return 0, domain.ErrInvalidPrice
	}
	center := uint64(cfg.CenterTakerRate)
	extreme := uint64(cfg.ExtremeTakerRate)
	var span uint64
	if center > extreme {
		span = center - extreme
	}
	reduction, err := fixedpoint.MulDiv(span, fixedpoint.AbsDiff(price, fixedpoint.Half), fixedpoint.Half)
	if err != nil {
		return 0, err
	}
	if reduction >= center {
		return 0, nil
	}
	return uint32(center - reduction), nil
}

// TakerFee returns the curve fee charged on a trade of the given collateral
// cost at price.
func TakerFee(cfg domain.FeeConfig, cost, price uint64) (fee uint64, rate uint32, err error) {
	rate, err = Rate(cfg, price)
	if err != nil {
		return 0, 0, err
	}
	if cost == 0 {
		return 0, rate, nil
	}
	fee, err = fixedpoint.ScaleBy(cost, uint64(rate))
	if err != nil {
		return 0, 0, err
	}
	return fee, rate, nil
}

// OrderFee is the basis-point fee used for signed-order fills:
//
//	bps * min(p, 1-p) * proceeds / (10_000 * 1e6)
//
// where p is the order's own price. A zero rate, zero proceeds, or a zero
// amount on the order returns 0.
func OrderFee(bps, maxBps uint16, proceeds, makerAmount, takerAmount uint64, side domain.Side) (uint64, error) {
	if bps == 0 || proceeds == 0 {
		return 0, nil
	}
	if bps > maxBps {
		return 0, domain.ErrFeeTooHigh
	}
	num, den := makerAmount, takerAmount
	if side == domain.SideSell {
		num, den = takerAmount, makerAmount
	}
	if num == 0 || den == 0 {
		return 0, nil
	}
	price, err := fixedpoint.MulDiv(num, fixedpoint.Scale, den)
	if err != nil {
		return 0, err
	}
	factor := min(price, fixedpoint.Complement(price))
	// bps*factor is bounded by 65535 * 500000 and cannot overflow.
	return fixedpoint.MulDiv(uint64(bps)*factor, proceeds, BpsDivisor*fixedpoint.Scale)
}

// Split is a fee divided between its recipients.
type Split struct {
	Platform         uint64
	MakerRebate      uint64
	CreatorIncentive uint64
}

// Total returns the distributed amount.
func (s Split) Total() uint64 {
	return s.Platform + s.MakerRebate + s.CreatorIncentive
}

// Distribute splits fee by the configured shares. The parts never exceed
// the fee and fall short of it by at most RoundingTolerance.
func Distribute(cfg domain.FeeConfig, fee uint64) (Split, error) {
	var s Split
	var err error
	if s.Platform, err = fixedpoint.ScaleBy(fee, uint64(cfg.PlatformShare)); err != nil {
		return Split{}, err
	}
	if s.MakerRebate, err = fixedpoint.ScaleBy(fee, uint64(cfg.MakerRebateShare)); err != nil {
		return Split{}, err
	}
	if s.CreatorIncentive, err = fixedpoint.ScaleBy(fee, uint64(cfg.CreatorIncentiveShare)); err != nil {
		return Split{}, err
	}
	total, err := fixedpoint.Sum(s.Platform, s.MakerRebate, s.CreatorIncentive)
	if err != nil {
		return Split{}, err
	}
	if total > fee || fee-total > RoundingTolerance {
		return Split{}, fmt.Errorf("fee: distribute %d: parts sum to %d: %w", fee, total, domain.ErrInvalidFeeConfiguration)
	}
	return s, nil
}

// ValidateConfig checks a fee configuration at admin-update time.
func ValidateConfig(cfg domain.FeeConfig) error {
	if cfg.CenterTakerRate > domain.MaxTakerFeeRate {
		return fmt.Errorf("fee: center rate %d above %d: %w", cfg.CenterTakerRate, domain.MaxTakerFeeRate, domain.ErrInvalidFeeConfiguration)
	}
	if cfg.ExtremeTakerRate > cfg.CenterTakerRate {
		return fmt.Errorf("fee: extreme rate %d above center %d: %w", cfg.ExtremeTakerRate, cfg.CenterTakerRate, domain.ErrInvalidFeeConfiguration)
	}
	sum := uint64(cfg.PlatformShare) + uint64(cfg.MakerRebateShare) + uint64(cfg.CreatorIncentiveShare)
	if sum != fixedpoint.Scale {
		return fmt.Errorf("fee: shares sum to %d: %w", sum, domain.ErrInvalidFeeConfiguration)
	}
	return nil
}
