package lifecycle

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"lukechampine.com/blake3"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
	"github.com/alanyoungcy/marketengine/internal/position"
)

const (
	// RandomRange bounds the reduced random value: [0, RandomRange).
	RandomRange = 100_000_001
	// MaxThreshold is the threshold of a market that always terminates.
	MaxThreshold = 100_000_000
	// PriceTolerance is the accepted drift between submitted and recorded
	// prices, and of their sum from one.
	PriceTolerance = 100
)

// Digest derives a per-attempt value from an oracle sample. The input order
// is fixed: value, market, caller, nonce, slot.
func Digest(value [32]byte, market, caller domain.Pubkey, nonce, slot uint64) [32]byte {
	buf := make([]byte, 0, 32*3+8+8)
	buf = append(buf, value[:]...)
	buf = append(buf, market[:]...)
	buf = append(buf, caller[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, nonce)
	buf = binary.LittleEndian.AppendUint64(buf, slot)
	return blake3.Sum256(buf)
}

// RandomValue reduces a digest to [0, RandomRange).
func RandomValue(digest [32]byte) uint64 {
	return binary.LittleEndian.Uint64(digest[:8]) % RandomRange
}

// Threshold returns the check threshold for a termination probability in
// parts-per-million.
func Threshold(probability uint32) uint64 {
	return uint64(probability) * domain.TerminationThresholdMultiplier
}

// CheckRequest is one randomized termination attempt.
type CheckRequest struct {
	Caller    domain.Pubkey            `json:"caller"`
	Reading   domain.RandomnessReading `json:"-"`
	Threshold uint64                   `json:"threshold"`
	YesPrice  uint64                   `json:"yes_price"`
	NoPrice   uint64                   `json:"no_price"`
	TradeSlot uint64                   `json:"trade_slot"`
	OptedIn   bool                     `json:"opted_in"`
}

// Check is the outcome of an attempt. Resolution is set only when the
// market was terminated.
type Check struct {
	Result     domain.TerminationCheckResult
	FeePaid    uint64
	Resolution *Resolution
}

// CheckTermination runs a randomized termination attempt at slot. It returns
// nil, nil when the caller did not opt in or the market has random
// termination disabled.
func CheckTermination(b *position.Book, cfg *domain.GlobalConfig, req CheckRequest, slot uint64, log *slog.Logger) (*Check, error) {
	m := b.Market
	if !req.OptedIn || !m.RandomTerminationEnabled {
		return nil, nil
	}
	if m.Status != domain.MarketStatusActive {
		return nil, domain.ErrMarketTerminated
	}

	threshold := Threshold(m.TerminationProbability)
	if threshold > MaxThreshold || req.Threshold != threshold {
		return nil, fmt.Errorf("lifecycle: threshold %d, expected %d: %w", req.Threshold, threshold, domain.ErrInvalidThreshold)
	}
	if err := checkPrices(m, req.YesPrice, req.NoPrice); err != nil {
		return nil, err
	}
	if m.LastTradeSlot == nil {
		m.LastTradeSlot = domain.Ptr(req.TradeSlot)
	}
	if err := b.CheckConservation(); err != nil {
		return nil, err
	}
	if req.Reading.Slot > slot || slot-req.Reading.Slot > cfg.RandomnessMaxAge {
		return nil, fmt.Errorf("lifecycle: reading at slot %d, now %d: %w", req.Reading.Slot, slot, domain.ErrRandomnessStale)
	}

	if err := b.Transfer(domain.WalletOf(req.Caller), domain.PlatformTreasury(), cfg.TerminationCheckFee); err != nil {
		return nil, fmt.Errorf("lifecycle: termination check fee: %w", err)
	}
	nonce, err := fixedpoint.Add(m.TerminationNonce, 1)
	if err != nil {
		return nil, err
	}
	m.TerminationNonce = nonce

	value := RandomValue(Digest(req.Reading.Value, m.ID, req.Caller, nonce, slot))
	terminated := value < threshold
	check := &Check{
		Result: domain.TerminationCheckResult{
			Caller:      req.Caller,
			Nonce:       nonce,
			RandomValue: value,
			Threshold:   threshold,
			Terminated:  terminated,
		},
		FeePaid: cfg.TerminationCheckFee,
	}
	if !terminated {
		return check, nil
	}
	if m.LastTradeOutcome == nil {
		return nil, fmt.Errorf("lifecycle: random termination: %w", domain.ErrMissingLastTrade)
	}

	if err := finalize(b, domain.MarketStatusTerminated, req.YesPrice, req.NoPrice); err != nil {
		return nil, err
	}
	m.TerminationReason = domain.Ptr(domain.TerminationRandom)
	m.TerminationSlot = domain.Ptr(req.TradeSlot)

	payout, err := payCreator(b, log)
	if err != nil {
		return nil, err
	}
	check.Resolution = &Resolution{
		Terminated: &domain.MarketTerminated{
			Reason:          domain.TerminationRandom,
			Executor:        req.Caller,
			FinalYesPrice:   req.YesPrice,
			FinalNoPrice:    req.NoPrice,
			TotalRedeemable: m.TotalRedeemable,
		},
		CreatorPayout: payout,
	}
	return check, nil
}

// checkPrices requires yes+no to be one within tolerance and, when the
// market already has trade prices, to match them within tolerance. A market
// without recorded prices adopts the submitted ones.
func checkPrices(m *domain.Market, yes, no uint64) error {
	sum, err := fixedpoint.Add(yes, no)
	if err != nil {
		return err
	}
	if fixedpoint.AbsDiff(sum, fixedpoint.Scale) > PriceTolerance {
		return domain.ErrPriceSumMismatch
	}
	if m.LastYesPrice == nil || m.LastNoPrice == nil {
		m.LastYesPrice = domain.Ptr(yes)
		m.LastNoPrice = domain.Ptr(no)
		return nil
	}
	if fixedpoint.AbsDiff(*m.LastYesPrice, yes) > PriceTolerance || fixedpoint.AbsDiff(*m.LastNoPrice, no) > PriceTolerance {
		return domain.ErrPriceMismatch
	}
	return nil
}
