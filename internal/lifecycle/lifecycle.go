// Package lifecycle moves a market from Active to Settled or Terminated and
// locks the values redemption later pays out against. Every function works
// on a position.Book; on error the caller discards the book.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
	"github.com/alanyoungcy/marketengine/internal/position"
)

// Resolution carries the payloads produced by a terminal transition. Exactly
// one of Settled and Terminated is set.
type Resolution struct {
	Settled       *domain.MarketSettled
	Terminated    *domain.MarketTerminated
	CreatorPayout *domain.Payout
	KeeperReward  *domain.Payout
}

// DeriveFinalPrices returns the redemption prices for m: the last YES price
// if one was recorded, else the complement of the last NO price, else 50/50.
// The two always sum to one.
func DeriveFinalPrices(m *domain.Market) (yes, no uint64) {
	switch {
	case m.LastYesPrice != nil:
		yes = min(*m.LastYesPrice, fixedpoint.Scale)
	case m.LastNoPrice != nil:
		yes = fixedpoint.Complement(min(*m.LastNoPrice, fixedpoint.Scale))
	default:
		yes = fixedpoint.Half
	}
	return yes, fixedpoint.Complement(yes)
}

// finalize moves the market into status with the given final prices and
// snapshots the vault as the redeemable pool.
func finalize(b *position.Book, status domain.MarketStatus, yes, no uint64) error {
	m := b.Market
	if !m.Status.CanTransitionTo(status) {
		return fmt.Errorf("lifecycle: %s -> %s: %w", m.Status, status, domain.ErrInvalidTransition)
	}
	if err := b.CheckConservation(); err != nil {
		return err
	}
	m.Status = status
	m.FinalYesPrice = domain.Ptr(yes)
	m.FinalNoPrice = domain.Ptr(no)
	m.ResolvedAt = domain.Ptr(b.Now)
	m.TotalRedeemable = b.VaultBalance()
	m.TotalRedeemed = 0
	return nil
}

// payCreator pays out the creator's accrued incentive. A short treasury is
// logged and skipped; the accrual stays on the market for a later attempt.
func payCreator(b *position.Book, log *slog.Logger) (*domain.Payout, error) {
	m := b.Market
	accrued := m.CreatorIncentiveAccrued
	if accrued == 0 {
		return nil, nil
	}
	err := b.Transfer(domain.CreatorTreasury(), domain.WalletOf(m.Creator), accrued)
	if errors.Is(err, domain.ErrInsufficientBalance) {
		log.Warn("creator treasury short, skipping creator payout",
			slog.String("market", m.ID.String()),
			slog.Uint64("accrued", accrued),
			slog.Uint64("treasury", b.Balance(domain.CreatorTreasury())),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.CreatorIncentiveAccrued = 0
	return &domain.Payout{Recipient: m.Creator, Amount: accrued}, nil
}

// Settle resolves an Active market to the outcome opposite the last traded
// outcome. Final prices come from the last recorded trade prices.
func Settle(b *position.Book, log *slog.Logger) (*Resolution, error) {
	m := b.Market
	if m.Status != domain.MarketStatusActive {
		return nil, domain.ErrMarketNotActive
	}
	if m.LastTradeOutcome == nil || m.ReferenceAgent == nil {
		return nil, domain.ErrMissingLastTrade
	}
	winning := m.LastTradeOutcome.Opposite()

	yes, no := DeriveFinalPrices(m)
	if err := finalize(b, domain.MarketStatusSettled, yes, no); err != nil {
		return nil, err
	}
	m.WinningOutcome = domain.Ptr(winning)

	payout, err := payCreator(b, log)
	if err != nil {
		return nil, err
	}
	return &Resolution{
		Settled: &domain.MarketSettled{
			WinningOutcome:  winning,
			ReferenceAgent:  *m.ReferenceAgent,
			FinalYesPrice:   yes,
			FinalNoPrice:    no,
			VaultBalance:    m.TotalRedeemable,
			TotalRedeemable: m.TotalRedeemable,
		},
		CreatorPayout: payout,
	}, nil
}

// TerminateIfInactive terminates an Active market whose last activity is at
// least cfg.InactivityTimeout before now. It returns nil, nil when the
// market is still live. When cfg names a keeper, only the keeper or the
// authority may call it.
func TerminateIfInactive(b *position.Book, cfg *domain.GlobalConfig, caller domain.Pubkey, now time.Time, slot uint64, log *slog.Logger) (*Resolution, error) {
	if !cfg.Keeper.IsZero() && caller != cfg.Keeper && caller != cfg.Authority {
		return nil, domain.ErrUnauthorized
	}
	m := b.Market
	if m.Status != domain.MarketStatusActive {
		return nil, domain.ErrMarketNotActive
	}
	if now.Sub(m.LastActivityAt) < cfg.InactivityTimeout {
		return nil, nil
	}

	yes, no := DeriveFinalPrices(m)
	m.LastYesPrice = domain.Ptr(yes)
	m.LastNoPrice = domain.Ptr(no)
	if err := finalize(b, domain.MarketStatusTerminated, yes, no); err != nil {
		return nil, err
	}
	m.TerminationReason = domain.Ptr(domain.TerminationInactivity)
	m.TerminationSlot = domain.Ptr(slot)

	res := &Resolution{
		Terminated: &domain.MarketTerminated{
			Reason:          domain.TerminationInactivity,
			Executor:        caller,
			FinalYesPrice:   yes,
			FinalNoPrice:    no,
			TotalRedeemable: m.TotalRedeemable,
		},
	}
	var err error
	if res.CreatorPayout, err = payCreator(b, log); err != nil {
		return nil, err
	}
	if res.KeeperReward, err = payKeeper(b, cfg.TerminationReward, caller, log); err != nil {
		return nil, err
	}
	return res, nil
}

func payKeeper(b *position.Book, reward uint64, keeper domain.Pubkey, log *slog.Logger) (*domain.Payout, error) {
	if reward == 0 {
		return nil, nil
	}
	err := b.Transfer(domain.RewardTreasury(), domain.WalletOf(keeper), reward)
	if errors.Is(err, domain.ErrInsufficientBalance) {
		log.Warn("reward treasury short, skipping keeper reward",
			slog.String("market", b.Market.ID.String()),
			slog.Uint64("reward", reward),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Payout{Recipient: keeper, Amount: reward}, nil
}
