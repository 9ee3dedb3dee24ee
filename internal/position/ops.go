package position

import (
	"fmt"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
)

// Split pulls amount of collateral from the user's wallet into the vault and
// credits amount of each outcome share.
func (b *Book) Split(user domain.Pubkey, amount uint64) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	if err := TradeBlocked(b.Market); err != nil {
		return err
	}
	if err := b.Transfer(domain.WalletOf(user), domain.VaultOf(b.Market.ID), amount); err != nil {
		return err
	}
	if err := b.CreditShares(user, domain.OutcomeYes, amount); err != nil {
		return err
	}
	if err := b.CreditShares(user, domain.OutcomeNo, amount); err != nil {
		return err
	}
	if err := b.growSupply(amount); err != nil {
		return err
	}
	return b.CheckConservation()
}

// Merge burns amount of each outcome share and returns amount of collateral
// from the vault to the user's wallet. After resolution a merge draws on the
// redeemable pool like any other redemption.
func (b *Book) Merge(user domain.Pubkey, amount uint64) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	m := b.Market
	if m.Status != domain.MarketStatusActive && !m.CanRedeem() {
		return domain.ErrMarketNotActive
	}
	p := b.Position(user)
	if p.Yes < amount || p.No < amount {
		return domain.ErrInsufficientBalance
	}
	if m.CanRedeem() {
		if err := b.consumeRedeemable(amount); err != nil {
			return err
		}
	}
	if err := b.DebitShares(user, domain.OutcomeYes, amount); err != nil {
		return err
	}
	if err := b.DebitShares(user, domain.OutcomeNo, amount); err != nil {
		return err
	}
	if m.CanRedeem() {
		if err := b.retire(domain.OutcomeYes, amount, amount); err != nil {
			return err
		}
		if err := b.retire(domain.OutcomeNo, amount, 0); err != nil {
			return err
		}
	} else if err := b.shrinkSupply(amount); err != nil {
		return err
	}
	if err := b.Transfer(domain.VaultOf(m.ID), domain.WalletOf(user), amount); err != nil {
		return err
	}
	return b.CheckConservation()
}

// Redeem burns amount of outcome o after resolution and pays
// amount*finalPrice/Scale from the vault. It returns the payout.
func (b *Book) Redeem(user domain.Pubkey, o domain.Outcome, amount uint64) (uint64, error) {
	m := b.Market
	if !o.Valid() {
		return 0, domain.ErrInvalidOutcome
	}
	if !m.CanRedeem() {
		return 0, domain.ErrRedemptionNotAllowed
	}
	price, ok := m.FinalPrice(o)
	if !ok {
		return 0, domain.ErrMarketNotTerminated
	}
	if amount == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if b.Position(user).Shares(o) < amount {
		return 0, domain.ErrInsufficientOutcomeTokens
	}
	payout, err := fixedpoint.ScaleBy(amount, price)
	if err != nil {
		return 0, err
	}
	if payout == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if b.VaultBalance() < payout {
		return 0, domain.ErrInsufficientVaultBalance
	}

	if err := b.DebitShares(user, o, amount); err != nil {
		return 0, err
	}
	if err := b.consumeRedeemable(payout); err != nil {
		return 0, err
	}
	if err := b.retire(o, amount, payout); err != nil {
		return 0, err
	}

	if err := b.Transfer(domain.VaultOf(m.ID), domain.WalletOf(user), payout); err != nil {
		return 0, err
	}
	return payout, nil
}

// Deposit moves collateral from the user's wallet into the vault and credits
// the user's in-market balance.
func (b *Book) Deposit(user domain.Pubkey, amount uint64) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	if err := b.Transfer(domain.WalletOf(user), domain.VaultOf(b.Market.ID), amount); err != nil {
		return err
	}
	return b.CreditCollateral(user, amount)
}

// Withdraw debits the user's in-market balance and returns the collateral
// from the vault to the user's wallet.
func (b *Book) Withdraw(user domain.Pubkey, amount uint64) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	if err := b.DebitCollateral(user, amount); err != nil {
		return err
	}
	return b.Transfer(domain.VaultOf(b.Market.ID), domain.WalletOf(user), amount)
}

// Mint creates shares of complementary outcomes for two users from
// collateral already debited from them. Supply and position collateral grow
// by shares.
func (b *Book) Mint(a domain.Pubkey, oa domain.Outcome, c domain.Pubkey, oc domain.Outcome, shares uint64) error {
	if oa == oc {
		return fmt.Errorf("position: mint same outcome: %w", domain.ErrInvalidMatch)
	}
	if err := b.CreditShares(a, oa, shares); err != nil {
		return err
	}
	if err := b.CreditShares(c, oc, shares); err != nil {
		return err
	}
	return b.growSupply(shares)
}

// Burn destroys shares of complementary outcomes held by two users. The
// caller credits the released collateral.
func (b *Book) Burn(a domain.Pubkey, oa domain.Outcome, c domain.Pubkey, oc domain.Outcome, shares uint64) error {
	if oa == oc {
		return fmt.Errorf("position: burn same outcome: %w", domain.ErrInvalidMatch)
	}
	if err := b.DebitShares(a, oa, shares); err != nil {
		return err
	}
	if err := b.DebitShares(c, oc, shares); err != nil {
		return err
	}
	return b.shrinkSupply(shares)
}

// retire removes resolved shares of o from supply and released collateral
// from the position collateral. After resolution the position collateral is
// informational; the redeemable ledger bounds what leaves the vault.
func (b *Book) retire(o domain.Outcome, shares, released uint64) error {
	m := b.Market
	supply := &m.YesSupply
	if o == domain.OutcomeNo {
		supply = &m.NoSupply
	}
	v, err := fixedpoint.Sub(*supply, shares, domain.ErrArithmeticOverflow)
	if err != nil {
		return err
	}
	*supply = v
	m.PositionCollateral -= min(released, m.PositionCollateral)
	return nil
}

func (b *Book) consumeRedeemable(amount uint64) error {
	m := b.Market
	remaining, err := fixedpoint.Sub(m.TotalRedeemable, m.TotalRedeemed, domain.ErrArithmeticOverflow)
	if err != nil {
		return err
	}
	if amount > remaining {
		return domain.ErrInsufficientRedeemablePool
	}
	m.TotalRedeemed += amount
	return nil
}

// TradeBlocked returns the state error for a market that cannot trade, or
// nil if it can.
func TradeBlocked(m *domain.Market) error {
	switch {
	case m.Status != domain.MarketStatusActive:
		return domain.ErrMarketNotActive
	case m.Paused:
		return domain.ErrMarketPaused
	}
	return nil
}
