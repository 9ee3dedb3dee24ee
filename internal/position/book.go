// Package position keeps the per-market balance ledger: user collateral and
// outcome-share positions, market supply, and the custody holdings (wallets,
// vault, treasuries) that collateral moves between.
//
// A Book is a working set loaded by the host for one call. Every mutation is
// checked; callers discard the Book on error.
package position

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
)

// Book is the balance working set of one market.
type Book struct {
	Market    *domain.Market
	Positions map[domain.Pubkey]*domain.Position
	Custody   map[domain.CustodyKey]uint64

	// Transfers lists custody movements applied to this Book, in order.
	Transfers []domain.Transfer

	Now time.Time
}

// NewBook returns an empty Book for m.
func NewBook(m *domain.Market, now time.Time) *Book {
	return &Book{
		Market:    m,
		Positions: make(map[domain.Pubkey]*domain.Position),
		Custody:   make(map[domain.CustodyKey]uint64),
		Now:       now,
	}
}

// Clone returns a deep copy of b.
func (b *Book) Clone() *Book {
	c := &Book{
		Market:    b.Market.Clone(),
		Positions: make(map[domain.Pubkey]*domain.Position, len(b.Positions)),
		Custody:   make(map[domain.CustodyKey]uint64, len(b.Custody)),
		Transfers: append([]domain.Transfer(nil), b.Transfers...),
		Now:       b.Now,
	}
	for k, p := range b.Positions {
		cp := *p
		c.Positions[k] = &cp
	}
	for k, v := range b.Custody {
		c.Custody[k] = v
	}
	return c
}

// Position returns user's position, creating an empty one on first touch.
func (b *Book) Position(user domain.Pubkey) *domain.Position {
	p, ok := b.Positions[user]
	if !ok {
		p = &domain.Position{Market: b.Market.ID, User: user}
		b.Positions[user] = p
	}
	return p
}

// Lookup returns user's position without creating it.
func (b *Book) Lookup(user domain.Pubkey) (*domain.Position, bool) {
	p, ok := b.Positions[user]
	return p, ok
}

// Balance returns the custody balance of k.
func (b *Book) Balance(k domain.CustodyKey) uint64 {
	return b.Custody[k]
}

// VaultBalance returns the balance of this market's vault.
func (b *Book) VaultBalance() uint64 {
	return b.Custody[domain.VaultOf(b.Market.ID)]
}

// Transfer moves amount between two custody holdings. It fails without
// side effects when the source is short, then re-reads both sides to
// confirm the movement.
func (b *Book) Transfer(from, to domain.CustodyKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if from == to {
		return fmt.Errorf("position: transfer to self %s: %w", from, domain.ErrInvalidInput)
	}
	short := domain.ErrInsufficientBalance
	if from.Kind == domain.CustodyVault {
		short = domain.ErrInsufficientVaultBalance
	}

	fromBefore, toBefore := b.Custody[from], b.Custody[to]
	fromAfter, err := fixedpoint.Sub(fromBefore, amount, short)
	if err != nil {
		return fmt.Errorf("position: transfer %d from %s: %w", amount, from, err)
	}
	toAfter, err := fixedpoint.Add(toBefore, amount)
	if err != nil {
		return fmt.Errorf("position: transfer %d to %s: %w", amount, to, err)
	}
	b.Custody[from] = fromAfter
	b.Custody[to] = toAfter

	if b.Custody[from]+amount != fromBefore || b.Custody[to]-amount != toBefore {
		return fmt.Errorf("position: transfer %s->%s: %w", from, to, domain.ErrInvariantViolation)
	}
	b.Transfers = append(b.Transfers, domain.Transfer{From: from, To: to, Amount: amount})
	return nil
}

// CreditCollateral adds amount to user's in-market collateral balance.
func (b *Book) CreditCollateral(user domain.Pubkey, amount uint64) error {
	p := b.Position(user)
	v, err := fixedpoint.Add(p.Collateral, amount)
	if err != nil {
		return err
	}
	p.Collateral = v
	p.UpdatedAt = b.Now
	return nil
}

// DebitCollateral removes amount from user's in-market collateral balance.
func (b *Book) DebitCollateral(user domain.Pubkey, amount uint64) error {
	p := b.Position(user)
	v, err := fixedpoint.Sub(p.Collateral, amount, domain.ErrInsufficientBalance)
	if err != nil {
		return err
	}
	p.Collateral = v
	p.UpdatedAt = b.Now
	return nil
}

// MoveCollateral moves in-market collateral from one user to another.
func (b *Book) MoveCollateral(from, to domain.Pubkey, amount uint64) error {
	if err := b.DebitCollateral(from, amount); err != nil {
		return err
	}
	return b.CreditCollateral(to, amount)
}

// CreditShares adds amount of outcome o to user's position.
func (b *Book) CreditShares(user domain.Pubkey, o domain.Outcome, amount uint64) error {
	p := b.Position(user)
	ptr := p.SharesPtr(o)
	v, err := fixedpoint.Add(*ptr, amount)
	if err != nil {
		return err
	}
	*ptr = v
	p.UpdatedAt = b.Now
	return nil
}

// DebitShares removes amount of outcome o from user's position.
func (b *Book) DebitShares(user domain.Pubkey, o domain.Outcome, amount uint64) error {
	p := b.Position(user)
	ptr := p.SharesPtr(o)
	v, err := fixedpoint.Sub(*ptr, amount, domain.ErrInsufficientOutcomeTokens)
	if err != nil {
		return err
	}
	*ptr = v
	p.UpdatedAt = b.Now
	return nil
}

// MoveShares moves outcome shares between users. Supply is unchanged.
func (b *Book) MoveShares(from, to domain.Pubkey, o domain.Outcome, amount uint64) error {
	if err := b.DebitShares(from, o, amount); err != nil {
		return err
	}
	return b.CreditShares(to, o, amount)
}

// growSupply adds amount to both outcome supplies and the position
// collateral.
func (b *Book) growSupply(amount uint64) error {
	m := b.Market
	yes, err := fixedpoint.Add(m.YesSupply, amount)
	if err != nil {
		return err
	}
	no, err := fixedpoint.Add(m.NoSupply, amount)
	if err != nil {
		return err
	}
	coll, err := fixedpoint.Add(m.PositionCollateral, amount)
	if err != nil {
		return err
	}
	m.YesSupply, m.NoSupply, m.PositionCollateral = yes, no, coll
	return nil
}

// shrinkSupply removes amount from both outcome supplies and the position
// collateral.
func (b *Book) shrinkSupply(amount uint64) error {
	m := b.Market
	yes, err := fixedpoint.Sub(m.YesSupply, amount, domain.ErrArithmeticOverflow)
	if err != nil {
		return err
	}
	no, err := fixedpoint.Sub(m.NoSupply, amount, domain.ErrArithmeticOverflow)
	if err != nil {
		return err
	}
	coll, err := fixedpoint.Sub(m.PositionCollateral, amount, domain.ErrArithmeticOverflow)
	if err != nil {
		return err
	}
	m.YesSupply, m.NoSupply, m.PositionCollateral = yes, no, coll
	return nil
}

// CheckConservation verifies the market-level supply invariants. While the
// market is Active both supplies and the position collateral are equal; the
// vault always covers the position collateral.
func (b *Book) CheckConservation() error {
	m := b.Market
	if m.Status == domain.MarketStatusActive {
		if m.YesSupply != m.NoSupply || m.PositionCollateral != m.YesSupply {
			return fmt.Errorf("position: yes=%d no=%d collateral=%d: %w",
				m.YesSupply, m.NoSupply, m.PositionCollateral, domain.ErrInvariantViolation)
		}
	}
	if b.VaultBalance() < m.PositionCollateral {
		return fmt.Errorf("position: vault %d below collateral %d: %w",
			b.VaultBalance(), m.PositionCollateral, domain.ErrInsufficientVaultBalance)
	}
	return nil
}
