package domain

import "time"

// Position is one user's collateral and share balances inside one market.
type Position struct {
	Market     Pubkey
	User       Pubkey
	Collateral uint64
	Yes        uint64
	No         uint64
	UpdatedAt  time.Time
}

// Shares returns the balance of outcome o.
func (p *Position) Shares(o Outcome) uint64 {
	if o == OutcomeNo {
		return p.No
	}
	return p.Yes
}

// SharesPtr returns a pointer to the balance of outcome o.
func (p *Position) SharesPtr(o Outcome) *uint64 {
	if o == OutcomeNo {
		return &p.No
	}
	return &p.Yes
}

// UserNonce is the per-user order nonce floor.
type UserNonce struct {
	User    Pubkey
	Current uint64
}
