package domain

import (
	"fmt"
	"time"
)

// Side is the direction of an order.
type Side uint8

const (
	SideBuy  Side = 0
	SideSell Side = 1
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// TokenID is the asset an order targets.
type TokenID uint8

const (
	TokenCollateral TokenID = 0
	TokenYes        TokenID = 1
	TokenNo         TokenID = 2
)

// Valid reports whether t names a known asset.
func (t TokenID) Valid() bool { return t <= TokenNo }

// IsOutcome reports whether t is one of the two outcome shares.
func (t TokenID) IsOutcome() bool { return t == TokenYes || t == TokenNo }

// Outcome maps an outcome token to its Outcome. ok is false for collateral.
func (t TokenID) Outcome() (o Outcome, ok bool) {
	switch t {
	case TokenYes:
		return OutcomeYes, true
	case TokenNo:
		return OutcomeNo, true
	default:
		return 0, false
	}
}

// TokenFor returns the outcome token for o.
func TokenFor(o Outcome) TokenID {
	if o == OutcomeNo {
		return TokenNo
	}
	return TokenYes
}

// Order is an unsigned trading intent. Buy orders offer collateral
// (MakerAmount) for shares (TakerAmount); sell orders offer shares for
// collateral.
type Order struct {
	Salt        uint64  `json:"salt"`
	Maker       Pubkey  `json:"maker"`
	Signer      Pubkey  `json:"signer"` // zero: maker signs
	Taker       Pubkey  `json:"taker"`  // zero: public
	Market      Pubkey  `json:"market"`
	TokenID     TokenID `json:"token_id"`
	MakerAmount uint64  `json:"maker_amount"`
	TakerAmount uint64  `json:"taker_amount"`
	Expiration  int64   `json:"expiration"` // unix seconds, 0 = never
	Nonce       uint64  `json:"nonce"`
	FeeRateBps  uint16  `json:"fee_rate_bps"`
	Side        Side    `json:"side"`
}

// IsPublic reports whether any counterparty may take the order.
func (o Order) IsPublic() bool { return o.Taker.IsZero() }

// SigningKey returns the key expected to have signed the order.
func (o Order) SigningKey() Pubkey {
	if o.Signer.IsZero() {
		return o.Maker
	}
	return o.Signer
}

// IsExpired reports whether the order expired before now.
func (o Order) IsExpired(now time.Time) bool {
	return o.Expiration > 0 && o.Expiration < now.Unix()
}

// SignedOrder pairs an order with its signature.
type SignedOrder struct {
	Order     Order     `json:"order"`
	Signature Signature `json:"signature"`
}

// OrderFill is the persisted fill state of one order hash.
type OrderFill struct {
	Hash      Hash
	Remaining uint64
	Done      bool // filled or cancelled; terminal
	UpdatedAt time.Time
}

// Fillable reports whether further fills are accepted.
func (f *OrderFill) Fillable() bool {
	return !f.Done && f.Remaining > 0
}

// MaxMakerOrders bounds a single match batch.
const MaxMakerOrders = 5
