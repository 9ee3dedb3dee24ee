package domain

import "time"

// MarketStatus represents the lifecycle state of a market. Settled and
// Terminated are absorbing.
type MarketStatus string

const (
	MarketStatusActive     MarketStatus = "active"
	MarketStatusSettled    MarketStatus = "settled"
	MarketStatusTerminated MarketStatus = "terminated"
)

var marketTransitions = map[MarketStatus][]MarketStatus{
	MarketStatusActive: {MarketStatusSettled, MarketStatusTerminated},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s MarketStatus) CanTransitionTo(next MarketStatus) bool {
	for _, allowed := range marketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s MarketStatus) IsTerminal() bool {
	return len(marketTransitions[s]) == 0
}

// Outcome is one of the two complementary shares of a market.
type Outcome uint8

const (
	OutcomeYes Outcome = 0
	OutcomeNo  Outcome = 1
)

// Valid reports whether o names one of the two outcomes.
func (o Outcome) Valid() bool { return o <= OutcomeNo }

// Opposite returns the complementary outcome.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "yes"
	case OutcomeNo:
		return "no"
	default:
		return "unknown"
	}
}

// TerminationReason is recorded on Terminated markets.
type TerminationReason uint8

const (
	TerminationRandom     TerminationReason = 0
	TerminationInactivity TerminationReason = 1
)

// Market is one binary question and all of its accounting state.
type Market struct {
	ID             Pubkey
	Creator        Pubkey
	Question       string
	Description    string
	YesDescription string
	NoDescription  string

	Status   MarketStatus
	Paused   bool
	PausedAt *time.Time

	CreatedAt        time.Time
	LastActivityAt   time.Time
	LastActivitySlot uint64

	// Conservation: while Active, YesSupply == NoSupply == PositionCollateral.
	PositionCollateral uint64
	YesSupply          uint64
	NoSupply           uint64

	LastYesPrice     *uint64
	LastNoPrice      *uint64
	LastTradeSlot    *uint64
	LastTradeOutcome *Outcome
	ReferenceAgent   *Pubkey

	SettleTradeNonce uint64
	TerminationNonce uint64

	RandomTerminationEnabled bool
	TerminationProbability   uint32 // ppm

	FinalYesPrice     *uint64
	FinalNoPrice      *uint64
	WinningOutcome    *Outcome
	TerminationReason *TerminationReason
	TerminationSlot   *uint64
	ResolvedAt        *time.Time

	TotalRedeemable uint64
	TotalRedeemed   uint64

	TotalTrades             uint64
	TotalTradingFees        uint64
	CreatorIncentiveAccrued uint64
}

// CanTrade reports whether trading operations are accepted.
func (m *Market) CanTrade() bool {
	return m.Status == MarketStatusActive && !m.Paused
}

// CanRedeem reports whether redemption is unlocked.
func (m *Market) CanRedeem() bool {
	return m.Status == MarketStatusSettled || m.Status == MarketStatusTerminated
}

// FinalPrice returns the locked price for o, if any.
func (m *Market) FinalPrice(o Outcome) (uint64, bool) {
	p := m.FinalYesPrice
	if o == OutcomeNo {
		p = m.FinalNoPrice
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Supply returns the outstanding supply of o.
func (m *Market) Supply(o Outcome) uint64 {
	if o == OutcomeNo {
		return m.NoSupply
	}
	return m.YesSupply
}

// RecordActivity stamps a trade: the latest activity time and slot and the
// slot of the last trade.
func (m *Market) RecordActivity(now time.Time, slot uint64) {
	m.LastActivityAt = now
	m.LastActivitySlot = slot
	m.LastTradeSlot = Ptr(slot)
}

// RecordLastPrice stores the traded price of o and its complement for the
// other outcome.
func (m *Market) RecordLastPrice(o Outcome, price uint64) error {
	if price > priceScale {
		return ErrInvalidPrice
	}
	if !o.Valid() {
		return ErrInvalidOutcome
	}
	yes, no := price, priceScale-price
	if o == OutcomeNo {
		yes, no = no, yes
	}
	m.LastYesPrice = Ptr(yes)
	m.LastNoPrice = Ptr(no)
	return nil
}

// Clone returns a deep copy of m.
func (m *Market) Clone() *Market {
	c := *m
	c.PausedAt = clonePtr(m.PausedAt)
	c.LastYesPrice = clonePtr(m.LastYesPrice)
	c.LastNoPrice = clonePtr(m.LastNoPrice)
	c.LastTradeSlot = clonePtr(m.LastTradeSlot)
	c.LastTradeOutcome = clonePtr(m.LastTradeOutcome)
	c.ReferenceAgent = clonePtr(m.ReferenceAgent)
	c.FinalYesPrice = clonePtr(m.FinalYesPrice)
	c.FinalNoPrice = clonePtr(m.FinalNoPrice)
	c.WinningOutcome = clonePtr(m.WinningOutcome)
	c.TerminationReason = clonePtr(m.TerminationReason)
	c.TerminationSlot = clonePtr(m.TerminationSlot)
	c.ResolvedAt = clonePtr(m.ResolvedAt)
	return &c
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

const priceScale = 1_000_000

// Market text limits, in bytes.
const (
	MaxQuestionLen           = 200
	MaxDescriptionLen        = 500
	MaxOutcomeDescriptionLen = 200
)
