package handler

import (
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// marketView is the JSON form of a market.
type marketView struct {
	ID             domain.Pubkey       `json:"id"`
	Creator        domain.Pubkey       `json:"creator"`
	Question       string              `json:"question"`
	Description    string              `json:"description,omitempty"`
	YesDescription string              `json:"yes_description,omitempty"`
	NoDescription  string              `json:"no_description,omitempty"`
	Status         domain.MarketStatus `json:"status"`
	Paused         bool                `json:"paused"`
	PausedAt       *time.Time          `json:"paused_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	LastActivityAt time.Time           `json:"last_activity_at"`

	PositionCollateral uint64 `json:"position_collateral"`
	YesSupply          uint64 `json:"yes_supply"`
	NoSupply           uint64 `json:"no_supply"`

	LastYesPrice     *uint64         `json:"last_yes_price,omitempty"`
	LastNoPrice      *uint64         `json:"last_no_price,omitempty"`
	LastTradeSlot    *uint64         `json:"last_trade_slot,omitempty"`
	LastTradeOutcome *domain.Outcome `json:"last_trade_outcome,omitempty"`
	ReferenceAgent   *domain.Pubkey  `json:"reference_agent,omitempty"`
	SettleTradeNonce uint64          `json:"settle_trade_nonce"`
	TerminationNonce uint64          `json:"termination_nonce"`

	RandomTerminationEnabled bool   `json:"random_termination_enabled"`
	TerminationProbability   uint32 `json:"termination_probability"`

	FinalYesPrice     *uint64                   `json:"final_yes_price,omitempty"`
	FinalNoPrice      *uint64                   `json:"final_no_price,omitempty"`
	WinningOutcome    *domain.Outcome           `json:"winning_outcome,omitempty"`
	TerminationReason *domain.TerminationReason `json:"termination_reason,omitempty"`
	TerminationSlot   *uint64                   `json:"termination_slot,omitempty"`
	ResolvedAt        *time.Time                `json:"resolved_at,omitempty"`
	TotalRedeemable   uint64                    `json:"total_redeemable"`
	TotalRedeemed     uint64                    `json:"total_redeemed"`

	TotalTrades             uint64 `json:"total_trades"`
	TotalTradingFees        uint64 `json:"total_trading_fees"`
	CreatorIncentiveAccrued uint64 `json:"creator_incentive_accrued"`
}

func newMarketView(m domain.Market) marketView {
	return marketView{
		ID: m.ID, Creator: m.Creator, Question: m.Question, Description: m.Description,
		YesDescription: m.YesDescription, NoDescription: m.NoDescription,
		Status: m.Status, Paused: m.Paused, PausedAt: m.PausedAt,
		CreatedAt: m.CreatedAt, LastActivityAt: m.LastActivityAt,
		PositionCollateral: m.PositionCollateral, YesSupply: m.YesSupply, NoSupply: m.NoSupply,
		LastYesPrice: m.LastYesPrice, LastNoPrice: m.LastNoPrice, LastTradeSlot: m.LastTradeSlot,
		LastTradeOutcome: m.LastTradeOutcome, ReferenceAgent: m.ReferenceAgent,
		SettleTradeNonce: m.SettleTradeNonce, TerminationNonce: m.TerminationNonce,
		RandomTerminationEnabled: m.RandomTerminationEnabled, TerminationProbability: m.TerminationProbability,
		FinalYesPrice: m.FinalYesPrice, FinalNoPrice: m.FinalNoPrice, WinningOutcome: m.WinningOutcome,
		TerminationReason: m.TerminationReason, TerminationSlot: m.TerminationSlot, ResolvedAt: m.ResolvedAt,
		TotalRedeemable: m.TotalRedeemable, TotalRedeemed: m.TotalRedeemed,
		TotalTrades: m.TotalTrades, TotalTradingFees: m.TotalTradingFees,
		CreatorIncentiveAccrued: m.CreatorIncentiveAccrued,
	}
}

type positionView struct {
	Market     domain.Pubkey `json:"market"`
	User       domain.Pubkey `json:"user"`
	Collateral uint64        `json:"collateral"`
	Yes        uint64        `json:"yes"`
	No         uint64        `json:"no"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type fillView struct {
	Hash      domain.Hash `json:"hash"`
	Remaining uint64      `json:"remaining"`
	Done      bool        `json:"done"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type configView struct {
	Version                       uint64           `json:"version"`
	Authority                     domain.Pubkey    `json:"authority"`
	SettlementSigner              domain.Pubkey    `json:"settlement_signer"`
	Keeper                        domain.Pubkey    `json:"keeper"`
	Operators                     []domain.Pubkey  `json:"operators"`
	TradingPaused                 bool             `json:"trading_paused"`
	Fees                          domain.FeeConfig `json:"fees"`
	MaxOrderFeeBps                uint16           `json:"max_order_fee_bps"`
	MarketCreationFee             uint64           `json:"market_creation_fee"`
	TerminationReward             uint64           `json:"termination_reward"`
	TerminationCheckFee           uint64           `json:"termination_check_fee"`
	DefaultTerminationProbability uint32           `json:"default_termination_probability"`
	RandomnessMaxAge              uint64           `json:"randomness_max_age"`
	InactivityTimeout             string           `json:"inactivity_timeout"`
	UpdatedAt                     time.Time        `json:"updated_at"`
}

func newConfigView(c domain.GlobalConfig) configView {
	ops := c.Operators
	if ops == nil {
		ops = []domain.Pubkey{}
	}
	return configView{
		Version: c.Version, Authority: c.Authority, SettlementSigner: c.SettlementSigner,
		Keeper: c.Keeper, Operators: ops, TradingPaused: c.TradingPaused,
		Fees: c.Fees, MaxOrderFeeBps: c.MaxOrderFeeBps, MarketCreationFee: c.MarketCreationFee,
		TerminationReward: c.TerminationReward, TerminationCheckFee: c.TerminationCheckFee,
		DefaultTerminationProbability: c.DefaultTerminationProbability,
		RandomnessMaxAge:              c.RandomnessMaxAge,
		InactivityTimeout:             c.InactivityTimeout.String(),
		UpdatedAt:                     c.UpdatedAt,
	}
}

type auditView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}
