package domain

import "time"

// EventKind identifies an engine event.
type EventKind string

const (
	EventMarketCreated              EventKind = "market_created"
	EventMarketCreationFeeCollected EventKind = "market_creation_fee_collected"
	EventOrderFilled                EventKind = "order_filled"
	EventOrdersMatched              EventKind = "orders_matched"
	EventOrderCancelled             EventKind = "order_cancelled"
	EventNonceIncremented           EventKind = "nonce_incremented"
	EventPositionSplit              EventKind = "position_split"
	EventPositionMerged             EventKind = "position_merged"
	EventTokensRedeemed             EventKind = "tokens_redeemed"
	EventCollateralDeposited        EventKind = "collateral_deposited"
	EventCollateralWithdrawn        EventKind = "collateral_withdrawn"
	EventTradingFeeCollected        EventKind = "trading_fee_collected"
	EventTerminationCheckResult     EventKind = "termination_check_result"
	EventMarketSettled              EventKind = "market_settled"
	EventMarketTerminated           EventKind = "market_terminated"
	EventCreatorIncentivePaid       EventKind = "creator_incentive_paid"
	EventKeeperRewardPaid           EventKind = "keeper_reward_paid"
	EventMarketPaused               EventKind = "market_paused"
	EventMarketResumed              EventKind = "market_resumed"
	EventMarketParamsUpdated        EventKind = "market_params_updated"
	EventGlobalFeeRatesUpdated      EventKind = "global_fee_rates_updated"
	EventOperatorAdded              EventKind = "operator_added"
	EventOperatorRemoved            EventKind = "operator_removed"
	EventKeeperChanged              EventKind = "keeper_changed"
	EventGlobalTradingPaused        EventKind = "global_trading_paused"
	EventGlobalTradingUnpaused      EventKind = "global_trading_unpaused"
	EventPlatformFeesWithdrawn      EventKind = "platform_fees_withdrawn"
	EventLiquidityRewardDistributed EventKind = "liquidity_reward_distributed"
)

// Event is a flat record emitted by the engine for off-line indexing.
// Market is zero for global configuration events.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Market    Pubkey    `json:"market"`
	Slot      uint64    `json:"slot"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// IsTerminal reports whether the event records a terminal market transition.
func (e Event) IsTerminal() bool {
	return e.Kind == EventMarketSettled || e.Kind == EventMarketTerminated
}

type MarketCreated struct {
	Creator                Pubkey `json:"creator"`
	Question               string `json:"question"`
	TerminationProbability uint32 `json:"termination_probability"`
	CreationFee            uint64 `json:"creation_fee"`
}

type FeeCollected struct {
	Payer  Pubkey `json:"payer"`
	Amount uint64 `json:"amount"`
}

type OrderFilled struct {
	OrderHash         Hash    `json:"order_hash"`
	Maker             Pubkey  `json:"maker"`
	Taker             Pubkey  `json:"taker"`
	MakerAssetID      TokenID `json:"maker_asset_id"`
	TakerAssetID      TokenID `json:"taker_asset_id"`
	MakerAmountFilled uint64  `json:"maker_amount_filled"`
	TakerAmountFilled uint64  `json:"taker_amount_filled"`
	Fee               uint64  `json:"fee"`
	MatchType         string  `json:"match_type,omitempty"`
}

type OrdersMatched struct {
	TakerOrderHash    Hash    `json:"taker_order_hash"`
	TakerMaker        Pubkey  `json:"taker_maker"`
	MakerAssetID      TokenID `json:"maker_asset_id"`
	TakerAssetID      TokenID `json:"taker_asset_id"`
	MakerAmountFilled uint64  `json:"maker_amount_filled"`
	TakerAmountFilled uint64  `json:"taker_amount_filled"`
	MakerOrdersCount  int     `json:"maker_orders_count"`
}

type OrderCancelled struct {
	OrderHash Hash   `json:"order_hash"`
	Maker     Pubkey `json:"maker"`
}

type NonceIncremented struct {
	User     Pubkey `json:"user"`
	NewNonce uint64 `json:"new_nonce"`
}

// PositionChanged covers split, merge, deposit and withdraw.
type PositionChanged struct {
	User   Pubkey `json:"user"`
	Amount uint64 `json:"amount"`
}

type TokensRedeemed struct {
	User    Pubkey  `json:"user"`
	Outcome Outcome `json:"outcome"`
	Amount  uint64  `json:"amount"`
	Payout  uint64  `json:"payout"`
}

type TradingFeeCollected struct {
	Maker            Pubkey  `json:"maker"`
	Taker            Pubkey  `json:"taker"`
	Outcome          Outcome `json:"outcome"`
	Side             Side    `json:"side"`
	Size             uint64  `json:"size"`
	Price            uint64  `json:"price"`
	FeeRate          uint32  `json:"fee_rate"`
	TakerFee         uint64  `json:"taker_fee"`
	PlatformFee      uint64  `json:"platform_fee"`
	MakerRebate      uint64  `json:"maker_rebate"`
	CreatorIncentive uint64  `json:"creator_incentive"`
}

type TerminationCheckResult struct {
	Caller      Pubkey `json:"caller"`
	Nonce       uint64 `json:"nonce"`
	RandomValue uint64 `json:"random_value"`
	Threshold   uint64 `json:"threshold"`
	Terminated  bool   `json:"terminated"`
}

type MarketSettled struct {
	WinningOutcome  Outcome `json:"winning_outcome"`
	ReferenceAgent  Pubkey  `json:"reference_agent"`
	FinalYesPrice   uint64  `json:"final_yes_price"`
	FinalNoPrice    uint64  `json:"final_no_price"`
	VaultBalance    uint64  `json:"vault_balance"`
	TotalRedeemable uint64  `json:"total_redeemable"`
}

type MarketTerminated struct {
	Reason          TerminationReason `json:"reason"`
	Executor        Pubkey            `json:"executor"`
	FinalYesPrice   uint64            `json:"final_yes_price"`
	FinalNoPrice    uint64            `json:"final_no_price"`
	TotalRedeemable uint64            `json:"total_redeemable"`
}

type Payout struct {
	Recipient Pubkey `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

type MarketToggled struct {
	By Pubkey `json:"by"`
}

type MarketParamsUpdated struct {
	TerminationProbability   uint32 `json:"termination_probability"`
	RandomTerminationEnabled bool   `json:"random_termination_enabled"`
}

type GlobalFeeRatesUpdated struct {
	Fees    FeeConfig `json:"fees"`
	Version uint64    `json:"version"`
}

type IdentityChanged struct {
	Key Pubkey `json:"key"`
}

// TreasuryWithdrawn records collateral paid out of a protocol treasury.
type TreasuryWithdrawn struct {
	Treasury  CustodyKind `json:"treasury"`
	Recipient Pubkey      `json:"recipient"`
	Amount    uint64      `json:"amount"`
	Remaining uint64      `json:"remaining"`
	By        Pubkey      `json:"by"`
}
