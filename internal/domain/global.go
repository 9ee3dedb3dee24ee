package domain

import (
	"slices"
	"time"
)

// FeeConfig holds the fee curve endpoints and the distribution shares, all
// in parts-per-million.
type FeeConfig struct {
	CenterTakerRate       uint32 `json:"center_taker_rate" toml:"center_taker_rate"`
	ExtremeTakerRate      uint32 `json:"extreme_taker_rate" toml:"extreme_taker_rate"`
	PlatformShare         uint32 `json:"platform_share" toml:"platform_share"`
	MakerRebateShare      uint32 `json:"maker_rebate_share" toml:"maker_rebate_share"`
	CreatorIncentiveShare uint32 `json:"creator_incentive_share" toml:"creator_incentive_share"`
}

// Default fee parameters.
const (
	DefaultCenterTakerRate       = 32_000
	DefaultExtremeTakerRate      = 2_000
	DefaultPlatformShare         = 750_000
	DefaultMakerRebateShare      = 200_000
	DefaultCreatorIncentiveShare = 50_000
	MaxTakerFeeRate              = 100_000
)

// DefaultFeeConfig returns the launch fee parameters.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		CenterTakerRate:       DefaultCenterTakerRate,
		ExtremeTakerRate:      DefaultExtremeTakerRate,
		PlatformShare:         DefaultPlatformShare,
		MakerRebateShare:      DefaultMakerRebateShare,
		CreatorIncentiveShare: DefaultCreatorIncentiveShare,
	}
}

// Engine-wide defaults.
const (
	DefaultMaxOrderFeeBps          = 1_000
	DefaultMarketCreationFee       = 10_000_000
	DefaultTerminationReward       = 100_000
	DefaultTerminationProbability  = 1_000
	MaxTerminationProbability      = 1_000_000
	DefaultRandomnessMaxAge        = 150
	DefaultInactivityTimeout       = 7 * 24 * time.Hour
	MaxOperators                   = 10
	TerminationThresholdMultiplier = 100
)

// GlobalConfig is the versioned administrative configuration injected into
// every engine call.
type GlobalConfig struct {
	Version          uint64
	Authority        Pubkey
	SettlementSigner Pubkey
	Keeper           Pubkey
	Operators        []Pubkey
	TradingPaused    bool

	Fees           FeeConfig
	MaxOrderFeeBps uint16

	MarketCreationFee             uint64
	TerminationReward             uint64
	TerminationCheckFee           uint64
	DefaultTerminationProbability uint32
	RandomnessMaxAge              uint64 // slots
	InactivityTimeout             time.Duration

	UpdatedAt time.Time
}

// DefaultGlobalConfig returns a version-zero configuration with launch
// defaults and no identities.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Fees:                          DefaultFeeConfig(),
		MaxOrderFeeBps:                DefaultMaxOrderFeeBps,
		MarketCreationFee:             DefaultMarketCreationFee,
		TerminationReward:             DefaultTerminationReward,
		DefaultTerminationProbability: DefaultTerminationProbability,
		RandomnessMaxAge:              DefaultRandomnessMaxAge,
		InactivityTimeout:             DefaultInactivityTimeout,
	}
}

// IsOperator reports whether k may submit matches and fills.
func (c *GlobalConfig) IsOperator(k Pubkey) bool {
	return slices.Contains(c.Operators, k)
}

// Clone returns a deep copy of c.
func (c GlobalConfig) Clone() GlobalConfig {
	c.Operators = slices.Clone(c.Operators)
	return c
}
