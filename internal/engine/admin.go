package engine

import (
	"fmt"
	"slices"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fee"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
)

// CreateMarketRequest carries the descriptive fields of a new market.
type CreateMarketRequest struct {
	Creator        domain.Pubkey `json:"creator"`
	Question       string        `json:"question"`
	Description    string        `json:"description"`
	YesDescription string        `json:"yes_description"`
	NoDescription  string        `json:"no_description"`
}

func (r CreateMarketRequest) validate() error {
	if r.Creator.IsZero() || r.Question == "" {
		return domain.ErrInvalidInput
	}
	switch {
	case len(r.Question) > domain.MaxQuestionLen:
		return fmt.Errorf("engine: question: %w", domain.ErrTextTooLong)
	case len(r.Description) > domain.MaxDescriptionLen:
		return fmt.Errorf("engine: description: %w", domain.ErrTextTooLong)
	case len(r.YesDescription) > domain.MaxOutcomeDescriptionLen, len(r.NoDescription) > domain.MaxOutcomeDescriptionLen:
		return fmt.Errorf("engine: outcome description: %w", domain.ErrTextTooLong)
	}
	return nil
}

// CreateMarket opens the market whose id is s.Book.Market.ID. The market
// must not exist yet; the creation fee moves from the creator's wallet to
// the platform treasury.
func (e *Engine) CreateMarket(s *State, env Env, req CreateMarketRequest) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		m := w.Book.Market
		if m.Status != "" {
			return domain.ErrMarketExists
		}
		if m.ID.IsZero() {
			return domain.ErrInvalidMarket
		}
		if err := req.validate(); err != nil {
			return err
		}
		cfg := w.Config
		if err := w.Book.Transfer(domain.WalletOf(req.Creator), domain.PlatformTreasury(), cfg.MarketCreationFee); err != nil {
			return fmt.Errorf("engine: creation fee: %w", err)
		}

		*m = domain.Market{
			ID:                       m.ID,
			Creator:                  req.Creator,
			Question:                 req.Question,
			Description:              req.Description,
			YesDescription:           req.YesDescription,
			NoDescription:            req.NoDescription,
			Status:                   domain.MarketStatusActive,
			CreatedAt:                env.Now,
			LastActivityAt:           env.Now,
			LastActivitySlot:         env.Slot,
			RandomTerminationEnabled: true,
			TerminationProbability:   cfg.DefaultTerminationProbability,
		}
		r.emit(domain.EventMarketCreated, domain.MarketCreated{
			Creator:                req.Creator,
			Question:               req.Question,
			TerminationProbability: m.TerminationProbability,
			CreationFee:            cfg.MarketCreationFee,
		})
		if cfg.MarketCreationFee > 0 {
			r.emit(domain.EventMarketCreationFeeCollected, domain.FeeCollected{Payer: req.Creator, Amount: cfg.MarketCreationFee})
		}
		return nil
	})
}

func (s *State) requireAuthorityOrCreator(caller domain.Pubkey) error {
	if caller == s.Config.Authority || caller == s.Book.Market.Creator {
		return nil
	}
	return domain.ErrUnauthorized
}

// PauseMarket stops trading in an Active market.
func (e *Engine) PauseMarket(s *State, env Env, caller domain.Pubkey) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if err := w.requireAuthorityOrCreator(caller); err != nil {
			return err
		}
		m := w.Book.Market
		if m.Status != domain.MarketStatusActive {
			return domain.ErrMarketNotActive
		}
		if m.Paused {
			return domain.ErrMarketPaused
		}
		m.Paused = true
		m.PausedAt = domain.Ptr(env.Now)
		r.emit(domain.EventMarketPaused, domain.MarketToggled{By: caller})
		return nil
	})
}

// ResumeMarket re-enables trading in a paused market.
func (e *Engine) ResumeMarket(s *State, env Env, caller domain.Pubkey) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if err := w.requireAuthorityOrCreator(caller); err != nil {
			return err
		}
		m := w.Book.Market
		if m.Status != domain.MarketStatusActive {
			return domain.ErrMarketNotActive
		}
		if !m.Paused {
			return fmt.Errorf("engine: market not paused: %w", domain.ErrInvalidTransition)
		}
		m.Paused = false
		m.PausedAt = nil
		r.emit(domain.EventMarketResumed, domain.MarketToggled{By: caller})
		return nil
	})
}

// MarketParams are the adjustable per-market parameters. Nil fields are
// left unchanged.
type MarketParams struct {
	TerminationProbability   *uint32 `json:"termination_probability,omitempty"`
	RandomTerminationEnabled *bool   `json:"random_termination_enabled,omitempty"`
}

// UpdateMarketParams changes the random termination settings. Authority
// only.
func (e *Engine) UpdateMarketParams(s *State, env Env, caller domain.Pubkey, p MarketParams) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if err := requireAuthority(w.Config, caller); err != nil {
			return err
		}
		m := w.Book.Market
		if p.TerminationProbability != nil {
			if *p.TerminationProbability > domain.MaxTerminationProbability {
				return fmt.Errorf("engine: termination probability %d: %w", *p.TerminationProbability, domain.ErrInvalidInput)
			}
			m.TerminationProbability = *p.TerminationProbability
		}
		if p.RandomTerminationEnabled != nil {
			m.RandomTerminationEnabled = *p.RandomTerminationEnabled
		}
		r.emit(domain.EventMarketParamsUpdated, domain.MarketParamsUpdated{
			TerminationProbability:   m.TerminationProbability,
			RandomTerminationEnabled: m.RandomTerminationEnabled,
		})
		return nil
	})
}

func requireAuthority(c *domain.GlobalConfig, caller domain.Pubkey) error {
	if c.Authority.IsZero() || caller != c.Authority {
		return domain.ErrNotAdmin
	}
	return nil
}

// UpdateFeeRates replaces the fee curve and distribution.
func (e *Engine) UpdateFeeRates(cfg domain.GlobalConfig, env Env, caller domain.Pubkey, fees domain.FeeConfig) (*ConfigResult, error) {
	return e.applyConfig(cfg, env, func(c *domain.GlobalConfig, r *recorder) error {
		if err := requireAuthority(c, caller); err != nil {
			return err
		}
		if err := fee.ValidateConfig(fees); err != nil {
			return err
		}
		c.Fees = fees
		r.emit(domain.EventGlobalFeeRatesUpdated, domain.GlobalFeeRatesUpdated{Fees: fees, Version: c.Version + 1})
		return nil
	})
}

// AddOperator authorizes op to submit matches and fills.
func (e *Engine) AddOperator(cfg domain.GlobalConfig, env Env, caller, op domain.Pubkey) (*ConfigResult, error) {
	return e.applyConfig(cfg, env, func(c *domain.GlobalConfig, r *recorder) error {
		if err := requireAuthority(c, caller); err != nil {
			return err
		}
		if op.IsZero() {
			return domain.ErrInvalidInput
		}
		if c.IsOperator(op) {
			return fmt.Errorf("engine: operator %s: %w", op, domain.ErrAlreadyExists)
		}
		if len(c.Operators) >= domain.MaxOperators {
			return domain.ErrTooManyOperators
		}
		c.Operators = append(c.Operators, op)
		r.emit(domain.EventOperatorAdded, domain.IdentityChanged{Key: op})
		return nil
	})
}

// RemoveOperator revokes op.
func (e *Engine) RemoveOperator(cfg domain.GlobalConfig, env Env, caller, op domain.Pubkey) (*ConfigResult, error) {
	return e.applyConfig(cfg, env, func(c *domain.GlobalConfig, r *recorder) error {
		if err := requireAuthority(c, caller); err != nil {
			return err
		}
		i := slices.Index(c.Operators, op)
		if i < 0 {
			return fmt.Errorf("engine: operator %s: %w", op, domain.ErrNotFound)
		}
		c.Operators = slices.Delete(c.Operators, i, i+1)
		r.emit(domain.EventOperatorRemoved, domain.IdentityChanged{Key: op})
		return nil
	})
}

// SetKeeper names the account allowed to run inactivity terminations. The
// zero key makes them permissionless.
func (e *Engine) SetKeeper(cfg domain.GlobalConfig, env Env, caller, keeper domain.Pubkey) (*ConfigResult, error) {
	return e.applyConfig(cfg, env, func(c *domain.GlobalConfig, r *recorder) error {
		if err := requireAuthority(c, caller); err != nil {
			return err
		}
		c.Keeper = keeper
		r.emit(domain.EventKeeperChanged, domain.IdentityChanged{Key: keeper})
		return nil
	})
}

// SetTradingPaused pauses or resumes trading on every market.
func (e *Engine) SetTradingPaused(cfg domain.GlobalConfig, env Env, caller domain.Pubkey, paused bool) (*ConfigResult, error) {
	return e.applyConfig(cfg, env, func(c *domain.GlobalConfig, r *recorder) error {
		if err := requireAuthority(c, caller); err != nil {
			return err
		}
		if c.TradingPaused == paused {
			return fmt.Errorf("engine: trading paused already %t: %w", paused, domain.ErrInvalidTransition)
		}
		c.TradingPaused = paused
		kind := domain.EventGlobalTradingUnpaused
		if paused {
			kind = domain.EventGlobalTradingPaused
		}
		r.emit(kind, domain.MarketToggled{By: caller})
		return nil
	})
}

// TreasuryPayout is the outcome of WithdrawTreasury: the new balances of
// the treasury and the recipient's wallet.
type TreasuryPayout struct {
	Treasury  uint64
	Recipient uint64
	Event     domain.Event
}

// WithdrawTreasury pays amount from the platform treasury (collected fees)
// or the reward treasury (liquidity rewards) into recipient's wallet.
// Only the authority may withdraw.
func (e *Engine) WithdrawTreasury(cfg domain.GlobalConfig, env Env, caller domain.Pubkey,
	from domain.CustodyKind, recipient domain.Pubkey, treasuryBal, recipientBal, amount uint64,
) (*TreasuryPayout, error) {
	if err := requireAuthority(&cfg, caller); err != nil {
		return nil, err
	}
	var kind domain.EventKind
	switch from {
	case domain.CustodyPlatformTreasury:
		kind = domain.EventPlatformFeesWithdrawn
	case domain.CustodyRewardTreasury:
		kind = domain.EventLiquidityRewardDistributed
	default:
		return nil, fmt.Errorf("engine: withdraw from %s: %w", from, domain.ErrInvalidInput)
	}
	if amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if recipient.IsZero() {
		return nil, fmt.Errorf("engine: withdraw: recipient required: %w", domain.ErrInvalidInput)
	}
	if treasuryBal < amount {
		return nil, domain.ErrInsufficientBalance
	}
	credited, err := fixedpoint.Add(recipientBal, amount)
	if err != nil {
		return nil, err
	}
	out := &TreasuryPayout{Treasury: treasuryBal - amount, Recipient: credited}
	r := &recorder{e: e, env: env}
	r.emit(kind, domain.TreasuryWithdrawn{
		Treasury:  from,
		Recipient: recipient,
		Amount:    amount,
		Remaining: out.Treasury,
		By:        caller,
	})
	out.Event = r.events[0]
	return out, nil
}
