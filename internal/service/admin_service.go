package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
)

const configLockKey = "global-config"

// AdminService applies GlobalConfig changes and the wallet-level operations
// that are not scoped to one market.
type AdminService struct {
	h          *host
	randomness RandomnessPublisher
}

// RandomnessPublisher stores oracle readings for termination checks.
type RandomnessPublisher interface {
	Publish(ctx context.Context, market domain.Pubkey, r domain.RandomnessReading) error
}

// NewAdminService creates an AdminService.
func NewAdminService(eng *engine.Engine, deps Deps) *AdminService {
	return &AdminService{h: newHost(eng, deps, "admin")}
}

// WithRandomness enables PublishRandomness.
func (s *AdminService) WithRandomness(p RandomnessPublisher) *AdminService {
	s.randomness = p
	return s
}

// Bootstrap stores cfg as the first GlobalConfig version unless one exists.
// It reports whether cfg was written.
func (s *AdminService) Bootstrap(ctx context.Context, cfg domain.GlobalConfig) (bool, error) {
	unlock, err := s.h.lock(ctx, configLockKey)
	if err != nil {
		return false, fmt.Errorf("service: bootstrap config: %w", err)
	}
	defer unlock()

	created := false
	err = s.h.Tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		_, err := r.Configs.Latest(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := r.Configs.Insert(ctx, cfg); err != nil {
			return err
		}
		created = true
		return r.Audit.Log(ctx, "config.bootstrap", map[string]any{
			"version":   cfg.Version,
			"authority": cfg.Authority.String(),
		})
	})
	if err != nil {
		return false, fmt.Errorf("service: bootstrap config: %w", err)
	}
	if created {
		s.h.logger.InfoContext(ctx, "global config bootstrapped", slog.Uint64("version", cfg.Version))
	}
	return created, nil
}

// runConfig applies fn to the latest config and stores the next version.
func (s *AdminService) runConfig(ctx context.Context, op string, caller domain.Pubkey,
	fn func(cfg domain.GlobalConfig, env engine.Env) (*engine.ConfigResult, error),
) (*engine.ConfigResult, error) {
	start := time.Now()
	res, err := s.runConfigTx(ctx, op, caller, fn)
	s.h.observe(op, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.h.afterCommit(ctx, nil, res.Events)
	s.h.logger.InfoContext(ctx, "global config updated",
		slog.String("op", op),
		slog.Uint64("version", res.Config.Version),
	)
	return res, nil
}

func (s *AdminService) runConfigTx(ctx context.Context, op string, caller domain.Pubkey,
	fn func(cfg domain.GlobalConfig, env engine.Env) (*engine.ConfigResult, error),
) (*engine.ConfigResult, error) {
	unlock, err := s.h.lock(ctx, configLockKey)
	if err != nil {
		return nil, fmt.Errorf("service: %s: %w", op, err)
	}
	defer unlock()

	now, slot := s.h.Clock.Now()
	env := engine.Env{Now: now, Slot: slot}

	var (
		res    *engine.ConfigResult
		engErr error
	)
	err = s.h.Tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		cfg, err := r.Configs.Latest(ctx)
		if err != nil {
			return err
		}
		if res, engErr = fn(cfg, env); engErr != nil {
			return engErr
		}
		if err := r.Configs.Insert(ctx, res.Config); err != nil {
			return err
		}
		if err := r.Events.Append(ctx, res.Events); err != nil {
			return err
		}
		return r.Audit.Log(ctx, op, map[string]any{
			"caller":  caller.String(),
			"version": res.Config.Version,
			"slot":    slot,
		})
	})
	if engErr != nil {
		return nil, engErr
	}
	if err != nil {
		return nil, fmt.Errorf("service: %s: %w", op, err)
	}
	return res, nil
}

// UpdateFeeRates replaces the fee curve and distribution.
func (s *AdminService) UpdateFeeRates(ctx context.Context, caller domain.Pubkey, fees domain.FeeConfig) (*engine.ConfigResult, error) {
	return s.runConfig(ctx, "update_fee_rates", caller, func(cfg domain.GlobalConfig, env engine.Env) (*engine.ConfigResult, error) {
		return s.h.engine.UpdateFeeRates(cfg, env, caller, fees)
	})
}

// AddOperator authorizes op.
func (s *AdminService) AddOperator(ctx context.Context, caller, op domain.Pubkey) (*engine.ConfigResult, error) {
	return s.runConfig(ctx, "add_operator", caller, func(cfg domain.GlobalConfig, env engine.Env) (*engine.ConfigResult, error) {
		return s.h.engine.AddOperator(cfg, env, caller, op)
	})
}

// RemoveOperator revokes op.
func (s *AdminService) RemoveOperator(ctx context.Context, caller, op domain.Pubkey) (*engine.ConfigResult, error) {
	return s.runConfig(ctx, "remove_operator", caller, func(cfg domain.GlobalConfig, env engine.Env) (*engine.ConfigResult, error) {
		return s.h.engine.RemoveOperator(cfg, env, caller, op)
	})
}

// SetKeeper names the inactivity keeper; the zero key opens the role.
func (s *AdminService) SetKeeper(ctx context.Context, caller, keeper domain.Pubkey) (*engine.ConfigResult, error) {
	return s.runConfig(ctx, "set_keeper", caller, func(cfg domain.GlobalConfig, env engine.Env) (*engine.ConfigResult, error) {
		return s.h.engine.SetKeeper(cfg, env, caller, keeper)
	})
}

// SetTradingPaused toggles the global trading pause.
func (s *AdminService) SetTradingPaused(ctx context.Context, caller domain.Pubkey, paused bool) (*engine.ConfigResult, error) {
	return s.runConfig(ctx, "set_trading_paused", caller, func(cfg domain.GlobalConfig, env engine.Env) (*engine.ConfigResult, error) {
		return s.h.engine.SetTradingPaused(cfg, env, caller, paused)
	})
}

// IncrementNonce raises user's order nonce floor by one and returns the new
// floor.
func (s *AdminService) IncrementNonce(ctx context.Context, user domain.Pubkey) (uint64, error) {
	start := time.Now()
	next, ev, err := s.incrementNonce(ctx, user)
	s.h.observe("increment_nonce", err, time.Since(start))
	if err != nil {
		return 0, err
	}
	s.h.afterCommit(ctx, nil, []domain.Event{ev})
	return next, nil
}

func (s *AdminService) incrementNonce(ctx context.Context, user domain.Pubkey) (uint64, domain.Event, error) {
	if user.IsZero() {
		return 0, domain.Event{}, domain.ErrInvalidInput
	}
	unlock, err := s.h.lock(ctx, "nonce:"+user.String())
	if err != nil {
		return 0, domain.Event{}, fmt.Errorf("service: increment nonce: %w", err)
	}
	defer unlock()

	now, slot := s.h.Clock.Now()
	var (
		next   uint64
		ev     domain.Event
		engErr error
	)
	err = s.h.Tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		current, err := r.Nonces.GetMany(ctx, []domain.Pubkey{user})
		if err != nil {
			return err
		}
		next, ev, engErr = s.h.engine.IncrementNonce(current[user], user, engine.Env{Now: now, Slot: slot})
		if engErr != nil {
			return engErr
		}
		if err := r.Nonces.Set(ctx, user, next); err != nil {
			return err
		}
		return r.Events.Append(ctx, []domain.Event{ev})
	})
	if engErr != nil {
		return 0, domain.Event{}, engErr
	}
	if err != nil {
		return 0, domain.Event{}, fmt.Errorf("service: increment nonce: %w", err)
	}
	return next, ev, nil
}

// CreditCustody records collateral entering the system from outside (a
// bridged deposit into a wallet, or treasury funding). Only the authority
// may call it.
func (s *AdminService) CreditCustody(ctx context.Context, caller domain.Pubkey, key domain.CustodyKey, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if key.Kind == domain.CustodyVault {
		return 0, fmt.Errorf("service: credit custody: vaults are funded by market operations: %w", domain.ErrInvalidInput)
	}

	unlock, err := s.h.lock(ctx, "custody:"+key.String())
	if err != nil {
		return 0, fmt.Errorf("service: credit custody: %w", err)
	}
	defer unlock()

	var balance uint64
	err = s.h.Tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		cfg, err := r.Configs.Latest(ctx)
		if err != nil {
			return err
		}
		if cfg.Authority.IsZero() || caller != cfg.Authority {
			return domain.ErrNotAdmin
		}
		current, err := r.Custody.GetMany(ctx, []domain.CustodyKey{key})
		if err != nil {
			return err
		}
		balance = current[key] + amount
		if balance < amount {
			return domain.ErrArithmeticOverflow
		}
		if err := r.Custody.Set(ctx, key, balance); err != nil {
			return err
		}
		return r.Audit.Log(ctx, "custody.credit", map[string]any{
			"caller":  caller.String(),
			"holding": key.String(),
			"amount":  amount,
			"balance": balance,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotAdmin) || errors.Is(err, domain.ErrArithmeticOverflow) {
			return 0, err
		}
		return 0, fmt.Errorf("service: credit custody: %w", err)
	}
	return balance, nil
}

// PublishRandomness relays an oracle value for market, stamped with the
// host's current time and slot. The authority and the settlement signer
// may publish.
func (s *AdminService) PublishRandomness(ctx context.Context, caller, market domain.Pubkey, value [32]byte) (domain.RandomnessReading, error) {
	if s.randomness == nil {
		return domain.RandomnessReading{}, fmt.Errorf("service: publish randomness: no oracle feed configured: %w", domain.ErrInvalidInput)
	}
	var cfg domain.GlobalConfig
	err := s.h.Tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		var err error
		if cfg, err = r.Configs.Latest(ctx); err != nil {
			return err
		}
		if _, err = r.Markets.GetByID(ctx, market); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.RandomnessReading{}, fmt.Errorf("service: publish randomness: %w", err)
	}
	allowed := !caller.IsZero() && (caller == cfg.Authority || caller == cfg.SettlementSigner)
	if !allowed {
		return domain.RandomnessReading{}, domain.ErrUnauthorized
	}

	now, slot := s.h.Clock.Now()
	reading := domain.RandomnessReading{Value: value, Slot: slot, Timestamp: now}
	if err := s.randomness.Publish(ctx, market, reading); err != nil {
		return domain.RandomnessReading{}, fmt.Errorf("service: publish randomness: %w", err)
	}
	s.h.logger.DebugContext(ctx, "randomness published",
		slog.String("market", market.String()),
		slog.Uint64("slot", slot),
	)
	return reading, nil
}

// WithdrawTreasury pays collected fees or liquidity rewards from a
// protocol treasury into recipient's wallet.
func (s *AdminService) WithdrawTreasury(ctx context.Context, caller domain.Pubkey, from domain.CustodyKind,
	recipient domain.Pubkey, amount uint64,
) (*engine.TreasuryPayout, error) {
	start := time.Now()
	out, err := s.withdrawTreasury(ctx, caller, from, recipient, amount)
	s.h.observe("withdraw_treasury", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.h.afterCommit(ctx, nil, []domain.Event{out.Event})
	s.h.logger.InfoContext(ctx, "treasury withdrawal",
		slog.String("treasury", string(from)),
		slog.String("recipient", recipient.String()),
		slog.Uint64("amount", amount),
	)
	return out, nil
}

func (s *AdminService) withdrawTreasury(ctx context.Context, caller domain.Pubkey, from domain.CustodyKind,
	recipient domain.Pubkey, amount uint64,
) (*engine.TreasuryPayout, error) {
	treasury := domain.CustodyKey{Kind: from}
	wallet := domain.WalletOf(recipient)

	unlock, err := s.h.lock(ctx, "custody:"+treasury.String())
	if err != nil {
		return nil, fmt.Errorf("service: withdraw treasury: %w", err)
	}
	defer unlock()

	now, slot := s.h.Clock.Now()
	var (
		out    *engine.TreasuryPayout
		engErr error
	)
	err = s.h.Tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		cfg, err := r.Configs.Latest(ctx)
		if err != nil {
			return err
		}
		bal, err := r.Custody.GetMany(ctx, []domain.CustodyKey{treasury, wallet})
		if err != nil {
			return err
		}
		out, engErr = s.h.engine.WithdrawTreasury(cfg, engine.Env{Now: now, Slot: slot}, caller,
			from, recipient, bal[treasury], bal[wallet], amount)
		if engErr != nil {
			return engErr
		}
		if err := r.Custody.Set(ctx, treasury, out.Treasury); err != nil {
			return err
		}
		if err := r.Custody.Set(ctx, wallet, out.Recipient); err != nil {
			return err
		}
		if err := r.Events.Append(ctx, []domain.Event{out.Event}); err != nil {
			return err
		}
		return r.Audit.Log(ctx, "treasury.withdraw", map[string]any{
			"caller":    caller.String(),
			"treasury":  string(from),
			"recipient": recipient.String(),
			"amount":    amount,
			"slot":      slot,
		})
	})
	if engErr != nil {
		return nil, engErr
	}
	if err != nil {
		return nil, fmt.Errorf("service: withdraw treasury: %w", err)
	}
	return out, nil
}
