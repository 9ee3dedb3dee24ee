package engine

import (
	"log/slog"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/lifecycle"
)

// CheckTermination runs a randomized termination attempt. A call that does
// not opt in, or a market with random termination disabled, succeeds with no
// events.
func (e *Engine) CheckTermination(s *State, env Env, req lifecycle.CheckRequest) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		check, err := lifecycle.CheckTermination(w.Book, w.Config, req, env.Slot, e.logger)
		if err != nil || check == nil {
			return err
		}
		r.emit(domain.EventTerminationCheckResult, check.Result)
		if check.Resolution != nil {
			e.logger.Info("market terminated by random check",
				slog.String("market", w.Book.Market.ID.String()),
				slog.Uint64("random_value", check.Result.RandomValue),
				slog.Uint64("threshold", check.Result.Threshold),
			)
			e.emitResolution(r, check.Resolution)
		}
		return nil
	})
}

// SettleMarket resolves the market from its reference trade. Only the
// authority may settle.
func (e *Engine) SettleMarket(s *State, env Env, caller domain.Pubkey) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if err := requireAuthority(w.Config, caller); err != nil {
			return err
		}
		res, err := lifecycle.Settle(w.Book, e.logger)
		if err != nil {
			return err
		}
		e.logger.Info("market settled",
			slog.String("market", w.Book.Market.ID.String()),
			slog.String("winning_outcome", res.Settled.WinningOutcome.String()),
		)
		e.emitResolution(r, res)
		return nil
	})
}

// TerminateIfInactive terminates the market if it has been idle for the
// configured timeout. An active market yields a Result with no events.
func (e *Engine) TerminateIfInactive(s *State, env Env, caller domain.Pubkey) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		res, err := lifecycle.TerminateIfInactive(w.Book, w.Config, caller, env.Now, env.Slot, e.logger)
		if err != nil || res == nil {
			return err
		}
		e.logger.Info("market terminated for inactivity",
			slog.String("market", w.Book.Market.ID.String()),
			slog.Time("last_activity", w.Book.Market.LastActivityAt),
		)
		e.emitResolution(r, res)
		return nil
	})
}

func (e *Engine) emitResolution(r *recorder, res *lifecycle.Resolution) {
	if res.Settled != nil {
		r.emit(domain.EventMarketSettled, *res.Settled)
	}
	if res.Terminated != nil {
		r.emit(domain.EventMarketTerminated, *res.Terminated)
	}
	if res.CreatorPayout != nil {
		r.emit(domain.EventCreatorIncentivePaid, *res.CreatorPayout)
	}
	if res.KeeperReward != nil {
		r.emit(domain.EventKeeperRewardPaid, *res.KeeperReward)
	}
}
