package engine

import (
	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Split turns amount of user's wallet collateral into amount of each
// outcome share.
func (e *Engine) Split(s *State, env Env, user domain.Pubkey, amount uint64) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if err := w.Book.Split(user, amount); err != nil {
			return err
		}
		r.emit(domain.EventPositionSplit, domain.PositionChanged{User: user, Amount: amount})
		return nil
	})
}

// Merge turns amount of each outcome share back into wallet collateral.
func (e *Engine) Merge(s *State, env Env, user domain.Pubkey, amount uint64) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if err := w.Book.Merge(user, amount); err != nil {
			return err
		}
		r.emit(domain.EventPositionMerged, domain.PositionChanged{User: user, Amount: amount})
		return nil
	})
}

// Redeem pays out amount of one outcome at its final price.
func (e *Engine) Redeem(s *State, env Env, user domain.Pubkey, outcome domain.Outcome, amount uint64) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		payout, err := w.Book.Redeem(user, outcome, amount)
		if err != nil {
			return err
		}
		r.emit(domain.EventTokensRedeemed, domain.TokensRedeemed{
			User:    user,
			Outcome: outcome,
			Amount:  amount,
			Payout:  payout,
		})
		return nil
	})
}

// Deposit moves wallet collateral into user's trading balance.
func (e *Engine) Deposit(s *State, env Env, user domain.Pubkey, amount uint64) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if err := w.Book.Deposit(user, amount); err != nil {
			return err
		}
		r.emit(domain.EventCollateralDeposited, domain.PositionChanged{User: user, Amount: amount})
		return nil
	})
}

// Withdraw moves trading balance back to user's wallet.
func (e *Engine) Withdraw(s *State, env Env, user domain.Pubkey, amount uint64) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if err := w.Book.Withdraw(user, amount); err != nil {
			return err
		}
		r.emit(domain.EventCollateralWithdrawn, domain.PositionChanged{User: user, Amount: amount})
		return nil
	})
}
