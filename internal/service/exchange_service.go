package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
	"github.com/alanyoungcy/marketengine/internal/lifecycle"
	"github.com/alanyoungcy/marketengine/internal/matching"
	"github.com/alanyoungcy/marketengine/internal/order"
)

// ExchangeService runs every market-scoped engine operation.
type ExchangeService struct {
	h          *host
	randomness domain.RandomnessSource
}

// NewExchangeService creates an ExchangeService. randomness may be nil, in
// which case termination checks are rejected.
func NewExchangeService(eng *engine.Engine, deps Deps, randomness domain.RandomnessSource) *ExchangeService {
	return &ExchangeService{h: newHost(eng, deps, "exchange"), randomness: randomness}
}

// CreateMarket opens market id for req.Creator.
func (s *ExchangeService) CreateMarket(ctx context.Context, id domain.Pubkey, req engine.CreateMarketRequest) (*engine.Result, error) {
	creator := req.Creator
	t := touch{users: []domain.Pubkey{creator}, creator: &creator}
	res, err := s.h.runMarket(ctx, "create_market", id, t,
		map[string]any{"creator": creator.String(), "question": req.Question},
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.CreateMarket(st, env, req)
		})
	if err != nil {
		return nil, err
	}
	s.h.logger.InfoContext(ctx, "market created",
		slog.String("market", id.String()),
		slog.String("creator", creator.String()),
	)
	return res, nil
}

// MatchOrders matches a taker against up to five makers.
func (s *ExchangeService) MatchOrders(ctx context.Context, id domain.Pubkey, req matching.MatchRequest) (*engine.Result, error) {
	t := touch{
		users:  []domain.Pubkey{req.Operator, req.Taker.Order.Maker},
		hashes: []domain.Hash{order.Hash(req.Taker.Order)},
		nonces: []domain.Pubkey{req.Taker.Order.Maker},
	}
	for _, mf := range req.Makers {
		t.users = append(t.users, mf.Order.Order.Maker)
		t.hashes = append(t.hashes, order.Hash(mf.Order.Order))
		t.nonces = append(t.nonces, mf.Order.Order.Maker)
		if mf.Account != nil {
			t.users = append(t.users, *mf.Account)
		}
	}
	return s.h.runMarket(ctx, "match_orders", id, t, nil,
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.MatchOrders(st, env, req)
		})
}

// FillOrder fills one maker order with operator as the counterparty.
func (s *ExchangeService) FillOrder(ctx context.Context, id, operator domain.Pubkey, so domain.SignedOrder, amount uint64) (*engine.Result, error) {
	t := touch{
		users:  []domain.Pubkey{operator, so.Order.Maker},
		hashes: []domain.Hash{order.Hash(so.Order)},
		nonces: []domain.Pubkey{so.Order.Maker},
	}
	return s.h.runMarket(ctx, "fill_order", id, t, nil,
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.FillOrder(st, env, operator, so, amount)
		})
}

// CancelOrder cancels o on behalf of its maker.
func (s *ExchangeService) CancelOrder(ctx context.Context, caller domain.Pubkey, o domain.Order) (*engine.Result, error) {
	t := touch{hashes: []domain.Hash{order.Hash(o)}}
	return s.h.runMarket(ctx, "cancel_order", o.Market, t, nil,
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.CancelOrder(st, env, caller, o)
		})
}

// SettleTrade applies an exchange-signed trade.
func (s *ExchangeService) SettleTrade(ctx context.Context, id domain.Pubkey, req engine.SettleTradeRequest) (*engine.Result, error) {
	t := touch{users: []domain.Pubkey{req.Fill.Maker, req.Fill.Taker}}
	return s.h.runMarket(ctx, "settle_trade", id, t, nil,
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.SettleTrade(st, env, req)
		})
}

// TerminationCheckRequest is a caller's randomized termination attempt.
// Zero prices default to the market's last recorded prices and a zero
// trade slot defaults to the current slot.
type TerminationCheckRequest struct {
	Caller    domain.Pubkey `json:"caller"`
	OptedIn   bool          `json:"opted_in"`
	YesPrice  uint64        `json:"yes_price"`
	NoPrice   uint64        `json:"no_price"`
	TradeSlot uint64        `json:"trade_slot"`
}

// CheckTermination runs a randomized termination attempt using the latest
// oracle reading for the market.
func (s *ExchangeService) CheckTermination(ctx context.Context, id domain.Pubkey, req TerminationCheckRequest) (*engine.Result, error) {
	if s.randomness == nil {
		return nil, fmt.Errorf("service: termination check: no randomness source: %w", domain.ErrRandomnessStale)
	}
	reading, err := s.randomness.Latest(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("service: termination check: %w", domain.ErrRandomnessStale)
		}
		return nil, fmt.Errorf("service: termination check: %w", err)
	}

	t := touch{users: []domain.Pubkey{req.Caller}}
	return s.h.runMarket(ctx, "check_termination", id, t,
		map[string]any{"caller": req.Caller.String(), "opted_in": req.OptedIn, "reading_slot": reading.Slot},
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			m := st.Book.Market
			cr := lifecycle.CheckRequest{
				Caller:    req.Caller,
				Reading:   reading,
				Threshold: lifecycle.Threshold(m.TerminationProbability),
				YesPrice:  req.YesPrice,
				NoPrice:   req.NoPrice,
				TradeSlot: req.TradeSlot,
				OptedIn:   req.OptedIn,
			}
			if cr.YesPrice == 0 && cr.NoPrice == 0 && m.LastYesPrice != nil && m.LastNoPrice != nil {
				cr.YesPrice, cr.NoPrice = *m.LastYesPrice, *m.LastNoPrice
			}
			if cr.TradeSlot == 0 {
				cr.TradeSlot = env.Slot
				if m.LastTradeSlot != nil {
					cr.TradeSlot = *m.LastTradeSlot
				}
			}
			return s.h.engine.CheckTermination(st, env, cr)
		})
}

// SettleMarket resolves the market from its reference trade.
func (s *ExchangeService) SettleMarket(ctx context.Context, id, caller domain.Pubkey) (*engine.Result, error) {
	return s.h.runMarket(ctx, "settle_market", id, touch{}, map[string]any{"caller": caller.String()},
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.SettleMarket(st, env, caller)
		})
}

// TerminateIfInactive terminates an idle market and pays caller the keeper
// reward.
func (s *ExchangeService) TerminateIfInactive(ctx context.Context, id, caller domain.Pubkey) (*engine.Result, error) {
	return s.h.runMarket(ctx, "terminate_if_inactive", id, touch{users: []domain.Pubkey{caller}},
		map[string]any{"caller": caller.String()},
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.TerminateIfInactive(st, env, caller)
		})
}

// Split converts collateral into one Yes and one No share per unit.
func (s *ExchangeService) Split(ctx context.Context, id, user domain.Pubkey, amount uint64) (*engine.Result, error) {
	return s.userOp(ctx, "split", id, user, func(st *engine.State, env engine.Env) (*engine.Result, error) {
		return s.h.engine.Split(st, env, user, amount)
	})
}

// Merge converts Yes+No pairs back into collateral.
func (s *ExchangeService) Merge(ctx context.Context, id, user domain.Pubkey, amount uint64) (*engine.Result, error) {
	return s.userOp(ctx, "merge", id, user, func(st *engine.State, env engine.Env) (*engine.Result, error) {
		return s.h.engine.Merge(st, env, user, amount)
	})
}

// Redeem pays out amount shares of outcome at the final price.
func (s *ExchangeService) Redeem(ctx context.Context, id, user domain.Pubkey, outcome domain.Outcome, amount uint64) (*engine.Result, error) {
	return s.userOp(ctx, "redeem", id, user, func(st *engine.State, env engine.Env) (*engine.Result, error) {
		return s.h.engine.Redeem(st, env, user, outcome, amount)
	})
}

// Deposit moves collateral from user's wallet into the market.
func (s *ExchangeService) Deposit(ctx context.Context, id, user domain.Pubkey, amount uint64) (*engine.Result, error) {
	return s.userOp(ctx, "deposit", id, user, func(st *engine.State, env engine.Env) (*engine.Result, error) {
		return s.h.engine.Deposit(st, env, user, amount)
	})
}

// Withdraw moves collateral from the market back to user's wallet.
func (s *ExchangeService) Withdraw(ctx context.Context, id, user domain.Pubkey, amount uint64) (*engine.Result, error) {
	return s.userOp(ctx, "withdraw", id, user, func(st *engine.State, env engine.Env) (*engine.Result, error) {
		return s.h.engine.Withdraw(st, env, user, amount)
	})
}

func (s *ExchangeService) userOp(ctx context.Context, op string, id, user domain.Pubkey,
	fn func(*engine.State, engine.Env) (*engine.Result, error),
) (*engine.Result, error) {
	return s.h.runMarket(ctx, op, id, touch{users: []domain.Pubkey{user}}, nil, fn)
}

// PauseMarket halts trading on one market.
func (s *ExchangeService) PauseMarket(ctx context.Context, id, caller domain.Pubkey) (*engine.Result, error) {
	return s.h.runMarket(ctx, "pause_market", id, touch{}, map[string]any{"caller": caller.String()},
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.PauseMarket(st, env, caller)
		})
}

// ResumeMarket re-enables trading on a paused market.
func (s *ExchangeService) ResumeMarket(ctx context.Context, id, caller domain.Pubkey) (*engine.Result, error) {
	return s.h.runMarket(ctx, "resume_market", id, touch{}, map[string]any{"caller": caller.String()},
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.ResumeMarket(st, env, caller)
		})
}

// UpdateMarketParams changes the market's random termination settings.
func (s *ExchangeService) UpdateMarketParams(ctx context.Context, id, caller domain.Pubkey, p engine.MarketParams) (*engine.Result, error) {
	return s.h.runMarket(ctx, "update_market_params", id, touch{}, map[string]any{"caller": caller.String()},
		func(st *engine.State, env engine.Env) (*engine.Result, error) {
			return s.h.engine.UpdateMarketParams(st, env, caller, p)
		})
}
