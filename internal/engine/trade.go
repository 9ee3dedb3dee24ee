package engine

import (
	"fmt"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fee"
	"github.com/alanyoungcy/marketengine/internal/fill"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
	"github.com/alanyoungcy/marketengine/internal/matching"
	"github.com/alanyoungcy/marketengine/internal/order"
	"github.com/alanyoungcy/marketengine/internal/position"
)

func (e *Engine) matchContext(w *State, env Env) *matching.Context {
	return &matching.Context{
		Config:   w.Config,
		Book:     w.Book,
		Fills:    w.Fills,
		Nonces:   w.Nonces,
		Verifier: e.verifier,
		Now:      env.Now,
	}
}

// MatchOrders matches a taker order against one to five maker orders.
func (e *Engine) MatchOrders(s *State, env Env, req matching.MatchRequest) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		res, err := matching.MatchOrders(e.matchContext(w, env), req)
		if err != nil {
			return err
		}
		w.Book.Market.RecordActivity(env.Now, env.Slot)
		for _, f := range res.Fills {
			r.emit(domain.EventOrderFilled, f)
		}
		r.emit(domain.EventOrdersMatched, res.Matched)
		return nil
	})
}

// FillOrder fills one maker order with the operator as counterparty.
func (e *Engine) FillOrder(s *State, env Env, operator domain.Pubkey, so domain.SignedOrder, amount uint64) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		ev, err := matching.FillOrder(e.matchContext(w, env), operator, so, amount)
		if err != nil {
			return err
		}
		w.Book.Market.RecordActivity(env.Now, env.Slot)
		r.emit(domain.EventOrderFilled, *ev)
		return nil
	})
}

// CancelOrder marks an order of caller as cancelled. The fill record is
// created if the order was never touched.
func (e *Engine) CancelOrder(s *State, env Env, caller domain.Pubkey, o domain.Order) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		if o.Maker != caller {
			return domain.ErrNotOrderMaker
		}
		if o.Market != w.Book.Market.ID {
			return domain.ErrInvalidMarket
		}
		h := order.Hash(o)
		rec, ok := w.Fills[h]
		if !ok {
			rec = &domain.OrderFill{}
			w.Fills[h] = rec
		}
		if err := fill.Touch(rec, h, o.MakerAmount, env.Now); err != nil {
			return err
		}
		if err := fill.Cancel(rec, env.Now); err != nil {
			return err
		}
		r.emit(domain.EventOrderCancelled, domain.OrderCancelled{OrderHash: h, Maker: o.Maker})
		return nil
	})
}

// IncrementNonce raises user's nonce floor by one, invalidating every order
// signed with a lower nonce.
func (e *Engine) IncrementNonce(current uint64, user domain.Pubkey, env Env) (uint64, domain.Event, error) {
	next, err := fixedpoint.Add(current, 1)
	if err != nil {
		return 0, domain.Event{}, err
	}
	r := &recorder{e: e, env: env}
	r.emit(domain.EventNonceIncremented, domain.NonceIncremented{User: user, NewNonce: next})
	return next, r.events[0], nil
}

// SettleTradeRequest is an exchange-signed trade.
type SettleTradeRequest struct {
	Nonce     uint64           `json:"nonce"`
	Fill      domain.TradeFill `json:"fill"`
	Signature domain.Signature `json:"signature"`
}

// SettleTrade applies a trade signed by the configured settlement signer.
// The taker pays the curve fee; the maker rebate is paid to the maker and
// the platform and creator shares leave the vault for their treasuries.
func (e *Engine) SettleTrade(s *State, env Env, req SettleTradeRequest) (*Result, error) {
	return e.apply(s, env, func(w *State, r *recorder) error {
		b, m, cfg := w.Book, w.Book.Market, w.Config
		f := req.Fill

		if cfg.TradingPaused {
			return domain.ErrTradingPaused
		}
		if err := position.TradeBlocked(m); err != nil {
			return err
		}
		if f.Size == 0 {
			return domain.ErrInvalidAmount
		}
		if !fixedpoint.ValidPrice(f.Price) {
			return domain.ErrInvalidPrice
		}
		if !f.Outcome.Valid() {
			return domain.ErrInvalidOutcome
		}
		if f.Side > domain.SideSell {
			return domain.ErrInvalidSide
		}
		expected, err := fixedpoint.Add(m.SettleTradeNonce, 1)
		if err != nil {
			return err
		}
		if req.Nonce != expected {
			return fmt.Errorf("engine: settle trade nonce %d, expected %d: %w", req.Nonce, expected, domain.ErrInvalidNonce)
		}
		msg := order.EncodeSettlement(domain.SettlementMessage{Market: m.ID, Nonce: req.Nonce, Fill: f})
		if !e.verifier.Verify(cfg.SettlementSigner, msg, req.Signature) {
			return domain.ErrInvalidSignature
		}

		cost, err := fixedpoint.ScaleBy(f.Size, f.Price)
		if err != nil {
			return err
		}
		takerFee, rate, err := fee.TakerFee(cfg.Fees, cost, f.Price)
		if err != nil {
			return err
		}
		split, err := fee.Distribute(cfg.Fees, takerFee)
		if err != nil {
			return err
		}

		if f.Side == domain.SideBuy {
			err = settleTakerBuy(b, f, cost, takerFee, split.MakerRebate)
		} else {
			err = settleTakerSell(b, f, cost, takerFee, split.MakerRebate)
		}
		if err != nil {
			return err
		}

		if err := b.Transfer(domain.VaultOf(m.ID), domain.PlatformTreasury(), split.Platform); err != nil {
			return err
		}
		if err := b.Transfer(domain.VaultOf(m.ID), domain.CreatorTreasury(), split.CreatorIncentive); err != nil {
			return err
		}
		if m.CreatorIncentiveAccrued, err = fixedpoint.Add(m.CreatorIncentiveAccrued, split.CreatorIncentive); err != nil {
			return err
		}
		if m.TotalTradingFees, err = fixedpoint.Add(m.TotalTradingFees, split.Platform); err != nil {
			return err
		}

		m.SettleTradeNonce = req.Nonce
		m.RecordActivity(env.Now, env.Slot)
		if err := m.RecordLastPrice(f.Outcome, f.Price); err != nil {
			return err
		}
		m.LastTradeOutcome = domain.Ptr(f.Outcome)
		m.ReferenceAgent = domain.Ptr(f.Taker)
		if m.TotalTrades, err = fixedpoint.Add(m.TotalTrades, 1); err != nil {
			return err
		}
		if err := b.CheckConservation(); err != nil {
			return err
		}

		if takerFee > 0 {
			r.emit(domain.EventTradingFeeCollected, domain.TradingFeeCollected{
				Maker:            f.Maker,
				Taker:            f.Taker,
				Outcome:          f.Outcome,
				Side:             f.Side,
				Size:             f.Size,
				Price:            f.Price,
				FeeRate:          rate,
				TakerFee:         takerFee,
				PlatformFee:      split.Platform,
				MakerRebate:      split.MakerRebate,
				CreatorIncentive: split.CreatorIncentive,
			})
		}
		return nil
	})
}

// settleTakerBuy: the taker pays cost plus fee, the maker receives cost plus
// rebate, shares move maker to taker.
func settleTakerBuy(b *position.Book, f domain.TradeFill, cost, takerFee, rebate uint64) error {
	pays, err := fixedpoint.Add(cost, takerFee)
	if err != nil {
		return err
	}
	gets, err := fixedpoint.Add(cost, rebate)
	if err != nil {
		return err
	}
	if err := b.DebitCollateral(f.Taker, pays); err != nil {
		return err
	}
	if err := b.MoveShares(f.Maker, f.Taker, f.Outcome, f.Size); err != nil {
		return err
	}
	return b.CreditCollateral(f.Maker, gets)
}

// settleTakerSell: the maker pays cost less rebate, the taker receives cost
// less fee, shares move taker to maker.
func settleTakerSell(b *position.Book, f domain.TradeFill, cost, takerFee, rebate uint64) error {
	if rebate > cost {
		return domain.ErrInvalidFeeConfiguration
	}
	pays := cost - rebate
	gets, err := fixedpoint.Sub(cost, takerFee, domain.ErrArithmeticOverflow)
	if err != nil {
		return err
	}
	if err := b.DebitCollateral(f.Maker, pays); err != nil {
		return err
	}
	if err := b.MoveShares(f.Taker, f.Maker, f.Outcome, f.Size); err != nil {
		return err
	}
	return b.CreditCollateral(f.Taker, gets)
}
