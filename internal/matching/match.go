package matching

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fee"
	"github.com/alanyoungcy/marketengine/internal/fill"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
	"github.com/alanyoungcy/marketengine/internal/order"
	"github.com/alanyoungcy/marketengine/internal/position"
)

// Context is the working set a match runs against. Fills and Nonces are
// keyed by order hash and user; missing fill records are created lazily.
type Context struct {
	Config   *domain.GlobalConfig
	Book     *position.Book
	Fills    map[domain.Hash]*domain.OrderFill
	Nonces   map[domain.Pubkey]uint64
	Verifier order.Verifier
	Now      time.Time
}

// MakerFill is one maker order of a batch and the amount of it to fill.
// Account, when set, names the position the caller loaded for this maker;
// it must be the order's maker.
type MakerFill struct {
	Order   domain.SignedOrder `json:"order"`
	Amount  uint64             `json:"amount"`
	Account *domain.Pubkey     `json:"account,omitempty"`
}

// MatchRequest matches one taker order against one to five maker orders.
type MatchRequest struct {
	Operator  domain.Pubkey      `json:"operator"`
	Taker     domain.SignedOrder `json:"taker"`
	TakerFill uint64             `json:"taker_fill"`
	Makers    []MakerFill        `json:"makers"`
}

// MatchResult carries the payloads of the events a match produced.
type MatchResult struct {
	Fills   []domain.OrderFilled
	Matched domain.OrdersMatched
}

func (c *Context) record(h domain.Hash, makerAmount uint64) (*domain.OrderFill, error) {
	rec, ok := c.Fills[h]
	if !ok {
		rec = &domain.OrderFill{}
		c.Fills[h] = rec
	}
	if err := fill.Touch(rec, h, makerAmount, c.Now); err != nil {
		return nil, err
	}
	if !rec.Fillable() {
		return nil, domain.ErrOrderNotFillable
	}
	return rec, nil
}

func (c *Context) authorize(operator domain.Pubkey) error {
	if !c.Config.IsOperator(operator) {
		return domain.ErrNotOperator
	}
	if c.Config.TradingPaused {
		return domain.ErrTradingPaused
	}
	return position.TradeBlocked(c.Book.Market)
}

// checkOrder validates, authenticates and prices o for this market.
func (c *Context) checkOrder(so domain.SignedOrder) (domain.Hash, error) {
	o := so.Order
	if err := order.Validate(o, c.Now, c.Nonces[o.Maker], c.Config.MaxOrderFeeBps); err != nil {
		return domain.Hash{}, err
	}
	if o.Market != c.Book.Market.ID {
		return domain.Hash{}, domain.ErrInvalidMarket
	}
	p, err := order.Price(o)
	if err != nil {
		return domain.Hash{}, err
	}
	if !fixedpoint.ValidPrice(p) {
		return domain.Hash{}, domain.ErrInvalidPrice
	}
	return order.VerifySigned(c.Verifier, so)
}

// checkAccount rejects a maker account context that does not belong to the
// order's maker in this market.
func (c *Context) checkAccount(mf MakerFill) error {
	if mf.Account == nil {
		return nil
	}
	if *mf.Account != mf.Order.Order.Maker {
		return domain.ErrInvalidAccountInput
	}
	if p, ok := c.Book.Lookup(*mf.Account); ok {
		if p.Market != c.Book.Market.ID {
			return domain.ErrInvalidAccountInput
		}
		if p.User != mf.Order.Order.Maker {
			return domain.ErrUnauthorized
		}
	}
	return nil
}

// MatchOrders settles a taker order against each maker in turn. Any failing
// maker fails the whole batch; the caller discards the working set.
func MatchOrders(c *Context, req MatchRequest) (*MatchResult, error) {
	if err := c.authorize(req.Operator); err != nil {
		return nil, err
	}
	if len(req.Makers) == 0 {
		return nil, fmt.Errorf("matching: no maker orders: %w", domain.ErrInvalidInput)
	}
	if len(req.Makers) > domain.MaxMakerOrders {
		return nil, domain.ErrTooManyMakers
	}
	// Account contexts are checked up front so a substituted account fails
	// the batch before any maker is settled.
	for _, mf := range req.Makers {
		if err := c.checkAccount(mf); err != nil {
			return nil, err
		}
	}

	taker := req.Taker.Order
	takerHash, err := c.checkOrder(req.Taker)
	if err != nil {
		return nil, fmt.Errorf("matching: taker order: %w", err)
	}
	if err := order.ValidateTaker(taker, req.Operator); err != nil {
		return nil, err
	}
	takerRec, err := c.record(takerHash, taker.MakerAmount)
	if err != nil {
		return nil, fmt.Errorf("matching: taker order: %w", err)
	}
	takerPrice, err := order.Price(taker)
	if err != nil {
		return nil, err
	}

	res := &MatchResult{Fills: make([]domain.OrderFilled, 0, len(req.Makers))}
	var takerGot uint64
	for i, mf := range req.Makers {
		maker := mf.Order.Order
		makerHash, err := c.checkOrder(mf.Order)
		if err != nil {
			return nil, fmt.Errorf("matching: maker %d: %w", i, err)
		}
		if makerHash == takerHash {
			return nil, fmt.Errorf("matching: maker %d is the taker order: %w", i, domain.ErrInvalidMatch)
		}
		rec, err := c.record(makerHash, maker.MakerAmount)
		if err != nil {
			return nil, fmt.Errorf("matching: maker %d: %w", i, err)
		}
		mode, err := Classify(taker, maker)
		if err != nil {
			return nil, fmt.Errorf("matching: maker %d: %w", i, err)
		}
		ok, err := Crossing(taker, maker, mode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("matching: maker %d: %w", i, domain.ErrNotCrossing)
		}
		mp, err := order.Price(maker)
		if err != nil {
			return nil, err
		}

		making, err := fill.Fill(rec, mf.Amount, c.Now)
		if err != nil {
			return nil, err
		}
		if making == 0 {
			return nil, fmt.Errorf("matching: maker %d: %w", i, domain.ErrInvalidAmount)
		}
		taking, err := TakingAmount(making, maker.MakerAmount, maker.TakerAmount)
		if err != nil {
			return nil, err
		}
		s, err := execute(c.Book, leg{
			taker: taker, maker: maker, mode: mode,
			making: making, taking: taking,
			takerPrice: takerPrice, makerPrice: mp,
			operator: req.Operator, maxFee: c.Config.MaxOrderFeeBps,
		})
		if err != nil {
			return nil, fmt.Errorf("matching: maker %d %s: %w", i, mode, err)
		}
		if err := c.Book.CheckConservation(); err != nil {
			return nil, err
		}

		if takerGot, err = fixedpoint.Add(takerGot, s.takerGot); err != nil {
			return nil, err
		}
		if err := c.Book.Market.RecordLastPrice(outcomeOf(maker.TokenID), mp); err != nil {
			return nil, err
		}

		makerAsset, takerAsset := assetIDs(maker)
		res.Fills = append(res.Fills, domain.OrderFilled{
			OrderHash:         makerHash,
			Maker:             maker.Maker,
			Taker:             taker.Maker,
			MakerAssetID:      makerAsset,
			TakerAssetID:      takerAsset,
			MakerAmountFilled: making,
			TakerAmountFilled: taking,
			Fee:               s.fee,
			MatchType:         mode.String(),
		})
	}

	takerFilled, err := fill.Fill(takerRec, req.TakerFill, c.Now)
	if err != nil {
		return nil, err
	}

	m := c.Book.Market
	if m.TotalTrades, err = fixedpoint.Add(m.TotalTrades, uint64(len(req.Makers))); err != nil {
		return nil, err
	}

	makerAsset, takerAsset := assetIDs(taker)
	res.Matched = domain.OrdersMatched{
		TakerOrderHash:    takerHash,
		TakerMaker:        taker.Maker,
		MakerAssetID:      makerAsset,
		TakerAssetID:      takerAsset,
		MakerAmountFilled: takerFilled,
		TakerAmountFilled: takerGot,
		MakerOrdersCount:  len(req.Makers),
	}
	return res, nil
}

// FillOrder fills a single maker order with the operator as counterparty.
// The order fee stays with the operator.
func FillOrder(c *Context, operator domain.Pubkey, so domain.SignedOrder, amount uint64) (*domain.OrderFilled, error) {
	if err := c.authorize(operator); err != nil {
		return nil, err
	}
	o := so.Order
	h, err := c.checkOrder(so)
	if err != nil {
		return nil, err
	}
	if err := order.ValidateTaker(o, operator); err != nil {
		return nil, err
	}
	rec, err := c.record(h, o.MakerAmount)
	if err != nil {
		return nil, err
	}
	actual, err := fill.Fill(rec, amount, c.Now)
	if err != nil {
		return nil, err
	}
	if actual == 0 {
		return nil, domain.ErrInvalidAmount
	}
	taking, err := TakingAmount(actual, o.MakerAmount, o.TakerAmount)
	if err != nil {
		return nil, err
	}
	f, err := fee.OrderFee(o.FeeRateBps, c.Config.MaxOrderFeeBps, taking, o.MakerAmount, o.TakerAmount, o.Side)
	if err != nil {
		return nil, err
	}
	net, err := fixedpoint.Sub(taking, f, domain.ErrArithmeticOverflow)
	if err != nil {
		return nil, err
	}

	b := c.Book
	outcome := outcomeOf(o.TokenID)
	if o.Side == domain.SideBuy {
		if err := b.MoveCollateral(o.Maker, operator, actual); err != nil {
			return nil, err
		}
		if err := b.MoveShares(operator, o.Maker, outcome, net); err != nil {
			return nil, err
		}
	} else {
		if err := b.MoveShares(o.Maker, operator, outcome, actual); err != nil {
			return nil, err
		}
		if err := b.MoveCollateral(operator, o.Maker, net); err != nil {
			return nil, err
		}
	}

	m := b.Market
	price, err := order.Price(o)
	if err != nil {
		return nil, err
	}
	if err := m.RecordLastPrice(outcome, price); err != nil {
		return nil, err
	}
	if m.TotalTrades, err = fixedpoint.Add(m.TotalTrades, 1); err != nil {
		return nil, err
	}

	makerAsset, takerAsset := assetIDs(o)
	return &domain.OrderFilled{
		OrderHash:         h,
		Maker:             o.Maker,
		Taker:             operator,
		MakerAssetID:      makerAsset,
		TakerAssetID:      takerAsset,
		MakerAmountFilled: actual,
		TakerAmountFilled: taking,
		Fee:               f,
	}, nil
}
