package matching_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/matching"
	"github.com/alanyoungcy/marketengine/internal/order"
	"github.com/alanyoungcy/marketengine/internal/position"
)

var marketID = domain.Pubkey{0xAA}

type env struct {
	ctx            *matching.Context
	op, alice, bob *crypto.Signer
	salt           uint64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{}
	for _, s := range []**crypto.Signer{&e.op, &e.alice, &e.bob} {
		signer, err := crypto.GenerateSigner()
		require.NoError(t, err)
		*s = signer
	}

	cfg := domain.DefaultGlobalConfig()
	cfg.Operators = []domain.Pubkey{e.op.PublicKey()}
	now := time.Unix(1_700_000_000, 0)
	book := position.NewBook(&domain.Market{ID: marketID, Status: domain.MarketStatusActive}, now)
	for _, s := range []*crypto.Signer{e.op, e.alice, e.bob} {
		book.Custody[domain.WalletOf(s.PublicKey())] = 1_000_000
		require.NoError(t, book.Deposit(s.PublicKey(), 10_000))
	}
	book.Transfers = nil

	e.ctx = &matching.Context{
		Config:   &cfg,
		Book:     book,
		Fills:    make(map[domain.Hash]*domain.OrderFill),
		Nonces:   make(map[domain.Pubkey]uint64),
		Verifier: order.Ed25519Verifier{},
		Now:      now,
	}
	return e
}

func (e *env) order(s *crypto.Signer, side domain.Side, token domain.TokenID, makerAmt, takerAmt uint64) domain.SignedOrder {
	e.salt++
	return s.SignOrder(domain.Order{
		Salt:        e.salt,
		Maker:       s.PublicKey(),
		Market:      marketID,
		TokenID:     token,
		MakerAmount: makerAmt,
		TakerAmount: takerAmt,
		Side:        side,
	})
}

func (e *env) pos(s *crypto.Signer) *domain.Position {
	return e.ctx.Book.Position(s.PublicKey())
}

func TestTakingAmount(t *testing.T) {
	got, err := matching.TakingAmount(500, 1_000, 2_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), got)

	got, err = matching.TakingAmount(500, 0, 2_000)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestClassify(t *testing.T) {
	mk := func(side domain.Side, token domain.TokenID) domain.Order {
		return domain.Order{Side: side, TokenID: token}
	}
	tests := []struct {
		name    string
		taker   domain.Order
		maker   domain.Order
		want    matching.Mode
		wantErr bool
	}{
		{"buy vs sell same token", mk(domain.SideBuy, domain.TokenYes), mk(domain.SideSell, domain.TokenYes), matching.Complementary, false},
		{"sell vs buy same token", mk(domain.SideSell, domain.TokenNo), mk(domain.SideBuy, domain.TokenNo), matching.Complementary, false},
		{"buy vs buy complementary", mk(domain.SideBuy, domain.TokenYes), mk(domain.SideBuy, domain.TokenNo), matching.Synthesize, false},
		{"sell vs sell complementary", mk(domain.SideSell, domain.TokenNo), mk(domain.SideSell, domain.TokenYes), matching.Redeem, false},
		{"buy vs buy same token", mk(domain.SideBuy, domain.TokenYes), mk(domain.SideBuy, domain.TokenYes), 0, true},
		{"buy vs sell different token", mk(domain.SideBuy, domain.TokenYes), mk(domain.SideSell, domain.TokenNo), 0, true},
		{"collateral token", mk(domain.SideBuy, domain.TokenCollateral), mk(domain.SideSell, domain.TokenCollateral), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matching.Classify(tt.taker, tt.maker)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCrossing(t *testing.T) {
	buy := func(token domain.TokenID, price uint64) domain.Order {
		return domain.Order{Side: domain.SideBuy, TokenID: token, MakerAmount: price, TakerAmount: 1_000_000}
	}
	sell := func(token domain.TokenID, price uint64) domain.Order {
		return domain.Order{Side: domain.SideSell, TokenID: token, MakerAmount: 1_000_000, TakerAmount: price}
	}
	tests := []struct {
		name  string
		taker domain.Order
		maker domain.Order
		mode  matching.Mode
		want  bool
	}{
		{"taker buys above ask", buy(domain.TokenYes, 700_000), sell(domain.TokenYes, 600_000), matching.Complementary, true},
		{"taker buys below ask", buy(domain.TokenYes, 500_000), sell(domain.TokenYes, 600_000), matching.Complementary, false},
		{"taker sells below bid", sell(domain.TokenYes, 400_000), buy(domain.TokenYes, 450_000), matching.Complementary, true},
		{"taker sells above bid", sell(domain.TokenYes, 500_000), buy(domain.TokenYes, 450_000), matching.Complementary, false},
		{"synthesize under one", buy(domain.TokenYes, 400_000), buy(domain.TokenNo, 550_000), matching.Synthesize, true},
		{"synthesize over one", buy(domain.TokenYes, 600_000), buy(domain.TokenNo, 500_000), matching.Synthesize, false},
		{"redeem over one", sell(domain.TokenYes, 600_000), sell(domain.TokenNo, 500_000), matching.Redeem, true},
		{"redeem under one", sell(domain.TokenYes, 400_000), sell(domain.TokenNo, 500_000), matching.Redeem, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matching.Crossing(tt.taker, tt.maker, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchComplementary(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.bob.PublicKey(), 1_000))

	maker := e.order(e.bob, domain.SideSell, domain.TokenYes, 1_000, 600)
	taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 700, 1_000)

	res, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator:  e.op.PublicKey(),
		Taker:     taker,
		TakerFill: 600,
		Makers:    []matching.MakerFill{{Order: maker, Amount: 1_000}},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1_000), e.pos(e.alice).Yes)
	assert.Equal(t, uint64(9_400), e.pos(e.alice).Collateral)
	assert.Zero(t, e.pos(e.bob).Yes)
	assert.Equal(t, uint64(10_600), e.pos(e.bob).Collateral)

	require.Len(t, res.Fills, 1)
	assert.Equal(t, uint64(1_000), res.Fills[0].MakerAmountFilled)
	assert.Equal(t, uint64(600), res.Fills[0].TakerAmountFilled)
	assert.Equal(t, "complementary", res.Fills[0].MatchType)
	assert.Equal(t, domain.TokenYes, res.Fills[0].MakerAssetID)
	assert.Equal(t, uint64(1_000), res.Matched.TakerAmountFilled)
	assert.Equal(t, 1, res.Matched.MakerOrdersCount)

	assert.True(t, e.ctx.Fills[order.Hash(maker.Order)].Done)
	assert.Equal(t, uint64(100), e.ctx.Fills[order.Hash(taker.Order)].Remaining)
	assert.Equal(t, uint64(600_000), *e.ctx.Book.Market.LastYesPrice)
	assert.Equal(t, uint64(400_000), *e.ctx.Book.Market.LastNoPrice)
	assert.Equal(t, uint64(1), e.ctx.Book.Market.TotalTrades)
	require.NoError(t, e.ctx.Book.CheckConservation())
}

func TestMatchComplementaryFeeGoesToOperator(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.bob.PublicKey(), 1_000))

	e.salt++
	makerOrder := domain.Order{
		Salt: e.salt, Maker: e.bob.PublicKey(), Market: marketID, TokenID: domain.TokenYes,
		MakerAmount: 1_000, TakerAmount: 600, FeeRateBps: 100, Side: domain.SideSell,
	}
	maker := e.bob.SignOrder(makerOrder)
	taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 700, 1_000)

	res, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 600,
		Makers: []matching.MakerFill{{Order: maker, Amount: 1_000}},
	})
	require.NoError(t, err)

	// 100 bps * min(0.6, 0.4) * 600 = 2.4, floored.
	assert.Equal(t, uint64(2), res.Fills[0].Fee)
	assert.Equal(t, uint64(10_598), e.pos(e.bob).Collateral)
	assert.Equal(t, uint64(10_002), e.pos(e.op).Collateral)
	assert.Equal(t, uint64(9_400), e.pos(e.alice).Collateral)
}

func TestMatchTakerSellsIntoBid(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.alice.PublicKey(), 1_000))

	// Bob bids 450 collateral for 1000 NO; Alice sells 1000 NO at 0.4.
	maker := e.order(e.bob, domain.SideBuy, domain.TokenNo, 450, 1_000)
	taker := e.order(e.alice, domain.SideSell, domain.TokenNo, 1_000, 400)

	_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 1_000,
		Makers: []matching.MakerFill{{Order: maker, Amount: 450}},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1_000), e.pos(e.bob).No)
	assert.Equal(t, uint64(9_550), e.pos(e.bob).Collateral)
	assert.Zero(t, e.pos(e.alice).No)
	assert.Equal(t, uint64(10_450), e.pos(e.alice).Collateral)
	assert.True(t, e.ctx.Fills[order.Hash(taker.Order)].Done)
}

func TestMatchSynthesize(t *testing.T) {
	e := newEnv(t)

	taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 400, 1_000)
	maker := e.order(e.bob, domain.SideBuy, domain.TokenNo, 500, 1_000)

	res, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 400,
		Makers: []matching.MakerFill{{Order: maker, Amount: 500}},
	})
	require.NoError(t, err)
	assert.Equal(t, "synthesize", res.Fills[0].MatchType)

	m := e.ctx.Book.Market
	assert.Equal(t, uint64(1_000), m.YesSupply)
	assert.Equal(t, uint64(1_000), m.NoSupply)
	assert.Equal(t, uint64(1_000), m.PositionCollateral)

	// 1000 collateral split 0.4:0.5; the maker share rounds down.
	assert.Equal(t, uint64(1_000), e.pos(e.alice).Yes)
	assert.Equal(t, uint64(1_000), e.pos(e.bob).No)
	assert.Equal(t, uint64(10_000-445), e.pos(e.alice).Collateral)
	assert.Equal(t, uint64(10_000-555), e.pos(e.bob).Collateral)
	require.NoError(t, e.ctx.Book.CheckConservation())
}

func TestMatchSynthesizeSplitsByPriceNotSignedAmount(t *testing.T) {
	e := newEnv(t)

	// Both sides bid 0.4. Minting 1000 pairs needs 1000 collateral, so each
	// side pays 500 although each signed for 400.
	taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 400, 1_000)
	maker := e.order(e.bob, domain.SideBuy, domain.TokenNo, 400, 1_000)

	res, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 400,
		Makers: []matching.MakerFill{{Order: maker, Amount: 400}},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(10_000-500), e.pos(e.alice).Collateral)
	assert.Equal(t, uint64(10_000-500), e.pos(e.bob).Collateral)
	assert.Equal(t, uint64(1_000), e.pos(e.alice).Yes)
	assert.Equal(t, uint64(1_000), e.pos(e.bob).No)

	// Fill records advance by the signed amounts.
	assert.Equal(t, uint64(400), res.Fills[0].MakerAmountFilled)
	assert.True(t, e.ctx.Fills[order.Hash(maker.Order)].Done)
	assert.True(t, e.ctx.Fills[order.Hash(taker.Order)].Done)
	require.NoError(t, e.ctx.Book.CheckConservation())
}

func TestMatchSynthesizeRejectsOverpricedPair(t *testing.T) {
	e := newEnv(t)
	taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 600, 1_000)
	maker := e.order(e.bob, domain.SideBuy, domain.TokenNo, 500, 1_000)

	_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 600,
		Makers: []matching.MakerFill{{Order: maker, Amount: 500}},
	})
	assert.ErrorIs(t, err, domain.ErrNotCrossing)
}

func TestMatchRedeem(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.alice.PublicKey(), 1_000))
	require.NoError(t, e.ctx.Book.Split(e.bob.PublicKey(), 1_000))

	taker := e.order(e.alice, domain.SideSell, domain.TokenYes, 1_000, 550)
	maker := e.order(e.bob, domain.SideSell, domain.TokenNo, 1_000, 500)

	_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 1_000,
		Makers: []matching.MakerFill{{Order: maker, Amount: 1_000}},
	})
	require.NoError(t, err)

	m := e.ctx.Book.Market
	assert.Equal(t, uint64(1_000), m.YesSupply)
	assert.Equal(t, uint64(1_000), m.NoSupply)
	assert.Equal(t, uint64(1_000), m.PositionCollateral)
	assert.Zero(t, e.pos(e.alice).Yes)
	assert.Zero(t, e.pos(e.bob).No)
	assert.Equal(t, uint64(10_000+524), e.pos(e.alice).Collateral)
	assert.Equal(t, uint64(10_000+476), e.pos(e.bob).Collateral)
	require.NoError(t, e.ctx.Book.CheckConservation())
}

func TestMatchRedeemPaysSellersBelowSignedAmount(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.alice.PublicKey(), 1_000))
	require.NoError(t, e.ctx.Book.Split(e.bob.PublicKey(), 1_000))

	// Both ask 0.6; burning 1000 pairs releases 1000, not the 1200 asked.
	taker := e.order(e.alice, domain.SideSell, domain.TokenYes, 1_000, 600)
	maker := e.order(e.bob, domain.SideSell, domain.TokenNo, 1_000, 600)

	_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 1_000,
		Makers: []matching.MakerFill{{Order: maker, Amount: 1_000}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000+500), e.pos(e.alice).Collateral)
	assert.Equal(t, uint64(10_000+500), e.pos(e.bob).Collateral)
	require.NoError(t, e.ctx.Book.CheckConservation())
}

func TestMatchRejectsTakerBelowAsk(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.bob.PublicKey(), 1_000))
	maker := e.order(e.bob, domain.SideSell, domain.TokenYes, 1_000, 600)
	taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 500, 1_000)

	_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 500,
		Makers: []matching.MakerFill{{Order: maker, Amount: 1_000}},
	})
	assert.ErrorIs(t, err, domain.ErrNotCrossing)
}

func TestMatchAuthorization(t *testing.T) {
	t.Run("not an operator", func(t *testing.T) {
		e := newEnv(t)
		_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{Operator: e.alice.PublicKey()})
		assert.ErrorIs(t, err, domain.ErrNotOperator)
	})
	t.Run("trading paused", func(t *testing.T) {
		e := newEnv(t)
		e.ctx.Config.TradingPaused = true
		_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{Operator: e.op.PublicKey()})
		assert.ErrorIs(t, err, domain.ErrTradingPaused)
	})
	t.Run("market paused", func(t *testing.T) {
		e := newEnv(t)
		e.ctx.Book.Market.Paused = true
		_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{Operator: e.op.PublicKey()})
		assert.ErrorIs(t, err, domain.ErrMarketPaused)
	})
	t.Run("too many makers", func(t *testing.T) {
		e := newEnv(t)
		_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
			Operator: e.op.PublicKey(),
			Makers:   make([]matching.MakerFill, domain.MaxMakerOrders+1),
		})
		assert.ErrorIs(t, err, domain.ErrTooManyMakers)
	})
	t.Run("restricted taker", func(t *testing.T) {
		e := newEnv(t)
		e.salt++
		restricted := e.alice.SignOrder(domain.Order{
			Salt: e.salt, Maker: e.alice.PublicKey(), Taker: e.bob.PublicKey(), Market: marketID,
			TokenID: domain.TokenYes, MakerAmount: 700, TakerAmount: 1_000, Side: domain.SideBuy,
		})
		maker := e.order(e.bob, domain.SideSell, domain.TokenYes, 1_000, 600)
		_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
			Operator: e.op.PublicKey(), Taker: restricted, TakerFill: 600,
			Makers: []matching.MakerFill{{Order: maker, Amount: 1_000}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTaker)
	})
	t.Run("maker nonce below floor", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.ctx.Book.Split(e.bob.PublicKey(), 1_000))
		e.ctx.Nonces[e.bob.PublicKey()] = 1
		maker := e.order(e.bob, domain.SideSell, domain.TokenYes, 1_000, 600)
		taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 700, 1_000)
		_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
			Operator: e.op.PublicKey(), Taker: taker, TakerFill: 600,
			Makers: []matching.MakerFill{{Order: maker, Amount: 1_000}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidNonce)
	})
	t.Run("forged maker signature", func(t *testing.T) {
		e := newEnv(t)
		maker := e.order(e.bob, domain.SideSell, domain.TokenYes, 1_000, 600)
		maker.Order.TakerAmount = 1
		taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 700, 1_000)
		_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
			Operator: e.op.PublicKey(), Taker: taker, TakerFill: 600,
			Makers: []matching.MakerFill{{Order: maker, Amount: 1_000}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})
}

func TestMatchRejectsSubstitutedAccount(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.bob.PublicKey(), 1_000))
	maker := e.order(e.bob, domain.SideSell, domain.TokenYes, 1_000, 600)
	taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 700, 1_000)
	good := e.order(e.bob, domain.SideSell, domain.TokenYes, 10, 6)

	alice := e.alice.PublicKey()
	_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 600,
		Makers: []matching.MakerFill{
			{Order: good, Amount: 10},
			{Order: maker, Amount: 1_000, Account: &alice},
		},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAccountInput)
	assert.Empty(t, e.ctx.Fills, "no maker is settled before the batch is rejected")

	bob := e.bob.PublicKey()
	e.ctx.Book.Positions[bob].User = alice
	_, err = matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 600,
		Makers: []matching.MakerFill{{Order: maker, Amount: 1_000, Account: &bob}},
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestMatchInsufficientShares(t *testing.T) {
	e := newEnv(t)
	maker := e.order(e.bob, domain.SideSell, domain.TokenYes, 1_000, 600)
	taker := e.order(e.alice, domain.SideBuy, domain.TokenYes, 700, 1_000)
	_, err := matching.MatchOrders(e.ctx, matching.MatchRequest{
		Operator: e.op.PublicKey(), Taker: taker, TakerFill: 600,
		Makers: []matching.MakerFill{{Order: maker, Amount: 1_000}},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientOutcomeTokens)
}

func TestFillOrderMakerSells(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.bob.PublicKey(), 1_000))
	so := e.order(e.bob, domain.SideSell, domain.TokenYes, 1_000, 600)

	ev, err := matching.FillOrder(e.ctx, e.op.PublicKey(), so, 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), ev.MakerAmountFilled)
	assert.Equal(t, uint64(240), ev.TakerAmountFilled)
	assert.Equal(t, e.op.PublicKey(), ev.Taker)

	assert.Equal(t, uint64(600), e.pos(e.bob).Yes)
	assert.Equal(t, uint64(400), e.pos(e.op).Yes)
	assert.Equal(t, uint64(10_240), e.pos(e.bob).Collateral)
	assert.Equal(t, uint64(9_760), e.pos(e.op).Collateral)
	assert.Equal(t, uint64(600), e.ctx.Fills[order.Hash(so.Order)].Remaining)

	// A second fill larger than what remains is capped.
	ev, err = matching.FillOrder(e.ctx, e.op.PublicKey(), so, 5_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), ev.MakerAmountFilled)

	_, err = matching.FillOrder(e.ctx, e.op.PublicKey(), so, 1)
	assert.ErrorIs(t, err, domain.ErrOrderNotFillable)
}

func TestFillOrderMakerBuysPaysFeeInShares(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctx.Book.Split(e.op.PublicKey(), 1_000))
	e.salt++
	so := e.alice.SignOrder(domain.Order{
		Salt: e.salt, Maker: e.alice.PublicKey(), Market: marketID, TokenID: domain.TokenYes,
		MakerAmount: 600, TakerAmount: 1_000, FeeRateBps: 100, Side: domain.SideBuy,
	})

	ev, err := matching.FillOrder(e.ctx, e.op.PublicKey(), so, 600)
	require.NoError(t, err)
	// 100 bps * min(0.6, 0.4) * 1000 = 4 shares.
	assert.Equal(t, uint64(4), ev.Fee)
	assert.Equal(t, uint64(996), e.pos(e.alice).Yes)
	assert.Equal(t, uint64(4), e.pos(e.op).Yes)
	assert.Equal(t, uint64(10_600), e.pos(e.op).Collateral)
	assert.Equal(t, uint64(600_000), *e.ctx.Book.Market.LastYesPrice)
}

func TestFillOrderRestrictedTaker(t *testing.T) {
	e := newEnv(t)
	e.salt++
	so := e.bob.SignOrder(domain.Order{
		Salt: e.salt, Maker: e.bob.PublicKey(), Taker: e.alice.PublicKey(), Market: marketID,
		TokenID: domain.TokenYes, MakerAmount: 1_000, TakerAmount: 600, Side: domain.SideSell,
	})
	_, err := matching.FillOrder(e.ctx, e.op.PublicKey(), so, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidTaker)
}

func TestFillOrderWrongMarket(t *testing.T) {
	e := newEnv(t)
	so := e.bob.SignOrder(domain.Order{
		Salt: 1, Maker: e.bob.PublicKey(), Market: domain.Pubkey{0xBB},
		TokenID: domain.TokenYes, MakerAmount: 1_000, TakerAmount: 600, Side: domain.SideSell,
	})
	_, err := matching.FillOrder(e.ctx, e.op.PublicKey(), so, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidMarket)
}
