package engine_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
	"github.com/alanyoungcy/marketengine/internal/lifecycle"
	"github.com/alanyoungcy/marketengine/internal/matching"
	"github.com/alanyoungcy/marketengine/internal/order"
)

var (
	marketID = domain.Pubkey{0xAA}
	created  = time.Unix(1_700_000_000, 0)
)

type fixture struct {
	eng                    *engine.Engine
	authority, settler, op *crypto.Signer
	alice, bob, creator    *crypto.Signer
	cfg                    domain.GlobalConfig
	state                  *engine.State
	env                    engine.Env
	settleNonce            uint64
}

func signer(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.GenerateSigner()
	require.NoError(t, err)
	return s
}

// newFixture returns an Active market with every user funded.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		eng:       engine.New(order.Ed25519Verifier{}, slog.New(slog.NewTextHandler(io.Discard, nil))),
		authority: signer(t),
		settler:   signer(t),
		op:        signer(t),
		alice:     signer(t),
		bob:       signer(t),
		creator:   signer(t),
		env:       engine.Env{Now: created, Slot: 1_000},
	}
	f.cfg = domain.DefaultGlobalConfig()
	f.cfg.Authority = f.authority.PublicKey()
	f.cfg.SettlementSigner = f.settler.PublicKey()
	f.cfg.Operators = []domain.Pubkey{f.op.PublicKey()}

	s := engine.NewState(f.cfg, &domain.Market{ID: marketID}, created)
	for _, u := range []*crypto.Signer{f.alice, f.bob, f.creator, f.op} {
		s.Book.Custody[domain.WalletOf(u.PublicKey())] = 100_000_000
	}
	res, err := f.eng.CreateMarket(s, f.env, engine.CreateMarketRequest{
		Creator:  f.creator.PublicKey(),
		Question: "Will it rain tomorrow?",
	})
	require.NoError(t, err)
	f.state = res.State
	return f
}

// run returns a step that requires success and advances the fixture state.
func (f *fixture) run(t *testing.T) func(*engine.Result, error) *engine.Result {
	return func(res *engine.Result, err error) *engine.Result {
		t.Helper()
		require.NoError(t, err)
		f.state = res.State
		return res
	}
}

func (f *fixture) pos(u *crypto.Signer) domain.Position {
	p, _ := f.state.Book.Lookup(u.PublicKey())
	if p == nil {
		return domain.Position{}
	}
	return *p
}

func (f *fixture) trade(fill domain.TradeFill) engine.SettleTradeRequest {
	f.settleNonce++
	msg := domain.SettlementMessage{Market: marketID, Nonce: f.settleNonce, Fill: fill}
	return engine.SettleTradeRequest{Nonce: f.settleNonce, Fill: fill, Signature: f.settler.SignSettlement(msg)}
}

func kinds(events []domain.Event) []domain.EventKind {
	out := make([]domain.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestCreateMarket(t *testing.T) {
	f := newFixture(t)
	m := f.state.Book.Market
	assert.Equal(t, domain.MarketStatusActive, m.Status)
	assert.Equal(t, f.creator.PublicKey(), m.Creator)
	assert.True(t, m.RandomTerminationEnabled)
	assert.Equal(t, uint32(domain.DefaultTerminationProbability), m.TerminationProbability)
	assert.Equal(t, uint64(domain.DefaultMarketCreationFee), f.state.Book.Balance(domain.PlatformTreasury()))

	_, err := f.eng.CreateMarket(f.state, f.env, engine.CreateMarketRequest{Creator: f.alice.PublicKey(), Question: "again"})
	assert.ErrorIs(t, err, domain.ErrMarketExists)

	fresh := engine.NewState(f.cfg, &domain.Market{ID: domain.Pubkey{0xBB}}, created)
	long := make([]byte, domain.MaxQuestionLen+1)
	_, err = f.eng.CreateMarket(fresh, f.env, engine.CreateMarketRequest{Creator: f.alice.PublicKey(), Question: string(long)})
	assert.ErrorIs(t, err, domain.ErrTextTooLong)

	res, err := f.eng.CreateMarket(fresh, f.env, engine.CreateMarketRequest{Creator: f.alice.PublicKey(), Question: "broke?"})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Nil(t, res)
	assert.Empty(t, fresh.Book.Market.Status, "failed call leaves the input untouched")
}

func TestCreateMarketEvents(t *testing.T) {
	f := newFixture(t)
	fresh := engine.NewState(f.cfg, &domain.Market{ID: domain.Pubkey{0xCC}}, created)
	fresh.Book.Custody[domain.WalletOf(f.alice.PublicKey())] = domain.DefaultMarketCreationFee

	res, err := f.eng.CreateMarket(fresh, f.env, engine.CreateMarketRequest{Creator: f.alice.PublicKey(), Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, []domain.EventKind{domain.EventMarketCreated, domain.EventMarketCreationFeeCollected}, kinds(res.Events))
	for _, ev := range res.Events {
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, domain.Pubkey{0xCC}, ev.Market)
		assert.Equal(t, f.env.Slot, ev.Slot)
	}
	assert.Zero(t, res.State.Book.Balance(domain.WalletOf(f.alice.PublicKey())))
}

func TestSettleTradeTakerBuy(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.PublicKey(), f.bob.PublicKey()
	f.run(t)(f.eng.Split(f.state, f.env, alice, 100_000))
	f.run(t)(f.eng.Deposit(f.state, f.env, bob, 100_000))

	res := f.run(t)(f.eng.SettleTrade(f.state, f.env, f.trade(domain.TradeFill{
		Maker: alice, Taker: bob, Outcome: domain.OutcomeYes, Side: domain.SideBuy,
		Size: 100_000, Price: 500_000,
	})))

	// cost 50_000, fee 3.2% = 1_600 split 1_200 / 320 / 80.
	assert.Equal(t, uint64(48_400), f.pos(f.bob).Collateral)
	assert.Equal(t, uint64(100_000), f.pos(f.bob).Yes)
	assert.Equal(t, uint64(50_320), f.pos(f.alice).Collateral)
	assert.Zero(t, f.pos(f.alice).Yes)

	b := f.state.Book
	assert.Equal(t, uint64(domain.DefaultMarketCreationFee+1_200), b.Balance(domain.PlatformTreasury()))
	assert.Equal(t, uint64(80), b.Balance(domain.CreatorTreasury()))
	assert.Equal(t, uint64(200_000-1_280), b.VaultBalance())

	m := b.Market
	assert.Equal(t, uint64(1), m.SettleTradeNonce)
	assert.Equal(t, uint64(80), m.CreatorIncentiveAccrued)
	assert.Equal(t, uint64(1_200), m.TotalTradingFees)
	assert.Equal(t, uint64(500_000), *m.LastYesPrice)
	assert.Equal(t, domain.OutcomeYes, *m.LastTradeOutcome)
	assert.Equal(t, bob, *m.ReferenceAgent)
	assert.Equal(t, uint64(1), m.TotalTrades)

	require.Len(t, res.Events, 1)
	fee := res.Events[0].Payload.(domain.TradingFeeCollected)
	assert.Equal(t, uint64(1_600), fee.TakerFee)
	assert.Equal(t, uint32(32_000), fee.FeeRate)
}

func TestSettleTradeTakerSell(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.PublicKey(), f.bob.PublicKey()
	f.run(t)(f.eng.Split(f.state, f.env, bob, 100_000))
	f.run(t)(f.eng.Deposit(f.state, f.env, alice, 100_000))

	f.run(t)(f.eng.SettleTrade(f.state, f.env, f.trade(domain.TradeFill{
		Maker: alice, Taker: bob, Outcome: domain.OutcomeNo, Side: domain.SideSell,
		Size: 100_000, Price: 500_000,
	})))

	assert.Equal(t, uint64(100_000-49_680), f.pos(f.alice).Collateral)
	assert.Equal(t, uint64(100_000), f.pos(f.alice).No)
	assert.Equal(t, uint64(48_400), f.pos(f.bob).Collateral)
	assert.Zero(t, f.pos(f.bob).No)
	assert.Equal(t, uint64(500_000), *f.state.Book.Market.LastNoPrice)
	assert.Equal(t, uint64(500_000), *f.state.Book.Market.LastYesPrice)
}

func TestSettleTradeRejects(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.PublicKey(), f.bob.PublicKey()
	f.run(t)(f.eng.Split(f.state, f.env, alice, 100_000))
	f.run(t)(f.eng.Deposit(f.state, f.env, bob, 100_000))
	fill := domain.TradeFill{Maker: alice, Taker: bob, Outcome: domain.OutcomeYes, Side: domain.SideBuy, Size: 10_000, Price: 400_000}

	req := f.trade(fill)
	f.run(t)(f.eng.SettleTrade(f.state, f.env, req))

	_, err := f.eng.SettleTrade(f.state, f.env, req)
	assert.ErrorIs(t, err, domain.ErrInvalidNonce, "replayed message")

	forged := f.trade(fill)
	forged.Fill.Size = 20_000
	_, err = f.eng.SettleTrade(f.state, f.env, forged)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	over := fill
	over.Size = 1_000_000_000
	f.settleNonce = 1
	_, err = f.eng.SettleTrade(f.state, f.env, f.trade(over))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	bad := fill
	bad.Price = 1_000_001
	f.settleNonce = 1
	_, err = f.eng.SettleTrade(f.state, f.env, f.trade(bad))
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestSettleMarketThenRedeem(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.PublicKey(), f.bob.PublicKey()
	f.run(t)(f.eng.Split(f.state, f.env, alice, 100_000))
	f.run(t)(f.eng.Deposit(f.state, f.env, bob, 100_000))
	f.run(t)(f.eng.SettleTrade(f.state, f.env, f.trade(domain.TradeFill{
		Maker: alice, Taker: bob, Outcome: domain.OutcomeYes, Side: domain.SideBuy,
		Size: 100_000, Price: 700_000,
	})))

	_, err := f.eng.SettleMarket(f.state, f.env, bob)
	assert.ErrorIs(t, err, domain.ErrNotAdmin)

	res := f.run(t)(f.eng.SettleMarket(f.state, f.env, f.authority.PublicKey()))
	assert.Equal(t, []domain.EventKind{domain.EventMarketSettled, domain.EventCreatorIncentivePaid}, kinds(res.Events))
	assert.Zero(t, f.state.Book.Balance(domain.CreatorTreasury()))

	m := f.state.Book.Market
	assert.Equal(t, domain.MarketStatusSettled, m.Status)
	assert.Equal(t, domain.OutcomeNo, *m.WinningOutcome)
	assert.Equal(t, uint64(700_000), *m.FinalYesPrice)
	assert.Equal(t, f.state.Book.VaultBalance(), m.TotalRedeemable)

	_, err = f.eng.SettleTrade(f.state, f.env, f.trade(domain.TradeFill{
		Maker: alice, Taker: bob, Outcome: domain.OutcomeYes, Side: domain.SideBuy, Size: 1, Price: 1,
	}))
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)

	wallet := f.state.Book.Balance(domain.WalletOf(bob))
	res = f.run(t)(f.eng.Redeem(f.state, f.env, bob, domain.OutcomeYes, 100_000))
	assert.Equal(t, wallet+70_000, f.state.Book.Balance(domain.WalletOf(bob)))
	assert.Equal(t, uint64(70_000), res.Events[0].Payload.(domain.TokensRedeemed).Payout)

	res = f.run(t)(f.eng.Redeem(f.state, f.env, alice, domain.OutcomeNo, 100_000))
	assert.Equal(t, uint64(30_000), res.Events[0].Payload.(domain.TokensRedeemed).Payout)
	m = f.state.Book.Market
	assert.Equal(t, uint64(100_000), m.TotalRedeemed)
	assert.LessOrEqual(t, m.TotalRedeemed, m.TotalRedeemable)
}

func TestSettleMarketPaysCreator(t *testing.T) {
	f := newFixture(t)
	f.state.Book.Market.LastTradeOutcome = domain.Ptr(domain.OutcomeNo)
	f.state.Book.Market.ReferenceAgent = domain.Ptr(f.bob.PublicKey())
	f.state.Book.Market.CreatorIncentiveAccrued = 500
	f.state.Book.Custody[domain.CreatorTreasury()] = 500

	res := f.run(t)(f.eng.SettleMarket(f.state, f.env, f.authority.PublicKey()))
	assert.Equal(t, []domain.EventKind{domain.EventMarketSettled, domain.EventCreatorIncentivePaid}, kinds(res.Events))
	assert.Equal(t, uint64(100_000_000-domain.DefaultMarketCreationFee+500), f.state.Book.Balance(domain.WalletOf(f.creator.PublicKey())))
	assert.Equal(t, domain.OutcomeYes, *f.state.Book.Market.WinningOutcome)
}

func TestTerminateIfInactive(t *testing.T) {
	f := newFixture(t)
	early := engine.Env{Now: created.Add(domain.DefaultInactivityTimeout - time.Minute), Slot: 2_000}
	res := f.run(t)(f.eng.TerminateIfInactive(f.state, early, f.bob.PublicKey()))
	assert.Empty(t, res.Events)
	assert.Equal(t, domain.MarketStatusActive, f.state.Book.Market.Status)

	late := engine.Env{Now: created.Add(domain.DefaultInactivityTimeout), Slot: 3_000}
	res = f.run(t)(f.eng.TerminateIfInactive(f.state, late, f.bob.PublicKey()))
	require.Equal(t, []domain.EventKind{domain.EventMarketTerminated}, kinds(res.Events))
	term := res.Events[0].Payload.(domain.MarketTerminated)
	assert.Equal(t, uint64(500_000), term.FinalYesPrice)
	assert.Equal(t, uint64(500_000), term.FinalNoPrice)
	assert.Equal(t, domain.TerminationInactivity, term.Reason)
}

func TestCheckTerminationOptIn(t *testing.T) {
	f := newFixture(t)
	f.state.Book.Market.LastTradeOutcome = domain.Ptr(domain.OutcomeYes)
	res := f.run(t)(f.eng.CheckTermination(f.state, f.env, lifecycleRequest(f, false)))
	assert.Empty(t, res.Events)

	res = f.run(t)(f.eng.CheckTermination(f.state, f.env, lifecycleRequest(f, true)))
	require.NotEmpty(t, res.Events)
	assert.Equal(t, domain.EventTerminationCheckResult, res.Events[0].Kind)
	assert.Equal(t, uint64(1), f.state.Book.Market.TerminationNonce)
}

func lifecycleRequest(f *fixture, optIn bool) lifecycle.CheckRequest {
	return lifecycle.CheckRequest{
		Caller:    f.alice.PublicKey(),
		Reading:   domain.RandomnessReading{Value: [32]byte{1, 2, 3}, Slot: f.env.Slot - 10, Timestamp: created},
		Threshold: lifecycle.Threshold(domain.DefaultTerminationProbability),
		YesPrice:  500_000,
		NoPrice:   500_000,
		TradeSlot: f.env.Slot,
		OptedIn:   optIn,
	}
}

func TestFailedMatchLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.PublicKey(), f.bob.PublicKey()
	f.run(t)(f.eng.Split(f.state, f.env, bob, 1_000))
	f.run(t)(f.eng.Deposit(f.state, f.env, alice, 10_000))
	before := f.state

	good := f.bob.SignOrder(domain.Order{Salt: 1, Maker: bob, Market: marketID, TokenID: domain.TokenYes, MakerAmount: 500, TakerAmount: 300, Side: domain.SideSell})
	// The second maker sells more YES than bob holds once the first settles.
	short := f.bob.SignOrder(domain.Order{Salt: 2, Maker: bob, Market: marketID, TokenID: domain.TokenYes, MakerAmount: 600, TakerAmount: 360, Side: domain.SideSell})
	taker := f.alice.SignOrder(domain.Order{Salt: 3, Maker: alice, Market: marketID, TokenID: domain.TokenYes, MakerAmount: 700, TakerAmount: 1_000, Side: domain.SideBuy})

	_, err := f.eng.MatchOrders(f.state, f.env, matching.MatchRequest{
		Operator: f.op.PublicKey(), Taker: taker, TakerFill: 660,
		Makers: []matching.MakerFill{{Order: good, Amount: 500}, {Order: short, Amount: 600}},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientOutcomeTokens)
	assert.Same(t, before, f.state)
	assert.Empty(t, before.Fills)
	assert.Equal(t, uint64(1_000), f.pos(f.bob).Yes)
	assert.Equal(t, uint64(10_000), f.pos(f.alice).Collateral)
	assert.Zero(t, before.Book.Market.TotalTrades)

	later := engine.Env{Now: created.Add(time.Hour), Slot: 1_500}
	res := f.run(t)(f.eng.MatchOrders(f.state, later, matching.MatchRequest{
		Operator: f.op.PublicKey(), Taker: taker, TakerFill: 300,
		Makers: []matching.MakerFill{{Order: good, Amount: 500}},
	}))
	assert.Equal(t, []domain.EventKind{domain.EventOrderFilled, domain.EventOrdersMatched}, kinds(res.Events))
	assert.Equal(t, later.Now, f.state.Book.Market.LastActivityAt)
	assert.Equal(t, uint64(500), f.pos(f.alice).Yes)
	assert.Equal(t, uint64(600_000), *f.state.Book.Market.LastYesPrice)
}

func TestTradesStampLastTradeSlot(t *testing.T) {
	f := newFixture(t)
	alice, bob, op := f.alice.PublicKey(), f.bob.PublicKey(), f.op.PublicKey()
	f.run(t)(f.eng.Split(f.state, f.env, alice, 100_000))
	f.run(t)(f.eng.Split(f.state, f.env, bob, 10_000))
	f.run(t)(f.eng.Deposit(f.state, f.env, bob, 100_000))
	f.run(t)(f.eng.Deposit(f.state, f.env, op, 10_000))
	assert.Nil(t, f.state.Book.Market.LastTradeSlot, "custody operations are not trades")

	at := func(slot uint64) engine.Env { return engine.Env{Now: created.Add(time.Duration(slot) * time.Second), Slot: slot} }

	f.run(t)(f.eng.SettleTrade(f.state, at(2_000), f.trade(domain.TradeFill{
		Maker: alice, Taker: bob, Outcome: domain.OutcomeYes, Side: domain.SideBuy,
		Size: 10_000, Price: 500_000,
	})))
	m := f.state.Book.Market
	require.NotNil(t, m.LastTradeSlot)
	assert.Equal(t, uint64(2_000), *m.LastTradeSlot)
	assert.Equal(t, uint64(2_000), m.LastActivitySlot)

	maker := f.bob.SignOrder(domain.Order{Salt: 11, Maker: bob, Market: marketID, TokenID: domain.TokenYes, MakerAmount: 500, TakerAmount: 300, Side: domain.SideSell})
	taker := f.alice.SignOrder(domain.Order{Salt: 12, Maker: alice, Market: marketID, TokenID: domain.TokenYes, MakerAmount: 300, TakerAmount: 500, Side: domain.SideBuy})
	f.run(t)(f.eng.MatchOrders(f.state, at(2_500), matching.MatchRequest{
		Operator: op, Taker: taker, TakerFill: 300,
		Makers: []matching.MakerFill{{Order: maker, Amount: 500}},
	}))
	assert.Equal(t, uint64(2_500), *f.state.Book.Market.LastTradeSlot)

	sell := f.bob.SignOrder(domain.Order{Salt: 13, Maker: bob, Market: marketID, TokenID: domain.TokenYes, MakerAmount: 400, TakerAmount: 200, Side: domain.SideSell})
	f.run(t)(f.eng.FillOrder(f.state, at(3_000), op, sell, 400))
	assert.Equal(t, uint64(3_000), *f.state.Book.Market.LastTradeSlot)
	assert.Equal(t, uint64(400), f.pos(f.op).Yes)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	alice := f.alice.PublicKey()
	o := domain.Order{Salt: 9, Maker: alice, Market: marketID, TokenID: domain.TokenYes, MakerAmount: 100, TakerAmount: 200, Side: domain.SideBuy}

	_, err := f.eng.CancelOrder(f.state, f.env, f.bob.PublicKey(), o)
	assert.ErrorIs(t, err, domain.ErrNotOrderMaker)

	res := f.run(t)(f.eng.CancelOrder(f.state, f.env, alice, o))
	assert.Equal(t, []domain.EventKind{domain.EventOrderCancelled}, kinds(res.Events))
	assert.True(t, f.state.Fills[order.Hash(o)].Done)

	_, err = f.eng.CancelOrder(f.state, f.env, alice, o)
	assert.ErrorIs(t, err, domain.ErrOrderCancelledOrFilled)

	_, err = f.eng.FillOrder(f.state, f.env, f.op.PublicKey(), f.alice.SignOrder(o), 100)
	assert.ErrorIs(t, err, domain.ErrOrderNotFillable)
}

func TestIncrementNonce(t *testing.T) {
	f := newFixture(t)
	next, ev, err := f.eng.IncrementNonce(4, f.alice.PublicKey(), f.env)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), next)
	assert.Equal(t, domain.EventNonceIncremented, ev.Kind)
	assert.Equal(t, domain.NonceIncremented{User: f.alice.PublicKey(), NewNonce: 5}, ev.Payload)
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.PauseMarket(f.state, f.env, f.bob.PublicKey())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	f.run(t)(f.eng.PauseMarket(f.state, f.env, f.creator.PublicKey()))
	_, err = f.eng.Split(f.state, f.env, f.bob.PublicKey(), 10)
	assert.ErrorIs(t, err, domain.ErrMarketPaused)
	_, err = f.eng.PauseMarket(f.state, f.env, f.authority.PublicKey())
	assert.ErrorIs(t, err, domain.ErrMarketPaused)

	f.run(t)(f.eng.ResumeMarket(f.state, f.env, f.authority.PublicKey()))
	f.run(t)(f.eng.Split(f.state, f.env, f.bob.PublicKey(), 10))
	_, err = f.eng.ResumeMarket(f.state, f.env, f.authority.PublicKey())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateMarketParams(t *testing.T) {
	f := newFixture(t)
	tooHigh := uint32(domain.MaxTerminationProbability + 1)
	_, err := f.eng.UpdateMarketParams(f.state, f.env, f.authority.PublicKey(), engine.MarketParams{TerminationProbability: &tooHigh})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.eng.UpdateMarketParams(f.state, f.env, f.creator.PublicKey(), engine.MarketParams{})
	assert.ErrorIs(t, err, domain.ErrNotAdmin)

	p := uint32(5_000)
	off := false
	f.run(t)(f.eng.UpdateMarketParams(f.state, f.env, f.authority.PublicKey(), engine.MarketParams{
		TerminationProbability: &p, RandomTerminationEnabled: &off,
	}))
	assert.Equal(t, p, f.state.Book.Market.TerminationProbability)
	assert.False(t, f.state.Book.Market.RandomTerminationEnabled)
}

func TestGlobalConfigChanges(t *testing.T) {
	f := newFixture(t)
	auth := f.authority.PublicKey()

	_, err := f.eng.AddOperator(f.cfg, f.env, f.bob.PublicKey(), f.bob.PublicKey())
	assert.ErrorIs(t, err, domain.ErrNotAdmin)

	res, err := f.eng.AddOperator(f.cfg, f.env, auth, f.bob.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, f.cfg.Version+1, res.Config.Version)
	assert.True(t, res.Config.IsOperator(f.bob.PublicKey()))
	assert.False(t, f.cfg.IsOperator(f.bob.PublicKey()), "input config is not modified")

	_, err = f.eng.AddOperator(res.Config, f.env, auth, f.bob.PublicKey())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	full := res.Config
	for i := len(full.Operators); i < domain.MaxOperators; i++ {
		r, err := f.eng.AddOperator(full, f.env, auth, domain.Pubkey{byte(i + 1), 0xFF})
		require.NoError(t, err)
		full = r.Config
	}
	_, err = f.eng.AddOperator(full, f.env, auth, domain.Pubkey{0xEE})
	assert.ErrorIs(t, err, domain.ErrTooManyOperators)

	res, err = f.eng.RemoveOperator(full, f.env, auth, f.bob.PublicKey())
	require.NoError(t, err)
	assert.False(t, res.Config.IsOperator(f.bob.PublicKey()))
	_, err = f.eng.RemoveOperator(res.Config, f.env, auth, f.bob.PublicKey())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bad := domain.DefaultFeeConfig()
	bad.PlatformShare++
	_, err = f.eng.UpdateFeeRates(f.cfg, f.env, auth, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidFeeConfiguration)

	good := domain.DefaultFeeConfig()
	good.CenterTakerRate = 50_000
	res, err = f.eng.UpdateFeeRates(f.cfg, f.env, auth, good)
	require.NoError(t, err)
	assert.Equal(t, good, res.Config.Fees)
	assert.Equal(t, []domain.EventKind{domain.EventGlobalFeeRatesUpdated}, kinds(res.Events))

	res, err = f.eng.SetKeeper(f.cfg, f.env, auth, f.bob.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, f.bob.PublicKey(), res.Config.Keeper)
}

func TestGlobalTradingPause(t *testing.T) {
	f := newFixture(t)
	auth := f.authority.PublicKey()
	res, err := f.eng.SetTradingPaused(f.cfg, f.env, auth, true)
	require.NoError(t, err)
	assert.Equal(t, []domain.EventKind{domain.EventGlobalTradingPaused}, kinds(res.Events))

	_, err = f.eng.SetTradingPaused(res.Config, f.env, auth, true)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	f.state.Config = &res.Config
	_, err = f.eng.MatchOrders(f.state, f.env, matching.MatchRequest{Operator: f.op.PublicKey()})
	assert.ErrorIs(t, err, domain.ErrTradingPaused)

	res, err = f.eng.SetTradingPaused(res.Config, f.env, auth, false)
	require.NoError(t, err)
	assert.False(t, res.Config.TradingPaused)
}
