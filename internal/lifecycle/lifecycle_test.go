package lifecycle_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/lifecycle"
	"github.com/alanyoungcy/marketengine/internal/position"
)

var (
	marketID = domain.Pubkey{0xAA}
	creator  = domain.Pubkey{0xC0}
	alice    = domain.Pubkey{1}
	keeper   = domain.Pubkey{0xEE}
	start    = time.Unix(1_700_000_000, 0)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBook(t *testing.T) *position.Book {
	t.Helper()
	m := &domain.Market{
		ID:             marketID,
		Creator:        creator,
		Status:         domain.MarketStatusActive,
		CreatedAt:      start,
		LastActivityAt: start,
	}
	b := position.NewBook(m, start)
	b.Custody[domain.WalletOf(alice)] = 1_000_000
	require.NoError(t, b.Split(alice, 10_000))
	return b
}

func testConfig() *domain.GlobalConfig {
	cfg := domain.DefaultGlobalConfig()
	return &cfg
}

func TestDeriveFinalPrices(t *testing.T) {
	tests := []struct {
		name            string
		yes, no         *uint64
		wantYes, wantNo uint64
	}{
		{"no trades", nil, nil, 500_000, 500_000},
		{"yes recorded", domain.Ptr[uint64](700_000), domain.Ptr[uint64](300_000), 700_000, 300_000},
		{"only no recorded", nil, domain.Ptr[uint64](400_000), 600_000, 400_000},
		{"yes above one", domain.Ptr[uint64](1_200_000), nil, 1_000_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yes, no := lifecycle.DeriveFinalPrices(&domain.Market{LastYesPrice: tt.yes, LastNoPrice: tt.no})
			assert.Equal(t, tt.wantYes, yes)
			assert.Equal(t, tt.wantNo, no)
		})
	}
}

func TestTerminateIfInactive(t *testing.T) {
	t.Run("never traded resolves at half", func(t *testing.T) {
		b := newBook(t)
		now := start.Add(domain.DefaultInactivityTimeout)
		res, err := lifecycle.TerminateIfInactive(b, testConfig(), keeper, now, 42, quietLogger())
		require.NoError(t, err)
		require.NotNil(t, res)

		m := b.Market
		assert.Equal(t, domain.MarketStatusTerminated, m.Status)
		assert.Equal(t, uint64(500_000), *m.FinalYesPrice)
		assert.Equal(t, uint64(500_000), *m.FinalNoPrice)
		assert.Equal(t, domain.TerminationInactivity, *m.TerminationReason)
		assert.Equal(t, uint64(42), *m.TerminationSlot)
		assert.Equal(t, uint64(10_000), m.TotalRedeemable)
		assert.Zero(t, m.TotalRedeemed)
		assert.Equal(t, domain.TerminationInactivity, res.Terminated.Reason)
		assert.Nil(t, res.KeeperReward, "reward treasury is empty")
	})

	t.Run("still active before timeout", func(t *testing.T) {
		b := newBook(t)
		now := start.Add(domain.DefaultInactivityTimeout - time.Second)
		res, err := lifecycle.TerminateIfInactive(b, testConfig(), keeper, now, 42, quietLogger())
		require.NoError(t, err)
		assert.Nil(t, res)
		assert.Equal(t, domain.MarketStatusActive, b.Market.Status)
	})

	t.Run("keeper restricted", func(t *testing.T) {
		b := newBook(t)
		cfg := testConfig()
		cfg.Keeper = keeper
		now := start.Add(30 * 24 * time.Hour)
		_, err := lifecycle.TerminateIfInactive(b, cfg, alice, now, 1, quietLogger())
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		res, err := lifecycle.TerminateIfInactive(b, cfg, keeper, now, 1, quietLogger())
		require.NoError(t, err)
		require.NotNil(t, res)

		_, err = lifecycle.TerminateIfInactive(b, cfg, keeper, now, 2, quietLogger())
		assert.ErrorIs(t, err, domain.ErrMarketNotActive)
	})

	t.Run("pays keeper and creator", func(t *testing.T) {
		b := newBook(t)
		b.Custody[domain.RewardTreasury()] = domain.DefaultTerminationReward
		b.Custody[domain.CreatorTreasury()] = 5_000
		b.Market.CreatorIncentiveAccrued = 1_234
		b.Market.LastYesPrice = domain.Ptr[uint64](800_000)

		res, err := lifecycle.TerminateIfInactive(b, testConfig(), keeper, start.Add(8*24*time.Hour), 1, quietLogger())
		require.NoError(t, err)
		require.NotNil(t, res.KeeperReward)
		require.NotNil(t, res.CreatorPayout)
		assert.Equal(t, uint64(domain.DefaultTerminationReward), b.Balance(domain.WalletOf(keeper)))
		assert.Equal(t, uint64(1_234), b.Balance(domain.WalletOf(creator)))
		assert.Zero(t, b.Market.CreatorIncentiveAccrued)
		assert.Equal(t, uint64(800_000), res.Terminated.FinalYesPrice)
		assert.Equal(t, uint64(200_000), res.Terminated.FinalNoPrice)
	})
}

func TestSettle(t *testing.T) {
	t.Run("requires a reference trade", func(t *testing.T) {
		b := newBook(t)
		_, err := lifecycle.Settle(b, quietLogger())
		assert.ErrorIs(t, err, domain.ErrMissingLastTrade)
	})

	t.Run("resolves opposite the last trade", func(t *testing.T) {
		b := newBook(t)
		m := b.Market
		m.LastTradeOutcome = domain.Ptr(domain.OutcomeYes)
		m.ReferenceAgent = domain.Ptr(alice)
		require.NoError(t, m.RecordLastPrice(domain.OutcomeYes, 650_000))

		res, err := lifecycle.Settle(b, quietLogger())
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNo, res.Settled.WinningOutcome)
		assert.Equal(t, alice, res.Settled.ReferenceAgent)
		assert.Equal(t, uint64(650_000), res.Settled.FinalYesPrice)
		assert.Equal(t, uint64(350_000), res.Settled.FinalNoPrice)
		assert.Equal(t, domain.MarketStatusSettled, m.Status)
		assert.Equal(t, domain.OutcomeNo, *m.WinningOutcome)
		assert.True(t, m.CanRedeem())

		_, err = lifecycle.Settle(b, quietLogger())
		assert.ErrorIs(t, err, domain.ErrMarketNotActive)
	})

	t.Run("short creator treasury keeps the accrual", func(t *testing.T) {
		b := newBook(t)
		m := b.Market
		m.LastTradeOutcome = domain.Ptr(domain.OutcomeNo)
		m.ReferenceAgent = domain.Ptr(alice)
		m.CreatorIncentiveAccrued = 500
		b.Custody[domain.CreatorTreasury()] = 499

		res, err := lifecycle.Settle(b, quietLogger())
		require.NoError(t, err)
		assert.Nil(t, res.CreatorPayout)
		assert.Equal(t, uint64(500), m.CreatorIncentiveAccrued)
		assert.Equal(t, domain.OutcomeYes, res.Settled.WinningOutcome)
	})

	t.Run("vault short of backing", func(t *testing.T) {
		b := newBook(t)
		m := b.Market
		m.LastTradeOutcome = domain.Ptr(domain.OutcomeNo)
		m.ReferenceAgent = domain.Ptr(alice)
		b.Custody[domain.VaultOf(marketID)] = 9_999

		_, err := lifecycle.Settle(b, quietLogger())
		assert.ErrorIs(t, err, domain.ErrInsufficientVaultBalance)
	})
}
