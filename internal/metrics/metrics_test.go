package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.ObserveOp("settle_trade", nil, 3*time.Millisecond)
	r.ObserveOp("settle_trade", fmt.Errorf("wrap: %w", domain.ErrInvalidNonce), time.Millisecond)
	r.ObserveOp("split", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.opTotal.WithLabelValues("settle_trade", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.opTotal.WithLabelValues("settle_trade", string(domain.CategoryOf(domain.ErrInvalidNonce)))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.opTotal.WithLabelValues("split", string(domain.CategoryInternal))))

	r.ObserveEvents([]domain.Event{
		{Kind: domain.EventTradingFeeCollected, Payload: domain.TradingFeeCollected{TakerFee: 1500}},
		{Kind: domain.EventMarketSettled, Payload: domain.MarketSettled{}},
	})
	assert.Equal(t, 1500.0, testutil.ToFloat64(r.fees))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resolved.WithLabelValues(string(domain.EventMarketSettled))))

	r.ObserveArchived(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(r.archived))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "marketengine_operations_total"))
}
