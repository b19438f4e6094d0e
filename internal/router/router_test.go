package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
)

func TestGuardsRejectsNonHTTPSLive(t *testing.T) {
	_, err := Guards(BrokerConfig{PaperTrading: false, BaseURL: "http://x", RateLimitPerSecond: 1})
	assert.Error(t, err)
}

func TestGuardsRejectsMissingCredentialsLive(t *testing.T) {
	_, err := Guards(BrokerConfig{PaperTrading: false, BaseURL: "https://x", RateLimitPerSecond: 1})
	assert.Error(t, err)
}

func TestGuardsAllowsPaperTradingOverHTTP(t *testing.T) {
	cfg, err := Guards(BrokerConfig{PaperTrading: true, BaseURL: "http://localhost", RateLimitPerSecond: 1})
	assert.NoError(t, err)
	assert.Equal(t, float64(defaultMaxSlippageBps), cfg.MaxSlippageBps)
}

func TestGuardsClampsSlippageToHardCap(t *testing.T) {
	cfg, err := Guards(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 1, MaxSlippageBps: 10000})
	require.NoError(t, err)
	assert.Equal(t, float64(hardCapMaxSlippageBps), cfg.MaxSlippageBps)
}

func TestGuardsRejectsNonPositiveRateLimit(t *testing.T) {
	_, err := Guards(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 0})
	assert.Error(t, err)
}

func TestRetryPolicyRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	p := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	err := p.Do(context.Background(), func() error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(3), attempts)
}

func TestRetryPolicyStopsOnNonRetryable(t *testing.T) {
	var attempts int32
	p := RetryPolicy{
		MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2,
		Retryable: func(error) bool { return false },
	}
	err := p.Do(context.Background(), func() error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("terminal")
	})
	assert.Error(t, err)
	assert.Equal(t, int32(1), attempts)
}

func TestRetryPolicyExhaustsMaxAttempts(t *testing.T) {
	var attempts int32
	p := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	err := p.Do(context.Background(), func() error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("always fails")
	})
	assert.Error(t, err)
	assert.Equal(t, int32(3), attempts)
}

func TestSlippageBps(t *testing.T) {
	assert.InDelta(t, 100.0, SlippageBps(101, 100), 1e-9)
}

type fakeBroker struct {
	submitted []BrokerOrderRequest
	fail      bool
}

func (f *fakeBroker) SubmitOrder(_ context.Context, req BrokerOrderRequest) (BrokerOrderResponse, error) {
	if f.fail {
		return BrokerOrderResponse{}, errors.New("broker down")
	}
	f.submitted = append(f.submitted, req)
	return BrokerOrderResponse{ID: "ord-1", Status: "filled", FilledQty: req.Qty}, nil
}
func (f *fakeBroker) GetOrder(_ context.Context, id string) (BrokerOrderResponse, error) {
	return BrokerOrderResponse{ID: id, Status: "filled"}, nil
}
func (f *fakeBroker) CancelOrder(_ context.Context, _ string) error { return nil }

func TestRouterRouteRejectsExcessiveSlippage(t *testing.T) {
	broker := &fakeBroker{}
	r := New(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 1000, MaxSlippageBps: 50}, broker, DefaultRetryPolicy(), nil, nil)

	limit := 110.0
	market := 100.0
	order := domain.Order{Type: domain.OrderTypeLimit, LimitPrice: &limit, Quantity: 1}
	_, err := r.Route(context.Background(), order, &market)
	assert.Error(t, err)
	assert.Empty(t, broker.submitted)
}

func TestRouterRouteSubmitsWithinSlippageTolerance(t *testing.T) {
	broker := &fakeBroker{}
	r := New(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 1000, MaxSlippageBps: 50}, broker, DefaultRetryPolicy(), nil, nil)

	limit := 100.1
	market := 100.0
	order := domain.Order{Type: domain.OrderTypeLimit, LimitPrice: &limit, Quantity: 1}
	resp, err := r.Route(context.Background(), order, &market)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", resp.ID)
}

func TestRouterRouteMarketOrderSkipsSlippageGate(t *testing.T) {
	broker := &fakeBroker{}
	r := New(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 1000}, broker, DefaultRetryPolicy(), nil, nil)

	order := domain.Order{Type: domain.OrderTypeMarket, Quantity: 1}
	_, err := r.Route(context.Background(), order, nil)
	assert.NoError(t, err)
}

func TestPaperBrokerSynthesizesFilledResponse(t *testing.T) {
	pb := NewPaperBroker()
	resp, err := pb.SubmitOrder(context.Background(), BrokerOrderRequest{Symbol: "AAPL", Side: "buy", Qty: 10})
	require.NoError(t, err)
	assert.Equal(t, "filled", resp.Status)
	assert.Equal(t, "AAPL", resp.Symbol)
	assert.Equal(t, "buy", resp.Side)
	assert.Equal(t, 10.0, resp.Qty)
	assert.Equal(t, 10.0, resp.FilledQty)
	assert.NotEmpty(t, resp.ID)
}

func TestRouterRouteResponseSymbolMatchesOrder(t *testing.T) {
	pb := NewPaperBroker()
	r := New(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 1000}, pb, DefaultRetryPolicy(), nil, nil)

	order := domain.Order{Symbol: "MSFT", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 5}
	resp, err := r.Route(context.Background(), order, nil)
	require.NoError(t, err)
	assert.Equal(t, string(order.Symbol), resp.Symbol)
}

func TestTWAPSlicerSplitsIntoEqualSlicesWithSuffixedClientID(t *testing.T) {
	broker := &fakeBroker{}
	r := New(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 1000}, broker, DefaultRetryPolicy(), nil, nil)
	slicer := NewTWAPSlicer(r, time.Millisecond)

	order := domain.Order{Type: domain.OrderTypeMarket, Quantity: 9, ClientID: "c1"}
	resps, err := slicer.Slice(context.Background(), order, 3)
	require.NoError(t, err)
	require.Len(t, resps, 3)
	require.Len(t, broker.submitted, 3)

	for k, req := range broker.submitted {
		assert.InDelta(t, 3.0, req.Qty, 1e-9)
		assert.Equal(t, fmt.Sprintf("c1_slice_%d", k), req.ClientOrderID)
	}
}

func TestTWAPSlicerAbortsOnFirstError(t *testing.T) {
	broker := &fakeBroker{fail: true}
	r := New(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 1000}, broker, RetryPolicy{MaxAttempts: 1}, nil, nil)
	slicer := NewTWAPSlicer(r, time.Millisecond)

	order := domain.Order{Type: domain.OrderTypeMarket, Quantity: 9, ClientID: "c1"}
	resps, err := slicer.Slice(context.Background(), order, 3)
	assert.Error(t, err)
	assert.Empty(t, resps)
}

func TestRouterRouteFeedsOrdersRoutedMetric(t *testing.T) {
	collectors := metrics.New()
	broker := &fakeBroker{}
	r := New(BrokerConfig{PaperTrading: true, RateLimitPerSecond: 1000}, broker, DefaultRetryPolicy(), nil, collectors)

	order := domain.Order{Symbol: "AAPL", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 1}
	_, err := r.Route(context.Background(), order, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(collectors.OrdersRouted.WithLabelValues("AAPL", "buy", "market")), 1e-9)
}
