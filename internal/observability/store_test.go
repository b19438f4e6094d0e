package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrationsAndStatsStartEmpty(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.GetTableStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TradingMetrics)
	assert.Zero(t, stats.TradingCandles)
	assert.Zero(t, stats.SystemEvents)
}

func TestInsertMetricThenGetMetricsReturnsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertMetric(ctx, Metric{Timestamp: base, Name: "latency", Symbol: "AAPL", Value: 1.0}))
	require.NoError(t, s.InsertMetric(ctx, Metric{Timestamp: base.Add(time.Minute), Name: "latency", Symbol: "AAPL", Value: 2.0}))

	got, err := s.GetMetrics(ctx, "latency", "", nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Value)
	assert.Equal(t, 1.0, got[1].Value)
}

func TestGetMetricsFiltersBySymbolAndStart(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertMetrics(ctx, []Metric{
		{Timestamp: base, Name: "latency", Symbol: "AAPL", Value: 1.0},
		{Timestamp: base, Name: "latency", Symbol: "MSFT", Value: 5.0},
		{Timestamp: base.Add(-time.Hour), Name: "latency", Symbol: "AAPL", Value: 9.0},
	}))

	start := base.Add(-time.Minute)
	got, err := s.GetMetrics(ctx, "latency", "AAPL", &start, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Value)
}

func TestGetMetricsRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertMetrics(ctx, []Metric{
		{Timestamp: base, Name: "latency", Symbol: "AAPL", Value: 1.0},
		{Timestamp: base.Add(time.Minute), Name: "latency", Symbol: "AAPL", Value: 2.0},
		{Timestamp: base.Add(2 * time.Minute), Name: "latency", Symbol: "AAPL", Value: 3.0},
	}))

	got, err := s.GetMetrics(ctx, "latency", "", nil, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestInsertMetricsPreservesLabels(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertMetric(ctx, Metric{
		Timestamp: time.Now(), Name: "gate_rejections", Symbol: "AAPL", Value: 1.0,
		Labels: map[string]string{"gate": "order_notional"},
	}))

	got, err := s.GetMetrics(ctx, "gate_rejections", "", nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "order_notional", got[0].Labels["gate"])
}

func TestInsertCandleThenStatsReflectRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertCandle(ctx, Candle{
		Timestamp: time.Now(), Symbol: "AAPL",
		Open: 100, High: 105, Low: 99, Close: 102, Volume: 10, TradeCount: 4,
	}))

	stats, err := s.GetTableStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TradingCandles)
}

func TestLogEventThenStatsReflectRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LogEvent(ctx, "circuit_breaker_tripped", SeverityWarning, "daily loss threshold breached", map[string]any{"symbol": "AAPL"}))

	stats, err := s.GetTableStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.SystemEvents)
}

func TestGetAggregatedMetricsBucketsByWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertMetrics(ctx, []Metric{
		{Timestamp: base, Name: "latency", Symbol: "AAPL", Value: 10},
		{Timestamp: base.Add(10 * time.Second), Name: "latency", Symbol: "AAPL", Value: 20},
		{Timestamp: base.Add(70 * time.Second), Name: "latency", Symbol: "AAPL", Value: 100},
	}))

	points, err := s.GetAggregatedMetrics(ctx, "latency", time.Minute, nil, AggAvg)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 15.0, points[0].Value, 1e-9)
	assert.InDelta(t, 100.0, points[1].Value, 1e-9)
}

func TestGetAggregatedMetricsRejectsNonPositiveBucket(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAggregatedMetrics(context.Background(), "latency", 0, nil, AggAvg)
	assert.Error(t, err)
}

func TestAggregateExprRejectsUnknownFunction(t *testing.T) {
	_, err := aggregateExpr(AggregateFunc("drop table trading_metrics;--"))
	assert.Error(t, err)
}

func TestOptimizeSucceedsOnEmptyStore(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Optimize(context.Background()))
}

func TestInsertCandleFeedsWriteErrorMetricOnClosedStore(t *testing.T) {
	collectors := metrics.New()
	s, err := Open("", nil, collectors)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.InsertCandle(context.Background(), Candle{Timestamp: time.Now(), Symbol: "AAPL"})
	assert.Error(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(collectors.ObservabilityWriteErrors.WithLabelValues("insert_candle")), 1e-9)
}
