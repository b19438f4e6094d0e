package bars

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
)

type recordingSink struct {
	drops []Trade
}

func (r *recordingSink) TradeDropped(_ domain.Symbol, _ time.Duration, t Trade) {
	r.drops = append(r.drops, t)
}

func TestOnTradeFoldsWithinWindow(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, nil)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 10, Timestamp: base})
	agg.OnTrade(Trade{Symbol: "AAPL", Price: 105, Quantity: 5, Timestamp: base.Add(10 * time.Second)})
	agg.OnTrade(Trade{Symbol: "AAPL", Price: 95, Quantity: 20, Timestamp: base.Add(20 * time.Second)})
	emitted := agg.OnTrade(Trade{Symbol: "AAPL", Price: 102, Quantity: 1, Timestamp: base.Add(30 * time.Second)})

	assert.Empty(t, emitted)

	bar, ok := agg.Current("AAPL", time.Minute)
	require.True(t, ok)
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 105.0, bar.High)
	assert.Equal(t, 95.0, bar.Low)
	assert.Equal(t, 102.0, bar.Close)
	assert.Equal(t, 36.0, bar.Volume)
	assert.Equal(t, int64(4), bar.TradeCount)
}

func TestOnTradeEmitsOnWindowBoundaryCross(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, nil)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 10, Timestamp: base})
	agg.OnTrade(Trade{Symbol: "AAPL", Price: 101, Quantity: 10, Timestamp: base.Add(59 * time.Second)})

	emitted := agg.OnTrade(Trade{Symbol: "AAPL", Price: 110, Quantity: 5, Timestamp: base.Add(61 * time.Second)})
	require.Len(t, emitted, 1)
	assert.Equal(t, 100.0, emitted[0].Open)
	assert.Equal(t, 101.0, emitted[0].Close)
	assert.Equal(t, 20.0, emitted[0].Volume)

	bar, ok := agg.Current("AAPL", time.Minute)
	require.True(t, ok)
	assert.Equal(t, 110.0, bar.Open)
	assert.Equal(t, 110.0, bar.Close)
}

func TestOnTradeDoesNotEmitUnprimedAccumulator(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, nil)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	emitted := agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 1, Timestamp: base})
	assert.Empty(t, emitted)
}

func TestOutOfOrderTradeIsDroppedAndCounted(t *testing.T) {
	sink := &recordingSink{}
	agg := NewAggregator([]time.Duration{time.Minute}, sink, nil, nil)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 10, Timestamp: base.Add(61 * time.Second)})
	agg.OnTrade(Trade{Symbol: "AAPL", Price: 99, Quantity: 1, Timestamp: base})

	require.Len(t, sink.drops, 1)
	assert.Equal(t, 99.0, sink.drops[0].Price)

	bar, ok := agg.Current("AAPL", time.Minute)
	require.True(t, ok)
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, int64(1), bar.TradeCount)
}

func TestLateTradeWithinSameWindowStillMerges(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, nil)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 10, Timestamp: base.Add(30 * time.Second)})
	agg.OnTrade(Trade{Symbol: "AAPL", Price: 90, Quantity: 5, Timestamp: base.Add(5 * time.Second)})

	bar, ok := agg.Current("AAPL", time.Minute)
	require.True(t, ok)
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 90.0, bar.Low)
	assert.Equal(t, int64(2), bar.TradeCount)
}

func TestVWAPTracksVolumeWeightedPrice(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, nil)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 10, Timestamp: base})
	agg.OnTrade(Trade{Symbol: "AAPL", Price: 110, Quantity: 10, Timestamp: base.Add(5 * time.Second)})

	vwap, ok := agg.VWAP("AAPL", time.Minute)
	require.True(t, ok)
	assert.InDelta(t, 105.0, vwap, 1e-9)
}

func TestVWAPUndefinedBeforeAnyTrade(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, nil)
	_, ok := agg.VWAP("AAPL", time.Minute)
	assert.False(t, ok)
}

func TestMultipleWindowsAdvanceIndependently(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute, 5 * time.Minute}, nil, nil, nil)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 1, Timestamp: base})
	emitted := agg.OnTrade(Trade{Symbol: "AAPL", Price: 101, Quantity: 1, Timestamp: base.Add(61 * time.Second)})

	require.Len(t, emitted, 1) // only the 1-minute window closed
	fiveMin, ok := agg.Current("AAPL", 5*time.Minute)
	require.True(t, ok)
	assert.Equal(t, int64(2), fiveMin.TradeCount)
}

func TestFlushEmitsAllPrimedAccumulators(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, nil)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 1, Timestamp: base})
	agg.OnTrade(Trade{Symbol: "MSFT", Price: 200, Quantity: 1, Timestamp: base})

	flushed := agg.Flush()
	assert.Len(t, flushed, 2)
}

func TestFlushSkipsUnprimedAccumulators(t *testing.T) {
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, nil)
	assert.Empty(t, agg.Flush())
}

func TestOnTradeFeedsIngestAndEmitMetrics(t *testing.T) {
	collectors := metrics.New()
	agg := NewAggregator([]time.Duration{time.Minute}, nil, nil, collectors)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(Trade{Symbol: "AAPL", Price: 100, Quantity: 1, Timestamp: base})
	agg.OnTrade(Trade{Symbol: "AAPL", Price: 101, Quantity: 1, Timestamp: base.Add(61 * time.Second)})

	assert.InDelta(t, 2, testutil.ToFloat64(collectors.TradesIngested.WithLabelValues("AAPL")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(collectors.BarsEmitted.WithLabelValues("AAPL", time.Minute.String())), 1e-9)
}
