package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/tradSys/internal/domain"
)

func TestBestBidAskScenario(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	now := time.Now()

	e.UpdateBid(150.0, 100, now)
	e.UpdateBid(149.5, 200, now)
	e.UpdateAsk(150.5, 150, now)
	e.UpdateAsk(151.0, 100, now)

	bid, ok := e.BestBid()
	require.True(t, ok)
	assert.Equal(t, 150.0, bid.Price)

	ask, ok := e.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 150.5, ask.Price)

	mid, ok := e.Mid()
	require.True(t, ok)
	assert.InDelta(t, 150.25, mid, 1e-9)

	spread, ok := e.SpreadBps()
	require.True(t, ok)
	assert.InDelta(t, 33.28, spread, 0.01)
}

func TestWalkBookScenario(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	now := time.Now()

	e.UpdateBid(150.0, 100, now)
	e.UpdateBid(149.5, 200, now)
	e.UpdateAsk(150.5, 150, now)
	e.UpdateAsk(151.0, 100, now)

	vwap, filled, unfilled := e.WalkBook(domain.SideBuy, 120)
	assert.InDelta(t, 150.5, vwap, 1e-9)
	assert.InDelta(t, 120, filled, 1e-9)
	assert.InDelta(t, 0, unfilled, 1e-9)
}

func TestWalkBookExhaustsLadder(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	now := time.Now()
	e.UpdateAsk(100, 10, now)
	e.UpdateAsk(101, 10, now)

	vwap, filled, unfilled := e.WalkBook(domain.SideBuy, 25)
	assert.Equal(t, 20.0, filled)
	assert.Equal(t, 5.0, unfilled)
	assert.InDelta(t, (100*10+101*10)/20.0, vwap, 1e-9)
}

func TestWalkBookNoFillIsZeroVWAP(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	vwap, filled, unfilled := e.WalkBook(domain.SideBuy, 50)
	assert.Equal(t, 0.0, vwap)
	assert.Equal(t, 0.0, filled)
	assert.Equal(t, 50.0, unfilled)
}

func TestDeleteAbsentPriceIsNoop(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	now := time.Now()
	e.UpdateBid(100, 10, now)
	e.UpdateBid(99, 0, now) // delete a price never inserted

	bid, ok := e.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, bid.Price)
}

func TestZeroQuantityDeletesLevel(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	now := time.Now()
	e.UpdateBid(100, 10, now)
	e.UpdateBid(100, 0, now)

	_, ok := e.BestBid()
	assert.False(t, ok)
}

func TestNoDuplicatePriceKeys(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	now := time.Now()
	e.UpdateBid(100, 10, now)
	e.UpdateBid(100, 25, now)

	assert.Len(t, e.bids, 1)
	assert.Equal(t, 25.0, e.bids[0].quantity)
}

func TestDepthAndImbalance(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	now := time.Now()
	e.UpdateBid(100, 10, now)
	e.UpdateBid(99, 10, now)
	e.UpdateAsk(101, 5, now)
	e.UpdateAsk(102, 5, now)

	bidDepth, askDepth := e.Depth(2)
	assert.Equal(t, 20.0, bidDepth)
	assert.Equal(t, 10.0, askDepth)

	imb := e.Imbalance(2)
	assert.InDelta(t, (20.0-10.0)/30.0, imb, 1e-9)
}

func TestImbalanceZeroWhenEmpty(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	assert.Equal(t, 0.0, e.Imbalance(5))
}

func TestBestBidLessThanBestAskInvariant(t *testing.T) {
	e := NewEngine("BTC-USD", nil)
	now := time.Now()
	updates := []struct {
		bid  bool
		price, qty float64
	}{
		{true, 100, 5}, {true, 99, 3}, {false, 101, 4}, {false, 102, 6},
		{true, 100.5, 2}, {false, 100.8, 1},
	}
	for _, u := range updates {
		if u.bid {
			e.UpdateBid(u.price, u.qty, now)
		} else {
			e.UpdateAsk(u.price, u.qty, now)
		}
	}
	bid, okB := e.BestBid()
	ask, okA := e.BestAsk()
	require.True(t, okB)
	require.True(t, okA)
	assert.Less(t, bid.Price, ask.Price)
}

func TestManagerLazyCreatesEngine(t *testing.T) {
	m := NewManager(nil)
	assert.Empty(t, m.Symbols())

	m.UpdateBid("ETH-USD", 2000, 1, time.Now())
	assert.Len(t, m.Symbols(), 1)

	snap := m.Snapshot("ETH-USD", 10)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, 2000.0, snap.Bids[0].Price)
}

func TestManagerSnapshotOfUnknownSymbolIsEmpty(t *testing.T) {
	m := NewManager(nil)
	snap := m.Snapshot("UNKNOWN", 5)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}
