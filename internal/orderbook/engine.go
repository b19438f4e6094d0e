// Package orderbook implements the per-symbol price-sorted depth
// ladder: two ordered slices keyed by an integer price tick, supporting
// best/spread/depth/imbalance lookups and book-walking to synthesize a
// marketable execution price. Order-matching is explicitly out of
// scope — this type is a pure depth ladder, not a matching engine.
package orderbook

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
)

// priceScale converts a float price into the monotone integer ladder
// key: ordering and equality on price keys must be exact near tick
// boundaries, which float64 comparison cannot guarantee.
const priceScale = 1e8

func toKey(price float64) int64 {
	return int64(price*priceScale + 0.5)
}

func fromKey(key int64) float64 {
	return float64(key) / priceScale
}

type priceLevel struct {
	key      int64
	quantity float64
	ts       time.Time
}

// Engine holds the bid/ask ladders for a single symbol.
type Engine struct {
	symbol Symbol

	mu   sync.RWMutex
	bids []priceLevel // descending by key (best bid first)
	asks []priceLevel // ascending by key (best ask first)

	sequence uint64

	logger *zap.Logger

	latMu      sync.Mutex
	latencies  []time.Duration
	latencyCap int
}

// Symbol is a local alias of domain.Symbol: the same type under a
// package-local name.
type Symbol = domain.Symbol

// NewEngine creates an empty ladder for symbol.
func NewEngine(symbol Symbol, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		symbol:     symbol,
		logger:     logger.With(zap.String("component", "orderbook"), zap.String("symbol", string(symbol))),
		latencyCap: 2048,
	}
}

// UpdateBid upserts a bid level; qty == 0 deletes the level. Never fails:
// bad prices are rejected by the feed adapter before reaching the engine.
func (e *Engine) UpdateBid(price, qty float64, ts time.Time) {
	e.update(&e.bids, price, qty, ts, true)
}

// UpdateAsk upserts an ask level; qty == 0 deletes the level.
func (e *Engine) UpdateAsk(price, qty float64, ts time.Time) {
	e.update(&e.asks, price, qty, ts, false)
}

func (e *Engine) update(side *[]priceLevel, price, qty float64, ts time.Time, descending bool) {
	start := time.Now()
	key := toKey(price)

	e.mu.Lock()
	levels := *side
	idx := sort.Search(len(levels), func(i int) bool {
		if descending {
			return levels[i].key <= key
		}
		return levels[i].key >= key
	})

	switch {
	case idx < len(levels) && levels[idx].key == key:
		if qty <= 0 {
			levels = append(levels[:idx], levels[idx+1:]...)
		} else {
			levels[idx].quantity = qty
			levels[idx].ts = ts
		}
	case qty > 0:
		levels = append(levels, priceLevel{})
		copy(levels[idx+1:], levels[idx:])
		levels[idx] = priceLevel{key: key, quantity: qty, ts: ts}
	}
	*side = levels
	atomic.AddUint64(&e.sequence, 1)
	e.mu.Unlock()

	e.recordLatency(time.Since(start))
}

func (e *Engine) recordLatency(d time.Duration) {
	e.latMu.Lock()
	defer e.latMu.Unlock()
	if len(e.latencies) >= e.latencyCap {
		e.latencies = e.latencies[1:]
	}
	e.latencies = append(e.latencies, d)
}

// LastUpdateLatencyP99 returns the p99 of the most recent (up to
// latencyCap) single-level update latencies. No other component calls it.
func (e *Engine) LastUpdateLatencyP99() time.Duration {
	e.latMu.Lock()
	defer e.latMu.Unlock()
	n := len(e.latencies)
	if n == 0 {
		return 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, e.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(n) * 0.99)
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// BestBid returns the highest resting bid, or false if the side is empty.
func (e *Engine) BestBid() (domain.Level, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.bids) == 0 {
		return domain.Level{}, false
	}
	return levelOf(e.bids[0]), true
}

// BestAsk returns the lowest resting ask, or false if the side is empty.
func (e *Engine) BestAsk() (domain.Level, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.asks) == 0 {
		return domain.Level{}, false
	}
	return levelOf(e.asks[0]), true
}

func levelOf(l priceLevel) domain.Level {
	return domain.Level{Price: fromKey(l.key), Quantity: l.quantity, Timestamp: l.ts}
}

// Mid returns the mid price; undefined (false) when either side is empty.
func (e *Engine) Mid() (float64, bool) {
	bid, ok := e.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := e.BestAsk()
	if !ok {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// SpreadBps returns (ask-bid)/mid * 10_000; undefined when either side
// is empty.
func (e *Engine) SpreadBps() (float64, bool) {
	bid, ok := e.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := e.BestAsk()
	if !ok {
		return 0, false
	}
	mid := (bid.Price + ask.Price) / 2
	if mid == 0 {
		return 0, false
	}
	return (ask.Price - bid.Price) / mid * 10000, true
}

// Depth sums quantities at the top k levels on each side.
func (e *Engine) Depth(k int) (bidDepth, askDepth float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bidDepth = sumTop(e.bids, k)
	askDepth = sumTop(e.asks, k)
	return
}

func sumTop(levels []priceLevel, k int) float64 {
	if k > len(levels) {
		k = len(levels)
	}
	var sum float64
	for i := 0; i < k; i++ {
		sum += levels[i].quantity
	}
	return sum
}

// Imbalance returns (bidDepth-askDepth)/(bidDepth+askDepth) over the top
// k levels, or zero when total depth is zero.
func (e *Engine) Imbalance(k int) float64 {
	bidDepth, askDepth := e.Depth(k)
	total := bidDepth + askDepth
	if total == 0 {
		return 0
	}
	return (bidDepth - askDepth) / total
}

// WalkBook simulates a marketable order of the given side (the side of
// the incoming aggressor) by consuming the opposite ladder in price
// order until targetQty is filled or the ladder is exhausted. It returns
// the size-weighted average price actually walked, the quantity filled,
// and the quantity left unfilled. VWAP is zero if nothing was filled.
func (e *Engine) WalkBook(side domain.Side, targetQty float64) (vwap, filled, unfilled float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var levels []priceLevel
	if side == domain.SideBuy {
		levels = e.asks
	} else {
		levels = e.bids
	}

	remaining := targetQty
	var notional float64
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := lvl.quantity
		if take > remaining {
			take = remaining
		}
		notional += take * fromKey(lvl.key)
		filled += take
		remaining -= take
	}
	unfilled = remaining
	if filled > 0 {
		vwap = notional / filled
	}
	return
}

// Snapshot returns an immutable top-of-book copy for broadcast.
func (e *Engine) Snapshot(maxLevels int) domain.OrderBook {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := maxLevels
	bids := make([]domain.Level, 0, min(n, len(e.bids)))
	for i := 0; i < len(e.bids) && i < n; i++ {
		bids = append(bids, levelOf(e.bids[i]))
	}
	asks := make([]domain.Level, 0, min(n, len(e.asks)))
	for i := 0; i < len(e.asks) && i < n; i++ {
		asks = append(asks, levelOf(e.asks[i]))
	}

	return domain.OrderBook{
		Symbol:    e.symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now(),
		Sequence:  atomic.LoadUint64(&e.sequence),
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
