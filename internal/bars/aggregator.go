// Package bars implements the multi-window tick-to-bar aggregator:
// per (symbol, window) OHLCV accumulators folded trade-by-trade,
// with VWAP tracked alongside each window.
package bars

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
)

// Trade is the minimal trade shape the aggregator folds; callers adapt
// domain.Trade into this at the feed boundary.
type Trade struct {
	Symbol    domain.Symbol
	Price     float64
	Quantity  float64
	Timestamp time.Time
}

// DroppedTradeSink receives a notification every time a trade is
// dropped for arriving before the current accumulator's window. The
// ordering guarantee is that out-of-order trades merge if still within
// the current window, and are dropped — counted — otherwise.
type DroppedTradeSink interface {
	TradeDropped(symbol domain.Symbol, window time.Duration, trade Trade)
}

// NopSink discards drop notifications.
type NopSink struct{}

func (NopSink) TradeDropped(domain.Symbol, time.Duration, Trade) {}

type accumulator struct {
	windowStart time.Time
	open, high, low, close float64
	volume     float64
	tradeCount int64
	pvSum      float64 // Σ(p·v) for VWAP
	vSum       float64 // Σv for VWAP
	primed     bool
}

func (a *accumulator) fold(t Trade) {
	if !a.primed {
		a.open = t.Price
		a.high = t.Price
		a.low = t.Price
		a.primed = true
	} else {
		if t.Price > a.high {
			a.high = t.Price
		}
		if t.Price < a.low {
			a.low = t.Price
		}
	}
	a.close = t.Price
	a.volume += t.Quantity
	a.tradeCount++
	a.pvSum += t.Price * t.Quantity
	a.vSum += t.Quantity
}

func (a *accumulator) vwap() float64 {
	if a.vSum <= 0 {
		return 0
	}
	return a.pvSum / a.vSum
}

func (a *accumulator) bar(symbol domain.Symbol) domain.Bar {
	return domain.Bar{
		Symbol:      symbol,
		Open:        a.open,
		High:        a.high,
		Low:         a.low,
		Close:       a.close,
		Volume:      a.volume,
		WindowStart: a.windowStart,
		TradeCount:  a.tradeCount,
	}
}

// Aggregator maintains one accumulator per (symbol, window) pair across
// a fixed window set, emitting a completed Bar whenever a trade crosses
// a window boundary.
type Aggregator struct {
	windows []time.Duration

	mu    sync.Mutex
	state map[domain.Symbol]map[time.Duration]*accumulator

	sink    DroppedTradeSink
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// NewAggregator creates an aggregator over the given window durations.
// A nil sink discards drop notifications; a nil logger is a no-op logger;
// a nil collectors disables metrics feeding.
func NewAggregator(windows []time.Duration, sink DroppedTradeSink, logger *zap.Logger, collectors *metrics.Collectors) *Aggregator {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		windows: windows,
		state:   make(map[domain.Symbol]map[time.Duration]*accumulator),
		sink:    sink,
		logger:  logger.With(zap.String("component", "bars")),
		metrics: collectors,
	}
}

func windowStart(ts time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return ts
	}
	floored := ts.UnixNano() / int64(window) * int64(window)
	return time.Unix(0, floored).UTC()
}

// OnTrade folds a trade into every configured window's accumulator,
// emitting any bar whose window the trade closes out. Trades timestamped
// before the current accumulator's window-start are dropped (and
// reported to the sink) rather than silently reopening a stale bar.
func (a *Aggregator) OnTrade(t Trade) []domain.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	perWindow, ok := a.state[t.Symbol]
	if !ok {
		perWindow = make(map[time.Duration]*accumulator, len(a.windows))
		a.state[t.Symbol] = perWindow
	}

	var emitted []domain.Bar
	for _, w := range a.windows {
		start := windowStart(t.Timestamp, w)
		acc, ok := perWindow[w]
		switch {
		case !ok:
			perWindow[w] = &accumulator{windowStart: start}
			perWindow[w].fold(t)
		case start.Before(acc.windowStart):
			a.sink.TradeDropped(t.Symbol, w, t)
		case start.After(acc.windowStart):
			if acc.primed {
				emitted = append(emitted, acc.bar(t.Symbol))
				a.recordBarEmitted(t.Symbol, w)
			}
			fresh := &accumulator{windowStart: start}
			fresh.fold(t)
			perWindow[w] = fresh
		default:
			acc.fold(t)
		}
	}
	a.recordTradeIngested(t.Symbol)
	return emitted
}

func (a *Aggregator) recordTradeIngested(symbol domain.Symbol) {
	if a.metrics == nil {
		return
	}
	a.metrics.TradesIngested.WithLabelValues(string(symbol)).Inc()
}

func (a *Aggregator) recordBarEmitted(symbol domain.Symbol, window time.Duration) {
	if a.metrics == nil {
		return
	}
	a.metrics.BarsEmitted.WithLabelValues(string(symbol), fmt.Sprint(window)).Inc()
}

// VWAP returns the volume-weighted average price of the in-progress
// accumulator for (symbol, window), or (0, false) if none exists yet.
func (a *Aggregator) VWAP(symbol domain.Symbol, window time.Duration) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.state[symbol][window]
	if !ok || !acc.primed {
		return 0, false
	}
	return acc.vwap(), true
}

// Current returns the in-progress (possibly unprimed) bar for
// (symbol, window).
func (a *Aggregator) Current(symbol domain.Symbol, window time.Duration) (domain.Bar, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.state[symbol][window]
	if !ok {
		return domain.Bar{}, false
	}
	return acc.bar(symbol), true
}

// Flush forces emission of every in-progress, primed accumulator across
// all symbols and windows, for use on shutdown.
func (a *Aggregator) Flush() []domain.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []domain.Bar
	for symbol, perWindow := range a.state {
		for _, acc := range perWindow {
			if acc.primed {
				out = append(out, acc.bar(symbol))
			}
		}
	}
	return out
}
