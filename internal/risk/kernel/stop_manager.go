package kernel

import (
	"sync"

	"github.com/abdoElHodaky/tradSys/internal/domain"
)

// StopKind distinguishes a static stop from a trailing stop.
type StopKind string

const (
	StopKindStatic   StopKind = "static"
	StopKindTrailing StopKind = "trailing"
)

type stop struct {
	kind       StopKind
	side       domain.Side
	pct        float64
	entryPrice float64 // static: the fixed reference price
	bestPrice  float64 // trailing: the best-seen favorable price
}

// ClosingOrderRecipe describes the order a triggered stop produces: the
// opposite side at the position's quantity, either Market or a
// protective Limit with the trigger price attached.
type ClosingOrderRecipe struct {
	Symbol      domain.Symbol
	Side        domain.Side
	Quantity    float64
	Type        domain.OrderType
	LimitPrice  float64
	TriggerPrice float64
}

// StopManager holds zero or one active stop per symbol. A new stop
// replaces any existing one.
type StopManager struct {
	mu    sync.Mutex
	stops map[domain.Symbol]*stop

	useMarketOrders bool
	slippageTol     float64
}

// NewStopManager creates a manager; useMarketOrders selects the
// closing-order type a trigger produces, slippageTol bounds the
// protective limit price when it does not.
func NewStopManager(useMarketOrders bool, slippageTol float64) *StopManager {
	return &StopManager{
		stops:           make(map[domain.Symbol]*stop),
		useMarketOrders: useMarketOrders,
		slippageTol:     slippageTol,
	}
}

// SetStatic arms a static stop at entryPrice*(1∓pct) for a position of
// the given side.
func (m *StopManager) SetStatic(symbol domain.Symbol, side domain.Side, entryPrice, pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops[symbol] = &stop{kind: StopKindStatic, side: side, pct: pct, entryPrice: entryPrice}
}

// SetTrailing arms a trailing stop seeded at initialPrice for a position
// of the given side.
func (m *StopManager) SetTrailing(symbol domain.Symbol, side domain.Side, initialPrice, pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops[symbol] = &stop{kind: StopKindTrailing, side: side, pct: pct, bestPrice: initialPrice}
}

// Clear removes any active stop for symbol (e.g. on position close).
func (m *StopManager) Clear(symbol domain.Symbol) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stops, symbol)
}

// OnPrice advances a trailing stop's best-seen price and checks for an
// adverse cross, returning a closing-order recipe and true if the stop
// triggers. Trailing stops never move adversely: the best price only
// ratchets in the favorable direction.
func (m *StopManager) OnPrice(symbol domain.Symbol, currentPrice float64) (ClosingOrderRecipe, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stops[symbol]
	if !ok {
		return ClosingOrderRecipe{}, false
	}

	var triggerLevel float64
	switch s.kind {
	case StopKindStatic:
		triggerLevel = s.entryPrice * adverseFactor(s.side, s.pct)
	case StopKindTrailing:
		if favorableMove(s.side, currentPrice, s.bestPrice) {
			s.bestPrice = currentPrice
		}
		triggerLevel = s.bestPrice * adverseFactor(s.side, s.pct)
	}

	if !adverseCross(s.side, currentPrice, triggerLevel) {
		return ClosingOrderRecipe{}, false
	}

	delete(m.stops, symbol)

	recipe := ClosingOrderRecipe{
		Symbol:       symbol,
		Side:         s.side.Opposite(),
		TriggerPrice: triggerLevel,
	}
	if m.useMarketOrders {
		recipe.Type = domain.OrderTypeMarket
	} else {
		recipe.Type = domain.OrderTypeLimit
		recipe.LimitPrice = currentPrice * slippageFactor(s.side, m.slippageTol)
	}
	return recipe, true
}

// adverseFactor returns (1-pct) for a long position (adverse = downward)
// and (1+pct) for a short position (adverse = upward).
func adverseFactor(side domain.Side, pct float64) float64 {
	if side == domain.SideBuy {
		return 1 - pct
	}
	return 1 + pct
}

// favorableMove reports whether price has moved in the favorable
// direction relative to best for a position of the given side.
func favorableMove(side domain.Side, price, best float64) bool {
	if side == domain.SideBuy {
		return price > best
	}
	return price < best
}

// adverseCross reports whether price has crossed level in the adverse
// direction for a position of the given side.
func adverseCross(side domain.Side, price, level float64) bool {
	if side == domain.SideBuy {
		return price <= level
	}
	return price >= level
}

// slippageFactor widens the protective limit price beyond the current
// price by the slippage tolerance, in the direction that still lets the
// closing order fill against an adverse market.
func slippageFactor(side domain.Side, tol float64) float64 {
	if side == domain.SideBuy {
		return 1 - tol
	}
	return 1 + tol
}
