package kernel

import (
	"sync"
	"time"

	"github.com/abdoElHodaky/tradSys/internal/domain"
)

type symbolState struct {
	quantity    float64
	avgEntry    float64
	side        domain.Side
	realizedPnL float64
	costBasis   float64
	openedAt    time.Time
}

// PnLTracker maintains per-symbol (quantity, avg_entry, side,
// realized_pnl, cost_basis) and applies the buy/sell/short-reversal
// rules on every fill.
type PnLTracker struct {
	mu    sync.Mutex
	state map[domain.Symbol]symbolState
}

// NewPnLTracker creates an empty tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{state: make(map[domain.Symbol]symbolState)}
}

// OnFill applies a single fill (side, quantity, price) to the tracked
// state for symbol and returns the resulting domain.Position view. A
// position reduced to zero quantity is returned with Quantity == 0; the
// caller (Kernel) is responsible for removing it from the ledger.
func (t *PnLTracker) OnFill(symbol domain.Symbol, side domain.Side, qty, price float64) domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, existed := t.state[symbol]
	if !existed {
		s = symbolState{side: side, openedAt: time.Now()}
	}

	switch {
	case !existed || s.quantity == 0:
		s.side = side
		s.quantity = qty
		s.avgEntry = price
		s.costBasis = qty * price
		s.openedAt = time.Now()

	case side == s.side:
		// Adding to the existing position: grow quantity and cost basis,
		// recompute the average entry.
		s.costBasis += qty * price
		s.quantity += qty
		s.avgEntry = s.costBasis / s.quantity

	case qty <= s.quantity:
		// Reducing (or exactly closing) the existing position: realize
		// P&L on the closed portion.
		direction := sideSign(s.side)
		realized := (price - s.avgEntry) * qty * direction
		s.realizedPnL += realized
		s.quantity -= qty
		s.costBasis = s.quantity * s.avgEntry
		if s.quantity == 0 {
			s.costBasis = 0
		}

	default:
		// Reversal through zero: close the existing quantity, realize
		// its P&L, then open the remainder on the opposite side at the
		// fill price.
		direction := sideSign(s.side)
		realized := (price - s.avgEntry) * s.quantity * direction
		remainder := qty - s.quantity
		s.realizedPnL += realized
		s.side = side
		s.quantity = remainder
		s.avgEntry = price
		s.costBasis = remainder * price
		s.openedAt = time.Now()
	}

	t.state[symbol] = s

	var unrealized float64
	if s.quantity != 0 {
		unrealized = (price - s.avgEntry) * s.quantity * sideSign(s.side)
	}

	return domain.Position{
		Symbol:        symbol,
		Side:          s.side,
		Quantity:      s.quantity,
		EntryPrice:    s.avgEntry,
		CurrentPrice:  price,
		UnrealizedPnL: unrealized,
		RealizedPnL:   s.realizedPnL,
		OpenedAt:      s.openedAt,
		UpdatedAt:     time.Now(),
	}
}

// UnrealizedPnL computes (current-entry)*qty*(+1 long|-1 short) for
// symbol's tracked state at currentPrice.
func (t *PnLTracker) UnrealizedPnL(symbol domain.Symbol, currentPrice float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.state[symbol]
	if !ok || s.quantity == 0 {
		return 0
	}
	return (currentPrice - s.avgEntry) * s.quantity * sideSign(s.side)
}

func sideSign(side domain.Side) float64 {
	if side == domain.SideBuy {
		return 1
	}
	return -1
}
