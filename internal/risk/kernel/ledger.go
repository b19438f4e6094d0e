package kernel

import (
	"sync"
	"time"

	"github.com/abdoElHodaky/tradSys/internal/domain"
)

// Ledger is the live position book the risk kernel owns exclusively:
// no other component mutates positions directly.
type Ledger struct {
	mu               sync.RWMutex
	positions        map[domain.Symbol]domain.Position
	dailyRealizedPnL float64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[domain.Symbol]domain.Position)}
}

// Position returns a symbol's current position, or the zero value.
func (l *Ledger) Position(symbol domain.Symbol) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	return p, ok
}

// PositionNotional is the current value of symbol's position, zero if
// none is held.
func (l *Ledger) PositionNotional(symbol domain.Symbol) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.positions[symbol].Notional()
}

// TotalNotionalExposure sums Notional() across every open position.
func (l *Ledger) TotalNotionalExposure() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total float64
	for _, p := range l.positions {
		total += p.Notional()
	}
	return total
}

// OpenPositionCount is the number of symbols currently held.
func (l *Ledger) OpenPositionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// DailyRealizedPnL returns the running total of realized P&L accumulated
// since the last DayReset.
func (l *Ledger) DailyRealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dailyRealizedPnL
}

// Upsert applies a position update: a position with zero quantity is
// removed (decrementing the open count); otherwise it is inserted or
// replaced. The position's RealizedPnL delta relative to the prior
// stored value for the same symbol is folded into the daily total —
// callers pass the position's cumulative RealizedPnL, not a delta.
func (l *Ledger) Upsert(p domain.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prior, existed := l.positions[p.Symbol]
	var priorRealized float64
	if existed {
		priorRealized = prior.RealizedPnL
	}
	l.dailyRealizedPnL += p.RealizedPnL - priorRealized

	if p.Quantity == 0 {
		delete(l.positions, p.Symbol)
		return
	}
	p.UpdatedAt = time.Now()
	l.positions[p.Symbol] = p
}

// DayReset zeroes the accumulated daily realized P&L; open positions
// are left untouched.
func (l *Ledger) DayReset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyRealizedPnL = 0
}

// Snapshot returns a copy of every open position, for reporting.
func (l *Ledger) Snapshot() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	return out
}
