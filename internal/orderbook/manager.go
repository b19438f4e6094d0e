package orderbook

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
)

// Manager maps symbol to its Engine and proxies every operation,
// creating engines lazily on first write.
type Manager struct {
	mu      sync.RWMutex
	engines map[Symbol]*Engine
	logger  *zap.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{engines: make(map[Symbol]*Engine), logger: logger}
}

// Engine returns (creating if necessary) the engine for symbol.
func (m *Manager) Engine(symbol Symbol) *Engine {
	m.mu.RLock()
	e, ok := m.engines[symbol]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.engines[symbol]; ok {
		return e
	}
	e = NewEngine(symbol, m.logger)
	m.engines[symbol] = e
	return e
}

// UpdateBid proxies Engine.UpdateBid, creating the engine lazily.
func (m *Manager) UpdateBid(symbol Symbol, price, qty float64, ts time.Time) {
	m.Engine(symbol).UpdateBid(price, qty, ts)
}

// UpdateAsk proxies Engine.UpdateAsk, creating the engine lazily.
func (m *Manager) UpdateAsk(symbol Symbol, price, qty float64, ts time.Time) {
	m.Engine(symbol).UpdateAsk(price, qty, ts)
}

// Snapshot proxies Engine.Snapshot for an existing symbol; returns a
// zero-value snapshot if the symbol has never been written to.
func (m *Manager) Snapshot(symbol Symbol, maxLevels int) domain.OrderBook {
	m.mu.RLock()
	e, ok := m.engines[symbol]
	m.mu.RUnlock()
	if !ok {
		return domain.OrderBook{Symbol: symbol, Timestamp: time.Now()}
	}
	return e.Snapshot(maxLevels)
}

// Symbols returns every symbol currently tracked.
func (m *Manager) Symbols() []Symbol {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Symbol, 0, len(m.engines))
	for s := range m.engines {
		out = append(out, s)
	}
	return out
}
