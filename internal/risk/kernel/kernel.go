package kernel

import (
	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
)

// Kernel composes the limit checker, P&L tracker, stop manager and
// circuit breaker, and owns the live position ledger exclusively —
// no other component may mutate positions directly.
type Kernel struct {
	cfg     Config
	ledger  *Ledger
	limits  *LimitChecker
	pnl     *PnLTracker
	stops   *StopManager
	breaker *CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// NewKernel constructs a kernel from an already-validated Config. A nil
// collectors disables metrics feeding.
func NewKernel(cfg Config, logger *zap.Logger, collectors *metrics.Collectors) *Kernel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Kernel{
		cfg:     cfg,
		ledger:  NewLedger(),
		limits:  NewLimitChecker(cfg),
		pnl:     NewPnLTracker(),
		stops:   NewStopManager(false, 0.001),
		breaker: NewCircuitBreaker(logger),
		logger:  logger.With(zap.String("component", "risk.kernel")),
		metrics: collectors,
	}
}

// CheckOrder runs the circuit breaker and the five limit-checker gates,
// in that order, against order at the given execution price.
func (k *Kernel) CheckOrder(order domain.Order, price float64) error {
	if err := k.breaker.Check(); err != nil {
		k.recordGateRejection("circuit_breaker")
		return err
	}
	if err := k.limits.Check(order, price, k.ledger); err != nil {
		k.recordGateRejection(gateName(err))
		return err
	}
	return nil
}

func gateName(err error) string {
	if e, ok := domainerrors.As(err); ok {
		if gate, ok := e.Details["gate"].(string); ok {
			return gate
		}
	}
	return "unknown"
}

func (k *Kernel) recordGateRejection(gate string) {
	if k.metrics == nil {
		return
	}
	k.metrics.RiskGateRejections.WithLabelValues(gate).Inc()
}

// RecordFill applies a fill to the P&L tracker, upserts the resulting
// position into the ledger, arms a static stop at the position's average
// entry price after every fill that leaves a position open (clearing it
// when the position closes), and trips the breaker automatically when the
// daily loss threshold is breached with EnableCircuitBreaker set. After
// every fill it re-checks total notional exposure against
// MaxNotionalExposure — which covers market orders, whose notional was
// not gated pre-submission — and logs, but does not attempt to un-submit,
// a breach.
func (k *Kernel) RecordFill(symbol domain.Symbol, side domain.Side, qty, price float64) domain.Position {
	pos := k.pnl.OnFill(symbol, side, qty, price)
	k.ledger.Upsert(pos)

	if pos.Quantity == 0 {
		k.stops.Clear(symbol)
	} else {
		k.stops.SetStatic(symbol, pos.Side, pos.EntryPrice, k.cfg.StopLossPercent)
	}

	if k.cfg.EnableCircuitBreaker && k.ledger.DailyRealizedPnL() <= -k.cfg.MaxLossThreshold {
		k.breaker.Trip()
		if k.metrics != nil {
			k.metrics.CircuitBreakerOpen.WithLabelValues("risk.kernel").Set(1)
		}
		k.logger.Warn("daily loss threshold breached, circuit breaker tripped",
			zap.Float64("daily_realized_pnl", k.ledger.DailyRealizedPnL()),
			zap.Float64("max_loss_threshold", k.cfg.MaxLossThreshold))
	}

	if total := k.ledger.TotalNotionalExposure(); total > k.cfg.MaxNotionalExposure {
		k.logger.Warn("post-fill exposure exceeds configured maximum",
			zap.String("symbol", string(symbol)),
			zap.Float64("total_notional_exposure", total),
			zap.Float64("max_notional_exposure", k.cfg.MaxNotionalExposure))
	}

	return pos
}

// CheckStop advances and evaluates symbol's stop at currentPrice. A
// triggered recipe's Quantity is filled in from the ledger's current
// position size, so the closing order always covers the full position.
func (k *Kernel) CheckStop(symbol domain.Symbol, currentPrice float64) (ClosingOrderRecipe, bool) {
	recipe, triggered := k.stops.OnPrice(symbol, currentPrice)
	if !triggered {
		return recipe, false
	}
	if pos, ok := k.ledger.Position(symbol); ok {
		recipe.Quantity = pos.Quantity
	}
	return recipe, true
}

// DayReset zeroes the daily realized P&L; open positions are untouched.
func (k *Kernel) DayReset() {
	k.ledger.DayReset()
}

// Ledger exposes the read-only ledger view for reporting callers.
func (k *Kernel) Ledger() *Ledger {
	return k.ledger
}

// Breaker exposes the circuit breaker for explicit operator Trip/Reset.
func (k *Kernel) Breaker() *CircuitBreaker {
	return k.breaker
}
