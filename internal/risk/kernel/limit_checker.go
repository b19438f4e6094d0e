package kernel

import (
	"math"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
)

// LimitChecker evaluates five fixed-order gates. The first failing
// gate short-circuits the rest and returns a structured error naming
// the gate; the ledger is never touched by a check.
type LimitChecker struct {
	cfg Config
}

// NewLimitChecker constructs a checker over an already-validated Config.
func NewLimitChecker(cfg Config) *LimitChecker {
	return &LimitChecker{cfg: cfg}
}

// Check evaluates order against ledger at the given execution price.
// Market orders defer gate 1 (order notional) until their fill price is
// known, per the Open Question decision recorded for the execution
// boundary.
func (c *LimitChecker) Check(order domain.Order, price float64, ledger *Ledger) error {
	if !validNumber(price) {
		return domainerrors.New(domainerrors.CodeRisk, "invalid execution price").WithDetail("price", price)
	}
	orderNotional := order.Quantity * price

	if order.Type != domain.OrderTypeMarket {
		if orderNotional > c.cfg.MaxPositionSize {
			return gateError("order_notional", orderNotional, c.cfg.MaxPositionSize)
		}
	}

	combined := ledger.PositionNotional(order.Symbol) + orderNotional
	if combined > c.cfg.MaxPositionSize {
		return gateError("combined_position_notional", combined, c.cfg.MaxPositionSize)
	}

	totalExposure := ledger.TotalNotionalExposure() + orderNotional
	if totalExposure > c.cfg.MaxNotionalExposure {
		return gateError("total_notional_exposure", totalExposure, c.cfg.MaxNotionalExposure)
	}

	if _, held := ledger.Position(order.Symbol); !held {
		if ledger.OpenPositionCount() >= c.cfg.MaxOpenPositions {
			return gateError("open_position_count", float64(ledger.OpenPositionCount()), float64(c.cfg.MaxOpenPositions))
		}
	}

	if ledger.DailyRealizedPnL() <= -c.cfg.MaxLossThreshold {
		return gateError("daily_realized_pnl", ledger.DailyRealizedPnL(), -c.cfg.MaxLossThreshold)
	}

	return nil
}

func gateError(gate string, value, limit float64) error {
	return domainerrors.New(domainerrors.CodeRisk, "risk gate rejected order").
		WithDetail("gate", gate).
		WithDetail("value", value).
		WithDetail("limit", limit)
}

// validNumber guards against NaN/Inf prices reaching a gate calculation.
func validNumber(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
