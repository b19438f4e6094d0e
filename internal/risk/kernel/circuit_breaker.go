package kernel

import (
	"sync/atomic"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
)

// CircuitBreaker is the global explicit trip/reset latch. It is
// backed by a gobreaker.TwoStepCircuitBreaker purely for the
// state-machine and OnStateChange logging hook; its ReadyToTrip is
// permanently disabled so gobreaker never auto-trips on a failure
// ratio — only Trip/Reset and the automatic daily-loss path change
// state, keeping the latch semantics explicit.
type CircuitBreaker struct {
	open   int32 // atomic bool: 1 = tripped
	inner  *gobreaker.TwoStepCircuitBreaker
	logger *zap.Logger
}

// NewCircuitBreaker constructs a closed breaker.
func NewCircuitBreaker(logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "risk.circuit_breaker"))

	cb := &CircuitBreaker{logger: logger}
	cb.inner = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        "risk-kernel",
		ReadyToTrip: func(gobreaker.Counts) bool { return false },
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return cb
}

// Check fails with a structured CodeRisk error while the breaker is
// open.
func (c *CircuitBreaker) Check() error {
	if atomic.LoadInt32(&c.open) == 1 {
		return domainerrors.New(domainerrors.CodeRisk, "circuit breaker is open")
	}
	done, err := c.inner.Allow()
	if err == nil {
		done(true)
	}
	return nil
}

// Trip explicitly opens the breaker.
func (c *CircuitBreaker) Trip() {
	atomic.StoreInt32(&c.open, 1)
	c.logger.Warn("circuit breaker tripped")
}

// Reset explicitly closes the breaker.
func (c *CircuitBreaker) Reset() {
	atomic.StoreInt32(&c.open, 0)
	c.logger.Info("circuit breaker reset")
}

// IsOpen reports the current latch state.
func (c *CircuitBreaker) IsOpen() bool {
	return atomic.LoadInt32(&c.open) == 1
}
