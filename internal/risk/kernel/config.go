package kernel

import (
	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
)

// Config holds the risk kernel's limits. internal/config.Load does not
// check them; cmd/tradsys calls Validate once after loading.
// Every field must be strictly positive.
type Config struct {
	MaxPositionSize      float64
	MaxNotionalExposure  float64
	MaxOpenPositions     int
	StopLossPercent      float64
	TrailingStopPercent  float64
	EnableCircuitBreaker bool
	MaxLossThreshold     float64
}

// Validate checks every field is strictly positive.
func (c Config) Validate() error {
	if c.MaxPositionSize <= 0 {
		return domainerrors.New(domainerrors.CodeConfiguration, "max_position_size must be positive")
	}
	if c.MaxNotionalExposure <= 0 {
		return domainerrors.New(domainerrors.CodeConfiguration, "max_notional_exposure must be positive")
	}
	if c.MaxOpenPositions <= 0 {
		return domainerrors.New(domainerrors.CodeConfiguration, "max_open_positions must be positive")
	}
	if c.StopLossPercent <= 0 {
		return domainerrors.New(domainerrors.CodeConfiguration, "stop_loss_percent must be positive")
	}
	if c.TrailingStopPercent <= 0 {
		return domainerrors.New(domainerrors.CodeConfiguration, "trailing_stop_percent must be positive")
	}
	if c.MaxLossThreshold <= 0 {
		return domainerrors.New(domainerrors.CodeConfiguration, "max_loss_threshold must be positive")
	}
	return nil
}
