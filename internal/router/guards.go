// Package router implements the execution router: construction
// guards, a token-bucket rate limiter, a jittered retry policy, the
// Alpaca-style broker HTTP contract (live and paper), the slippage gate,
// and TWAP slicing.
package router

import (
	"crypto/tls"

	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
)

// BrokerConfig configures the HTTP broker surface and construction-time
// guards.
type BrokerConfig struct {
	PaperTrading       bool
	BaseURL            string
	APIKeyID           string
	APISecretKey       string
	RateLimitPerSecond float64
	MaxSlippageBps     float64 // 0 => default 50
}

const (
	defaultMaxSlippageBps = 50
	hardCapMaxSlippageBps = 500
	minTLSVersion         = tls.VersionTLS12
)

// Guards validates a BrokerConfig at construction time: HTTPS
// and non-empty credentials are required unless paper-trading; the rate
// limit must be positive; the slippage cap is clamped to the hard cap.
func Guards(cfg BrokerConfig) (BrokerConfig, error) {
	if !cfg.PaperTrading {
		if len(cfg.BaseURL) < 8 || cfg.BaseURL[:8] != "https://" {
			return cfg, domainerrors.New(domainerrors.CodeConfiguration, "broker base URL must use HTTPS outside paper trading")
		}
		if cfg.APIKeyID == "" || cfg.APISecretKey == "" {
			return cfg, domainerrors.New(domainerrors.CodeConfiguration, "broker API credentials are required outside paper trading")
		}
	}
	if cfg.RateLimitPerSecond <= 0 {
		return cfg, domainerrors.New(domainerrors.CodeConfiguration, "rate_limit_per_second must be positive")
	}
	if cfg.MaxSlippageBps <= 0 {
		cfg.MaxSlippageBps = defaultMaxSlippageBps
	}
	if cfg.MaxSlippageBps > hardCapMaxSlippageBps {
		cfg.MaxSlippageBps = hardCapMaxSlippageBps
	}
	return cfg, nil
}
