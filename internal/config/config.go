// Package config loads the platform's JSON configuration file: a
// `market_data` / `risk` / `execution` / `signal` / `metadata` root,
// each validated against its own subtree by the component that owns
// it. Broker credentials may be overridden by the ALPACA_API_KEY /
// ALPACA_SECRET_KEY environment variables so they need not be
// committed to the config file.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	domainerrors "github.com/abdoElHodaky/tradSys/internal/domain/errors"
)

// MarketDataConfig configures the inbound feed connection (C3/C4
// ingestion) and the symbol subscription set.
type MarketDataConfig struct {
	URL                   string          `mapstructure:"url"`
	Trades                []string        `mapstructure:"trades"`
	Quotes                []string        `mapstructure:"quotes"`
	Bars                  []string        `mapstructure:"bars"`
	ReadHeartbeat         time.Duration   `mapstructure:"read_heartbeat"`
	ReconnectInitialDelay time.Duration   `mapstructure:"reconnect_initial_delay"`
	ReconnectMaxDelay     time.Duration   `mapstructure:"reconnect_max_delay"`
	BarWindows            []time.Duration `mapstructure:"bar_windows"`
}

// RiskConfig configures the risk kernel's limit checker, validated by
// kernel.Config.Validate.
type RiskConfig struct {
	MaxPositionSize      float64 `mapstructure:"max_position_size"`
	MaxNotionalExposure  float64 `mapstructure:"max_notional_exposure"`
	MaxOpenPositions     int     `mapstructure:"max_open_positions"`
	StopLossPercent      float64 `mapstructure:"stop_loss_percent"`
	TrailingStopPercent  float64 `mapstructure:"trailing_stop_percent"`
	EnableCircuitBreaker bool    `mapstructure:"enable_circuit_breaker"`
	MaxLossThreshold     float64 `mapstructure:"max_loss_threshold"`
}

// ExecutionConfig configures the broker surface guarded by
// router.Guards. APIKeyID and APISecretKey fall back to the
// ALPACA_API_KEY / ALPACA_SECRET_KEY environment variables when unset.
type ExecutionConfig struct {
	PaperTrading        bool    `mapstructure:"paper_trading"`
	BaseURL             string  `mapstructure:"base_url"`
	APIKeyID            string  `mapstructure:"api_key_id"`
	APISecretKey        string  `mapstructure:"api_secret_key"`
	RateLimitPerSecond  float64 `mapstructure:"rate_limit_per_second"`
	MaxSlippageBps      float64 `mapstructure:"max_slippage_bps"`
	RetryMaxAttempts    int     `mapstructure:"retry_max_attempts"`
	RetryInitialDelayMs int64   `mapstructure:"retry_initial_delay_ms"`
	RetryMaxDelayMs     int64   `mapstructure:"retry_max_delay_ms"`
	RetryMultiplier     float64 `mapstructure:"retry_multiplier"`
}

// SignalConfig carries the feature-vector schema version setting
// (default 1). Load fills it, but the signal engine does not read it:
// every Signal is stamped with features.CurrentSchemaVersion.
type SignalConfig struct {
	FeatureSchemaVersion int `mapstructure:"feature_schema_version"`
}

// MetadataConfig carries deployment-identifying fields that don't gate
// any component's behavior.
type MetadataConfig struct {
	DeploymentName      string `mapstructure:"deployment_name"`
	ObservabilityDBPath string `mapstructure:"observability_db_path"`
}

// Config is the root of the JSON configuration file.
type Config struct {
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
}

// Load reads and parses the JSON config file at path. It does not
// validate subtrees itself — each component validates its own subtree
// on load (kernel.Config.Validate, router.Guards) — but it does apply
// the environment-variable credential overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("market_data.read_heartbeat", 30*time.Second)
	v.SetDefault("market_data.reconnect_initial_delay", 5*time.Second)
	v.SetDefault("market_data.reconnect_max_delay", 60*time.Second)
	v.SetDefault("execution.rate_limit_per_second", 10.0)
	v.SetDefault("execution.max_slippage_bps", 50.0)
	v.SetDefault("execution.retry_max_attempts", 3)
	v.SetDefault("execution.retry_initial_delay_ms", 100)
	v.SetDefault("execution.retry_max_delay_ms", 5000)
	v.SetDefault("execution.retry_multiplier", 2.0)
	v.SetDefault("signal.feature_schema_version", 1)

	if err := v.ReadInConfig(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfiguration, "reading config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfiguration, "decoding config file")
	}

	if key := os.Getenv("ALPACA_API_KEY"); key != "" {
		cfg.Execution.APIKeyID = key
	}
	if secret := os.Getenv("ALPACA_SECRET_KEY"); secret != "" {
		cfg.Execution.APISecretKey = secret
	}

	return &cfg, nil
}
