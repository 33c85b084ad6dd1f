// Package config defines the top-level configuration for hedgebot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by HEDGEBOT_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	SpotFeed   SpotFeedConfig   `toml:"spot_feed"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Detector   DetectorConfig   `toml:"detector"`
	Hedge      HedgeConfig      `toml:"hedge"`
	Ensemble   EnsembleConfig   `toml:"ensemble"`
	Risk       RiskConfig       `toml:"risk"`
	Execution  ExecutionConfig  `toml:"execution"`
	Scan       ScanConfig       `toml:"scan"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	ClobHost   string `toml:"clob_host"`
	GammaHost  string `toml:"gamma_host"`
	ApiKey     string `toml:"api_key"`
	Passphrase string `toml:"passphrase"`
}

// SpotFeedConfig holds the underlying spot price websocket parameters.
type SpotFeedConfig struct {
	Enabled bool     `toml:"enabled"`
	WsURL   string   `toml:"ws_url"`
	Assets  []string `toml:"assets"`
}

// PostgresConfig holds database connection parameters.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// DetectorConfig holds flash-crash detection parameters.
type DetectorConfig struct {
	WindowSeconds   float64 `toml:"window_seconds"`
	DropThreshold   float64 `toml:"drop_threshold"`
	HistoryCapacity int     `toml:"history_capacity"`
	CooldownSeconds float64 `toml:"cooldown_seconds"`
}

// HedgeConfig holds the two-leg hedge parameters.
type HedgeConfig struct {
	SumThreshold float64 `toml:"sum_threshold"`
}

// EnsembleConfig holds the vote aggregation parameters. Weights maps source
// name to weight; sources present in Enabled but absent from Weights get an
// equal share of the remaining mass.
type EnsembleConfig struct {
	Enabled           []string           `toml:"enabled"`
	Weights           map[string]float64 `toml:"weights"`
	MinConsensus      float64            `toml:"min_consensus"`  // 0-100
	MinConfidence     float64            `toml:"min_confidence"` // 0-100
	ReasonerEndpoint  string             `toml:"reasoner_endpoint"`
	MomentumWindowSec float64            `toml:"momentum_window_sec"`
	MomentumThreshold float64            `toml:"momentum_threshold"` // percent spot move treated as noise
}

// RiskConfig holds the portfolio risk-guard parameters.
type RiskConfig struct {
	InitialBalance      float64 `toml:"initial_balance"`
	CircuitBreakerRuns  int     `toml:"circuit_breaker_runs"`
	MaxDailyLoss        float64 `toml:"max_daily_loss"`
	MaxDailyTrades      int     `toml:"max_daily_trades"`
	MaxAssetExposurePct float64 `toml:"max_asset_exposure_pct"`
	MaxSlippagePct      float64 `toml:"max_slippage_pct"`
}

// ExecutionConfig holds order sizing and submission parameters.
type ExecutionConfig struct {
	TradeSizeUSD   float64 `toml:"trade_size_usd"`
	MinNotional    float64 `toml:"min_notional"`
	RetryAttempts  int     `toml:"retry_attempts"`
	RetryBackoffMs int     `toml:"retry_backoff_ms"`
	RetryMaxMs     int     `toml:"retry_max_ms"`
	TimeoutSec     int     `toml:"timeout_sec"`
}

// ScanConfig holds the evaluation loop parameters.
type ScanConfig struct {
	IntervalMs int `toml:"interval_ms"`
	Workers    int `toml:"workers"`
}

// Defaults returns the built-in configuration. Values mirror the production
// tuning for 15-minute crypto markets.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
		},
		SpotFeed: SpotFeedConfig{
			Enabled: true,
			WsURL:   "wss://stream.binance.com:9443/stream",
			Assets:  []string{"BTC", "ETH", "SOL", "XRP"},
		},
		Postgres: PostgresConfig{
			PoolMaxConns: 8,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Detector: DetectorConfig{
			WindowSeconds:   3,
			DropThreshold:   0.15,
			HistoryCapacity: 100,
			CooldownSeconds: 60,
		},
		Hedge: HedgeConfig{
			SumThreshold: 0.95,
		},
		Ensemble: EnsembleConfig{
			Enabled:           []string{"momentum", "historical"},
			MinConsensus:      60,
			MinConfidence:     60,
			MomentumWindowSec: 60,
			MomentumThreshold: 0.05,
		},
		Risk: RiskConfig{
			InitialBalance:      100,
			CircuitBreakerRuns:  5,
			MaxDailyLoss:        10,
			MaxDailyTrades:      50,
			MaxAssetExposurePct: 0.25,
			MaxSlippagePct:      0.02,
		},
		Execution: ExecutionConfig{
			TradeSizeUSD:   5,
			MinNotional:    1.00,
			RetryAttempts:  3,
			RetryBackoffMs: 500,
			RetryMaxMs:     5000,
			TimeoutSec:     10,
		},
		Scan: ScanConfig{
			IntervalMs: 2000,
			Workers:    8,
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// Validate checks the configuration for fatal startup errors. Everything that
// can be recovered per-tick is deliberately not validated here.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "live", "paper":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}
	if len(c.Ensemble.Enabled) == 0 {
		return fmt.Errorf("config: no signal sources enabled")
	}
	for _, name := range c.Ensemble.Enabled {
		if name == "reasoner" && c.Ensemble.ReasonerEndpoint == "" {
			return fmt.Errorf("config: reasoner source enabled without endpoint")
		}
	}
	if c.Detector.DropThreshold <= 0 || c.Detector.DropThreshold >= 1 {
		return fmt.Errorf("config: drop_threshold %.4f out of (0,1)", c.Detector.DropThreshold)
	}
	if c.Hedge.SumThreshold <= 0 || c.Hedge.SumThreshold >= 1 {
		return fmt.Errorf("config: hedge sum_threshold %.4f out of (0,1)", c.Hedge.SumThreshold)
	}
	if c.Risk.MaxAssetExposurePct <= 0 || c.Risk.MaxAssetExposurePct > 1 {
		return fmt.Errorf("config: max_asset_exposure_pct %.4f out of (0,1]", c.Risk.MaxAssetExposurePct)
	}
	if c.Execution.MinNotional <= 0 {
		return fmt.Errorf("config: min_notional must be positive")
	}
	if c.Scan.IntervalMs <= 0 {
		return fmt.Errorf("config: scan interval_ms must be positive")
	}
	if strings.ToLower(c.Mode) == "live" && c.Polymarket.ApiKey == "" {
		return fmt.Errorf("config: live mode requires polymarket api_key")
	}
	return nil
}
