package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when path is empty),
// merges it on top of the built-in defaults, applies HEDGEBOT_* environment
// variable overrides, and returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HEDGEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Polymarket.ClobHost, "HEDGEBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "HEDGEBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ApiKey, "HEDGEBOT_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.Passphrase, "HEDGEBOT_POLYMARKET_PASSPHRASE")

	setBool(&cfg.SpotFeed.Enabled, "HEDGEBOT_SPOT_FEED_ENABLED")
	setStr(&cfg.SpotFeed.WsURL, "HEDGEBOT_SPOT_FEED_WS_URL")
	setStringSlice(&cfg.SpotFeed.Assets, "HEDGEBOT_SPOT_FEED_ASSETS")

	setStr(&cfg.Postgres.DSN, "HEDGEBOT_POSTGRES_DSN")
	setInt(&cfg.Postgres.PoolMaxConns, "HEDGEBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "HEDGEBOT_POSTGRES_POOL_MIN_CONNS")

	setStr(&cfg.Redis.Addr, "HEDGEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HEDGEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HEDGEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HEDGEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HEDGEBOT_REDIS_MAX_RETRIES")

	setFloat64(&cfg.Detector.WindowSeconds, "HEDGEBOT_DETECTOR_WINDOW_SECONDS")
	setFloat64(&cfg.Detector.DropThreshold, "HEDGEBOT_DETECTOR_DROP_THRESHOLD")
	setInt(&cfg.Detector.HistoryCapacity, "HEDGEBOT_DETECTOR_HISTORY_CAPACITY")
	setFloat64(&cfg.Detector.CooldownSeconds, "HEDGEBOT_DETECTOR_COOLDOWN_SECONDS")

	setFloat64(&cfg.Hedge.SumThreshold, "HEDGEBOT_HEDGE_SUM_THRESHOLD")

	setStringSlice(&cfg.Ensemble.Enabled, "HEDGEBOT_ENSEMBLE_ENABLED")
	setFloat64(&cfg.Ensemble.MinConsensus, "HEDGEBOT_ENSEMBLE_MIN_CONSENSUS")
	setFloat64(&cfg.Ensemble.MinConfidence, "HEDGEBOT_ENSEMBLE_MIN_CONFIDENCE")
	setFloat64(&cfg.Ensemble.MomentumThreshold, "HEDGEBOT_ENSEMBLE_MOMENTUM_THRESHOLD")
	setStr(&cfg.Ensemble.ReasonerEndpoint, "HEDGEBOT_ENSEMBLE_REASONER_ENDPOINT")

	setFloat64(&cfg.Risk.InitialBalance, "HEDGEBOT_RISK_INITIAL_BALANCE")
	setInt(&cfg.Risk.CircuitBreakerRuns, "HEDGEBOT_RISK_CIRCUIT_BREAKER_RUNS")
	setFloat64(&cfg.Risk.MaxDailyLoss, "HEDGEBOT_RISK_MAX_DAILY_LOSS")
	setInt(&cfg.Risk.MaxDailyTrades, "HEDGEBOT_RISK_MAX_DAILY_TRADES")
	setFloat64(&cfg.Risk.MaxAssetExposurePct, "HEDGEBOT_RISK_MAX_ASSET_EXPOSURE_PCT")
	setFloat64(&cfg.Risk.MaxSlippagePct, "HEDGEBOT_RISK_MAX_SLIPPAGE_PCT")

	setFloat64(&cfg.Execution.TradeSizeUSD, "HEDGEBOT_EXECUTION_TRADE_SIZE_USD")
	setFloat64(&cfg.Execution.MinNotional, "HEDGEBOT_EXECUTION_MIN_NOTIONAL")
	setInt(&cfg.Execution.RetryAttempts, "HEDGEBOT_EXECUTION_RETRY_ATTEMPTS")
	setInt(&cfg.Execution.RetryBackoffMs, "HEDGEBOT_EXECUTION_RETRY_BACKOFF_MS")
	setInt(&cfg.Execution.TimeoutSec, "HEDGEBOT_EXECUTION_TIMEOUT_SEC")

	setInt(&cfg.Scan.IntervalMs, "HEDGEBOT_SCAN_INTERVAL_MS")
	setInt(&cfg.Scan.Workers, "HEDGEBOT_SCAN_WORKERS")

	setStr(&cfg.Mode, "HEDGEBOT_MODE")
	setStr(&cfg.LogLevel, "HEDGEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
