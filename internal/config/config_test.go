package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "paper", cfg.Mode)
	assert.InDelta(t, 0.15, cfg.Detector.DropThreshold, 1e-9)
	assert.InDelta(t, 0.95, cfg.Hedge.SumThreshold, 1e-9)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "turbo" }},
		{"no sources", func(c *Config) { c.Ensemble.Enabled = nil }},
		{"reasoner without endpoint", func(c *Config) { c.Ensemble.Enabled = []string{"reasoner"} }},
		{"drop threshold too high", func(c *Config) { c.Detector.DropThreshold = 1.5 }},
		{"hedge threshold zero", func(c *Config) { c.Hedge.SumThreshold = 0 }},
		{"exposure above one", func(c *Config) { c.Risk.MaxAssetExposurePct = 1.2 }},
		{"zero min notional", func(c *Config) { c.Execution.MinNotional = 0 }},
		{"zero scan interval", func(c *Config) { c.Scan.IntervalMs = 0 }},
		{"live without api key", func(c *Config) { c.Mode = "live" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "live"

[polymarket]
api_key = "k"

[detector]
drop_threshold = 0.2

[scan]
workers = 4
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "live", cfg.Mode)
	assert.InDelta(t, 0.2, cfg.Detector.DropThreshold, 1e-9)
	assert.Equal(t, 4, cfg.Scan.Workers)
	// Untouched sections keep their defaults.
	assert.InDelta(t, 0.95, cfg.Hedge.SumThreshold, 1e-9)
	assert.Equal(t, 2000, cfg.Scan.IntervalMs)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("HEDGEBOT_MODE", "live")
	t.Setenv("HEDGEBOT_POLYMARKET_API_KEY", "secret")
	t.Setenv("HEDGEBOT_RISK_MAX_DAILY_LOSS", "25")
	t.Setenv("HEDGEBOT_SPOT_FEED_ASSETS", "BTC, ETH")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "live", cfg.Mode)
	assert.Equal(t, "secret", cfg.Polymarket.ApiKey)
	assert.InDelta(t, 25, cfg.Risk.MaxDailyLoss, 1e-9)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.SpotFeed.Assets)
}
