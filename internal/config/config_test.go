// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "campaign-probe", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 60*time.Second, cfg.Browser().NavigationTimeout)
	assert.Equal(t, "https://daimleragemea.germany-2.evergage.com/", cfg.Capture().TargetHost)
	assert.Equal(t, int64(5000000), cfg.Capture().MaxPostDataSize)
	assert.Equal(t, 5, cfg.Runner().MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Runner().ImageTimeout)
	assert.Equal(t, 30*time.Second, cfg.Deeplinks().Timeout)
	assert.Empty(t, cfg.Database().URL)
	assert.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing target host", func(c *Config) { c.CaptureCfg.TargetHost = "" }, "capture.target_host"},
		{"bad post data size", func(c *Config) { c.CaptureCfg.MaxPostDataSize = 0 }, "capture.max_post_data_size"},
		{"bad concurrency", func(c *Config) { c.RunnerCfg.Concurrency = 0 }, "runner.concurrency must be a positive integer"},
		{"bad attempts", func(c *Config) { c.RunnerCfg.MaxAttempts = -1 }, "runner.max_attempts"},
		{"bad log buffer", func(c *Config) { c.BrowserCfg.LogBufferSize = 0 }, "browser.log_buffer_size"},
		{"missing base url", func(c *Config) { c.DeeplinksCfg.BaseURL = "" }, "deeplinks.base_url"},
		{"negative rate", func(c *Config) { c.DeeplinksCfg.RateLimit = -1 }, "deeplinks.rate_limit"},
		{"incomplete case", func(c *Config) {
			c.CasesCfg = []schemas.TestCase{{TestName: "BFV1", MarketCode: "AT/de"}, {TestName: "BFV2"}}
		}, "cases[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Viper Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	yamlConfig := []byte(`
logger:
  level: debug
runner:
  concurrency: 3
capture:
  target_host: https://example.evergage.com/
cases:
  - test_name: BFV1
    market_code: AT/de
    model_code: W465
  - test_name: Last Seen SRP
    market_code: BE/nl
    test_link: "?sfmc=1"
`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	t.Setenv("PROBE_DEEPLINKS_TOKEN", "secret-token")
	t.Setenv("PROBE_DATABASE_URL", "postgres://probe@localhost/probe")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, 3, cfg.Runner().Concurrency)
	assert.Equal(t, "https://example.evergage.com/", cfg.Capture().TargetHost)
	assert.Equal(t, "secret-token", cfg.Deeplinks().Token)
	assert.Equal(t, "postgres://probe@localhost/probe", cfg.Database().URL)

	require.Len(t, cfg.Cases(), 2)
	assert.Equal(t, schemas.TestCase{TestName: "BFV1", MarketCode: "AT/de", ModelCode: "W465"}, cfg.Cases()[0])
	assert.Equal(t, "?sfmc=1", cfg.Cases()[1].TestLink)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("runner.concurrency", 0)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetRunnerConcurrency(7)
	cfg.SetBrowserHeadless(false)
	cfg.SetCases([]schemas.TestCase{{TestName: "BFV1", MarketCode: "DE/de"}})

	assert.Equal(t, 7, cfg.Runner().Concurrency)
	assert.False(t, cfg.Browser().Headless)
	assert.Len(t, cfg.Cases(), 1)
}
