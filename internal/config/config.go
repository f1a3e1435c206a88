// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

// Interface defines the contract for accessing application configuration.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Capture() CaptureConfig
	Deeplinks() DeeplinksConfig
	Runner() RunnerConfig
	Evidence() EvidenceConfig
	Database() DatabaseConfig
	Cases() []schemas.TestCase

	SetRunnerConcurrency(int)
	SetBrowserHeadless(bool)
	SetCases([]schemas.TestCase)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	CaptureCfg   CaptureConfig      `mapstructure:"capture" yaml:"capture"`
	DeeplinksCfg DeeplinksConfig    `mapstructure:"deeplinks" yaml:"deeplinks"`
	RunnerCfg    RunnerConfig       `mapstructure:"runner" yaml:"runner"`
	EvidenceCfg  EvidenceConfig     `mapstructure:"evidence" yaml:"evidence"`
	DatabaseCfg  DatabaseConfig     `mapstructure:"database" yaml:"database"`
	CasesCfg     []schemas.TestCase `mapstructure:"cases" yaml:"cases"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Capture() CaptureConfig     { return c.CaptureCfg }
func (c *Config) Deeplinks() DeeplinksConfig { return c.DeeplinksCfg }
func (c *Config) Runner() RunnerConfig       { return c.RunnerCfg }
func (c *Config) Evidence() EvidenceConfig   { return c.EvidenceCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }
func (c *Config) Cases() []schemas.TestCase  { return c.CasesCfg }

func (c *Config) SetRunnerConcurrency(n int)        { c.RunnerCfg.Concurrency = n }
func (c *Config) SetBrowserHeadless(b bool)         { c.BrowserCfg.Headless = b }
func (c *Config) SetCases(cases []schemas.TestCase) { c.CasesCfg = cases }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Chrome process and the tab each case runs in.
type BrowserConfig struct {
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// LogBufferSize caps the buffered performance-log entries per tab.
	LogBufferSize         int   `mapstructure:"log_buffer_size" yaml:"log_buffer_size"`
	MaxTotalBufferSize    int64 `mapstructure:"max_total_buffer_size" yaml:"max_total_buffer_size"`
	MaxResourceBufferSize int64 `mapstructure:"max_resource_buffer_size" yaml:"max_resource_buffer_size"`
}

// CaptureConfig controls network response capture.
type CaptureConfig struct {
	TargetHost      string `mapstructure:"target_host" yaml:"target_host"`
	MaxPostDataSize int64  `mapstructure:"max_post_data_size" yaml:"max_post_data_size"`
}

// DeeplinksConfig configures the vehicle deeplinks API client.
type DeeplinksConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Token     string        `mapstructure:"token" yaml:"token"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int           `mapstructure:"burst" yaml:"burst"`
}

// RunnerConfig controls how test cases are executed.
type RunnerConfig struct {
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
	CookieWait   time.Duration `mapstructure:"cookie_wait" yaml:"cookie_wait"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ImageTimeout time.Duration `mapstructure:"image_timeout" yaml:"image_timeout"`
}

// EvidenceConfig controls where screenshots, captures and reports are written.
type EvidenceConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	JUnitFile  string `mapstructure:"junit_file" yaml:"junit_file"`
	Screenshot bool   `mapstructure:"screenshot" yaml:"screenshot"`
}

// DatabaseConfig holds the connection string for result persistence.
// An empty URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "campaign-probe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.log_buffer_size", 10000)
	v.SetDefault("browser.max_total_buffer_size", 100*1024*1024)
	v.SetDefault("browser.max_resource_buffer_size", 10*1024*1024)

	// -- Capture --
	v.SetDefault("capture.target_host", "https://daimleragemea.germany-2.evergage.com/")
	v.SetDefault("capture.max_post_data_size", 5000000)

	// -- Deeplinks --
	v.SetDefault("deeplinks.base_url", "https://api.oneweb.mercedes-benz.com/vehicle-deeplinks-api/v1/deeplinks")
	v.SetDefault("deeplinks.timeout", "30s")
	v.SetDefault("deeplinks.rate_limit", 5.0)
	v.SetDefault("deeplinks.burst", 2)

	// -- Runner --
	v.SetDefault("runner.concurrency", 1)
	v.SetDefault("runner.max_attempts", 5)
	v.SetDefault("runner.ready_timeout", "15s")
	v.SetDefault("runner.cookie_wait", "6s")
	v.SetDefault("runner.settle_delay", "4s")
	v.SetDefault("runner.image_timeout", "10s")

	// -- Evidence --
	v.SetDefault("evidence.dir", "./Tests")
	v.SetDefault("evidence.junit_file", "junit.xml")
	v.SetDefault("evidence.screenshot", true)

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewConfigFromViper unmarshals a viper instance into a validated Config.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets come from the environment rather than the config file.
	v.BindEnv("deeplinks.token", "PROBE_DEEPLINKS_TOKEN")
	v.BindEnv("database.url", "PROBE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.DeeplinksCfg.Token == "" {
		cfg.DeeplinksCfg.Token = os.Getenv("PROBE_DEEPLINKS_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.CaptureCfg.TargetHost == "" {
		return fmt.Errorf("capture.target_host is a required configuration field")
	}
	if c.CaptureCfg.MaxPostDataSize <= 0 {
		return fmt.Errorf("capture.max_post_data_size must be a positive integer")
	}
	if c.RunnerCfg.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.RunnerCfg.MaxAttempts <= 0 {
		return fmt.Errorf("runner.max_attempts must be a positive integer")
	}
	if c.BrowserCfg.LogBufferSize <= 0 {
		return fmt.Errorf("browser.log_buffer_size must be a positive integer")
	}
	if c.DeeplinksCfg.BaseURL == "" {
		return fmt.Errorf("deeplinks.base_url is a required configuration field")
	}
	if c.DeeplinksCfg.RateLimit < 0 {
		return fmt.Errorf("deeplinks.rate_limit must not be negative")
	}
	for i, tc := range c.CasesCfg {
		if tc.TestName == "" || tc.MarketCode == "" {
			return fmt.Errorf("cases[%d]: test_name and market_code are required", i)
		}
	}
	return nil
}
