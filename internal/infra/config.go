package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tradepulse/internal/domain"
)

// Config holds every application setting. Values come from the yaml file
// first; a .env file and process environment variables override the
// deployment-sensitive ones afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		Symbol            string `yaml:"symbol"`
		BucketIntervalSec int    `yaml:"bucket_interval_sec"`
		VolumeWindow      int    `yaml:"volume_window"`
		TradeCap          int    `yaml:"trade_cap"`
	} `yaml:"market"`

	Engine struct {
		DominanceWindowSec int `yaml:"dominance_window_sec"`
		DecisionBatch      int `yaml:"decision_batch"`
		TickIntervalMS     int `yaml:"tick_interval_ms"`
		InboxSize          int `yaml:"inbox_size"`
	} `yaml:"engine"`

	Strategy struct {
		PressureThreshold  float64 `yaml:"pressure_threshold"`
		DominanceThreshold float64 `yaml:"dominance_threshold"`
		ZScoreMin          float64 `yaml:"zscore_min"`
		RSIOverbought      float64 `yaml:"rsi_overbought"`
		RSIOversold        float64 `yaml:"rsi_oversold"`
		EMAFastPeriod      int     `yaml:"ema_fast_period"`
		EMASlowPeriod      int     `yaml:"ema_slow_period"`
		RSIPeriod          int     `yaml:"rsi_period"`
	} `yaml:"strategy"`

	Risk struct {
		Leverage         int             `yaml:"leverage"`
		RiskPerTrade     decimal.Decimal `yaml:"risk_per_trade"`
		InitialSL        decimal.Decimal `yaml:"initial_sl"`
		DynamicSL        decimal.Decimal `yaml:"dynamic_sl"`
		MinNotional      decimal.Decimal `yaml:"min_notional"`
		InitialBalance   decimal.Decimal `yaml:"initial_balance"`
		IntentTimeoutSec int             `yaml:"intent_timeout_sec"`
	} `yaml:"risk"`

	Execution struct {
		DryRun         bool `yaml:"dry_run"`
		PaperLatencyMS int  `yaml:"paper_latency_ms"`
	} `yaml:"execution"`

	API struct {
		Binance struct {
			WSURL string `yaml:"ws_url"`
		} `yaml:"binance"`
	} `yaml:"api"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// envOverrides are the settings an operator may set per deployment
// without touching the yaml file.
type envOverrides struct {
	Symbol   string `envconfig:"SYMBOL"`
	DryRun   *bool  `envconfig:"DRY_RUN"`
	WSURL    string `envconfig:"BINANCE_WS_URL"`
	DBPath   string `envconfig:"DB_PATH"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	Metrics  string `envconfig:"METRICS_ADDR"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, and fails fast on any invalid value.
func LoadConfig(path string) (*Config, error) {
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	var ov envOverrides
	if err := envconfig.Process("tradepulse", &ov); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	applyOverrides(&cfg, ov)

	if err := cfg.Validate(); err != nil {
		return nil, &domain.ConfigError{Field: "config", Err: err}
	}

	return &cfg, nil
}

func applyOverrides(cfg *Config, ov envOverrides) {
	if ov.Symbol != "" {
		cfg.Market.Symbol = ov.Symbol
	}
	if ov.DryRun != nil {
		cfg.Execution.DryRun = *ov.DryRun
	}
	if ov.WSURL != "" {
		cfg.API.Binance.WSURL = ov.WSURL
	}
	if ov.DBPath != "" {
		cfg.Storage.Path = ov.DBPath
	}
	if ov.LogLevel != "" {
		cfg.Logging.Level = ov.LogLevel
	}
	if ov.Metrics != "" {
		cfg.Metrics.Addr = ov.Metrics
	}
}

// Validate checks configuration validity. The process must refuse to
// start on a bad config rather than trade with it.
func (c *Config) Validate() error {
	if c.Market.Symbol == "" {
		return fmt.Errorf("a market symbol is required")
	}
	if c.Market.BucketIntervalSec <= 0 {
		return fmt.Errorf("bucket interval must be positive")
	}
	if c.Market.VolumeWindow < 2 {
		return fmt.Errorf("volume window must be at least 2 buckets")
	}
	if c.Market.TradeCap <= 0 {
		return fmt.Errorf("trade cap must be positive")
	}

	if c.Engine.DominanceWindowSec <= 0 {
		return fmt.Errorf("dominance window must be positive")
	}
	if c.Engine.DecisionBatch <= 0 {
		return fmt.Errorf("decision batch must be positive")
	}
	if c.Engine.TickIntervalMS <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Engine.InboxSize <= 0 {
		return fmt.Errorf("inbox size must be positive")
	}

	if c.Strategy.PressureThreshold <= 1 {
		return fmt.Errorf("pressure threshold must exceed 1 (got %v)", c.Strategy.PressureThreshold)
	}
	if c.Strategy.DominanceThreshold <= 1 {
		return fmt.Errorf("dominance threshold must exceed 1 (got %v)", c.Strategy.DominanceThreshold)
	}
	if c.Strategy.ZScoreMin <= 0 {
		return fmt.Errorf("z-score minimum must be positive (got %v)", c.Strategy.ZScoreMin)
	}
	if c.Strategy.RSIOversold >= c.Strategy.RSIOverbought {
		return fmt.Errorf("rsi oversold (%v) must be below overbought (%v)", c.Strategy.RSIOversold, c.Strategy.RSIOverbought)
	}
	if c.Strategy.RSIOversold <= 0 || c.Strategy.RSIOverbought >= 100 {
		return fmt.Errorf("rsi bounds must lie inside (0, 100)")
	}
	if c.Strategy.EMAFastPeriod <= 0 || c.Strategy.EMASlowPeriod <= 0 || c.Strategy.RSIPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive")
	}
	if c.Strategy.EMAFastPeriod >= c.Strategy.EMASlowPeriod {
		return fmt.Errorf("fast ema period (%d) must be shorter than slow (%d)", c.Strategy.EMAFastPeriod, c.Strategy.EMASlowPeriod)
	}

	if c.Risk.Leverage < 1 || c.Risk.Leverage > 125 {
		return fmt.Errorf("leverage %d out of range [1, 125]", c.Risk.Leverage)
	}
	one := decimal.NewFromInt(1)
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"risk_per_trade", c.Risk.RiskPerTrade},
		{"initial_sl", c.Risk.InitialSL},
		{"dynamic_sl", c.Risk.DynamicSL},
	} {
		if !f.v.IsPositive() || f.v.GreaterThanOrEqual(one) {
			return fmt.Errorf("%s must lie inside (0, 1), got %s", f.name, f.v)
		}
	}
	if c.Risk.MinNotional.IsNegative() {
		return fmt.Errorf("min notional must not be negative")
	}
	if !c.Risk.InitialBalance.IsPositive() {
		return fmt.Errorf("initial balance must be positive")
	}
	if c.Risk.IntentTimeoutSec <= 0 {
		return fmt.Errorf("intent timeout must be positive")
	}

	if !c.Execution.DryRun {
		return fmt.Errorf("live execution is not wired yet; dry_run must be true")
	}

	if c.API.Binance.WSURL == "" || (!strings.HasPrefix(c.API.Binance.WSURL, "ws://") && !strings.HasPrefix(c.API.Binance.WSURL, "wss://")) {
		return fmt.Errorf("invalid Binance WS URL: %s", c.API.Binance.WSURL)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	return nil
}

// BucketInterval returns the bucket interval as a duration.
func (c *Config) BucketInterval() time.Duration {
	return time.Duration(c.Market.BucketIntervalSec) * time.Second
}

// DominanceWindow returns the dominance look-back as a duration.
func (c *Config) DominanceWindow() time.Duration {
	return time.Duration(c.Engine.DominanceWindowSec) * time.Second
}

// TickInterval returns the engine timer period as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickIntervalMS) * time.Millisecond
}

// IntentTimeout returns the pending-intent timeout as a duration.
func (c *Config) IntentTimeout() time.Duration {
	return time.Duration(c.Risk.IntentTimeoutSec) * time.Second
}

// PaperLatency returns the simulated fill latency as a duration.
func (c *Config) PaperLatency() time.Duration {
	return time.Duration(c.Execution.PaperLatencyMS) * time.Millisecond
}
