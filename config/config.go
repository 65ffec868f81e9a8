package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// Config represents the complete backtester configuration
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Strategy  StrategyConfig  `json:"strategy" yaml:"strategy"`
	Data      DataConfig      `json:"data" yaml:"data"`
	Batch     BatchConfig     `json:"batch" yaml:"batch"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Paper     PaperConfig     `json:"paper" yaml:"paper"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

// ExecutionConfig controls sizing, costs, protective exits and fills
type ExecutionConfig struct {
	QuantityMode            string  `json:"quantity_mode" yaml:"quantity_mode"`
	FixedQuantity           float64 `json:"fixed_quantity" yaml:"fixed_quantity"`
	RiskFraction            float64 `json:"risk_fraction" yaml:"risk_fraction"`
	StopLossATRMultiplier   float64 `json:"stop_loss_atr_multiplier" yaml:"stop_loss_atr_multiplier"`
	TakeProfitATRMultiplier float64 `json:"take_profit_atr_multiplier" yaml:"take_profit_atr_multiplier"`
	CooldownPeriod          int     `json:"cooldown_period" yaml:"cooldown_period"`
	MinimumHoldingPeriod    int     `json:"minimum_holding_period" yaml:"minimum_holding_period"`
	CommissionRate          float64 `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate            float64 `json:"slippage_rate" yaml:"slippage_rate"`
	ExitExecution           string  `json:"exit_execution" yaml:"exit_execution"`
	CloseAtEnd              bool    `json:"close_at_end" yaml:"close_at_end"`
}

// StrategyConfig names the rules and their thresholds
type StrategyConfig struct {
	Name              string `json:"name" yaml:"name"`
	strategies.Params `yaml:",inline"`
}

// DataConfig locates the input files and how to prepare them
type DataConfig struct {
	Dir        string            `json:"dir" yaml:"dir"`
	Pattern    string            `json:"pattern,omitempty" yaml:"pattern,omitempty"` // e.g. "%s_daily.csv"
	Annotate   bool              `json:"annotate" yaml:"annotate"`
	StartDate  string            `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	Indicators indicators.Params `json:"indicators" yaml:"indicators"`
}

// BatchConfig contains batch runner parameters
type BatchConfig struct {
	Workers     int    `json:"workers" yaml:"workers"` // 0 means one per CPU
	SummaryFile string `json:"summary_file" yaml:"summary_file"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Dir     string `json:"dir" yaml:"dir"`
	Parquet bool   `json:"parquet" yaml:"parquet"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoggingConfig selects the zap level and encoder
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// PaperConfig contains paper trading loop parameters
type PaperConfig struct {
	Symbols      []string `json:"symbols" yaml:"symbols"`
	PollInterval string   `json:"poll_interval" yaml:"poll_interval"` // e.g. "1m"
	MarketOpen   string   `json:"market_open" yaml:"market_open"`     // "09:30"
	MarketClose  string   `json:"market_close" yaml:"market_close"`   // "16:00"
	Timezone     string   `json:"timezone" yaml:"timezone"`
}

// Interval parses PollInterval.
func (p PaperConfig) Interval() (time.Duration, error) {
	return time.ParseDuration(p.PollInterval)
}

// Location loads Timezone, defaulting to UTC.
func (p PaperConfig) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(p.Timezone)
}

// LoadFromFile loads configuration from a file (JSON or YAML). Keys that
// are absent keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}

	e := c.Execution
	mode, err := risk.ParseMode(e.QuantityMode)
	if err != nil {
		return fmt.Errorf("execution.quantity_mode: %w", err)
	}
	switch mode {
	case risk.Fixed:
		if e.FixedQuantity <= 0 {
			return fmt.Errorf("execution.fixed_quantity must be positive")
		}
	default:
		if e.RiskFraction <= 0 || e.RiskFraction > 1 {
			return fmt.Errorf("execution.risk_fraction must be between 0 and 1")
		}
	}
	if e.StopLossATRMultiplier < 0 {
		return fmt.Errorf("execution.stop_loss_atr_multiplier must not be negative")
	}
	if mode == risk.PerATRStop && e.StopLossATRMultiplier == 0 {
		return fmt.Errorf("execution.stop_loss_atr_multiplier is required for %s", risk.PerATRStop)
	}
	if e.TakeProfitATRMultiplier < 0 {
		return fmt.Errorf("execution.take_profit_atr_multiplier must not be negative")
	}
	if e.CooldownPeriod < 0 {
		return fmt.Errorf("execution.cooldown_period must not be negative")
	}
	if e.MinimumHoldingPeriod < 0 {
		return fmt.Errorf("execution.minimum_holding_period must not be negative")
	}
	if e.CommissionRate < 0 || e.CommissionRate >= 1 {
		return fmt.Errorf("execution.commission_rate must be between 0 and 1")
	}
	if e.SlippageRate < 0 || e.SlippageRate >= 1 {
		return fmt.Errorf("execution.slippage_rate must be between 0 and 1")
	}
	if _, err := sim.ParseExitExecution(e.ExitExecution); err != nil {
		return fmt.Errorf("execution.exit_execution: %w", err)
	}

	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if _, ok := strategies.Get(c.Strategy.Name); !ok {
		return fmt.Errorf("unknown strategy: %s (supported: %s)", c.Strategy.Name, strings.Join(strategies.List(), ", "))
	}

	if c.Data.StartDate != "" {
		if _, err := market.ParseDate(c.Data.StartDate); err != nil {
			return fmt.Errorf("data.start_date: %w", err)
		}
	}
	if c.Data.Annotate {
		if err := validIndicators(c.Data.Indicators); err != nil {
			return err
		}
	}

	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json'")
	}

	if c.Paper.PollInterval != "" {
		d, err := c.Paper.Interval()
		if err != nil || d <= 0 {
			return fmt.Errorf("paper.poll_interval must be a positive duration")
		}
	}
	if _, err := c.Paper.Location(); err != nil {
		return fmt.Errorf("paper.timezone: %w", err)
	}
	for _, hm := range []struct{ key, val string }{
		{"paper.market_open", c.Paper.MarketOpen},
		{"paper.market_close", c.Paper.MarketClose},
	} {
		if hm.val == "" {
			continue
		}
		if _, err := time.Parse("15:04", hm.val); err != nil {
			return fmt.Errorf("%s must be HH:MM", hm.key)
		}
	}
	return nil
}

func validIndicators(p indicators.Params) error {
	periods := []struct {
		key string
		val int
	}{
		{"ema_fast", p.EMAFast},
		{"ema_slow", p.EMASlow},
		{"macd_fast", p.MACDFast},
		{"macd_slow", p.MACDSlow},
		{"macd_signal", p.MACDSignal},
		{"rsi", p.RSI},
		{"bollinger", p.Bollinger},
		{"atr", p.ATR},
		{"adx", p.ADX},
		{"volatility", p.Volatility},
		{"volume_spike", p.VolumeSpike},
	}
	for _, pp := range periods {
		if pp.val <= 0 {
			return fmt.Errorf("data.indicators.%s must be positive", pp.key)
		}
	}
	return nil
}

// StartDate parses Data.StartDate; the zero time means no cut-off.
func (c *Config) StartDate() (time.Time, error) {
	if c.Data.StartDate == "" {
		return time.Time{}, nil
	}
	return market.ParseDate(c.Data.StartDate)
}

// EngineOptions projects the configuration onto the engine's options.
func (c *Config) EngineOptions() (backtest.Options, error) {
	mode, err := risk.ParseMode(c.Execution.QuantityMode)
	if err != nil {
		return backtest.Options{}, err
	}
	exec, err := sim.ParseExitExecution(c.Execution.ExitExecution)
	if err != nil {
		return backtest.Options{}, err
	}
	start, err := c.StartDate()
	if err != nil {
		return backtest.Options{}, err
	}

	e := c.Execution
	return backtest.Options{
		InitialCapital: c.Account.InitialCapital,
		Ledger: sim.Options{
			CommissionRate: e.CommissionRate,
			SlippageRate:   e.SlippageRate,
			Sizing: risk.Sizing{
				Mode:           mode,
				FixedQuantity:  e.FixedQuantity,
				RiskFraction:   e.RiskFraction,
				StopMultiplier: e.StopLossATRMultiplier,
			},
			CooldownPeriod: e.CooldownPeriod,
			ExitExecution:  exec,
		},
		StopMultiplier:   e.StopLossATRMultiplier,
		TargetMultiplier: e.TakeProfitATRMultiplier,
		MinHolding:       e.MinimumHoldingPeriod,
		CloseAtEnd:       e.CloseAtEnd,
		StartDate:        start,
	}, nil
}

// Rules builds the configured strategy.
func (c *Config) Rules() (strategies.Rules, error) {
	return strategies.StrategyByName(c.Strategy.Name, c.Strategy.Params)
}

// Source returns the CSV directory the data section points at.
func (c *Config) Source() market.CSVDir {
	return market.CSVDir{Dir: c.Data.Dir, Pattern: c.Data.Pattern}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital: 100000,
		},
		Execution: ExecutionConfig{
			QuantityMode:            string(risk.Fixed),
			FixedQuantity:           10,
			RiskFraction:            0.02,
			StopLossATRMultiplier:   1.5,
			TakeProfitATRMultiplier: 2.5,
			ExitExecution:           string(sim.NextBarClose),
		},
		Strategy: StrategyConfig{
			Name:   "trend-breakout",
			Params: strategies.DefaultParams(),
		},
		Data: DataConfig{
			Dir:        "./data",
			Indicators: indicators.DefaultParams(),
		},
		Batch: BatchConfig{
			SummaryFile: "./out/summary.csv",
		},
		Journal: JournalConfig{
			Dir: "./out",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Paper: PaperConfig{
			PollInterval: "1m",
			MarketOpen:   "09:30",
			MarketClose:  "16:00",
			Timezone:     "America/New_York",
		},
	}
}
