package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/rustyeddy/backtester/journal"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "A deterministic bar-by-bar strategy backtester",
	Long: `Backtester replays daily OHLCV bars through a rule-based strategy and
reports how the account would have done.

It provides tools for:
  - Running a single backtest over one CSV file
  - Batch runs over a directory of symbols
  - Paper trading a recorded feed through the live polling loop
  - Journaling runs to CSV, Parquet and SQLite
  - Exporting org-mode run reports

Complete documentation is available at https://github.com/rustyeddy/backtester`,
	SilenceUsage: true,
}

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON; defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging.format (console, json)")
}

// loadConfig reads --config, or the defaults, and applies the logging flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format)
}

func newEngine(cfg *config.Config, log *zap.Logger) (*backtest.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	return backtest.NewEngine(rules, opts, log), nil
}

// annotation returns the indicator params when the data section asks for
// annotation, nil otherwise.
func annotation(cfg *config.Config) *indicators.Params {
	if !cfg.Data.Annotate {
		return nil
	}
	p := cfg.Data.Indicators
	return &p
}

func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func f2(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }

// reportParams lists the settings that shaped a run, for org reports.
func reportParams(cfg *config.Config) []journal.Param {
	e := cfg.Execution
	s := cfg.Strategy
	return []journal.Param{
		{Name: "quantity_mode", Value: e.QuantityMode},
		{Name: "fixed_quantity", Value: f2(e.FixedQuantity)},
		{Name: "risk_fraction", Value: f2(e.RiskFraction)},
		{Name: "stop_loss_atr_multiplier", Value: f2(e.StopLossATRMultiplier)},
		{Name: "take_profit_atr_multiplier", Value: f2(e.TakeProfitATRMultiplier)},
		{Name: "cooldown_period", Value: strconv.Itoa(e.CooldownPeriod)},
		{Name: "minimum_holding_period", Value: strconv.Itoa(e.MinimumHoldingPeriod)},
		{Name: "commission_rate", Value: f2(e.CommissionRate)},
		{Name: "slippage_rate", Value: f2(e.SlippageRate)},
		{Name: "exit_execution", Value: e.ExitExecution},
		{Name: "adx_threshold", Value: f2(s.ADXThreshold)},
		{Name: "rsi_low", Value: f2(s.RSILow)},
		{Name: "rsi_high", Value: f2(s.RSIHigh)},
		{Name: "rsi_exit", Value: f2(s.RSIExit)},
	}
}
