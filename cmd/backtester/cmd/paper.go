package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/broker"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/paper"
)

var paperCmd = &cobra.Command{
	Use:   "paper [symbol...]",
	Short: "Paper trade recorded bars through the live polling loop",
	Long: `Replay recorded bars one poll at a time through the paper trading loop.

Each poll hands every symbol its next bar. Trades go to an in-process
paper broker and the trade and daily CSVs are written as they happen.
Symbols default to paper.symbols, then to every file in data.dir.
Interrupt with Ctrl-C; open positions are closed at the last price when
execution.close_at_end is set.

Example:
  backtester paper AAPL MSFT -c backtest.yaml --interval 250ms`,
	RunE: runPaper,
}

var (
	paperInterval     string
	paperRespectHours bool
	paperOut          string
)

func init() {
	rootCmd.AddCommand(paperCmd)

	paperCmd.Flags().StringVar(&paperInterval, "interval", "", "override paper.poll_interval, e.g. 1s")
	paperCmd.Flags().BoolVar(&paperRespectHours, "respect-hours", false, "stop when the market is closed (paper.market_open/close)")
	paperCmd.Flags().StringVarP(&paperOut, "out", "o", "", "override journal.dir")
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if paperInterval != "" {
		cfg.Paper.PollInterval = paperInterval
	}
	if paperOut != "" {
		cfg.Journal.Dir = paperOut
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	interval, err := cfg.Paper.Interval()
	if err != nil {
		return fmt.Errorf("paper.poll_interval: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := cfg.Source()
	symbols := args
	if len(symbols) == 0 {
		symbols = cfg.Paper.Symbols
	}
	if len(symbols) == 0 {
		if symbols, err = src.Symbols(); err != nil {
			return fmt.Errorf("list %s: %w", cfg.Data.Dir, err)
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to trade")
	}

	series := make([]market.Series, 0, len(symbols))
	for _, sym := range symbols {
		s, err := src.Bars(ctx, sym)
		if err != nil {
			return fmt.Errorf("load %s: %w", sym, err)
		}
		series = append(series, s)
	}

	trader := &paper.Trader{
		Symbols:    symbols,
		Feed:       paper.NewReplayFeed(series...),
		Broker:     broker.NewPaper(),
		Rules:      rules,
		Options:    opts,
		Indicators: annotation(cfg),
		Interval:   interval,
		OutDir:     cfg.Journal.Dir,
		Log:        log,
	}
	if paperRespectHours {
		loc, err := cfg.Paper.Location()
		if err != nil {
			return fmt.Errorf("paper.timezone: %w", err)
		}
		hours, err := paper.ParseHours(cfg.Paper.MarketOpen, cfg.Paper.MarketClose, loc)
		if err != nil {
			return err
		}
		trader.IsOpen = hours.IsOpen
	}

	fmt.Printf("Paper trading %d symbols with strategy: %s (poll every %s)\n\n",
		len(symbols), cfg.Strategy.Name, interval)

	start := time.Now()
	results, runErr := trader.Run(ctx)
	for _, r := range results {
		backtest.PrintResult(os.Stdout, r)
		fmt.Println()
	}
	if cfg.Journal.Dir != "" {
		fmt.Printf("✓ Journals written to %s\n", cfg.Journal.Dir)
	}
	fmt.Printf("Finished in %s\n", time.Since(start).Round(time.Millisecond))

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
