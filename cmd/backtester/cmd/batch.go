package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/batch"
	"github.com/rustyeddy/backtester/journal"
)

var batchCmd = &cobra.Command{
	Use:   "batch [symbol...]",
	Short: "Backtest every symbol in a data directory",
	Long: `Run the configured strategy over many symbols in parallel.

Symbols are read from data.dir using data.pattern (default "%s.csv").
With no symbols given, every matching file in the directory is run.
A symbol that fails gets an error row in the summary; the others
continue.

Example:
  backtester batch -c backtest.yaml --dir ./data --workers 8`,
	RunE: runBatch,
}

var (
	batchDir     string
	batchPattern string
	batchWorkers int
	batchSummary string
	batchOut     string
	batchDBPath  string
	batchParquet bool
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchDir, "dir", "", "override data.dir")
	batchCmd.Flags().StringVar(&batchPattern, "pattern", "", "override data.pattern, e.g. %s_daily.csv")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "override batch.workers (0 = one per CPU)")
	batchCmd.Flags().StringVar(&batchSummary, "summary", "", "override batch.summary_file")
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "override journal.dir")
	batchCmd.Flags().StringVarP(&batchDBPath, "db", "d", "", "override journal.db_path")
	batchCmd.Flags().BoolVar(&batchParquet, "parquet", false, "also write Parquet logs")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if batchDir != "" {
		cfg.Data.Dir = batchDir
	}
	if batchPattern != "" {
		cfg.Data.Pattern = batchPattern
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = batchWorkers
	}
	if batchSummary != "" {
		cfg.Batch.SummaryFile = batchSummary
	}
	if batchOut != "" {
		cfg.Journal.Dir = batchOut
	}
	if batchDBPath != "" {
		cfg.Journal.DBPath = batchDBPath
	}
	if batchParquet {
		cfg.Journal.Parquet = true
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, err := newEngine(cfg, log)
	if err != nil {
		return err
	}

	src := cfg.Source()
	symbols := args
	if len(symbols) == 0 {
		if symbols, err = src.Symbols(); err != nil {
			return fmt.Errorf("list %s: %w", cfg.Data.Dir, err)
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols found in %s", cfg.Data.Dir)
	}

	runner := &batch.Runner{
		Engine:     engine,
		Source:     src,
		Workers:    cfg.Batch.Workers,
		Indicators: annotation(cfg),
		OutDir:     cfg.Journal.Dir,
		Parquet:    cfg.Journal.Parquet,
		Log:        log,
	}
	if cfg.Journal.DBPath != "" {
		store, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()
		runner.Store = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Running %d symbols with strategy: %s\n\n", len(symbols), cfg.Strategy.Name)
	rows, runErr := runner.Run(ctx, symbols)

	printSummary(rows)

	if cfg.Batch.SummaryFile != "" {
		if err := journal.WriteSummary(cfg.Batch.SummaryFile, rows); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		fmt.Printf("\n✓ Summary: %s\n", cfg.Batch.SummaryFile)
	}
	return runErr
}

func printSummary(rows []journal.SummaryRow) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tFINAL\tRETURN%\tTRADES\tWIN%\tWINS\tLOSSES\tERROR")
	for _, r := range rows {
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%d\t%.2f\t%d\t%d\t%s\n",
			r.Symbol, r.FinalValue, r.ReturnPct, r.TotalTrades, r.WinRatePct, r.ProfitTrades, r.LossTrades, msg)
	}
	tw.Flush()
}
