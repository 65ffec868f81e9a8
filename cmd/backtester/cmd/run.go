package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
)

var runCmd = &cobra.Command{
	Use:   "run <bars.csv>",
	Short: "Backtest one symbol from a CSV file",
	Long: `Run the configured strategy over one CSV file of daily bars.

The file needs date,open,high,low,close columns and whatever indicator
columns the strategy reads, unless data.annotate is set in the config.

Example:
  backtester run data/AAPL.csv -c backtest.yaml --out ./out --db runs.sqlite`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runSymbol   string
	runStrategy string
	runOut      string
	runDBPath   string
	runParquet  bool
	runOrgPath  string
	runAnnotate bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runSymbol, "symbol", "s", "", "symbol name (default: file name without extension)")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "override strategy.name")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "override journal.dir for the trade and daily CSVs")
	runCmd.Flags().StringVarP(&runDBPath, "db", "d", "", "override journal.db_path (SQLite run journal)")
	runCmd.Flags().BoolVar(&runParquet, "parquet", false, "also write Parquet logs")
	runCmd.Flags().StringVar(&runOrgPath, "org", "", "write an org-mode report to this path")
	runCmd.Flags().BoolVar(&runAnnotate, "annotate", false, "compute indicators before running")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runStrategy != "" {
		cfg.Strategy.Name = runStrategy
	}
	if runOut != "" {
		cfg.Journal.Dir = runOut
	}
	if runDBPath != "" {
		cfg.Journal.DBPath = runDBPath
	}
	if runParquet {
		cfg.Journal.Parquet = true
	}
	if runAnnotate {
		cfg.Data.Annotate = true
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

	path := args[0]
	symbol := runSymbol
	if symbol == "" {
		symbol = symbolFromPath(path)
	}
	series, err := market.LoadCSVFile(path, symbol)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if p := annotation(cfg); p != nil {
		series = indicators.Annotate(series, *p)
	}

	fmt.Printf("Running backtest with strategy: %s\n", cfg.Strategy.Name)
	fmt.Printf("  Bars: %s (%d)\n", path, series.Len())
	if cfg.Journal.Dir != "" {
		fmt.Printf("  Journal: %s\n", cfg.Journal.Dir)
	}
	fmt.Println()

	res, runErr := engine.Run(context.Background(), series)
	if runErr != nil && res.RunID == "" {
		return runErr
	}

	backtest.PrintResult(os.Stdout, res)

	if err := writeRun(cfg, res, path); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return fmt.Errorf("run aborted, partial logs written: %w", runErr)
	}
	return nil
}

// writeRun journals a finished or aborted run per the journal config.
func writeRun(cfg *config.Config, res backtest.Result, dataset string) error {
	if dir := cfg.Journal.Dir; dir != "" {
		if err := journal.WriteResult(dir, res); err != nil {
			return err
		}
		tp, dp := journal.Paths(dir, res.Symbol)
		fmt.Printf("✓ Trades: %s\n", tp)
		fmt.Printf("✓ Daily:  %s\n", dp)

		if cfg.Journal.Parquet {
			if err := journal.WriteParquet(dir, res); err != nil {
				return err
			}
			tp, dp := journal.ParquetPaths(dir, res.Symbol)
			fmt.Printf("✓ Parquet: %s, %s\n", tp, dp)
		}
	}

	if cfg.Journal.DBPath != "" {
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()
		if err := j.RecordRun(context.Background(), res); err != nil {
			return err
		}
		fmt.Printf("✓ Recorded run %s in %s\n", res.RunID, cfg.Journal.DBPath)
	}

	if runOrgPath != "" {
		rep := journal.Report{
			Result:  res,
			Created: time.Now(),
			Dataset: dataset,
			Params:  reportParams(cfg),
		}
		if err := journal.ExportOrg(runOrgPath, rep); err != nil {
			return err
		}
		fmt.Printf("✓ Report: %s\n", runOrgPath)
	}
	return nil
}
