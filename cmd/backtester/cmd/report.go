package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "List journaled runs or export one as an org report",
	Long: `Query the SQLite run journal.

With no argument, list the recorded runs, newest first. With a run ID,
render that run as an org-mode report to stdout or --output.

Examples:
  backtester report --db runs.sqlite --symbol AAPL
  backtester report 01HZX3... --db runs.sqlite --output AAPL.org`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var (
	reportDBPath string
	reportOutput string
	reportSymbol string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportDBPath, "db", "d", "", "path to SQLite journal DB (default: journal.db_path)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "write the org report here instead of stdout")
	reportCmd.Flags().StringVarP(&reportSymbol, "symbol", "s", "", "only list runs for this symbol")
}

func runReport(cmd *cobra.Command, args []string) error {
	path := reportDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return fmt.Errorf("no journal database: pass --db or set journal.db_path")
	}

	j, err := journal.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	ctx := context.Background()
	if len(args) == 0 {
		runs, err := j.ListRuns(ctx, reportSymbol)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tSYMBOL\tSTRATEGY\tSTART\tEND\tFINAL\tRETURN%\tTRADES")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t%d\n",
				r.RunID, r.Symbol, r.Strategy,
				r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly),
				r.FinalNetWorth, r.TotalReturnPct, r.TradeCount)
		}
		return tw.Flush()
	}

	res, err := j.GetRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	rep := journal.Report{
		Result:  res,
		Created: time.Now(),
	}
	if reportOutput == "" {
		return journal.WriteOrg(os.Stdout, rep)
	}
	if err := journal.ExportOrg(reportOutput, rep); err != nil {
		return err
	}
	fmt.Printf("✓ Report: %s\n", reportOutput)
	return nil
}
