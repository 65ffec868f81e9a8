// Package batch runs one engine configuration over many symbols in
// parallel and collects a summary row per symbol.
package batch

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
)

// Runner fans symbols out to Engine. Runs share nothing but the read-only
// Engine, so Workers only bounds CPU and open files.
type Runner struct {
	Engine *backtest.Engine
	Source market.Source

	// Workers caps concurrent runs; 0 means runtime.NumCPU().
	Workers int

	// Indicators, when set, annotates each series before it is run.
	Indicators *indicators.Params

	// OutDir receives <SYMBOL>_trades.csv and <SYMBOL>_daily.csv for every
	// run that produced logs, including aborted ones. Empty disables.
	OutDir  string
	Parquet bool

	// Store, when set, records every run that got a run ID.
	Store *journal.SQLite

	Log *zap.Logger
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.NumCPU()
}

// Run backtests every symbol and returns one row per symbol in input
// order. A failing symbol yields a row with Err set and does not stop the
// others; only cancellation of ctx makes Run itself fail.
func (r *Runner) Run(ctx context.Context, symbols []string) ([]journal.SummaryRow, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("batch started",
		zap.Int("symbols", len(symbols)),
		zap.Int("workers", r.workers()),
	)

	rows := make([]journal.SummaryRow, len(symbols))
	g := new(errgroup.Group)
	g.SetLimit(r.workers())

	for i, sym := range symbols {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(symbols); j++ {
				rows[j] = journal.SummaryRow{Symbol: symbols[j], Err: err}
			}
			_ = g.Wait()
			return rows, err
		}
		g.Go(func() error {
			res, err := r.runOne(ctx, sym, log)
			if err != nil {
				log.Warn("symbol failed", zap.String("symbol", sym), zap.Error(err))
			}
			rows[i] = journal.NewSummaryRow(sym, res, err)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, row := range rows {
		if row.Err != nil {
			failed++
		}
	}
	log.Info("batch finished",
		zap.Int("symbols", len(symbols)),
		zap.Int("failed", failed),
	)
	return rows, ctx.Err()
}

func (r *Runner) runOne(ctx context.Context, symbol string, log *zap.Logger) (backtest.Result, error) {
	series, err := r.Source.Bars(ctx, symbol)
	if err != nil {
		return backtest.Result{Symbol: symbol}, err
	}
	if r.Indicators != nil {
		series = indicators.Annotate(series, *r.Indicators)
	}

	res, runErr := r.Engine.Run(ctx, series)
	if err := r.persist(ctx, res); err != nil {
		log.Error("journal write failed", zap.String("symbol", symbol), zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	return res, runErr
}

// persist writes whatever logs the run produced, even when it was aborted.
func (r *Runner) persist(ctx context.Context, res backtest.Result) error {
	if res.RunID == "" {
		return nil
	}
	if r.OutDir != "" {
		if err := journal.WriteResult(r.OutDir, res); err != nil {
			return err
		}
		if r.Parquet {
			if err := journal.WriteParquet(r.OutDir, res); err != nil {
				return err
			}
		}
	}
	if r.Store != nil {
		if err := r.Store.RecordRun(ctx, res); err != nil {
			return err
		}
	}
	return nil
}
