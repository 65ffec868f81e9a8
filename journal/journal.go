// Package journal persists run output: per-symbol CSV logs, a SQLite run
// journal, Parquet exports and org-mode reports.
package journal

import (
	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/sim"
)

// Journal receives trade and daily records as they are produced.
type Journal interface {
	RecordTrade(sim.TradeRecord) error
	RecordDaily(sim.DailyBalance) error
	Close() error
}

// Record replays the logs of r into j in order. j is not closed.
func Record(j Journal, r backtest.Result) error {
	for _, t := range r.Trades {
		if err := j.RecordTrade(t); err != nil {
			return err
		}
	}
	for _, d := range r.Daily {
		if err := j.RecordDaily(d); err != nil {
			return err
		}
	}
	return nil
}
