// Package backtest runs a strategy bar by bar over a historical series and
// summarizes the outcome.
package backtest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/pkg/id"
	"github.com/rustyeddy/backtester/strategies"
)

// Engine runs one strategy configuration. It holds no per-run state, so
// one Engine may run many series concurrently.
type Engine struct {
	Rules   strategies.Rules
	Options Options
	Log     *zap.Logger
}

func NewEngine(rules strategies.Rules, opts Options, log *zap.Logger) *Engine {
	return &Engine{Rules: rules, Options: opts, Log: log}
}

// Run validates series and steps through it in date order. The first bar
// is the reference bar; decisions start on the second.
//
// A data error is returned before anything runs. A missing indicator or an
// invariant violation stops the run and is returned together with the
// partial Result for inspection.
func (e *Engine) Run(ctx context.Context, series market.Series) (Result, error) {
	if e.Rules == nil {
		return Result{}, fmt.Errorf("backtest: Rules are required")
	}
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}

	series = series.From(e.Options.StartDate)
	if err := series.Validate(); err != nil {
		return Result{Symbol: series.Symbol, Strategy: e.Rules.Name(), InitialCapital: e.Options.InitialCapital}, err
	}

	runID := id.New()
	s := NewSession(series.Symbol, e.Rules, e.Options, log)
	log = log.With(zap.String("symbol", series.Symbol), zap.String("run_id", runID))
	log.Info("backtest started",
		zap.String("strategy", e.Rules.Name()),
		zap.Int("bars", series.Len()),
	)

	result := func() Result {
		r := s.Result()
		r.RunID = runID
		return r
	}

	for i, b := range series.Bars {
		if err := ctx.Err(); err != nil {
			return result(), err
		}
		if err := s.Step(b); err != nil {
			log.Error("backtest aborted", zap.Int("bar", i), zap.Error(err))
			return result(), fmt.Errorf("%s: bar %d: %w", series.Symbol, i, err)
		}
	}
	if err := s.Finish(); err != nil {
		return result(), fmt.Errorf("%s: close at end: %w", series.Symbol, err)
	}

	r := result()
	log.Info("backtest finished",
		zap.Int("trades", r.TradeCount),
		zap.Float64("final_net_worth", r.FinalNetWorth),
		zap.Float64("return_pct", r.TotalReturnPct),
	)
	return r, nil
}
