package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `run_id, symbol, strategy, initial_capital, start_date, end_date,
	final_net_worth, return_pct, win_rate_pct, max_drawdown_pct,
	trade_count, wins, losses, net_pnl, profit_factor`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (backtest.Result, error) {
	var (
		r          backtest.Result
		start, end sql.NullTime
	)
	err := s.Scan(
		&r.RunID, &r.Symbol, &r.Strategy, &r.InitialCapital, &start, &end,
		&r.FinalNetWorth, &r.TotalReturnPct, &r.WinRatePct, &r.MaxDrawdownPct,
		&r.TradeCount, &r.Wins, &r.Losses, &r.NetPnL, &r.ProfitFactor,
	)
	if err != nil {
		return backtest.Result{}, err
	}
	if start.Valid {
		r.Start = start.Time
	}
	if end.Valid {
		r.End = end.Time
	}
	return r, nil
}

// GetRun returns a stored run including its trade and daily logs.
func (j *SQLite) GetRun(ctx context.Context, runID string) (backtest.Result, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backtest.Result{}, fmt.Errorf("journal: %q: %w", runID, ErrRunNotFound)
		}
		return backtest.Result{}, err
	}

	if r.Trades, err = j.ListTradesByRunID(ctx, runID); err != nil {
		return backtest.Result{}, err
	}
	if r.Daily, err = j.ListDailyByRunID(ctx, runID); err != nil {
		return backtest.Result{}, err
	}
	return r, nil
}

// ListRuns returns the stored runs, newest first, without their logs. An
// empty symbol lists every run.
func (j *SQLite) ListRuns(ctx context.Context, symbol string) ([]backtest.Result, error) {
	q := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY run_id DESC`

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.Result
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTradesByRunID returns the trade log of a run in the order it was written.
func (j *SQLite) ListTradesByRunID(ctx context.Context, runID string) ([]sim.TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, kind, price, quantity, realized_pnl, commission, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sim.TradeRecord
	for rows.Next() {
		var (
			t      sim.TradeRecord
			kind   string
			reason string
			pnl    sql.NullFloat64
		)
		if err := rows.Scan(&t.Date, &kind, &t.Price, &t.Quantity, &pnl, &t.Commission, &reason); err != nil {
			return nil, err
		}
		if t.Kind, err = sim.ParseTradeKind(kind); err != nil {
			return nil, err
		}
		if pnl.Valid {
			v := pnl.Float64
			t.RealizedPnL = &v
		}
		t.Reason = strategies.Reason(reason)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListDailyByRunID returns the daily log of a run in bar order.
func (j *SQLite) ListDailyByRunID(ctx context.Context, runID string) ([]sim.DailyBalance, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, cash, side, entry_price, close, unrealized, net_worth
		FROM daily
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sim.DailyBalance
	for rows.Next() {
		var (
			d     sim.DailyBalance
			side  int
			entry sql.NullFloat64
		)
		if err := rows.Scan(&d.Date, &d.Cash, &side, &entry, &d.Close, &d.Unrealized, &d.NetWorth); err != nil {
			return nil, err
		}
		d.Side = market.Side(side)
		if entry.Valid {
			v := entry.Float64
			d.EntryPrice = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
