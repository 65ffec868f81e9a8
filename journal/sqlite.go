package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/backtester/backtest"
)

// SQLite keeps finished runs, keyed by run ID, with their full logs.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// RecordRun stores r and both of its logs in one transaction. Recording
// the same run twice is an error.
func (j *SQLite) RecordRun(ctx context.Context, r backtest.Result) (err error) {
	if r.RunID == "" {
		return errors.New("journal: run has no ID")
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, symbol, strategy, initial_capital, start_date, end_date,
		 final_net_worth, return_pct, win_rate_pct, max_drawdown_pct,
		 trade_count, wins, losses, net_pnl, profit_factor, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Symbol, r.Strategy, r.InitialCapital, nullTime(r.Start), nullTime(r.End),
		r.FinalNetWorth, r.TotalReturnPct, r.WinRatePct, r.MaxDrawdownPct,
		r.TradeCount, r.Wins, r.Losses, r.NetPnL, r.ProfitFactor, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("journal: insert run %s: %w", r.RunID, err)
	}

	trades, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(run_id, seq, date, kind, price, quantity, realized_pnl, commission, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer trades.Close()

	for i, t := range r.Trades {
		var pnl sql.NullFloat64
		if t.RealizedPnL != nil {
			pnl = sql.NullFloat64{Float64: *t.RealizedPnL, Valid: true}
		}
		if _, err = trades.ExecContext(ctx,
			r.RunID, i, t.Date.UTC(), string(t.Kind), t.Price, t.Quantity, pnl, t.Commission, string(t.Reason),
		); err != nil {
			return fmt.Errorf("journal: insert trade %d: %w", i, err)
		}
	}

	daily, err := tx.PrepareContext(ctx, `
		INSERT INTO daily
		(run_id, seq, date, cash, side, entry_price, close, unrealized, net_worth)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer daily.Close()

	for i, d := range r.Daily {
		var entry sql.NullFloat64
		if d.EntryPrice != nil {
			entry = sql.NullFloat64{Float64: *d.EntryPrice, Valid: true}
		}
		if _, err = daily.ExecContext(ctx,
			r.RunID, i, d.Date.UTC(), int(d.Side), d.Cash, entry, d.Close, d.Unrealized, d.NetWorth,
		); err != nil {
			return fmt.Errorf("journal: insert daily %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
