package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// TradeRow is the Parquet schema for the trade log.
type TradeRow struct {
	RunID       string   `parquet:"run_id"`
	Symbol      string   `parquet:"symbol"`
	Date        int64    `parquet:"date,timestamp(millisecond)"` // Unix ms
	Kind        string   `parquet:"kind"`
	Price       float64  `parquet:"price"`
	Quantity    float64  `parquet:"quantity"`
	RealizedPnL *float64 `parquet:"realized_pnl,optional"`
	Commission  float64  `parquet:"commission"`
	Reason      string   `parquet:"reason"`
}

// DailyRow is the Parquet schema for the daily log.
type DailyRow struct {
	RunID      string   `parquet:"run_id"`
	Symbol     string   `parquet:"symbol"`
	Date       int64    `parquet:"date,timestamp(millisecond)"` // Unix ms
	Cash       float64  `parquet:"cash_balance"`
	Side       int32    `parquet:"position"`
	EntryPrice *float64 `parquet:"entry_price,optional"`
	Close      float64  `parquet:"close"`
	Unrealized float64  `parquet:"unrealized_pnl"`
	NetWorth   float64  `parquet:"net_worth"`
}

// ParquetPaths returns the Parquet trade and daily paths for symbol under dir.
func ParquetPaths(dir, symbol string) (trades, daily string) {
	return filepath.Join(dir, symbol+"_trades.parquet"), filepath.Join(dir, symbol+"_daily.parquet")
}

// WriteParquet writes both logs of r to
//
//	<dir>/<SYMBOL>_trades.parquet
//	<dir>/<SYMBOL>_daily.parquet
func WriteParquet(dir string, r backtest.Result) error {
	tp, dp := ParquetPaths(dir, r.Symbol)

	trades := make([]TradeRow, len(r.Trades))
	for i, t := range r.Trades {
		trades[i] = TradeRow{
			RunID:       r.RunID,
			Symbol:      r.Symbol,
			Date:        t.Date.UnixMilli(),
			Kind:        string(t.Kind),
			Price:       t.Price,
			Quantity:    t.Quantity,
			RealizedPnL: t.RealizedPnL,
			Commission:  t.Commission,
			Reason:      string(t.Reason),
		}
	}
	if err := writeParquetFile(tp, trades); err != nil {
		return fmt.Errorf("writing trades for %s: %w", r.Symbol, err)
	}

	daily := make([]DailyRow, len(r.Daily))
	for i, d := range r.Daily {
		daily[i] = DailyRow{
			RunID:      r.RunID,
			Symbol:     r.Symbol,
			Date:       d.Date.UnixMilli(),
			Cash:       d.Cash,
			Side:       int32(d.Side),
			EntryPrice: d.EntryPrice,
			Close:      d.Close,
			Unrealized: d.Unrealized,
			NetWorth:   d.NetWorth,
		}
	}
	if err := writeParquetFile(dp, daily); err != nil {
		return fmt.Errorf("writing daily for %s: %w", r.Symbol, err)
	}
	return nil
}

// ReadTradesParquet reads a trade log written by WriteParquet.
func ReadTradesParquet(path string) ([]sim.TradeRecord, error) {
	rows, err := parquet.ReadFile[TradeRow](path)
	if err != nil {
		return nil, err
	}
	out := make([]sim.TradeRecord, len(rows))
	for i, r := range rows {
		kind, err := sim.ParseTradeKind(r.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i, err)
		}
		out[i] = sim.TradeRecord{
			Date:        time.UnixMilli(r.Date).UTC(),
			Kind:        kind,
			Price:       r.Price,
			Quantity:    r.Quantity,
			RealizedPnL: r.RealizedPnL,
			Commission:  r.Commission,
			Reason:      strategies.Reason(r.Reason),
		}
	}
	return out, nil
}

// ReadDailyParquet reads a daily log written by WriteParquet.
func ReadDailyParquet(path string) ([]sim.DailyBalance, error) {
	rows, err := parquet.ReadFile[DailyRow](path)
	if err != nil {
		return nil, err
	}
	out := make([]sim.DailyBalance, len(rows))
	for i, r := range rows {
		out[i] = sim.DailyBalance{
			Date:       time.UnixMilli(r.Date).UTC(),
			Cash:       r.Cash,
			Side:       market.Side(r.Side),
			EntryPrice: r.EntryPrice,
			Close:      r.Close,
			Unrealized: r.Unrealized,
			NetWorth:   r.NetWorth,
		}
	}
	return out, nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
