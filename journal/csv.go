package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/sim"
)

var (
	TradeHeader   = []string{"date", "kind", "price", "quantity", "realized_pnl", "commission", "reason"}
	DailyHeader   = []string{"date", "cash_balance", "position", "entry_price", "close", "unrealized_pnl", "net_worth"}
	SummaryHeader = []string{"symbol", "final_value", "return_pct", "total_trades", "win_rate_pct", "profit_trades", "loss_trades", "error"}
)

// CSVJournal writes the trade and daily logs to two CSV files. Every record
// is flushed so a run that aborts still leaves readable files behind.
type CSVJournal struct {
	trades *csv.Writer
	daily  *csv.Writer
	tf, df *os.File
}

var _ Journal = (*CSVJournal)(nil)

func NewCSV(tradesPath, dailyPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	df, err := os.Create(dailyPath)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	j := &CSVJournal{
		trades: csv.NewWriter(tf),
		daily:  csv.NewWriter(df),
		tf:     tf,
		df:     df,
	}
	if err := j.write(j.trades, TradeHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	if err := j.write(j.daily, DailyHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

// Paths returns the trade and daily log paths for symbol under dir.
func Paths(dir, symbol string) (trades, daily string) {
	return filepath.Join(dir, symbol+"_trades.csv"), filepath.Join(dir, symbol+"_daily.csv")
}

// NewCSVDir opens <dir>/<SYMBOL>_trades.csv and <dir>/<SYMBOL>_daily.csv,
// creating dir if needed.
func NewCSVDir(dir, symbol string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tp, dp := Paths(dir, symbol)
	return NewCSV(tp, dp)
}

// WriteResult writes both logs of r under dir.
func WriteResult(dir string, r backtest.Result) error {
	j, err := NewCSVDir(dir, r.Symbol)
	if err != nil {
		return fmt.Errorf("journal: %s: %w", r.Symbol, err)
	}
	if err := Record(j, r); err != nil {
		_ = j.Close()
		return fmt.Errorf("journal: %s: %w", r.Symbol, err)
	}
	return j.Close()
}

func (j *CSVJournal) RecordTrade(t sim.TradeRecord) error {
	pnl := ""
	if t.RealizedPnL != nil {
		pnl = money(*t.RealizedPnL)
	}
	return j.write(j.trades, []string{
		date(t.Date),
		string(t.Kind),
		price(t.Price),
		quantity(t.Quantity),
		pnl,
		money(t.Commission),
		string(t.Reason),
	})
}

func (j *CSVJournal) RecordDaily(d sim.DailyBalance) error {
	entry := ""
	if d.EntryPrice != nil {
		entry = price(*d.EntryPrice)
	}
	return j.write(j.daily, []string{
		date(d.Date),
		money(d.Cash),
		d.Side.String(),
		entry,
		price(d.Close),
		money(d.Unrealized),
		money(d.NetWorth),
	})
}

func (j *CSVJournal) write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	j.daily.Flush()
	return errors.Join(j.trades.Error(), j.daily.Error(), j.tf.Close(), j.df.Close())
}

// SummaryRow is one line of a batch summary. Err is set when the run for
// Symbol failed; the numeric columns then hold whatever was computed before
// the failure.
type SummaryRow struct {
	Symbol       string
	FinalValue   float64
	ReturnPct    float64
	TotalTrades  int
	WinRatePct   float64
	ProfitTrades int
	LossTrades   int
	Err          error
}

// NewSummaryRow projects a result onto a summary row.
func NewSummaryRow(symbol string, r backtest.Result, err error) SummaryRow {
	return SummaryRow{
		Symbol:       symbol,
		FinalValue:   r.FinalNetWorth,
		ReturnPct:    r.TotalReturnPct,
		TotalTrades:  r.TradeCount,
		WinRatePct:   r.WinRatePct,
		ProfitTrades: r.Wins,
		LossTrades:   r.Losses,
		Err:          err,
	}
}

// WriteSummary writes rows to path in the order given.
func WriteSummary(path string, rows []SummaryRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(SummaryHeader); err != nil {
		_ = f.Close()
		return err
	}
	for _, r := range rows {
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		rec := []string{
			r.Symbol,
			money(r.FinalValue),
			money(r.ReturnPct),
			strconv.Itoa(r.TotalTrades),
			money(r.WinRatePct),
			strconv.Itoa(r.ProfitTrades),
			strconv.Itoa(r.LossTrades),
			msg,
		}
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	return errors.Join(w.Error(), f.Close())
}

func date(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

func money(x float64) string    { return fixed(x, 2) }
func price(x float64) string    { return fixed(x, 4) }
func quantity(x float64) string { return fixed(x, -1) }

// fixed renders x with places decimals, or as short as possible when places
// is negative. decimal.NewFromFloat panics on NaN and Inf.
func fixed(x float64, places int32) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	d := decimal.NewFromFloat(x)
	if places < 0 {
		return d.String()
	}
	return d.StringFixed(places)
}
