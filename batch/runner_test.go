package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func closes(symbol string, cs ...float64) market.Series {
	s := market.Series{Symbol: symbol}
	for i, c := range cs {
		s.Bars = append(s.Bars, market.NewBar(day(i), c, c, c, c, 1000))
	}
	return s
}

func engine(rules strategies.Rules) *backtest.Engine {
	return backtest.NewEngine(rules, backtest.Options{
		InitialCapital: 100000,
		Ledger: sim.Options{
			Sizing:        risk.Sizing{Mode: risk.Fixed, FixedQuantity: 10},
			ExitExecution: sim.NextBarClose,
		},
	}, nil)
}

func source() market.SliceSource {
	bad := closes("CCC", 100, 101, 102)
	bad.Bars[2].Date = day(0)
	return market.SliceSource{
		"AAA": closes("AAA", 100, 102, 98, 105),
		"CCC": bad,
		"DDD": closes("DDD", 50, 49, 48, 47),
	}
}

func TestRunnerRows(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	r := &Runner{Engine: engine(strategies.Momentum{}), Source: source(), Workers: 2, OutDir: out}

	rows, err := r.Run(context.Background(), []string{"DDD", "AAA", "BBB", "CCC"})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"DDD", "AAA", "BBB", "CCC"},
		[]string{rows[0].Symbol, rows[1].Symbol, rows[2].Symbol, rows[3].Symbol})

	assert.NoError(t, rows[0].Err)
	assert.Equal(t, 100000.0, rows[0].FinalValue)
	assert.Equal(t, 0, rows[0].TotalTrades)

	assert.NoError(t, rows[1].Err)
	assert.Equal(t, 100030.0, rows[1].FinalValue)
	assert.Equal(t, 1, rows[1].TotalTrades)
	assert.Equal(t, 1, rows[1].ProfitTrades)

	assert.ErrorContains(t, rows[2].Err, "no bars")

	var dve *market.DataValidationError
	assert.ErrorAs(t, rows[3].Err, &dve)

	for _, sym := range []string{"AAA", "DDD"} {
		tp, dp := journal.Paths(out, sym)
		assert.FileExists(t, tp)
		assert.FileExists(t, dp)
	}
	for _, sym := range []string{"BBB", "CCC"} {
		tp, _ := journal.Paths(out, sym)
		assert.NoFileExists(t, tp)
	}
}

func TestRunnerWorkerCountDoesNotChangeRows(t *testing.T) {
	t.Parallel()

	symbols := []string{"AAA", "BBB", "CCC", "DDD"}
	var prev []journal.SummaryRow
	for _, w := range []int{1, 3, 0} {
		r := &Runner{Engine: engine(strategies.Momentum{}), Source: source(), Workers: w}
		rows, err := r.Run(context.Background(), symbols)
		require.NoError(t, err)

		if prev != nil {
			for i := range rows {
				assert.Equal(t, prev[i].Symbol, rows[i].Symbol)
				assert.Equal(t, prev[i].FinalValue, rows[i].FinalValue)
				assert.Equal(t, prev[i].TotalTrades, rows[i].TotalTrades)
				assert.Equal(t, prev[i].Err == nil, rows[i].Err == nil)
			}
		}
		prev = rows
	}
}

func TestRunnerWritesPartialLogs(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	rules, err := strategies.StrategyByName("ema-momentum", strategies.DefaultParams())
	require.NoError(t, err)
	r := &Runner{Engine: engine(rules), Source: source(), OutDir: out, Parquet: true}

	rows, err := r.Run(context.Background(), []string{"AAA"})
	require.NoError(t, err)

	var mie *strategies.MissingIndicatorError
	require.ErrorAs(t, rows[0].Err, &mie)

	_, dp := journal.Paths(out, "AAA")
	data, err := os.ReadFile(dp)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-01-02,100000.00,FLAT")

	pt, _ := journal.ParquetPaths(out, "AAA")
	assert.FileExists(t, pt)
}

func TestRunnerAnnotatesAndRecords(t *testing.T) {
	t.Parallel()

	cs := make([]float64, 40)
	for i := range cs {
		cs[i] = 100 + float64(i%7) - float64(i%3)
	}
	src := market.SliceSource{"AAA": closes("AAA", cs...)}

	p := indicators.DefaultParams()
	p.EMAFast, p.EMASlow = 3, 5
	p.MACDFast, p.MACDSlow, p.MACDSignal = 3, 6, 2
	p.RSI, p.Bollinger, p.ATR, p.ADX, p.Volatility, p.VolumeSpike = 3, 3, 3, 3, 3, 3

	store, err := journal.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rules, err := strategies.StrategyByName("macd-trend", strategies.DefaultParams())
	require.NoError(t, err)
	r := &Runner{Engine: engine(rules), Source: src, Indicators: &p, Store: store}

	rows, err := r.Run(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	require.NoError(t, rows[0].Err)

	runs, err := store.ListRuns(context.Background(), "AAA")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rows[0].FinalValue, runs[0].FinalNetWorth)
	assert.Equal(t, rows[0].TotalTrades, runs[0].TradeCount)

	// warm-up rows were dropped before the run
	full, err := store.GetRun(context.Background(), runs[0].RunID)
	require.NoError(t, err)
	assert.Less(t, len(full.Daily), len(cs)-1)
}

func TestRunnerCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Engine: engine(strategies.Momentum{}), Source: source()}
	rows, err := r.Run(ctx, []string{"AAA", "DDD"})
	assert.True(t, errors.Is(err, context.Canceled))

	// unscheduled symbols still get a row naming them
	require.Len(t, rows, 2)
	for i, sym := range []string{"AAA", "DDD"} {
		assert.Equal(t, sym, rows[i].Symbol)
		assert.ErrorIs(t, rows[i].Err, context.Canceled)
	}
}
