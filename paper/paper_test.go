package paper

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/broker"
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

func options() backtest.Options {
	return backtest.Options{
		InitialCapital: 100000,
		Ledger: sim.Options{
			Sizing:        risk.Sizing{Mode: risk.Fixed, FixedQuantity: 10},
			ExitExecution: sim.NextBarClose,
		},
	}
}

type funcFeed func(ctx context.Context, symbol string) (market.Bar, error)

func (f funcFeed) Latest(ctx context.Context, symbol string) (market.Bar, error) {
	return f(ctx, symbol)
}

func TestReplayFeed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := NewReplayFeed(closes("AAA", 1, 2))

	b, err := f.Latest(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, 1.0, b.Close)
	b, err = f.Latest(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, 2.0, b.Close)

	_, err = f.Latest(ctx, "AAA")
	assert.ErrorIs(t, err, ErrExhausted)

	_, err = f.Latest(ctx, "ZZZ")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestTraderMatchesBacktest(t *testing.T) {
	t.Parallel()

	series := closes("AAA", 100, 102, 98, 105)
	out := t.TempDir()
	brk := broker.NewPaper()

	tr := &Trader{
		Symbols:  []string{"AAA"},
		Feed:     NewReplayFeed(series),
		Broker:   brk,
		Rules:    strategies.Momentum{},
		Options:  options(),
		Interval: time.Millisecond,
		OutDir:   out,
	}
	results, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	want, err := backtest.NewEngine(strategies.Momentum{}, options(), nil).Run(context.Background(), series)
	require.NoError(t, err)

	got := results[0]
	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, want.Trades, got.Trades)
	assert.Equal(t, want.Daily, got.Daily)
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, 100030.0, got.FinalNetWorth)

	fills := brk.Fills()
	require.Len(t, fills, 2)
	assert.Equal(t, sim.Buy, fills[0].Kind)
	assert.Equal(t, 102.0, fills[0].Price)
	assert.Equal(t, sim.Sell, fills[1].Kind)
	assert.Equal(t, 105.0, fills[1].Price)

	tp, dp := journal.Paths(out, "AAA")
	data, err := os.ReadFile(tp)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-01-02,BUY,102.0000,10,,0.00,ENTRY\n")
	assert.Contains(t, string(data), "2024-01-04,SELL,105.0000,10,30.00,0.00,SIGNAL\n")

	data, err = os.ReadFile(dp)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-01-04,100000.00,LONG,102.0000,105.0000,30.00,100030.00\n")
}

func TestTraderHonorsStartDate(t *testing.T) {
	t.Parallel()

	series := closes("AAA", 100, 102, 98, 105, 103)
	opts := options()
	opts.StartDate = day(2)

	tr := &Trader{
		Symbols:  []string{"AAA"},
		Feed:     NewReplayFeed(series),
		Rules:    strategies.Momentum{},
		Options:  opts,
		Interval: time.Millisecond,
	}
	results, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	want, err := backtest.NewEngine(strategies.Momentum{}, opts, nil).Run(context.Background(), series)
	require.NoError(t, err)

	got := results[0]
	assert.Equal(t, want.Trades, got.Trades)
	assert.Equal(t, want.Daily, got.Daily)
	require.NotEmpty(t, got.Daily)
	assert.Equal(t, day(3), got.Daily[0].Date)
	for _, rec := range got.Trades {
		assert.False(t, rec.Date.Before(day(2)))
	}
}

func TestTraderStopsWhenMarketClosed(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	calls := 0
	tr := &Trader{
		Symbols: []string{"AAA"},
		Feed: funcFeed(func(context.Context, string) (market.Bar, error) {
			calls++
			return market.Bar{}, nil
		}),
		Rules:    strategies.Momentum{},
		Options:  options(),
		Interval: time.Millisecond,
		IsOpen:   func(time.Time) bool { return false },
		OutDir:   out,
	}
	results, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Empty(t, results[0].Trades)
	assert.Equal(t, 100000.0, results[0].FinalNetWorth)

	tp, _ := journal.Paths(out, "AAA")
	data, err := os.ReadFile(tp)
	require.NoError(t, err)
	assert.Equal(t, "date,kind,price,quantity,realized_pnl,commission,reason\n", string(data))
}

func TestTraderCancelClosesAtEnd(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	n := 0
	feed := funcFeed(func(context.Context, string) (market.Bar, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 5 {
			cancel()
		}
		c := 100 + float64(n)
		return market.NewBar(day(n), c, c, c, c, 1000), nil
	})

	opts := options()
	opts.CloseAtEnd = true
	brk := broker.NewPaper()
	tr := &Trader{
		Symbols:  []string{"AAA"},
		Feed:     feed,
		Broker:   brk,
		Rules:    strategies.Momentum{},
		Options:  opts,
		Interval: time.Millisecond,
	}
	results, err := tr.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)

	trades := results[0].Trades
	require.Len(t, trades, 2)
	assert.Equal(t, sim.Buy, trades[0].Kind)
	assert.Equal(t, strategies.ReasonEndOfData, trades[1].Reason)
	assert.Equal(t, 105.0, trades[1].Price)
	assert.Len(t, brk.Fills(), 2)
}

func TestTraderRetriesFeedErrors(t *testing.T) {
	t.Parallel()

	series := closes("AAA", 100, 102, 98, 105)
	replay := NewReplayFeed(series)
	failed := false
	feed := funcFeed(func(ctx context.Context, symbol string) (market.Bar, error) {
		if !failed {
			failed = true
			return market.Bar{}, errors.New("timeout")
		}
		return replay.Latest(ctx, symbol)
	})

	tr := &Trader{
		Symbols:  []string{"AAA"},
		Feed:     feed,
		Rules:    strategies.Momentum{},
		Options:  options(),
		Interval: time.Millisecond,
	}
	results, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100030.0, results[0].FinalNetWorth)
}

func TestTraderSymbolFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	// the RSI column is missing from every bar of BBB
	good := closes("AAA", 100, 102, 98, 105)
	bad := closes("BBB", 100, 102, 98, 105)
	for i := range good.Bars {
		for _, b := range []*market.Bar{&good.Bars[i], &bad.Bars[i]} {
			b.EMAFast, b.EMASlow = 2, 1
			b.MACD, b.MACDSignal = 1, 0
		}
		good.Bars[i].RSI = 50
	}

	rules, err := strategies.StrategyByName("ema-momentum", strategies.DefaultParams())
	require.NoError(t, err)
	tr := &Trader{
		Symbols:  []string{"AAA", "BBB"},
		Feed:     NewReplayFeed(good, bad),
		Rules:    rules,
		Options:  options(),
		Interval: time.Millisecond,
	}
	results, err := tr.Run(context.Background())

	var mie *strategies.MissingIndicatorError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, market.FieldRSI, mie.Field)
	assert.ErrorContains(t, err, "BBB")

	require.Len(t, results, 2)
	assert.Len(t, results[0].Daily, 3)
	assert.Len(t, results[1].Daily, 1)
}

func TestTraderAnnotatesFeed(t *testing.T) {
	t.Parallel()

	cs := make([]float64, 30)
	for i := range cs {
		cs[i] = 100 + float64(i%5)
	}
	p := indicators.DefaultParams()
	p.EMAFast, p.EMASlow = 3, 5
	p.MACDFast, p.MACDSlow, p.MACDSignal = 3, 6, 2
	p.RSI, p.Bollinger, p.ATR, p.ADX, p.Volatility, p.VolumeSpike = 3, 3, 3, 3, 3, 3

	series := closes("AAA", cs...)
	tr := &Trader{
		Symbols:    []string{"AAA"},
		Feed:       NewReplayFeed(series),
		Rules:      strategies.MACDTrend{},
		Options:    options(),
		Indicators: &p,
		Interval:   time.Millisecond,
	}
	results, err := tr.Run(context.Background())
	require.NoError(t, err)

	annotated := indicators.Annotate(series, p)
	require.NotZero(t, annotated.Len())
	assert.Len(t, results[0].Daily, annotated.Len()-1)
}

func TestTraderRequiresRulesAndFeed(t *testing.T) {
	t.Parallel()

	_, err := (&Trader{Feed: NewReplayFeed(), Interval: time.Second}).Run(context.Background())
	assert.ErrorContains(t, err, "Rules are required")

	_, err = (&Trader{Rules: strategies.Momentum{}, Interval: time.Second}).Run(context.Background())
	assert.ErrorContains(t, err, "Feed is required")

	_, err = (&Trader{Rules: strategies.Momentum{}, Feed: NewReplayFeed()}).Run(context.Background())
	assert.ErrorContains(t, err, "interval must be positive")
}
