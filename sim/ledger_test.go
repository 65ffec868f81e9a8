package sim

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func closeBar(i int, close float64) market.Bar {
	b := market.NewBar(day(i), close, close, close, close, 0)
	b.ATR = 2
	return b
}

func fixed(qty float64) Options {
	return Options{
		Sizing:        risk.Sizing{Mode: risk.Fixed, FixedQuantity: qty},
		ExitExecution: SameBarClose,
	}
}

func TestLedgerLongRoundTrip(t *testing.T) {
	t.Parallel()

	l := NewLedger(100000, fixed(10), nil)

	ok, err := l.Enter(closeBar(1, 102), market.Long)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, market.Long, l.Pos.Side)
	assert.Equal(t, 102.0, l.Pos.EntryPrice)
	assert.Equal(t, 100000.0, l.Cash)

	d, err := l.Mark(closeBar(2, 98))
	require.NoError(t, err)
	assert.Equal(t, -40.0, d.Unrealized)
	assert.Equal(t, 99960.0, d.NetWorth)
	require.NotNil(t, d.EntryPrice)
	assert.Equal(t, 102.0, *d.EntryPrice)

	rec, err := l.Exit(day(3), 105, strategies.ReasonSignal)
	require.NoError(t, err)
	assert.Equal(t, Sell, rec.Kind)
	require.NotNil(t, rec.RealizedPnL)
	assert.Equal(t, 30.0, *rec.RealizedPnL)
	assert.Equal(t, 100030.0, l.Cash)
	assert.False(t, l.Pos.IsOpen())

	require.Len(t, l.Trades, 2)
	assert.Equal(t, Buy, l.Trades[0].Kind)
	assert.Nil(t, l.Trades[0].RealizedPnL)
}

func TestLedgerShortMarkAndStop(t *testing.T) {
	t.Parallel()

	l := NewLedger(100000, fixed(5), nil)
	_, err := l.Enter(closeBar(1, 100), market.Short)
	require.NoError(t, err)
	assert.Equal(t, Short, l.Trades[0].Kind)

	d, err := l.Mark(closeBar(2, 97))
	require.NoError(t, err)
	assert.Equal(t, 15.0, d.Unrealized)

	rec, err := l.Exit(day(3), 103, strategies.ReasonStopLoss)
	require.NoError(t, err)
	assert.Equal(t, Cover, rec.Kind)
	assert.Equal(t, (100.0-103.0)*5, *rec.RealizedPnL)
	assert.Equal(t, strategies.ReasonStopLoss, rec.Reason)
}

func TestLedgerCostsAndSlippage(t *testing.T) {
	t.Parallel()

	opts := fixed(10)
	opts.CommissionRate = 0.001
	opts.SlippageRate = 0.01
	l := NewLedger(10000, opts, nil)

	_, err := l.Enter(closeBar(1, 100), market.Long)
	require.NoError(t, err)
	assert.InDelta(t, 101.0, l.Pos.EntryPrice, 1e-9)
	entryFee := 10 * 101.0 * 0.001
	assert.InDelta(t, 10000-entryFee, l.Cash, 1e-9)
	assert.InDelta(t, entryFee, l.Trades[0].Commission, 1e-9)

	rec, err := l.Exit(day(2), 110, strategies.ReasonSignal)
	require.NoError(t, err)
	exitPx := 110 * 0.99
	assert.InDelta(t, exitPx, rec.Price, 1e-9)
	exitFee := 10 * exitPx * 0.001
	assert.InDelta(t, (exitPx-101)*10-exitFee, *rec.RealizedPnL, 1e-9)
	assert.InDelta(t, 10000-entryFee+(exitPx-101)*10-exitFee, l.Cash, 1e-9)

	// short legs slip the other way
	_, err = l.Enter(closeBar(3, 100), market.Short)
	require.NoError(t, err)
	assert.InDelta(t, 99.0, l.Pos.EntryPrice, 1e-9)
	rec, err = l.Exit(day(4), 90, strategies.ReasonSignal)
	require.NoError(t, err)
	assert.InDelta(t, 90.9, rec.Price, 1e-9)
}

func TestLedgerRejectsUnaffordableEntry(t *testing.T) {
	t.Parallel()

	l := NewLedger(500, fixed(10), nil)
	ok, err := l.Enter(closeBar(1, 100), market.Long)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, l.Pos.IsOpen())
	assert.Empty(t, l.Trades)
	assert.Equal(t, 500.0, l.Cash)

	zero := NewLedger(500, Options{Sizing: risk.Sizing{Mode: risk.FractionOfCash, RiskFraction: 0.1}}, nil)
	ok, err = zero.Enter(closeBar(1, 100), market.Long)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerInvariants(t *testing.T) {
	t.Parallel()

	t.Run("non-finite quantity", func(t *testing.T) {
		t.Parallel()

		// a subnormal price overflows the cash fraction
		l := NewLedger(1000, Options{Sizing: risk.Sizing{Mode: risk.FractionOfCash, RiskFraction: 0.5}}, nil)
		_, err := l.Enter(closeBar(1, 1e-320), market.Long)
		var ie *InvariantError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "quantity is not finite", ie.What)
		assert.True(t, math.IsInf(ie.Value, 1))
	})

	t.Run("non-positive entry price", func(t *testing.T) {
		t.Parallel()

		for _, px := range []float64{0, -5} {
			l := NewLedger(1000, fixed(10), nil)
			ok, err := l.Enter(closeBar(1, px), market.Long)
			var ie *InvariantError
			require.ErrorAs(t, err, &ie)
			assert.False(t, ok)
			assert.Equal(t, "entry price is not positive", ie.What)
			assert.Empty(t, l.Trades)
			assert.False(t, l.Pos.IsOpen())
		}
	})

	t.Run("non-positive exit price", func(t *testing.T) {
		t.Parallel()

		l := NewLedger(1000, fixed(1), nil)
		_, err := l.Enter(closeBar(1, 10), market.Long)
		require.NoError(t, err)
		_, err = l.Exit(day(2), -1, strategies.ReasonSignal)
		assert.EqualError(t, err, "invariant violated at 2024-01-03T00:00:00Z: exit price is not positive (-1)")
		assert.True(t, l.Pos.IsOpen())
		assert.Len(t, l.Trades, 1)
	})

	t.Run("exit while flat", func(t *testing.T) {
		t.Parallel()

		l := NewLedger(1000, fixed(1), nil)
		_, err := l.Exit(day(1), 10, strategies.ReasonSignal)
		assert.EqualError(t, err, "invariant violated at 2024-01-02T00:00:00Z: exit while flat (10)")
	})

	t.Run("entry while open", func(t *testing.T) {
		t.Parallel()

		l := NewLedger(1000, fixed(1), nil)
		_, err := l.Enter(closeBar(1, 10), market.Long)
		require.NoError(t, err)
		err = l.Apply(closeBar(2, 10), strategies.Decision{Action: strategies.EnterShort})
		var ie *InvariantError
		require.ErrorAs(t, err, &ie)
	})

	t.Run("exit of the wrong side", func(t *testing.T) {
		t.Parallel()

		l := NewLedger(1000, fixed(1), nil)
		_, err := l.Enter(closeBar(1, 10), market.Long)
		require.NoError(t, err)
		err = l.Apply(closeBar(2, 10), strategies.Decision{Action: strategies.ExitShort})
		var ie *InvariantError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "EXIT_SHORT while LONG", ie.What)
	})

	t.Run("non-finite mark", func(t *testing.T) {
		t.Parallel()

		l := NewLedger(1000, fixed(1), nil)
		_, err := l.Enter(closeBar(1, 10), market.Long)
		require.NoError(t, err)
		_, err = l.Mark(closeBar(2, math.Inf(1)))
		var ie *InvariantError
		require.ErrorAs(t, err, &ie)
		assert.Empty(t, l.Daily)
	})
}

func TestLedgerApplyExitExecution(t *testing.T) {
	t.Parallel()

	exit := strategies.Decision{Action: strategies.ExitLong, Reason: strategies.ReasonSignal}

	t.Run("same bar", func(t *testing.T) {
		t.Parallel()

		l := NewLedger(1000, fixed(1), nil)
		_, err := l.Enter(closeBar(1, 10), market.Long)
		require.NoError(t, err)
		require.NoError(t, l.Apply(closeBar(2, 12), exit))
		assert.False(t, l.Pos.IsOpen())
		assert.Equal(t, 12.0, l.Trades[1].Price)
	})

	t.Run("next bar", func(t *testing.T) {
		t.Parallel()

		opts := fixed(1)
		opts.ExitExecution = NextBarClose
		l := NewLedger(1000, opts, nil)
		_, err := l.Enter(closeBar(1, 10), market.Long)
		require.NoError(t, err)

		require.NoError(t, l.Apply(closeBar(2, 12), exit))
		assert.True(t, l.Pos.IsOpen())
		require.NotNil(t, l.Pending)

		filled, err := l.FillPending(closeBar(3, 13))
		require.NoError(t, err)
		assert.True(t, filled)
		assert.Nil(t, l.Pending)
		assert.Equal(t, 13.0, l.Trades[1].Price)
		assert.Equal(t, day(3), l.Trades[1].Date)

		filled, err = l.FillPending(closeBar(4, 14))
		require.NoError(t, err)
		assert.False(t, filled)
	})

	t.Run("protective exit fills at trigger in next bar mode", func(t *testing.T) {
		t.Parallel()

		opts := fixed(1)
		opts.ExitExecution = NextBarClose
		l := NewLedger(1000, opts, nil)
		_, err := l.Enter(closeBar(1, 10), market.Long)
		require.NoError(t, err)

		stop := strategies.Decision{Action: strategies.ExitLong, Reason: strategies.ReasonStopLoss, Price: 9}
		require.NoError(t, l.Apply(closeBar(2, 8.5), stop))
		assert.False(t, l.Pos.IsOpen())
		assert.Equal(t, 9.0, l.Trades[1].Price)
		assert.Equal(t, -1.0, *l.Trades[1].RealizedPnL)
	})

	t.Run("stop at zero is not deferred", func(t *testing.T) {
		t.Parallel()

		// entry 3, atr 2, multiplier 1.5 puts the stop at 0
		opts := fixed(1)
		opts.ExitExecution = NextBarClose
		l := NewLedger(1000, opts, nil)
		_, err := l.Enter(closeBar(1, 3), market.Long)
		require.NoError(t, err)

		stop := strategies.Decision{Action: strategies.ExitLong, Reason: strategies.ReasonStopLoss, Price: 0}
		err = l.Apply(closeBar(2, 1), stop)
		var ie *InvariantError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "exit price is not positive", ie.What)
		assert.Nil(t, l.Pending)
	})

	t.Run("signal exit with a price still fills at the close", func(t *testing.T) {
		t.Parallel()

		l := NewLedger(1000, fixed(1), nil)
		_, err := l.Enter(closeBar(1, 10), market.Long)
		require.NoError(t, err)

		d := strategies.Decision{Action: strategies.ExitLong, Reason: strategies.ReasonSignal, Price: 7}
		require.NoError(t, l.Apply(closeBar(2, 12), d))
		assert.Equal(t, 12.0, l.Trades[1].Price)
	})
}

func TestLedgerCountersAndCooldown(t *testing.T) {
	t.Parallel()

	opts := fixed(1)
	opts.CooldownPeriod = 2
	l := NewLedger(1000, opts, nil)

	_, err := l.Enter(closeBar(1, 10), market.Long)
	require.NoError(t, err)
	l.Tick()

	hold := strategies.Decision{Action: strategies.Hold}
	require.NoError(t, l.Apply(closeBar(2, 10), hold))
	l.Tick()
	require.NoError(t, l.Apply(closeBar(3, 10), hold))
	l.Tick()
	assert.Equal(t, 2, l.Holding)

	_, err = l.Exit(day(4), 10, strategies.ReasonSignal)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Holding)
	assert.Equal(t, 2, l.Cooldown)

	// the exit bar does not count
	l.Tick()
	assert.Equal(t, 2, l.Cooldown)
	l.Tick()
	assert.Equal(t, 1, l.Cooldown)
	l.Tick()
	assert.Equal(t, 0, l.Cooldown)
	l.Tick()
	assert.Equal(t, 0, l.Cooldown)

	// flat holds do not accumulate
	require.NoError(t, l.Apply(closeBar(9, 10), hold))
	assert.Equal(t, 0, l.Holding)
}

func TestParseExitExecution(t *testing.T) {
	t.Parallel()

	x, err := ParseExitExecution("Same-Bar-Close")
	require.NoError(t, err)
	assert.Equal(t, SameBarClose, x)

	x, err = ParseExitExecution("")
	require.NoError(t, err)
	assert.Equal(t, NextBarClose, x)

	_, err = ParseExitExecution("open")
	assert.Error(t, err)
}

func TestTradeKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Buy, EntryKind(market.Long))
	assert.Equal(t, Short, EntryKind(market.Short))
	assert.Equal(t, Sell, ExitKind(market.Long))
	assert.Equal(t, Cover, ExitKind(market.Short))
	assert.True(t, Short.IsEntry())
	assert.True(t, Cover.IsExit())

	k, err := ParseTradeKind("COVER")
	require.NoError(t, err)
	assert.Equal(t, Cover, k)
	_, err = ParseTradeKind("HODL")
	assert.Error(t, err)
}
