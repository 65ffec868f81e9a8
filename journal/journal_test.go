package journal

import (
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
}

func ptr(v float64) *float64 { return &v }

// sampleResult is a long round trip followed by a short that is still open.
func sampleResult() backtest.Result {
	trades := []sim.TradeRecord{
		{Date: day(1), Kind: sim.Buy, Price: 102, Quantity: 10, Commission: 1.02, Reason: strategies.ReasonEntry},
		{Date: day(3), Kind: sim.Sell, Price: 105, Quantity: 10, RealizedPnL: ptr(28.95), Commission: 1.05, Reason: strategies.ReasonSignal},
		{Date: day(4), Kind: sim.Short, Price: 104.5, Quantity: 5, Commission: 0.5225, Reason: strategies.ReasonEntry},
	}
	daily := []sim.DailyBalance{
		{Date: day(1), Cash: 100000, Side: market.Flat, Close: 102, NetWorth: 100000},
		{Date: day(2), Cash: 99998.98, Side: market.Long, EntryPrice: ptr(102), Close: 104, Unrealized: 20, NetWorth: 100018.98},
		{Date: day(3), Cash: 99998.98, Side: market.Long, EntryPrice: ptr(102), Close: 105, Unrealized: 30, NetWorth: 100028.98},
		{Date: day(4), Cash: 100027.93, Side: market.Flat, Close: 104.5, NetWorth: 100027.93},
	}
	r := backtest.Result{
		RunID:          "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		Symbol:         "AAA",
		Strategy:       "momentum",
		InitialCapital: 100000,
		Start:          day(1),
		End:            day(4),
		Trades:         trades,
		Daily:          daily,
	}
	r.Summary = backtest.Summarize(trades, daily, r.InitialCapital)
	return r
}
