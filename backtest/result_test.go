package backtest

import (
	"bytes"
	"testing"

	"github.com/rustyeddy/backtester/sim"
	"github.com/stretchr/testify/assert"
)

func pnl(v float64) *float64 { return &v }

func balances(nw ...float64) []sim.DailyBalance {
	out := make([]sim.DailyBalance, len(nw))
	for i, v := range nw {
		out[i] = sim.DailyBalance{Date: day(i), Cash: v, NetWorth: v, Close: 100}
	}
	return out
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		trades []sim.TradeRecord
		daily  []sim.DailyBalance
		want   Summary
	}{
		{
			name:  "no trades",
			daily: balances(1000),
			want:  Summary{FinalNetWorth: 1000},
		},
		{
			name: "win and loss with commissions",
			trades: []sim.TradeRecord{
				{Kind: sim.Buy, Price: 10, Quantity: 10, Commission: 1},
				{Kind: sim.Sell, Price: 12, Quantity: 10, RealizedPnL: pnl(19), Commission: 1},
				{Kind: sim.Short, Price: 12, Quantity: 10, Commission: 1},
				{Kind: sim.Cover, Price: 13, Quantity: 10, RealizedPnL: pnl(-11), Commission: 1},
			},
			daily: balances(1000, 1010, 990, 1006),
			want: Summary{
				FinalNetWorth:  1006,
				TotalReturnPct: 0.6,
				WinRatePct:     50,
				MaxDrawdownPct: 20.0 / 1010 * 100,
				TradeCount:     2,
				Wins:           1,
				Losses:         1,
				NetPnL:         6,
				ProfitFactor:   19.0 / 11,
			},
		},
		{
			name: "breakeven counts as a loss",
			trades: []sim.TradeRecord{
				{Kind: sim.Buy, Price: 10, Quantity: 1},
				{Kind: sim.Sell, Price: 10, Quantity: 1, RealizedPnL: pnl(0)},
			},
			daily: balances(1000, 1000),
			want:  Summary{FinalNetWorth: 1000, TradeCount: 1, Losses: 1},
		},
		{
			name: "open short marked at last close",
			trades: []sim.TradeRecord{
				{Kind: sim.Short, Price: 110, Quantity: 2, Commission: 0.5},
			},
			daily: balances(1000, 1000),
			want: Summary{
				FinalNetWorth:  1000 - 0.5 + 20,
				TotalReturnPct: 1.95,
				TradeCount:     1,
				NetPnL:         19.5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Summarize(tt.trades, tt.daily, 1000)
			assert.InDelta(t, tt.want.FinalNetWorth, got.FinalNetWorth, 1e-9)
			assert.InDelta(t, tt.want.TotalReturnPct, got.TotalReturnPct, 1e-9)
			assert.InDelta(t, tt.want.WinRatePct, got.WinRatePct, 1e-9)
			assert.InDelta(t, tt.want.MaxDrawdownPct, got.MaxDrawdownPct, 1e-9)
			assert.InDelta(t, tt.want.NetPnL, got.NetPnL, 1e-9)
			assert.InDelta(t, tt.want.ProfitFactor, got.ProfitFactor, 1e-9)
			assert.Equal(t, tt.want.TradeCount, got.TradeCount)
			assert.Equal(t, tt.want.Wins, got.Wins)
			assert.Equal(t, tt.want.Losses, got.Losses)

			// same input, same output
			assert.Equal(t, got, Summarize(tt.trades, tt.daily, 1000))
		})
	}
}

func TestMaxDrawdownPct(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, MaxDrawdownPct(nil))
	assert.Equal(t, 0.0, MaxDrawdownPct(balances(500)))
	assert.Equal(t, 0.0, MaxDrawdownPct(balances(100, 110, 120)))
	assert.InDelta(t, 50.0, MaxDrawdownPct(balances(100, 200, 100, 150)), 1e-9)
	// a non-positive peak is skipped rather than dividing by it
	assert.Equal(t, 0.0, MaxDrawdownPct(balances(0, -10, -20)))
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	r := Result{
		RunID:          "01J0000000000000000000000",
		Symbol:         "AAA",
		Strategy:       "momentum",
		InitialCapital: 100000,
		Start:          day(0),
		End:            day(3),
		Daily:          balances(1, 2, 3),
		Summary: Summary{
			FinalNetWorth:  100030,
			TotalReturnPct: 0.03,
			TradeCount:     1,
			Wins:           1,
			WinRatePct:     100,
			NetPnL:         30,
			MaxDrawdownPct: 0.04,
		},
	}

	var buf bytes.Buffer
	PrintResult(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "Symbol:        AAA\n")
	assert.Contains(t, out, "Start:         2024-01-01\n")
	assert.Contains(t, out, "Bars:          3\n")
	assert.Contains(t, out, "End Balance:   100030.00\n")
	assert.Contains(t, out, "Win Rate:      100.00%\n")
	assert.Contains(t, out, "Max Drawdown:  0.04%\n")
	assert.NotContains(t, out, "Profit Factor")
}
