package backtest

import (
	"time"

	"github.com/rustyeddy/backtester/sim"
)

// Summary is the performance of a run, derived only from its logs.
type Summary struct {
	FinalNetWorth  float64
	TotalReturnPct float64
	WinRatePct     float64
	MaxDrawdownPct float64
	TradeCount     int

	Wins   int
	Losses int

	NetPnL       float64
	ProfitFactor float64
}

// Result is a read-only projection of a finished (or aborted) run.
type Result struct {
	RunID          string
	Symbol         string
	Strategy       string
	InitialCapital float64
	Start          time.Time
	End            time.Time

	Trades []sim.TradeRecord
	Daily  []sim.DailyBalance

	Summary
}

// Summarize computes the run statistics from the trade and daily logs.
//
// Final net worth is rebuilt from the trades: initial capital less entry
// commissions plus realized P&L, plus any still-open position marked at the
// last daily close. Wins are exits with positive P&L, everything else that
// exits is a loss. Drawdown is measured against the running peak of daily
// net worth.
func Summarize(trades []sim.TradeRecord, daily []sim.DailyBalance, initialCapital float64) Summary {
	var s Summary

	final := initialCapital
	grossProfit, grossLoss := 0.0, 0.0
	var open *sim.TradeRecord

	for i := range trades {
		t := &trades[i]
		if t.Kind.IsEntry() {
			s.TradeCount++
			final -= t.Commission
			open = t
			continue
		}
		open = nil
		if t.RealizedPnL == nil {
			continue
		}
		pnl := *t.RealizedPnL
		final += pnl
		if pnl > 0 {
			s.Wins++
			grossProfit += pnl
		} else {
			s.Losses++
			grossLoss -= pnl
		}
	}

	if open != nil && len(daily) > 0 {
		side := 1.0
		if open.Kind == sim.Short {
			side = -1
		}
		last := daily[len(daily)-1].Close
		final += side * (last - open.Price) * open.Quantity
	}

	s.FinalNetWorth = final
	s.NetPnL = final - initialCapital
	if initialCapital != 0 {
		s.TotalReturnPct = (final - initialCapital) / initialCapital * 100
	}
	if exits := s.Wins + s.Losses; exits > 0 {
		s.WinRatePct = float64(s.Wins) / float64(exits) * 100
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	}
	s.MaxDrawdownPct = MaxDrawdownPct(daily)
	return s
}

// MaxDrawdownPct is the largest peak-to-trough fall in daily net worth, in
// percent of the peak. Fewer than two points have no drawdown.
func MaxDrawdownPct(daily []sim.DailyBalance) float64 {
	if len(daily) < 2 {
		return 0
	}
	peak := daily[0].NetWorth
	maxDD := 0.0
	for _, d := range daily {
		if d.NetWorth > peak {
			peak = d.NetWorth
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - d.NetWorth) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
