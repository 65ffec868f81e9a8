package backtest

import (
	"time"

	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
)

// Options controls a single run.
type Options struct {
	InitialCapital float64

	// Ledger carries costs, sizing, cooldown and exit execution.
	Ledger sim.Options

	// StopMultiplier and TargetMultiplier place ATR exits; 0 disables.
	StopMultiplier   float64
	TargetMultiplier float64
	MinHolding       int

	// CloseAtEnd closes an open position at the last close with reason
	// END-OF-DATA. Otherwise it is left open and marked to market.
	CloseAtEnd bool

	// StartDate drops earlier bars before the run (walk-forward cut-off).
	StartDate time.Time
}

// DefaultOptions mirror config.Default.
func DefaultOptions() Options {
	return Options{
		InitialCapital: 100000,
		Ledger: sim.Options{
			Sizing: risk.Sizing{
				Mode:           risk.Fixed,
				FixedQuantity:  10,
				RiskFraction:   0.02,
				StopMultiplier: 1.5,
			},
			ExitExecution: sim.NextBarClose,
		},
		StopMultiplier:   1.5,
		TargetMultiplier: 2.5,
	}
}
