// Package indicators provides streaming technical indicators over market bars
// and the annotation pass that fills a bar series' indicator columns.
package indicators

import "github.com/rustyeddy/backtester/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to use in paper runs and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value, or 0 before warm-up completes.
	Value() float64
}
