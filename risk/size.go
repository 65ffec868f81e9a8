package risk

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects how an entry quantity is computed.
type Mode string

const (
	// Fixed always trades FixedQuantity.
	Fixed Mode = "fixed"

	// FractionOfCash commits RiskFraction of cash at the entry price.
	FractionOfCash Mode = "risk-fraction-of-cash"

	// PerATRStop sizes so that a stop StopMultiplier*ATR away loses
	// RiskFraction of cash.
	PerATRStop Mode = "risk-per-atr-stop"
)

// ParseMode accepts the config spelling of a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Fixed, FractionOfCash, PerATRStop:
		return m, nil
	case "":
		return Fixed, nil
	}
	return "", fmt.Errorf("unknown quantity mode %q (supported: %s, %s, %s)", s, Fixed, FractionOfCash, PerATRStop)
}

// Sizing holds the position sizing settings.
type Sizing struct {
	Mode           Mode
	FixedQuantity  float64
	RiskFraction   float64 // 0.02
	StopMultiplier float64 // ATR multiple to the stop
}

// Size returns the whole-unit quantity to enter at price. The result may be
// zero (the caller rejects the entry) or non-finite when price or atr is
// degenerate; the caller treats the latter as an invariant violation.
func (s Sizing) Size(cash, price, atr float64) float64 {
	switch s.Mode {
	case FractionOfCash:
		return math.Floor(s.RiskFraction * cash / price)
	case PerATRStop:
		return math.Floor(s.RiskFraction * cash / (s.StopMultiplier * atr))
	default:
		return s.FixedQuantity
	}
}

// NeedsATR reports whether Size reads the ATR.
func (s Sizing) NeedsATR() bool { return s.Mode == PerATRStop }
