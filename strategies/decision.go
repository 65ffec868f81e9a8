package strategies

import (
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/market"
)

// Action is what the evaluator wants done on a bar.
type Action int

const (
	Hold Action = iota
	EnterLong
	EnterShort
	ExitLong
	ExitShort
)

func (a Action) String() string {
	switch a {
	case Hold:
		return "HOLD"
	case EnterLong:
		return "ENTER_LONG"
	case EnterShort:
		return "ENTER_SHORT"
	case ExitLong:
		return "EXIT_LONG"
	case ExitShort:
		return "EXIT_SHORT"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// IsEntry reports whether a opens a position.
func (a Action) IsEntry() bool { return a == EnterLong || a == EnterShort }

// IsExit reports whether a closes a position.
func (a Action) IsExit() bool { return a == ExitLong || a == ExitShort }

// Side is the position side an entry opens or an exit closes.
func (a Action) Side() market.Side {
	switch a {
	case EnterLong, ExitLong:
		return market.Long
	case EnterShort, ExitShort:
		return market.Short
	}
	return market.Flat
}

// Reason tags why a trade record was written.
type Reason string

const (
	ReasonEntry      Reason = "ENTRY"
	ReasonSignal     Reason = "SIGNAL"
	ReasonStopLoss   Reason = "STOP-LOSS"
	ReasonTakeProfit Reason = "TAKE-PROFIT"
	ReasonEndOfData  Reason = "END-OF-DATA"
)

// AtTrigger reports whether exits tagged r fill at the decision's trigger
// price rather than at a close.
func (r Reason) AtTrigger() bool {
	return r == ReasonStopLoss || r == ReasonTakeProfit
}

// Decision is the evaluator's output for one bar. Price is the trigger
// level when Reason.AtTrigger() and is ignored otherwise.
type Decision struct {
	Action Action
	Reason Reason
	Price  float64
}

func (d Decision) String() string {
	if d.Reason.AtTrigger() {
		return fmt.Sprintf("%s(%s @ %g)", d.Action, d.Reason, d.Price)
	}
	if d.Reason != "" {
		return fmt.Sprintf("%s(%s)", d.Action, d.Reason)
	}
	return d.Action.String()
}

// MissingIndicatorError means a field the evaluator needed was NaN or
// infinite on the bar being evaluated.
type MissingIndicatorError struct {
	Field market.Field
	Date  time.Time
}

func (e *MissingIndicatorError) Error() string {
	return fmt.Sprintf("missing indicator %s at %s", e.Field, e.Date.Format(time.RFC3339))
}
