package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
)

// TradeKind is the leg a trade record describes.
type TradeKind string

const (
	Buy   TradeKind = "BUY"
	Sell  TradeKind = "SELL"
	Short TradeKind = "SHORT"
	Cover TradeKind = "COVER"
)

// EntryKind is the kind of record that opens side.
func EntryKind(side market.Side) TradeKind {
	if side == market.Short {
		return Short
	}
	return Buy
}

// ExitKind is the kind of record that closes side.
func ExitKind(side market.Side) TradeKind {
	if side == market.Short {
		return Cover
	}
	return Sell
}

func (k TradeKind) IsEntry() bool { return k == Buy || k == Short }
func (k TradeKind) IsExit() bool  { return k == Sell || k == Cover }

// ParseTradeKind is used when reading journals back.
func ParseTradeKind(s string) (TradeKind, error) {
	switch k := TradeKind(s); k {
	case Buy, Sell, Short, Cover:
		return k, nil
	}
	return "", fmt.Errorf("unknown trade kind %q", s)
}

// TradeRecord is one leg in the append-only trade log. RealizedPnL is nil
// for entries and net of the exit commission for exits.
type TradeRecord struct {
	Date        time.Time
	Kind        TradeKind
	Price       float64
	Quantity    float64
	RealizedPnL *float64
	Commission  float64
	Reason      strategies.Reason
}

// DailyBalance is the mark-to-market state at one bar's close, taken before
// any transition on that bar. EntryPrice is nil when flat.
type DailyBalance struct {
	Date       time.Time
	Cash       float64
	Side       market.Side
	EntryPrice *float64
	Close      float64
	Unrealized float64
	NetWorth   float64
}

// InvariantError is an accounting state that must never happen, such as a
// non-finite balance or an exit with no open position. It ends the run.
type InvariantError struct {
	Date  time.Time
	What  string
	Value float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated at %s: %s (%g)", e.Date.Format(time.RFC3339), e.What, e.Value)
}
