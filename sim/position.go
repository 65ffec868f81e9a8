package sim

import (
	"time"

	"github.com/rustyeddy/backtester/market"
)

// Position is the single position a ledger may hold. The zero value is flat.
type Position struct {
	Side       market.Side
	EntryPrice float64
	Quantity   float64
	EntryDate  time.Time
}

func (p Position) IsOpen() bool { return p.Side != market.Flat }

// UnrealizedPnL marks the position at price; a short gains as price falls.
func (p Position) UnrealizedPnL(price float64) float64 {
	if !p.IsOpen() {
		return 0
	}
	return float64(p.Side) * (price - p.EntryPrice) * p.Quantity
}
