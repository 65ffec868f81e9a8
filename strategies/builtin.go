package strategies

import "github.com/rustyeddy/backtester/market"

// TrendBreakout trades a close outside the Bollinger bands when MACD, the
// EMA pair and ADX all agree on the direction and strength of the trend.
type TrendBreakout struct {
	ADXThreshold float64
}

func (TrendBreakout) Name() string { return "trend-breakout" }

func (TrendBreakout) Requires() []market.Field {
	return []market.Field{
		market.FieldMACD,
		market.FieldEMAFast,
		market.FieldEMASlow,
		market.FieldBBUpper,
		market.FieldBBLower,
		market.FieldADX,
	}
}

func (s TrendBreakout) EnterLong(c Context) bool {
	b := c.Bar
	return b.MACD > 0 && b.EMAFast > b.EMASlow && b.Close > b.BBUpper && b.ADX > s.ADXThreshold
}

func (s TrendBreakout) EnterShort(c Context) bool {
	b := c.Bar
	return b.MACD < 0 && b.EMAFast < b.EMASlow && b.Close < b.BBLower && b.ADX > s.ADXThreshold
}

func (s TrendBreakout) ExitLong(c Context) bool {
	b := c.Bar
	return b.MACD < 0 || b.Close < b.BBLower || b.ADX < s.ADXThreshold
}

func (s TrendBreakout) ExitShort(c Context) bool {
	b := c.Bar
	return b.MACD > 0 || b.Close > b.BBUpper || b.ADX < s.ADXThreshold
}

// EMAMomentum is long only: fast EMA above slow, MACD above its signal and
// RSI inside a band that is neither weak nor overbought.
type EMAMomentum struct {
	RSILow  float64
	RSIHigh float64
	RSIExit float64
}

func (EMAMomentum) Name() string { return "ema-momentum" }

func (EMAMomentum) Requires() []market.Field {
	return []market.Field{
		market.FieldEMAFast,
		market.FieldEMASlow,
		market.FieldMACD,
		market.FieldMACDSignal,
		market.FieldRSI,
	}
}

func (s EMAMomentum) EnterLong(c Context) bool {
	b := c.Bar
	return b.EMAFast > b.EMASlow && b.MACD > b.MACDSignal && b.RSI >= s.RSILow && b.RSI <= s.RSIHigh
}

func (EMAMomentum) EnterShort(Context) bool { return false }

func (s EMAMomentum) ExitLong(c Context) bool {
	b := c.Bar
	return b.EMAFast < b.EMASlow || b.MACD < b.MACDSignal || b.RSI > s.RSIExit
}

func (EMAMomentum) ExitShort(Context) bool { return false }

// MACDTrend follows the MACD sign, confirmed by the EMA pair.
type MACDTrend struct{}

func (MACDTrend) Name() string { return "macd-trend" }

func (MACDTrend) Requires() []market.Field {
	return []market.Field{market.FieldMACD, market.FieldEMAFast, market.FieldEMASlow}
}

func (MACDTrend) EnterLong(c Context) bool { return c.Bar.MACD > 0 && c.Bar.EMAFast > c.Bar.EMASlow }
func (MACDTrend) EnterShort(c Context) bool { return c.Bar.MACD < 0 && c.Bar.EMAFast < c.Bar.EMASlow }
func (MACDTrend) ExitLong(c Context) bool { return c.Bar.MACD < 0 }
func (MACDTrend) ExitShort(c Context) bool { return c.Bar.MACD > 0 }

// Momentum is long only and needs no indicators: buy an up close, sell a
// down close.
type Momentum struct{}

func (Momentum) Name() string { return "momentum" }
func (Momentum) Requires() []market.Field { return nil }

func (Momentum) EnterLong(c Context) bool { return c.HasPrev && c.Bar.Close > c.Prev.Close }
func (Momentum) EnterShort(Context) bool { return false }
func (Momentum) ExitLong(c Context) bool { return c.HasPrev && c.Bar.Close < c.Prev.Close }
func (Momentum) ExitShort(Context) bool { return false }
