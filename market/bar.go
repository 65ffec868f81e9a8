package market

import (
	"math"
	"time"
)

// Side is the direction of the single open position: +1 long, -1 short.
type Side int8

const (
	Short Side = -1
	Flat  Side = 0
	Long  Side = +1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Field names an indicator column carried on a Bar.
type Field string

const (
	FieldMACD       Field = "macd"
	FieldMACDSignal Field = "macd_signal"
	FieldRSI        Field = "rsi"
	FieldEMAFast    Field = "ema_fast"
	FieldEMASlow    Field = "ema_slow"
	FieldBBUpper    Field = "bb_upper"
	FieldBBLower    Field = "bb_lower"
	FieldADX        Field = "adx"
	FieldATR        Field = "atr"
	FieldVolatility Field = "volatility"
)

// IndicatorFields lists every numeric indicator column in schema order.
var IndicatorFields = []Field{
	FieldMACD,
	FieldMACDSignal,
	FieldRSI,
	FieldEMAFast,
	FieldEMASlow,
	FieldBBUpper,
	FieldBBLower,
	FieldADX,
	FieldATR,
	FieldVolatility,
}

// Bar is one OHLCV observation plus the indicator columns produced by the
// annotation step. A missing indicator is carried as NaN.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	MACD        float64
	MACDSignal  float64
	RSI         float64
	EMAFast     float64
	EMASlow     float64
	BBUpper     float64
	BBLower     float64
	ADX         float64
	ATR         float64
	VolumeSpike bool
	Volatility  float64
}

// NewBar returns a bar with every indicator marked missing.
func NewBar(date time.Time, open, high, low, close, volume float64) Bar {
	b := Bar{
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
	for _, f := range IndicatorFields {
		b.Set(f, math.NaN())
	}
	return b
}

// Value returns the named indicator. ok is false for an unknown field.
func (b Bar) Value(f Field) (v float64, ok bool) {
	switch f {
	case FieldMACD:
		return b.MACD, true
	case FieldMACDSignal:
		return b.MACDSignal, true
	case FieldRSI:
		return b.RSI, true
	case FieldEMAFast:
		return b.EMAFast, true
	case FieldEMASlow:
		return b.EMASlow, true
	case FieldBBUpper:
		return b.BBUpper, true
	case FieldBBLower:
		return b.BBLower, true
	case FieldADX:
		return b.ADX, true
	case FieldATR:
		return b.ATR, true
	case FieldVolatility:
		return b.Volatility, true
	}
	return 0, false
}

// Set assigns the named indicator and reports whether the field is known.
func (b *Bar) Set(f Field, v float64) bool {
	switch f {
	case FieldMACD:
		b.MACD = v
	case FieldMACDSignal:
		b.MACDSignal = v
	case FieldRSI:
		b.RSI = v
	case FieldEMAFast:
		b.EMAFast = v
	case FieldEMASlow:
		b.EMASlow = v
	case FieldBBUpper:
		b.BBUpper = v
	case FieldBBLower:
		b.BBLower = v
	case FieldADX:
		b.ADX = v
	case FieldATR:
		b.ATR = v
	case FieldVolatility:
		b.Volatility = v
	default:
		return false
	}
	return true
}

// Missing returns the first of fields that is NaN, infinite or unknown.
func (b Bar) Missing(fields ...Field) (Field, bool) {
	for _, f := range fields {
		v, ok := b.Value(f)
		if !ok || !IsFinite(v) {
			return f, true
		}
	}
	return "", false
}

// IsFinite reports whether x is neither NaN nor ±Inf.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
