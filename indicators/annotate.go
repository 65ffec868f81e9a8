package indicators

import "github.com/rustyeddy/backtester/market"

// Params sets the look-back periods used by Annotate.
type Params struct {
	EMAFast           int     `yaml:"ema_fast" json:"ema_fast"`
	EMASlow           int     `yaml:"ema_slow" json:"ema_slow"`
	MACDFast          int     `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow          int     `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal        int     `yaml:"macd_signal" json:"macd_signal"`
	RSI               int     `yaml:"rsi" json:"rsi"`
	Bollinger         int     `yaml:"bollinger" json:"bollinger"`
	BollingerK        float64 `yaml:"bollinger_k" json:"bollinger_k"`
	ATR               int     `yaml:"atr" json:"atr"`
	ADX               int     `yaml:"adx" json:"adx"`
	Volatility        int     `yaml:"volatility" json:"volatility"`
	PeriodsPerYear    float64 `yaml:"periods_per_year" json:"periods_per_year"`
	VolumeSpike       int     `yaml:"volume_spike" json:"volume_spike"`
	VolumeSpikeFactor float64 `yaml:"volume_spike_factor" json:"volume_spike_factor"`
}

// DefaultParams are the daily-bar settings: EMA 20/50, MACD 12/26/9, RSI 14,
// Bollinger 20x2, ATR/ADX 14, 14-bar volatility and a 1.5x 20-bar volume spike.
func DefaultParams() Params {
	return Params{
		EMAFast:           20,
		EMASlow:           50,
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		RSI:               14,
		Bollinger:         20,
		BollingerK:        2,
		ATR:               14,
		ADX:               14,
		Volatility:        14,
		PeriodsPerYear:    252,
		VolumeSpike:       20,
		VolumeSpikeFactor: 1.5,
	}
}

// Annotator streams bars through every indicator and fills their columns.
// The paper trader keeps one per symbol so live bars are annotated the same
// way as a backtest.
type Annotator struct {
	emaFast, emaSlow *ExponentialMA
	macd             *MACD
	rsi              *RSI
	bb               *Bollinger
	atr              *ATR
	adx              *ADX
	vol              *Volatility
	spike            *VolumeSpike
}

func NewAnnotator(p Params) *Annotator {
	return &Annotator{
		emaFast: NewEMA(p.EMAFast),
		emaSlow: NewEMA(p.EMASlow),
		macd:    NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal),
		rsi:     NewRSI(p.RSI),
		bb:      NewBollinger(p.Bollinger, p.BollingerK),
		atr:     NewATR(p.ATR),
		adx:     NewADX(p.ADX),
		vol:     NewVolatility(p.Volatility, p.PeriodsPerYear),
		spike:   NewVolumeSpike(p.VolumeSpike, p.VolumeSpikeFactor),
	}
}

func (a *Annotator) all() []Indicator {
	return []Indicator{a.emaFast, a.emaSlow, a.macd, a.rsi, a.bb, a.atr, a.adx, a.vol, a.spike}
}

// Warmup is the number of bars before every column is populated.
func (a *Annotator) Warmup() int {
	n := 0
	for _, ind := range a.all() {
		n = max(n, ind.Warmup())
	}
	return n
}

func (a *Annotator) Reset() {
	for _, ind := range a.all() {
		ind.Reset()
	}
}

// Next updates every indicator with b and returns b with its indicator
// columns set. ok is false while any indicator is still warming up; the
// not-yet-ready columns are left NaN.
func (a *Annotator) Next(b market.Bar) (out market.Bar, ok bool) {
	for _, ind := range a.all() {
		ind.Update(b)
	}

	out = b
	ok = true
	set := func(ind Indicator, f market.Field, v float64) {
		if ind.Ready() {
			out.Set(f, v)
		} else {
			ok = false
		}
	}

	set(a.emaFast, market.FieldEMAFast, a.emaFast.Value())
	set(a.emaSlow, market.FieldEMASlow, a.emaSlow.Value())
	set(a.macd, market.FieldMACD, a.macd.Value())
	set(a.macd, market.FieldMACDSignal, a.macd.Signal())
	set(a.rsi, market.FieldRSI, a.rsi.Value())
	set(a.bb, market.FieldBBUpper, a.bb.Upper())
	set(a.bb, market.FieldBBLower, a.bb.Lower())
	set(a.atr, market.FieldATR, a.atr.Value())
	set(a.adx, market.FieldADX, a.adx.Value())
	set(a.vol, market.FieldVolatility, a.vol.Value())
	if a.spike.Ready() {
		out.VolumeSpike = a.spike.Spike()
	} else {
		ok = false
	}
	return out, ok
}

// Annotate computes every indicator column for s and drops the warm-up
// rows, so each returned bar is fully populated. The input is not modified.
func Annotate(s market.Series, p Params) market.Series {
	a := NewAnnotator(p)
	out := market.Series{Symbol: s.Symbol}
	for _, b := range s.Bars {
		if ab, ok := a.Next(b); ok {
			out.Bars = append(out.Bars, ab)
		}
	}
	return out
}
