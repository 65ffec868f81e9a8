package indicators

import (
	"fmt"

	"github.com/rustyeddy/backtester/market"
)

// MACD tracks EMA(fast)-EMA(slow) and an EMA of that line as its signal.
// Value returns the MACD line; Signal and Histogram the rest.
type MACD struct {
	fast, slow *ExponentialMA
	signal     *ExponentialMA
	line       float64
}

func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fast.period, m.slow.period, m.signal.period)
}

func (m *MACD) Warmup() int { return m.slow.period + m.signal.period - 1 }

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.line = 0
}

func (m *MACD) Update(b market.Bar) {
	m.fast.Add(b.Close)
	m.slow.Add(b.Close)
	if !m.fast.Ready() || !m.slow.Ready() {
		return
	}
	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Add(m.line)
}

func (m *MACD) Ready() bool { return m.signal.Ready() }

func (m *MACD) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.line
}

func (m *MACD) Signal() float64 { return m.signal.Value() }

func (m *MACD) Histogram() float64 {
	if !m.Ready() {
		return 0
	}
	return m.line - m.signal.Value()
}
