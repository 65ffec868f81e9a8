package indicators

import (
	"fmt"

	"github.com/rustyeddy/backtester/market"
)

// RSI is a streaming Relative Strength Index with Wilder smoothing.
type RSI struct {
	period   int
	prev     float64
	havePrev bool
	count    int
	avgGain  float64
	avgLoss  float64
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI(%d)", r.period) }
func (r *RSI) Warmup() int { return r.period + 1 }
func (r *RSI) Reset() { *r = RSI{period: r.period} }
func (r *RSI) Ready() bool { return r.count >= r.period }

func (r *RSI) Update(b market.Bar) {
	if !r.havePrev {
		r.prev = b.Close
		r.havePrev = true
		return
	}

	change := b.Close - r.prev
	r.prev = b.Close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	p := float64(r.period)
	if r.count < r.period {
		r.avgGain += gain
		r.avgLoss += loss
		r.count++
		if r.count == r.period {
			r.avgGain /= p
			r.avgLoss /= p
		}
		return
	}
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
