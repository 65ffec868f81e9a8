package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

// window is a fixed-size rolling sample with mean and sample deviation.
type window struct {
	size int
	vals []float64
}

func (w *window) add(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.size {
		w.vals = w.vals[1:]
	}
}

func (w *window) full() bool { return len(w.vals) >= w.size }

func (w *window) mean() float64 {
	if len(w.vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range w.vals {
		sum += v
	}
	return sum / float64(len(w.vals))
}

// stddev uses the n-1 denominator.
func (w *window) stddev() float64 {
	n := len(w.vals)
	if n < 2 {
		return 0
	}
	m := w.mean()
	ss := 0.0
	for _, v := range w.vals {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(n-1))
}

// Bollinger bands around an SMA of the close. Value returns the middle band.
type Bollinger struct {
	period int
	k      float64
	w      window
}

func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, w: window{size: period}}
}

func (b *Bollinger) Name() string { return fmt.Sprintf("BB(%d,%g)", b.period, b.k) }
func (b *Bollinger) Warmup() int { return b.period }
func (b *Bollinger) Reset() { b.w.vals = b.w.vals[:0] }

func (b *Bollinger) Update(bar market.Bar) { b.w.add(bar.Close) }
func (b *Bollinger) Ready() bool { return b.w.full() }

func (b *Bollinger) Value() float64 {
	if !b.Ready() {
		return 0
	}
	return b.w.mean()
}

func (b *Bollinger) Upper() float64 {
	if !b.Ready() {
		return 0
	}
	return b.w.mean() + b.k*b.w.stddev()
}

func (b *Bollinger) Lower() float64 {
	if !b.Ready() {
		return 0
	}
	return b.w.mean() - b.k*b.w.stddev()
}

// Volatility is the annualized rolling deviation of close-to-close returns,
// in percent.
type Volatility struct {
	period  int
	periods float64
	prev    float64
	seen    bool
	w       window
}

// NewVolatility annualizes with periodsPerYear (252 for daily bars).
func NewVolatility(period int, periodsPerYear float64) *Volatility {
	return &Volatility{period: period, periods: periodsPerYear, w: window{size: period}}
}

func (v *Volatility) Name() string { return fmt.Sprintf("VOL(%d)", v.period) }
func (v *Volatility) Warmup() int { return v.period + 1 }

func (v *Volatility) Reset() {
	v.w.vals = v.w.vals[:0]
	v.seen = false
}

func (v *Volatility) Update(b market.Bar) {
	if v.seen && v.prev != 0 {
		v.w.add(b.Close/v.prev - 1)
	}
	v.prev = b.Close
	v.seen = true
}

func (v *Volatility) Ready() bool { return v.w.full() }

func (v *Volatility) Value() float64 {
	if !v.Ready() {
		return 0
	}
	return v.w.stddev() * math.Sqrt(v.periods) * 100
}

// VolumeSpike flags a bar whose volume exceeds factor times the rolling
// average volume, the current bar included.
type VolumeSpike struct {
	avg    *SimpleMA
	factor float64
	last   float64
}

func NewVolumeSpike(period int, factor float64) *VolumeSpike {
	return &VolumeSpike{avg: NewMA(period), factor: factor}
}

func (s *VolumeSpike) Name() string { return fmt.Sprintf("VSPIKE(%d,%g)", s.avg.period, s.factor) }
func (s *VolumeSpike) Warmup() int { return s.avg.period }
func (s *VolumeSpike) Reset() { s.avg.Reset(); s.last = 0 }
func (s *VolumeSpike) Ready() bool { return s.avg.Ready() }

func (s *VolumeSpike) Update(b market.Bar) {
	s.avg.Add(b.Volume)
	s.last = b.Volume
}

// Value is 1 on a spike, else 0.
func (s *VolumeSpike) Value() float64 {
	if s.Spike() {
		return 1
	}
	return 0
}

func (s *VolumeSpike) Spike() bool {
	return s.Ready() && s.last > s.factor*s.avg.Value()
}
