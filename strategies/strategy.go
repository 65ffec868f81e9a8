package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/backtester/market"
)

// Context is what a rule sees: the bar, the one before it and the entry
// price of the open position (0 when flat).
type Context struct {
	Bar        market.Bar
	Prev       market.Bar
	HasPrev    bool
	EntryPrice float64
}

// Rules are a strategy's entry and exit predicates. Cooldown, holding
// period and ATR stops are handled by the Evaluator and must not be
// repeated here.
type Rules interface {
	Name() string

	// Requires lists the indicator fields the predicates read. The
	// evaluator fails the bar if any of them is missing.
	Requires() []market.Field

	EnterLong(c Context) bool
	EnterShort(c Context) bool
	ExitLong(c Context) bool
	ExitShort(c Context) bool
}

// Params are the thresholds shared by the built-in rules.
type Params struct {
	ADXThreshold float64 `yaml:"adx_threshold" json:"adx_threshold"`
	RSILow       float64 `yaml:"rsi_low" json:"rsi_low"`
	RSIHigh      float64 `yaml:"rsi_high" json:"rsi_high"`
	RSIExit      float64 `yaml:"rsi_exit" json:"rsi_exit"`
}

func DefaultParams() Params {
	return Params{
		ADXThreshold: 20,
		RSILow:       40,
		RSIHigh:      60,
		RSIExit:      70,
	}
}

// Factory builds Rules from thresholds.
type Factory func(p Params) Rules

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register adds a strategy under name. Names are case-insensitive.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(name)] = f
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[normalize(name)]
	return f, ok
}

// List returns the registered strategy names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StrategyByName builds the named strategy's rules.
func StrategyByName(name string, p Params) (Rules, error) {
	f, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(List(), ", "))
	}
	return f(p), nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func init() {
	Register("trend-breakout", func(p Params) Rules { return TrendBreakout{ADXThreshold: p.ADXThreshold} })
	Register("ema-momentum", func(p Params) Rules {
		return EMAMomentum{RSILow: p.RSILow, RSIHigh: p.RSIHigh, RSIExit: p.RSIExit}
	})
	Register("macd-trend", func(Params) Rules { return MACDTrend{} })
	Register("momentum", func(Params) Rules { return Momentum{} })
}
