package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rustyeddy/backtester/market"
)

// ErrExhausted is returned by a Feed that will never produce another bar
// for the symbol.
var ErrExhausted = errors.New("feed exhausted")

// Feed returns the most recent completed bar for a symbol. Returning the
// same bar twice is allowed; the trader only acts on newer dates.
type Feed interface {
	Latest(ctx context.Context, symbol string) (market.Bar, error)
}

// ReplayFeed hands out the bars of a recorded series one per call, so a
// historical file can drive the live loop.
type ReplayFeed struct {
	mu     sync.Mutex
	series map[string]market.Series
	next   map[string]int
}

var _ Feed = (*ReplayFeed)(nil)

func NewReplayFeed(series ...market.Series) *ReplayFeed {
	f := &ReplayFeed{
		series: make(map[string]market.Series, len(series)),
		next:   make(map[string]int, len(series)),
	}
	for _, s := range series {
		f.series[s.Symbol] = s
	}
	return f
}

func (f *ReplayFeed) Latest(ctx context.Context, symbol string) (market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return market.Bar{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.series[symbol]
	if !ok {
		return market.Bar{}, fmt.Errorf("paper: no replay series for %q", symbol)
	}
	i := f.next[symbol]
	if i >= len(s.Bars) {
		return market.Bar{}, ErrExhausted
	}
	f.next[symbol] = i + 1
	return s.Bars[i], nil
}
