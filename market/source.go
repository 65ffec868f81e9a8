package market

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source yields the bar series for a symbol.
type Source interface {
	Bars(ctx context.Context, symbol string) (Series, error)
}

// CSVDir reads one CSV file per symbol from Dir. Pattern is a fmt verb
// template for the file name; "%s" (the default) maps AAPL to AAPL.csv.
type CSVDir struct {
	Dir     string
	Pattern string
}

func (d CSVDir) pattern() string {
	if d.Pattern == "" {
		return "%s"
	}
	return d.Pattern
}

// Path returns the file backing symbol.
func (d CSVDir) Path(symbol string) string {
	name := fmt.Sprintf(d.pattern(), symbol)
	if filepath.Ext(name) == "" {
		name += ".csv"
	}
	return filepath.Join(d.Dir, name)
}

func (d CSVDir) Bars(ctx context.Context, symbol string) (Series, error) {
	if err := ctx.Err(); err != nil {
		return Series{}, err
	}
	return LoadCSVFile(d.Path(symbol), symbol)
}

// Symbols lists the symbols with a matching file in Dir, sorted.
func (d CSVDir) Symbols() ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, err
	}

	probe := filepath.Base(d.Path("\x00"))
	prefix, suffix, _ := strings.Cut(probe, "\x00")

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) <= len(prefix)+len(suffix) ||
			!strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		out = append(out, name[len(prefix):len(name)-len(suffix)])
	}
	sort.Strings(out)
	return out, nil
}

// SliceSource serves in-memory series, mostly for tests and replays.
type SliceSource map[string]Series

func (s SliceSource) Bars(ctx context.Context, symbol string) (Series, error) {
	if err := ctx.Err(); err != nil {
		return Series{}, err
	}
	series, ok := s[symbol]
	if !ok {
		return Series{}, fmt.Errorf("market: no bars for %q", symbol)
	}
	if series.Symbol == "" {
		series.Symbol = symbol
	}
	return series, nil
}
