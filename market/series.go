package market

import "time"

// Series is an ordered bar sequence for one instrument.
type Series struct {
	Symbol string
	Bars   []Bar
}

func (s Series) Len() int { return len(s.Bars) }

// Last returns the final bar, if any.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Validate checks the invariants every run depends on: at least one bar,
// strictly increasing dates, finite OHLCV and positive prices. Indicator completeness is
// checked lazily by the signal evaluator, only for the fields it needs.
func (s Series) Validate() error {
	if len(s.Bars) == 0 {
		return &DataValidationError{Symbol: s.Symbol, Row: -1, Reason: "no bars"}
	}

	for i, b := range s.Bars {
		if b.Date.IsZero() {
			return &DataValidationError{Symbol: s.Symbol, Row: i, Field: "date", Reason: "missing date"}
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return &DataValidationError{
				Symbol: s.Symbol,
				Row:    i,
				Field:  "date",
				Reason: "dates must be strictly increasing (" + s.Bars[i-1].Date.Format(time.RFC3339) + " >= " + b.Date.Format(time.RFC3339) + ")",
			}
		}
		for _, c := range []struct {
			name string
			v    float64
		}{
			{"open", b.Open},
			{"high", b.High},
			{"low", b.Low},
			{"close", b.Close},
			{"volume", b.Volume},
		} {
			if !IsFinite(c.v) {
				return &DataValidationError{Symbol: s.Symbol, Row: i, Field: c.name, Reason: "not a finite number"}
			}
			if c.name != "volume" && c.v <= 0 {
				return &DataValidationError{Symbol: s.Symbol, Row: i, Field: c.name, Reason: "price must be positive"}
			}
		}
	}
	return nil
}

// From returns the bars dated on or after t. A zero t returns s unchanged.
// Used for walk-forward runs that only trade after a training cut-off.
func (s Series) From(t time.Time) Series {
	if t.IsZero() {
		return s
	}
	for i, b := range s.Bars {
		if !b.Date.Before(t) {
			return Series{Symbol: s.Symbol, Bars: s.Bars[i:]}
		}
	}
	return Series{Symbol: s.Symbol}
}
