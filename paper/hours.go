package paper

import (
	"fmt"
	"time"
)

// Hours is a daily trading window in a fixed location, Monday to Friday.
type Hours struct {
	Open, Close time.Duration // offset from local midnight
	Loc         *time.Location
}

// ParseHours reads "HH:MM" open and close times.
func ParseHours(open, close string, loc *time.Location) (Hours, error) {
	o, err := clock(open)
	if err != nil {
		return Hours{}, fmt.Errorf("paper: market open: %w", err)
	}
	c, err := clock(close)
	if err != nil {
		return Hours{}, fmt.Errorf("paper: market close: %w", err)
	}
	if c <= o {
		return Hours{}, fmt.Errorf("paper: market close %s is not after open %s", close, open)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Hours{Open: o, Close: c, Loc: loc}, nil
}

func clock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// IsOpen reports whether t falls inside the window. Both ends are inclusive.
func (h Hours) IsOpen(t time.Time) bool {
	loc := h.Loc
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	off := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	return off >= h.Open && off <= h.Close
}

// AlwaysOpen never closes the market.
func AlwaysOpen(time.Time) bool { return true }
