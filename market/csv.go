package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// columnAliases maps legacy export headers onto the canonical schema.
var columnAliases = map[string]string{
	"time":      "date",
	"datetime":  "date",
	"timestamp": "date",
	"ema_10":    string(FieldEMAFast),
	"ema_20":    string(FieldEMAFast),
	"ema_30":    string(FieldEMASlow),
	"ema_50":    string(FieldEMASlow),
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC3339 and the common spreadsheet/pandas layouts.
// Layouts without an offset are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(path, symbol string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, err
	}
	defer f.Close()
	return LoadCSV(f, symbol)
}

// LoadCSV reads a delimited bar file with a header row:
//
//	date,open,high,low,close[,volume][,macd,macd_signal,rsi,ema_fast,...]
//
// Header names are trimmed and lowercased before lookup, so differently cased
// duplicates collapse onto one column and the last one wins. Missing or
// empty indicator cells load as NaN; missing or bad OHLC cells are a
// *DataValidationError. Blank lines are skipped.
func LoadCSV(r io.Reader, symbol string) (Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Series{}, &DataValidationError{Symbol: symbol, Row: -1, Reason: "empty file"}
	}
	if err != nil {
		return Series{}, fmt.Errorf("%s: read header: %w", symbol, err)
	}

	cols := columnIndex(header)
	for _, req := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := cols[req]; !ok {
			return Series{}, &DataValidationError{Symbol: symbol, Row: -1, Field: req, Reason: "missing column"}
		}
	}

	s := Series{Symbol: symbol}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Series{}, fmt.Errorf("%s: read row %d: %w", symbol, len(s.Bars), err)
		}
		if blankRecord(rec) {
			continue
		}

		b, verr := parseBar(rec, cols)
		if verr != nil {
			verr.Symbol = symbol
			verr.Row = len(s.Bars)
			return Series{}, verr
		}
		s.Bars = append(s.Bars, b)
	}
	return s, nil
}

func normalizeColumn(name string) string {
	n := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	if alias, ok := columnAliases[n]; ok {
		return alias
	}
	return n
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeColumn(h)] = i
	}
	return cols
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(rec []string, cols map[string]int, name string) (string, bool) {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return "", false
	}
	return strings.TrimSpace(rec[i]), true
}

func parseBar(rec []string, cols map[string]int) (Bar, *DataValidationError) {
	ds, _ := cell(rec, cols, "date")
	if ds == "" {
		return Bar{}, &DataValidationError{Field: "date", Reason: "empty"}
	}
	date, err := ParseDate(ds)
	if err != nil {
		return Bar{}, &DataValidationError{Field: "date", Reason: err.Error()}
	}

	var ohlc [4]float64
	for i, name := range []string{"open", "high", "low", "close"} {
		raw, _ := cell(rec, cols, name)
		if raw == "" {
			return Bar{}, &DataValidationError{Field: name, Reason: "empty"}
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bar{}, &DataValidationError{Field: name, Reason: fmt.Sprintf("bad number %q", raw)}
		}
		ohlc[i] = v
	}

	volume := 0.0
	if raw, ok := cell(rec, cols, "volume"); ok && raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bar{}, &DataValidationError{Field: "volume", Reason: fmt.Sprintf("bad number %q", raw)}
		}
		volume = v
	}

	b := NewBar(date, ohlc[0], ohlc[1], ohlc[2], ohlc[3], volume)

	for _, f := range IndicatorFields {
		raw, ok := cell(rec, cols, string(f))
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bar{}, &DataValidationError{Field: string(f), Reason: fmt.Sprintf("bad number %q", raw)}
		}
		b.Set(f, v)
	}

	if raw, ok := cell(rec, cols, "volume_spike"); ok && raw != "" {
		spike, err := parseFlag(raw)
		if err != nil {
			return Bar{}, &DataValidationError{Field: "volume_spike", Reason: err.Error()}
		}
		b.VolumeSpike = spike
	}

	return b, nil
}

func parseFlag(s string) (bool, error) {
	if v, err := strconv.ParseBool(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return false, fmt.Errorf("bad flag %q", s)
	}
	return f != 0, nil
}
