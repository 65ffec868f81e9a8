package market

import "fmt"

// DataValidationError reports a bar sequence that failed schema, completeness
// or monotonicity checks. It is raised before a run starts.
type DataValidationError struct {
	Symbol string
	Row    int // 0-based bar index, -1 when not tied to a row
	Field  string
	Reason string
}

func (e *DataValidationError) Error() string {
	sym := e.Symbol
	if sym == "" {
		sym = "series"
	}
	switch {
	case e.Row >= 0 && e.Field != "":
		return fmt.Sprintf("%s: invalid data at row %d (%s): %s", sym, e.Row, e.Field, e.Reason)
	case e.Row >= 0:
		return fmt.Sprintf("%s: invalid data at row %d: %s", sym, e.Row, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s: invalid data (%s): %s", sym, e.Field, e.Reason)
	default:
		return fmt.Sprintf("%s: invalid data: %s", sym, e.Reason)
	}
}
