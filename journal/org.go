package journal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/sim"
)

// Param is one row of the parameter table in a report.
type Param struct {
	Name  string
	Value string
}

// Report is a run plus the context an org-mode write-up needs.
type Report struct {
	backtest.Result

	Created time.Time
	Dataset string
	Params  []Param

	Notes       []string
	NextActions []string
}

// RoundTrip pairs an entry with the exit that closed it. Exit is the zero
// record while the position is still open.
type RoundTrip struct {
	Entry sim.TradeRecord
	Exit  sim.TradeRecord
	Open  bool
}

// PnL is the realized P&L of the exit leg, or 0 for an open trip.
func (rt RoundTrip) PnL() float64 {
	if rt.Open || rt.Exit.RealizedPnL == nil {
		return 0
	}
	return *rt.Exit.RealizedPnL
}

// RoundTrips pairs up the trade log of the report.
func (rep Report) RoundTrips() []RoundTrip {
	var (
		out  []RoundTrip
		open *sim.TradeRecord
	)
	for i := range rep.Trades {
		t := rep.Trades[i]
		switch {
		case t.Kind.IsEntry():
			open = &t
		case t.Kind.IsExit() && open != nil:
			out = append(out, RoundTrip{Entry: *open, Exit: t})
			open = nil
		}
	}
	if open != nil {
		out = append(out, RoundTrip{Entry: *open, Open: true})
	}
	return out
}

var orgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"day":   func(t time.Time) string { return t.Format(time.DateOnly) },
	"trade": FormatTradeOrg,
}

var orgTemplate = template.Must(template.New("backtest").Funcs(orgFuncs).Parse(OrgTemplate))

// WriteOrg renders rep as an org-mode document.
func WriteOrg(w io.Writer, rep Report) error {
	return orgTemplate.Execute(w, rep)
}

// ExportOrg renders rep to path.
func ExportOrg(path string, rep Report) error {
	buf := new(bytes.Buffer)
	if err := WriteOrg(buf, rep); err != nil {
		return fmt.Errorf("journal: render %s: %w", rep.RunID, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// FormatTradeOrg renders one round trip as an org heading with a
// PROPERTIES drawer and empty review sections.
func FormatTradeOrg(rt RoundTrip) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*** %s %s\n", rt.Entry.Kind, rt.Entry.Date.Format(time.DateOnly))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":KIND:        %s\n", rt.Entry.Kind)
	fmt.Fprintf(&b, ":QUANTITY:    %s\n", quantity(rt.Entry.Quantity))
	fmt.Fprintf(&b, ":ENTRY_DATE:  %s\n", date(rt.Entry.Date))
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", price(rt.Entry.Price))
	if rt.Open {
		b.WriteString(":STATUS:      OPEN\n")
	} else {
		fmt.Fprintf(&b, ":EXIT_DATE:   %s\n", date(rt.Exit.Date))
		fmt.Fprintf(&b, ":EXIT_PRICE:  %s\n", price(rt.Exit.Price))
		fmt.Fprintf(&b, ":REALIZED_PL: %s\n", money(rt.PnL()))
		fmt.Fprintf(&b, ":REASON:      %s\n", rt.Exit.Reason)
	}
	b.WriteString(":END:\n")
	b.WriteString("**** Review\n- \n")
	return b.String()
}

const OrgTemplate = `* BACKTEST: {{.Strategy}} {{.Symbol}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{day .Start}}
:END_DATE:    {{day .End}}
:START_BAL:   {{printf "%.2f" .InitialCapital}}
:END_BAL:     {{printf "%.2f" .FinalNetWorth}}
:NET_PL:      {{printf "%.2f" .NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .TotalReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDrawdownPct}}
:TRADES:      {{.TradeCount}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRatePct}}
:PROFIT_FAC:  {{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}(no losses){{end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:
{{- if .Params }}

** Strategy Parameters
| Parameter | Value |
|-----------+-------|
{{- range .Params }}
| {{.Name}} | {{.Value}} |
{{- end }}
{{- end }}

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPnL}}*
- Return:           *{{printf "%.2f" .TotalReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDrawdownPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRatePct}}%*
- Profit Factor:    *{{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}(no losses){{end}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.TradeCount}} |
{{- with .RoundTrips }}

** Trades
{{- range . }}
{{ trade . }}
{{- end }}
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}

{{- if .NextActions }}

** Notes / Next Actions
{{- range .NextActions }}
- [ ] {{.}}
{{- end }}
{{- end }}
`
