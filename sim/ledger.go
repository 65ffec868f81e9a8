package sim

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/strategies"
)

// ExitExecution selects when a signal exit is filled. Stop-loss and
// take-profit exits always fill at their trigger on the bar that hit them.
type ExitExecution string

const (
	SameBarClose ExitExecution = "same-bar-close"
	NextBarClose ExitExecution = "next-bar-close"
)

func ParseExitExecution(s string) (ExitExecution, error) {
	switch x := ExitExecution(strings.ToLower(strings.TrimSpace(s))); x {
	case SameBarClose, NextBarClose:
		return x, nil
	case "":
		return NextBarClose, nil
	}
	return "", fmt.Errorf("unknown exit execution %q (supported: %s, %s)", s, SameBarClose, NextBarClose)
}

// Options configure fills and counters.
type Options struct {
	CommissionRate float64
	SlippageRate   float64
	Sizing         risk.Sizing
	CooldownPeriod int
	ExitExecution  ExitExecution
}

// Ledger is the position state machine for one run. It is not safe for
// concurrent use; each run owns its own.
//
// Accounting is P&L style: Cash holds realized equity (entry commissions
// are paid from it when the position opens) and the open position adds its
// unrealized P&L on top. Net worth is always Cash + unrealized.
type Ledger struct {
	Cash     float64
	Pos      Position
	Cooldown int
	Holding  int

	// Pending is a signal exit waiting for the next bar's close.
	Pending *strategies.Decision

	Trades []TradeRecord
	Daily  []DailyBalance

	opts        Options
	cooldownSet bool
	log         *zap.Logger
}

func NewLedger(initialCash float64, opts Options, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ExitExecution == "" {
		opts.ExitExecution = NextBarClose
	}
	return &Ledger{
		Cash: initialCash,
		opts: opts,
		log:  log,
	}
}

// NetWorth is cash plus the open position marked at price.
func (l *Ledger) NetWorth(price float64) float64 {
	return l.Cash + l.Pos.UnrealizedPnL(price)
}

// Mark appends the DailyBalance for b.
func (l *Ledger) Mark(b market.Bar) (DailyBalance, error) {
	unrealized := l.Pos.UnrealizedPnL(b.Close)
	d := DailyBalance{
		Date:       b.Date,
		Cash:       l.Cash,
		Side:       l.Pos.Side,
		Close:      b.Close,
		Unrealized: unrealized,
		NetWorth:   l.Cash + unrealized,
	}
	if l.Pos.IsOpen() {
		entry := l.Pos.EntryPrice
		d.EntryPrice = &entry
	}
	if !market.IsFinite(d.NetWorth) {
		return d, &InvariantError{Date: b.Date, What: "net worth is not finite", Value: d.NetWorth}
	}
	l.Daily = append(l.Daily, d)
	return d, nil
}

// fillPrice moves price against the trader: buys pay up, sells give up.
func (l *Ledger) fillPrice(price float64, side market.Side, entering bool) float64 {
	buying := (side == market.Long) == entering
	if buying {
		return price * (1 + l.opts.SlippageRate)
	}
	return price * (1 - l.opts.SlippageRate)
}

// Enter opens side at b's close. It reports false, with no error, when
// sizing or cash rules refuse the entry; the ledger stays flat.
func (l *Ledger) Enter(b market.Bar, side market.Side) (bool, error) {
	if l.Pos.IsOpen() {
		return false, &InvariantError{Date: b.Date, What: "entry while " + l.Pos.Side.String(), Value: l.Pos.Quantity}
	}
	if side == market.Flat {
		return false, &InvariantError{Date: b.Date, What: "entry without a side", Value: 0}
	}

	price := l.fillPrice(b.Close, side, true)
	if !market.IsFinite(price) {
		return false, &InvariantError{Date: b.Date, What: "entry price is not finite", Value: price}
	}
	if price <= 0 {
		return false, &InvariantError{Date: b.Date, What: "entry price is not positive", Value: price}
	}

	qty := l.opts.Sizing.Size(l.Cash, price, b.ATR)
	if !market.IsFinite(qty) {
		return false, &InvariantError{Date: b.Date, What: "quantity is not finite", Value: qty}
	}

	if v := risk.CheckEntry(qty, price, l.opts.CommissionRate, l.Cash); v != nil {
		l.log.Debug("entry rejected, holding",
			zap.Time("date", b.Date),
			zap.Stringer("side", side),
			zap.String("code", v.Code),
			zap.String("reason", v.Msg),
		)
		return false, nil
	}

	commission := qty * price * l.opts.CommissionRate
	l.Cash -= commission
	l.Pos = Position{Side: side, EntryPrice: price, Quantity: qty, EntryDate: b.Date}
	l.Holding = 0
	l.Trades = append(l.Trades, TradeRecord{
		Date:       b.Date,
		Kind:       EntryKind(side),
		Price:      price,
		Quantity:   qty,
		Commission: commission,
		Reason:     strategies.ReasonEntry,
	})

	if !market.IsFinite(l.Cash) {
		return true, &InvariantError{Date: b.Date, What: "cash is not finite", Value: l.Cash}
	}
	return true, nil
}

// Exit closes the open position at price (before slippage) and starts the
// cooldown.
func (l *Ledger) Exit(date time.Time, price float64, reason strategies.Reason) (TradeRecord, error) {
	if !l.Pos.IsOpen() {
		return TradeRecord{}, &InvariantError{Date: date, What: "exit while flat", Value: price}
	}

	side := l.Pos.Side
	fill := l.fillPrice(price, side, false)
	if !market.IsFinite(fill) {
		return TradeRecord{}, &InvariantError{Date: date, What: "exit price is not finite", Value: fill}
	}
	if fill <= 0 {
		return TradeRecord{}, &InvariantError{Date: date, What: "exit price is not positive", Value: fill}
	}

	commission := l.Pos.Quantity * fill * l.opts.CommissionRate
	realized := l.Pos.UnrealizedPnL(fill) - commission
	l.Cash += realized

	rec := TradeRecord{
		Date:        date,
		Kind:        ExitKind(side),
		Price:       fill,
		Quantity:    l.Pos.Quantity,
		RealizedPnL: &realized,
		Commission:  commission,
		Reason:      reason,
	}
	l.Trades = append(l.Trades, rec)

	l.Pos = Position{}
	l.Pending = nil
	l.Holding = 0
	l.Cooldown = l.opts.CooldownPeriod
	l.cooldownSet = true

	if !market.IsFinite(l.Cash) {
		return rec, &InvariantError{Date: date, What: "cash is not finite", Value: l.Cash}
	}
	return rec, nil
}

// FillPending fills a deferred signal exit at b's close. It reports whether
// there was one; the caller takes no other decision on that bar.
func (l *Ledger) FillPending(b market.Bar) (bool, error) {
	if l.Pending == nil {
		return false, nil
	}
	_, err := l.Exit(b.Date, b.Close, l.Pending.Reason)
	return true, err
}

// Apply performs d on bar b.
func (l *Ledger) Apply(b market.Bar, d strategies.Decision) error {
	switch {
	case d.Action == strategies.Hold:
		if l.Pos.IsOpen() {
			l.Holding++
		}
		return nil

	case d.Action.IsEntry():
		_, err := l.Enter(b, d.Action.Side())
		return err

	case d.Action.IsExit():
		if d.Action.Side() != l.Pos.Side {
			return &InvariantError{Date: b.Date, What: d.Action.String() + " while " + l.Pos.Side.String(), Value: b.Close}
		}
		if d.Reason.AtTrigger() {
			_, err := l.Exit(b.Date, d.Price, d.Reason)
			return err
		}
		if l.opts.ExitExecution == NextBarClose {
			pending := d
			l.Pending = &pending
			return nil
		}
		_, err := l.Exit(b.Date, b.Close, d.Reason)
		return err
	}
	return fmt.Errorf("sim: unknown action %s", d.Action)
}

// Tick advances the cooldown at the end of a bar. The bar that started the
// cooldown does not count against it.
func (l *Ledger) Tick() {
	if l.cooldownSet {
		l.cooldownSet = false
		return
	}
	if l.Cooldown > 0 {
		l.Cooldown--
	}
}
