package backtest

import (
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// Session owns the evaluator and ledger for one instrument and advances
// them one bar at a time. Engine.Run drives it over a whole series; the
// paper trader drives it as bars arrive.
type Session struct {
	Symbol string

	eval    *strategies.Evaluator
	ledger  *sim.Ledger
	opts    Options
	log     *zap.Logger
	prev    market.Bar
	hasPrev bool
	start   time.Time
	last    market.Bar
	steps   int
}

func NewSession(symbol string, rules strategies.Rules, opts Options, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("symbol", symbol))
	return &Session{
		Symbol: symbol,
		eval:   strategies.NewEvaluator(rules, opts.StopMultiplier, opts.TargetMultiplier, opts.MinHolding),
		ledger: sim.NewLedger(opts.InitialCapital, opts.Ledger, log),
		opts:   opts,
		log:    log,
	}
}

// Ledger exposes the session's state. Callers must not mutate it.
func (s *Session) Ledger() *sim.Ledger { return s.ledger }

// Step processes the next bar. The first bar a session sees only becomes
// the reference for the next one. For every later bar it
//
//  1. marks the position and appends a daily balance,
//  2. fills a pending exit, or else evaluates and applies a decision,
//  3. advances the cooldown.
//
// Any error is fatal to the session.
func (s *Session) Step(b market.Bar) error {
	if !s.hasPrev {
		s.prev, s.hasPrev = b, true
		s.start = b.Date
		s.last = b
		return nil
	}

	if _, err := s.ledger.Mark(b); err != nil {
		return err
	}

	filled, err := s.ledger.FillPending(b)
	if err != nil {
		return err
	}
	if filled {
		s.logTrade()
	} else {
		if err := s.decide(b); err != nil {
			return err
		}
	}

	s.ledger.Tick()
	s.prev = b
	s.last = b
	s.steps++
	return nil
}

func (s *Session) decide(b market.Bar) error {
	l := s.ledger
	d, err := s.eval.Evaluate(strategies.Input{
		Bar:               b,
		Prev:              s.prev,
		HasPrev:           s.hasPrev,
		Side:              l.Pos.Side,
		EntryPrice:        l.Pos.EntryPrice,
		CooldownRemaining: l.Cooldown,
		HoldingPeriod:     l.Holding,
	})
	if err != nil {
		return err
	}

	if d.Action.IsEntry() && s.opts.Ledger.Sizing.NeedsATR() {
		if f, missing := b.Missing(market.FieldATR); missing {
			return &strategies.MissingIndicatorError{Field: f, Date: b.Date}
		}
	}

	n := len(l.Trades)
	if err := l.Apply(b, d); err != nil {
		return err
	}
	if len(l.Trades) > n {
		s.logTrade()
	}
	return nil
}

func (s *Session) logTrade() {
	t := s.ledger.Trades[len(s.ledger.Trades)-1]
	fields := []zap.Field{
		zap.Time("date", t.Date),
		zap.String("kind", string(t.Kind)),
		zap.Float64("price", t.Price),
		zap.Float64("quantity", t.Quantity),
		zap.String("reason", string(t.Reason)),
	}
	if t.RealizedPnL != nil {
		fields = append(fields, zap.Float64("pnl", *t.RealizedPnL))
	}
	s.log.Debug("trade", fields...)
}

// Finish applies the end-of-data policy. With CloseAtEnd an open position
// is closed at the last close; otherwise nothing changes.
func (s *Session) Finish() error {
	if !s.opts.CloseAtEnd || !s.ledger.Pos.IsOpen() || s.steps == 0 {
		return nil
	}
	if _, err := s.ledger.Exit(s.last.Date, s.last.Close, strategies.ReasonEndOfData); err != nil {
		return err
	}
	s.logTrade()
	return nil
}

// Result summarizes the logs so far. It is valid mid-run and after an
// error.
func (s *Session) Result() Result {
	l := s.ledger
	r := Result{
		Symbol:         s.Symbol,
		InitialCapital: s.opts.InitialCapital,
		Start:          s.start,
		End:            s.last.Date,
		Trades:         append([]sim.TradeRecord(nil), l.Trades...),
		Daily:          append([]sim.DailyBalance(nil), l.Daily...),
	}
	if s.eval.Rules != nil {
		r.Strategy = s.eval.Rules.Name()
	}
	r.Summary = Summarize(r.Trades, r.Daily, s.opts.InitialCapital)
	return r
}
