// Package paper drives backtest sessions from a polled feed, sending every
// trade to a broker and journaling as it goes.
package paper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/broker"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/pkg/id"
	"github.com/rustyeddy/backtester/strategies"
)

type Trader struct {
	Symbols []string
	Feed    Feed
	Broker  broker.Broker
	Rules   strategies.Rules
	Options backtest.Options

	// Indicators, when set, annotates raw feed bars; bars still warming up
	// are skipped. Leave nil for a feed that already carries indicators.
	// Bars before Options.StartDate still warm the indicators but are not
	// traded.
	Indicators *indicators.Params

	// Interval between polls. IsOpen gates the loop; nil means always open.
	Interval time.Duration
	IsOpen   func(time.Time) bool
	Now      func() time.Time

	// OutDir receives the per-symbol trade and daily CSVs, written as
	// records are produced. Empty disables.
	OutDir string

	Log *zap.Logger
}

// symbol is the per-instrument state of a running trader.
type symbol struct {
	name      string
	runID     string
	session   *backtest.Session
	annotator *indicators.Annotator
	journal   journal.Journal
	last      time.Time
	trades    int
	daily     int
	done      bool
	err       error
}

// Run polls the feed every Interval until the market closes, every feed is
// exhausted or ctx is cancelled. Journals are flushed and closed before it
// returns in every case. The results are in Symbols order; the error joins
// the per-symbol failures, or is ctx.Err() after a cancellation.
func (t *Trader) Run(ctx context.Context) ([]backtest.Result, error) {
	if t.Rules == nil {
		return nil, fmt.Errorf("paper: Rules are required")
	}
	if t.Feed == nil {
		return nil, fmt.Errorf("paper: Feed is required")
	}
	if t.Broker == nil {
		t.Broker = broker.NewPaper()
	}
	if t.Interval <= 0 {
		return nil, fmt.Errorf("paper: interval must be positive")
	}
	log := t.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := t.Now
	if now == nil {
		now = time.Now
	}
	isOpen := t.IsOpen
	if isOpen == nil {
		isOpen = AlwaysOpen
	}

	syms, err := t.open(log)
	if err != nil {
		return nil, err
	}

	log.Info("paper trading started",
		zap.Strings("symbols", t.Symbols),
		zap.Duration("interval", t.Interval),
		zap.String("strategy", t.Rules.Name()),
	)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		if err := ctx.Err(); err != nil {
			log.Info("paper trading cancelled")
			runErr = err
			break
		}
		if !isOpen(now()) {
			log.Info("market closed, stopping")
			break
		}
		if t.poll(ctx, syms, log) == 0 {
			log.Info("all feeds exhausted, stopping")
			break
		}

		select {
		case <-ctx.Done():
			log.Info("paper trading cancelled")
			runErr = ctx.Err()
			break loop
		case <-ticker.C:
		}
	}

	// Finishing orders use a fresh context so a cancellation still
	// settles and journals the end-of-data exits.
	results, err := t.finish(context.WithoutCancel(ctx), syms, log)
	if runErr != nil {
		return results, runErr
	}
	return results, err
}

func (t *Trader) open(log *zap.Logger) ([]*symbol, error) {
	syms := make([]*symbol, 0, len(t.Symbols))
	for _, name := range t.Symbols {
		s := &symbol{
			name:    name,
			runID:   id.New(),
			session: backtest.NewSession(name, t.Rules, t.Options, log),
		}
		if t.Indicators != nil {
			s.annotator = indicators.NewAnnotator(*t.Indicators)
		}
		if t.OutDir != "" {
			j, err := journal.NewCSVDir(t.OutDir, name)
			if err != nil {
				for _, o := range syms {
					_ = o.journal.Close()
				}
				return nil, fmt.Errorf("paper: %s: %w", name, err)
			}
			s.journal = j
		}
		syms = append(syms, s)
	}
	return syms, nil
}

// poll steps every live symbol at most once and returns how many are
// still live.
func (t *Trader) poll(ctx context.Context, syms []*symbol, log *zap.Logger) int {
	live := 0
	for _, s := range syms {
		if s.done {
			continue
		}
		t.pollOne(ctx, s, log)
		if !s.done {
			live++
		}
	}
	return live
}

func (t *Trader) pollOne(ctx context.Context, s *symbol, log *zap.Logger) {
	log = log.With(zap.String("symbol", s.name))

	b, err := t.Feed.Latest(ctx, s.name)
	switch {
	case errors.Is(err, ErrExhausted):
		s.done = true
		return
	case err != nil:
		// a failed fetch is retried on the next poll
		log.Warn("feed error", zap.Error(err))
		return
	}
	if !b.Date.After(s.last) {
		return
	}
	s.last = b.Date

	if s.annotator != nil {
		ab, ok := s.annotator.Next(b)
		if !ok {
			log.Debug("warming up", zap.Time("date", b.Date))
			return
		}
		b = ab
	}
	if b.Date.Before(t.Options.StartDate) {
		log.Debug("before start date", zap.Time("date", b.Date))
		return
	}

	if err := s.session.Step(b); err != nil {
		log.Error("session stopped", zap.Error(err))
		s.err = fmt.Errorf("%s: %w", s.name, err)
		s.done = true
	}
	t.settle(ctx, s, log)
}

// settle sends new trades to the broker and journals new records.
func (t *Trader) settle(ctx context.Context, s *symbol, log *zap.Logger) {
	l := s.session.Ledger()

	for ; s.trades < len(l.Trades); s.trades++ {
		tr := l.Trades[s.trades]
		fill, err := t.Broker.PlaceOrder(ctx, broker.OrderFromTrade(s.name, tr))
		if err != nil {
			log.Error("order failed", zap.String("kind", string(tr.Kind)), zap.Error(err))
		} else {
			fields := []zap.Field{
				zap.String("order_id", fill.OrderID),
				zap.String("kind", string(fill.Kind)),
				zap.Float64("price", fill.Price),
				zap.Float64("quantity", fill.Quantity),
				zap.String("reason", string(tr.Reason)),
			}
			if tr.RealizedPnL != nil {
				fields = append(fields, zap.Float64("pnl", *tr.RealizedPnL))
			}
			log.Info("filled", fields...)
		}
		if s.journal != nil {
			if err := s.journal.RecordTrade(tr); err != nil {
				log.Error("journal trade", zap.Error(err))
			}
		}
	}

	for ; s.daily < len(l.Daily); s.daily++ {
		d := l.Daily[s.daily]
		if s.journal != nil {
			if err := s.journal.RecordDaily(d); err != nil {
				log.Error("journal daily", zap.Error(err))
			}
		}
		log.Debug("marked",
			zap.Time("date", d.Date),
			zap.Float64("net_worth", d.NetWorth),
			zap.String("position", d.Side.String()),
		)
	}
}

func (t *Trader) finish(ctx context.Context, syms []*symbol, log *zap.Logger) ([]backtest.Result, error) {
	var errs []error
	results := make([]backtest.Result, len(syms))
	for i, s := range syms {
		symLog := log.With(zap.String("symbol", s.name))
		if s.err == nil {
			if err := s.session.Finish(); err != nil {
				s.err = fmt.Errorf("%s: close at end: %w", s.name, err)
			}
			t.settle(ctx, s, symLog)
		}
		if s.journal != nil {
			if err := s.journal.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: journal: %w", s.name, err))
			}
		}
		if s.err != nil {
			errs = append(errs, s.err)
		}

		r := s.session.Result()
		r.RunID = s.runID
		results[i] = r
		symLog.Info("paper trading finished",
			zap.Int("trades", r.TradeCount),
			zap.Float64("net_worth", r.FinalNetWorth),
		)
	}
	return results, errors.Join(errs...)
}
