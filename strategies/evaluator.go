package strategies

import (
	"github.com/rustyeddy/backtester/market"
)

// Input is the evaluator's view of one bar and the position state.
type Input struct {
	Bar     market.Bar
	Prev    market.Bar
	HasPrev bool

	Side              market.Side
	EntryPrice        float64
	CooldownRemaining int
	HoldingPeriod     int
}

// Evaluator turns a bar and the current position state into a Decision.
// It owns the rules common to every strategy (cooldown, minimum holding
// period, ATR stop and target) and defers the rest to Rules.
//
// Evaluate never mutates anything, so the same Input always yields the
// same Decision.
type Evaluator struct {
	Rules Rules

	// StopMultiplier and TargetMultiplier scale ATR away from the entry
	// price. Zero disables that exit.
	StopMultiplier   float64
	TargetMultiplier float64

	MinHolding int
}

func NewEvaluator(r Rules, stopMult, targetMult float64, minHolding int) *Evaluator {
	return &Evaluator{
		Rules:            r,
		StopMultiplier:   stopMult,
		TargetMultiplier: targetMult,
		MinHolding:       minHolding,
	}
}

func (e *Evaluator) protective() bool {
	return e.StopMultiplier > 0 || e.TargetMultiplier > 0
}

// Evaluate decides what to do on in.Bar.
//
// While flat, EnterLong is checked before EnterShort, so a bar that
// satisfies both goes long. With a position open the stop is checked
// first, then the target, then the strategy's own exit. Stops and targets
// compare the close against the level inclusively.
func (e *Evaluator) Evaluate(in Input) (Decision, error) {
	hold := Decision{Action: Hold}

	if in.CooldownRemaining > 0 {
		return hold, nil
	}

	required := e.Rules.Requires()
	if in.Side != market.Flat && e.protective() {
		required = append(required[:len(required):len(required)], market.FieldATR)
	}

	if in.Side != market.Flat && in.HoldingPeriod < e.MinHolding {
		return hold, nil
	}

	if f, missing := in.Bar.Missing(required...); missing {
		return hold, &MissingIndicatorError{Field: f, Date: in.Bar.Date}
	}

	ctx := Context{
		Bar:        in.Bar,
		Prev:       in.Prev,
		HasPrev:    in.HasPrev,
		EntryPrice: in.EntryPrice,
	}

	switch in.Side {
	case market.Flat:
		if e.Rules.EnterLong(ctx) {
			return Decision{Action: EnterLong, Reason: ReasonEntry}, nil
		}
		if e.Rules.EnterShort(ctx) {
			return Decision{Action: EnterShort, Reason: ReasonEntry}, nil
		}

	case market.Long:
		if d, ok := e.protectiveExit(in, ExitLong); ok {
			return d, nil
		}
		if e.Rules.ExitLong(ctx) {
			return Decision{Action: ExitLong, Reason: ReasonSignal}, nil
		}

	case market.Short:
		if d, ok := e.protectiveExit(in, ExitShort); ok {
			return d, nil
		}
		if e.Rules.ExitShort(ctx) {
			return Decision{Action: ExitShort, Reason: ReasonSignal}, nil
		}
	}

	return hold, nil
}

// StopPrice returns the stop level for a position, or 0 when disabled.
func (e *Evaluator) StopPrice(side market.Side, entry, atr float64) float64 {
	if e.StopMultiplier <= 0 {
		return 0
	}
	return entry - float64(side)*atr*e.StopMultiplier
}

// TargetPrice returns the take-profit level for a position, or 0 when
// disabled.
func (e *Evaluator) TargetPrice(side market.Side, entry, atr float64) float64 {
	if e.TargetMultiplier <= 0 {
		return 0
	}
	return entry + float64(side)*atr*e.TargetMultiplier
}

// protectiveExit checks the stop and target against levels built from the
// entry price and the current bar's ATR.
func (e *Evaluator) protectiveExit(in Input, action Action) (Decision, bool) {
	side := float64(in.Side)
	px := in.Bar.Close

	if e.StopMultiplier > 0 {
		stop := e.StopPrice(in.Side, in.EntryPrice, in.Bar.ATR)
		// long: close <= stop, short: close >= stop
		if side*(px-stop) <= 0 {
			return Decision{Action: action, Reason: ReasonStopLoss, Price: stop}, true
		}
	}
	if e.TargetMultiplier > 0 {
		target := e.TargetPrice(in.Side, in.EntryPrice, in.Bar.ATR)
		if side*(px-target) >= 0 {
			return Decision{Action: action, Reason: ReasonTakeProfit, Price: target}, true
		}
	}
	return Decision{}, false
}
