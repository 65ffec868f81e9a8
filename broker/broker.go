// Package broker is the seam between a trading session and whoever
// executes its orders.
package broker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/backtester/pkg/id"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

type Broker interface {
	PlaceOrder(ctx context.Context, o Order) (Fill, error)
}

// Order asks for Quantity units at Price. Kind says whether it opens or
// closes, and on which side.
type Order struct {
	Symbol   string
	Kind     sim.TradeKind
	Quantity float64
	Price    float64
	Reason   strategies.Reason
	Time     time.Time
}

// OrderFromTrade turns a ledger trade record into the order that executes it.
func OrderFromTrade(symbol string, t sim.TradeRecord) Order {
	return Order{
		Symbol:   symbol,
		Kind:     t.Kind,
		Quantity: t.Quantity,
		Price:    t.Price,
		Reason:   t.Reason,
		Time:     t.Date,
	}
}

type Fill struct {
	OrderID  string
	Symbol   string
	Kind     sim.TradeKind
	Quantity float64
	Price    float64
	Time     time.Time
}

var ErrInvalidOrder = errors.New("invalid order")

func (o Order) validate() error {
	switch {
	case o.Symbol == "":
		return fmt.Errorf("%w: no symbol", ErrInvalidOrder)
	case !o.Kind.IsEntry() && !o.Kind.IsExit():
		return fmt.Errorf("%w: kind %q", ErrInvalidOrder, o.Kind)
	case !(o.Quantity > 0) || math.IsInf(o.Quantity, 0):
		return fmt.Errorf("%w: quantity %g", ErrInvalidOrder, o.Quantity)
	case !(o.Price > 0) || math.IsInf(o.Price, 0):
		return fmt.Errorf("%w: price %g", ErrInvalidOrder, o.Price)
	}
	return nil
}

// Paper confirms every valid order in full at the requested price.
type Paper struct {
	mu    sync.Mutex
	fills []Fill
	now   func() time.Time
}

var _ Broker = (*Paper)(nil)

func NewPaper() *Paper {
	return &Paper{now: time.Now}
}

func (p *Paper) PlaceOrder(ctx context.Context, o Order) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	if err := o.validate(); err != nil {
		return Fill{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	at := o.Time
	if at.IsZero() {
		at = p.now()
	}
	f := Fill{
		OrderID:  id.NewAt(p.now()),
		Symbol:   o.Symbol,
		Kind:     o.Kind,
		Quantity: o.Quantity,
		Price:    o.Price,
		Time:     at,
	}
	p.fills = append(p.fills, f)
	return f, nil
}

// Fills returns a copy of the fills so far, oldest first.
func (p *Paper) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Fill(nil), p.fills...)
}
