package risk

import "fmt"

// Violation explains why an entry was refused.
type Violation struct {
	Code string
	Msg  string
}

func (v Violation) String() string { return v.Code + ": " + v.Msg }

// CheckEntry reports whether qty units at price, plus commission, can be
// paid for from cash. A nil result means the entry may proceed.
func CheckEntry(qty, price, commissionRate, cash float64) *Violation {
	if qty <= 0 {
		return &Violation{
			Code: "NO_QUANTITY",
			Msg:  fmt.Sprintf("quantity %.0f must be positive", qty),
		}
	}
	cost := qty * price * (1 + commissionRate)
	if cost > cash {
		return &Violation{
			Code: "INSUFFICIENT_CASH",
			Msg:  fmt.Sprintf("cost %.2f exceeds cash %.2f", cost, cash),
		}
	}
	return nil
}
