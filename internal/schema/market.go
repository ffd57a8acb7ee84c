package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a top-of-book snapshot for one symbol.
type Quote struct {
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	BidSize   decimal.Decimal
	AskSize   decimal.Decimal
	Timestamp time.Time
}

// Mid returns the bid/ask midpoint.
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// SpreadPct returns the spread as a percentage of the midpoint.
func (q Quote) SpreadPct() decimal.Decimal {
	mid := q.Mid()
	if mid.IsZero() {
		return decimal.Zero
	}
	return q.Ask.Sub(q.Bid).Div(mid).Mul(decimal.NewFromInt(100))
}

// Fill is a single execution report from the venue (or a simulated one).
type Fill struct {
	TradeID         string // venue-assigned, unique per execution
	OrderClientID   string
	OrderExchangeID string
	Symbol          string
	Side            Side
	Size            decimal.Decimal
	Price           decimal.Decimal
	Fee             decimal.Decimal
	Timestamp       time.Time
}

// Value returns size times price.
func (f Fill) Value() decimal.Decimal {
	return f.Size.Mul(f.Price)
}

// ProductMeta is venue metadata for one symbol. Cached with a short TTL;
// a stale read is an accepted, bounded risk.
type ProductMeta struct {
	Symbol        string
	MinNotional   decimal.Decimal
	SizeIncrement decimal.Decimal
	Status        string
}

// Balance is one currency balance from the venue account endpoint.
type Balance struct {
	Currency  string
	Available decimal.Decimal
	Hold      decimal.Decimal
}
