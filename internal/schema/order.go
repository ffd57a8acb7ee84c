package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks the lifecycle of an order.
type OrderStatus uint16

const (
	StatusUnknown OrderStatus = iota
	StatusNew
	StatusOpen
	StatusPartialFill
	StatusFilled
	StatusCanceled
	StatusExpired
	StatusRejected
	StatusFailed
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusOpen:
		return "OPEN"
	case StatusPartialFill:
		return "PARTIAL_FILL"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusExpired:
		return "EXPIRED"
	case StatusRejected:
		return "REJECTED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status accepts no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusExpired, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// Route describes how an order reaches the market.
type Route uint16

const (
	RouteUnknown Route = iota
	RouteMaker
	RouteTaker
	RouteSimulated
)

func (r Route) String() string {
	switch r {
	case RouteMaker:
		return "maker"
	case RouteTaker:
		return "taker"
	case RouteSimulated:
		return "simulated"
	default:
		return "unknown"
	}
}

// Order is the unit the order book registry owns. ClientID is generated
// locally and stable across retries; ExchangeID is assigned by the venue
// once accepted.
type Order struct {
	ClientID   string
	ExchangeID string
	Symbol     string
	Side       Side
	Route      Route

	RequestedNotional decimal.Decimal
	RequestedSize     decimal.Decimal // base quantity, resolved at submit time

	FilledSize  decimal.Decimal
	FilledValue decimal.Decimal
	Fees        decimal.Decimal

	Status OrderStatus

	CreatedAt   time.Time
	SubmittedAt time.Time
	FirstFillAt time.Time
	CompletedAt time.Time
}

// AvgFillPrice returns the volume-weighted fill price, zero if unfilled.
func (o *Order) AvgFillPrice() decimal.Decimal {
	if o.FilledSize.IsZero() {
		return decimal.Zero
	}
	return o.FilledValue.Div(o.FilledSize)
}
