package og

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
)

// transitions is the allowed lifecycle table. Terminal states have no
// entries; attempts out of them are no-ops handled by the caller.
var transitions = map[schema.OrderStatus][]schema.OrderStatus{
	schema.StatusNew: {
		schema.StatusOpen,
		schema.StatusFailed,
		schema.StatusRejected,
	},
	schema.StatusOpen: {
		schema.StatusPartialFill,
		schema.StatusFilled,
		schema.StatusCanceled,
		schema.StatusExpired,
		schema.StatusRejected,
	},
	schema.StatusPartialFill: {
		schema.StatusFilled,
		schema.StatusCanceled,
		schema.StatusExpired,
	},
}

// fullFillRatio is the cumulative-fill fraction that forces FILLED.
var fullFillRatio = decimal.RequireFromString("0.999")

func allowed(from, to schema.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// fillOutcome returns the status a fill of the given size would force,
// per the auto-transition rule: cumulative filled size at or above
// 99.9% of requested forces FILLED, anything less forces PARTIAL_FILL
// while the order is open. Pure; the caller validates the transition
// before committing the fill quantities.
func fillOutcome(o *schema.Order, size decimal.Decimal) (schema.OrderStatus, error) {
	if size.Sign() <= 0 {
		return o.Status, ErrInvalidFill
	}
	filled := o.FilledSize.Add(size)
	if o.RequestedSize.Sign() > 0 &&
		filled.GreaterThanOrEqual(o.RequestedSize.Mul(fullFillRatio)) {
		return schema.StatusFilled, nil
	}
	return schema.StatusPartialFill, nil
}
