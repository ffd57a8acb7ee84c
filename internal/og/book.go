package og

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// Book is the in-memory authoritative registry of order lifecycles.
// Single writer (the execution engine); readers get copies.
type Book struct {
	mu     sync.RWMutex
	orders map[string]*schema.Order
	clk    clock.Clock
}

// NewBook creates an empty order book registry.
func NewBook(clk clock.Clock) *Book {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Book{orders: make(map[string]*schema.Order), clk: clk}
}

// Create registers a new order in NEW state. Client IDs are never
// reused; a duplicate fails with ErrDuplicateOrder.
func (b *Book) Create(clientID, symbol string, side schema.Side, notional decimal.Decimal, route schema.Route) (schema.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.orders[clientID]; ok {
		return schema.Order{}, ErrDuplicateOrder
	}
	o := &schema.Order{
		ClientID:          clientID,
		Symbol:            symbol,
		Side:              side,
		Route:             route,
		RequestedNotional: notional,
		Status:            schema.StatusNew,
		CreatedAt:         b.clk.Now(),
	}
	b.orders[clientID] = o
	logs.Infof("order created: client_id=%s symbol=%s side=%s notional=%s route=%s",
		clientID, symbol, side, notional.StringFixed(2), route)
	return *o, nil
}

// SetRequestedSize records the base quantity resolved at submit time,
// used by the fill auto-transition rule.
func (b *Book) SetRequestedSize(clientID string, size decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[clientID]
	if !ok {
		return ErrUnknownOrder
	}
	o.RequestedSize = size
	return nil
}

// Transition moves an order to a new state. Moves not in the lifecycle
// table fail with ErrInvalidTransition; transitions out of a terminal
// state are logged no-ops, never errors.
func (b *Book) Transition(clientID string, next schema.OrderStatus, exchangeID string) (schema.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[clientID]
	if !ok {
		return schema.Order{}, ErrUnknownOrder
	}
	if o.Status.Terminal() {
		logs.Warnf("transition ignored on terminal order: client_id=%s state=%s requested=%s",
			clientID, o.Status, next)
		return *o, nil
	}
	if !allowed(o.Status, next) {
		return *o, ErrInvalidTransition
	}
	b.applyTransitionLocked(o, next, exchangeID)
	return *o, nil
}

// UpdateFill folds a fill into an order, recomputing the average fill
// price and applying the auto-transition rule.
func (b *Book) UpdateFill(clientID string, size, value, fee decimal.Decimal) (schema.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[clientID]
	if !ok {
		return schema.Order{}, ErrUnknownOrder
	}
	if o.Status.Terminal() {
		logs.Warnf("fill ignored on terminal order: client_id=%s state=%s", clientID, o.Status)
		return *o, nil
	}
	next, err := fillOutcome(o, size)
	if err != nil {
		return *o, err
	}
	// validate before committing so a rejected fill leaves no trace
	if next != o.Status && !allowed(o.Status, next) {
		return *o, ErrInvalidTransition
	}
	o.FilledSize = o.FilledSize.Add(size)
	o.FilledValue = o.FilledValue.Add(value)
	o.Fees = o.Fees.Add(fee)
	if o.FirstFillAt.IsZero() {
		o.FirstFillAt = b.clk.Now()
	}
	if next != o.Status {
		b.applyTransitionLocked(o, next, "")
	}
	return *o, nil
}

// Get returns a copy of the order.
func (b *Book) Get(clientID string) (schema.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[clientID]
	if !ok {
		return schema.Order{}, false
	}
	return *o, true
}

// Active returns all orders in a non-terminal state.
func (b *Book) Active() []schema.Order {
	return b.filter(func(o *schema.Order) bool { return !o.Status.Terminal() })
}

// Terminal returns all orders in a terminal state.
func (b *Book) Terminal() []schema.Order {
	return b.filter(func(o *schema.Order) bool { return o.Status.Terminal() })
}

// ByStatus returns all orders currently in the given state.
func (b *Book) ByStatus(status schema.OrderStatus) []schema.Order {
	return b.filter(func(o *schema.Order) bool { return o.Status == status })
}

// Stale returns non-terminal orders older than maxAge, the hook used by
// the loop to force-cancel abandoned orders.
func (b *Book) Stale(maxAge time.Duration) []schema.Order {
	cutoff := b.clk.Now().Add(-maxAge)
	return b.filter(func(o *schema.Order) bool {
		return !o.Status.Terminal() && o.CreatedAt.Before(cutoff)
	})
}

// Cleanup evicts the oldest terminal orders beyond the retention count
// and returns how many were removed.
func (b *Book) Cleanup(keepLastN int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	terminal := make([]*schema.Order, 0, len(b.orders))
	for _, o := range b.orders {
		if o.Status.Terminal() {
			terminal = append(terminal, o)
		}
	}
	if len(terminal) <= keepLastN {
		return 0
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CompletedAt.Before(terminal[j].CompletedAt)
	})
	evict := terminal[:len(terminal)-keepLastN]
	for _, o := range evict {
		delete(b.orders, o.ClientID)
	}
	return len(evict)
}

// Len returns the number of tracked orders.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

func (b *Book) filter(keep func(*schema.Order) bool) []schema.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]schema.Order, 0, len(b.orders))
	for _, o := range b.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (b *Book) applyTransitionLocked(o *schema.Order, next schema.OrderStatus, exchangeID string) {
	prev := o.Status
	o.Status = next
	if exchangeID != "" {
		o.ExchangeID = exchangeID
	}
	now := b.clk.Now()
	switch next {
	case schema.StatusOpen:
		o.SubmittedAt = now
	case schema.StatusFilled, schema.StatusCanceled, schema.StatusExpired,
		schema.StatusRejected, schema.StatusFailed:
		o.CompletedAt = now
	}
	logs.Infof("order transition: client_id=%s exchange_id=%s %s -> %s at=%s",
		o.ClientID, o.ExchangeID, prev, next, now.Format(time.RFC3339Nano))
}
