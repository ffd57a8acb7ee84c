package venue

import (
	"context"
	"time"

	"github.com/aelhadee/247trader-V2-sub000/internal/resilience"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// Guarded routes every venue call through the resilience layer: token
// bucket, retry with jitter, health breaker. Nothing else in the
// process may call the inner client directly.
type Guarded struct {
	inner Client
	guard *resilience.Guard
}

// NewGuarded wraps a client with the resilience guard.
func NewGuarded(inner Client, guard *resilience.Guard) *Guarded {
	return &Guarded{inner: inner, guard: guard}
}

func (g *Guarded) GetQuote(ctx context.Context, symbol string) (schema.Quote, error) {
	var out schema.Quote
	err := g.guard.Call(ctx, EndpointGetQuote, func(ctx context.Context) error {
		var err error
		out, err = g.inner.GetQuote(ctx, symbol)
		return err
	})
	return out, err
}

func (g *Guarded) GetAccounts(ctx context.Context) ([]schema.Balance, error) {
	var out []schema.Balance
	err := g.guard.Call(ctx, EndpointGetAccounts, func(ctx context.Context) error {
		var err error
		out, err = g.inner.GetAccounts(ctx)
		return err
	})
	return out, err
}

func (g *Guarded) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResponse, error) {
	var out PlaceOrderResponse
	err := g.guard.Call(ctx, EndpointPlaceOrder, func(ctx context.Context) error {
		var err error
		out, err = g.inner.PlaceOrder(ctx, req)
		return err
	})
	return out, err
}

func (g *Guarded) CancelOrder(ctx context.Context, exchangeID string) error {
	return g.guard.Call(ctx, EndpointCancelOrder, func(ctx context.Context) error {
		return g.inner.CancelOrder(ctx, exchangeID)
	})
}

func (g *Guarded) ListFills(ctx context.Context, since time.Time) ([]schema.Fill, error) {
	var out []schema.Fill
	err := g.guard.Call(ctx, EndpointListFills, func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListFills(ctx, since)
		return err
	})
	return out, err
}

func (g *Guarded) GetProductMeta(ctx context.Context, symbol string) (schema.ProductMeta, error) {
	var out schema.ProductMeta
	err := g.guard.Call(ctx, EndpointProductMeta, func(ctx context.Context) error {
		var err error
		out, err = g.inner.GetProductMeta(ctx, symbol)
		return err
	})
	return out, err
}

var _ Client = (*Guarded)(nil)
