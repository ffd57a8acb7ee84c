package venue

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// Endpoint names key the per-operation token buckets and utilization
// reporting in the resilience layer.
const (
	EndpointGetQuote    = "get_quote"
	EndpointGetAccounts = "get_accounts"
	EndpointPlaceOrder  = "place_order"
	EndpointCancelOrder = "cancel_order"
	EndpointListFills   = "list_fills"
	EndpointProductMeta = "get_product_meta"
)

// Endpoints lists every external operation.
var Endpoints = []string{
	EndpointGetQuote,
	EndpointGetAccounts,
	EndpointPlaceOrder,
	EndpointCancelOrder,
	EndpointListFills,
	EndpointProductMeta,
}

var (
	ErrOrderRejected  = errors.New("order rejected by venue")
	ErrUnknownSymbol  = errors.New("unknown symbol")
	ErrUnknownOrder   = errors.New("unknown exchange order")
	ErrDuplicateOrder = errors.New("duplicate client order id")
)

// OrderType is the venue order type.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// PlaceOrderRequest is the submit payload. Market buys are sized in
// quote currency (notional); sells in base quantity.
type PlaceOrderRequest struct {
	ClientID string
	Symbol   string
	Side     schema.Side
	Type     OrderType
	Notional decimal.Decimal
	BaseSize decimal.Decimal
}

// PlaceOrderResponse is the venue's accept/reject answer.
type PlaceOrderResponse struct {
	ExchangeID string
	Accepted   bool
	Reason     string
}

// Client is the abstracted venue API. Implementations must be safe for
// concurrent use; every call honors its context deadline.
type Client interface {
	GetQuote(ctx context.Context, symbol string) (schema.Quote, error)
	GetAccounts(ctx context.Context) ([]schema.Balance, error)
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, exchangeID string) error
	ListFills(ctx context.Context, since time.Time) ([]schema.Fill, error)
	GetProductMeta(ctx context.Context, symbol string) (schema.ProductMeta, error)
}
