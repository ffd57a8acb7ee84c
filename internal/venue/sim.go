package venue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// Sim is an in-memory venue used by the paper route and by tests. It
// deduplicates client order IDs the way a real venue does, fills
// market orders instantly against the posted quote, and can be
// scripted to fail.
type Sim struct {
	mu  sync.Mutex
	clk clock.Clock

	quotes   map[string]schema.Quote
	meta     map[string]schema.ProductMeta
	balances []schema.Balance
	feeRate  decimal.Decimal // taker fee fraction, e.g. 0.006

	orders   map[string]PlaceOrderResponse // clientID -> first response
	fills    []schema.Fill
	nextID   int
	failures map[string][]error // endpoint -> queued errors
}

// NewSim creates a sim venue with the given taker fee rate.
func NewSim(clk clock.Clock, feeRate decimal.Decimal) *Sim {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Sim{
		clk:      clk,
		quotes:   make(map[string]schema.Quote),
		meta:     make(map[string]schema.ProductMeta),
		orders:   make(map[string]PlaceOrderResponse),
		failures: make(map[string][]error),
		feeRate:  feeRate,
	}
}

// SetQuote posts the current top-of-book for a symbol.
func (s *Sim) SetQuote(q schema.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.Timestamp.IsZero() {
		q.Timestamp = s.clk.Now()
	}
	s.quotes[q.Symbol] = q
}

// SetProductMeta posts venue metadata for a symbol.
func (s *Sim) SetProductMeta(m schema.ProductMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[m.Symbol] = m
}

// SetBalances posts the account balances.
func (s *Sim) SetBalances(balances []schema.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = balances
}

// FailNext queues an error returned by the next call to the endpoint.
func (s *Sim) FailNext(endpoint string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = append(s.failures[endpoint], err)
}

// PlacedOrders returns how many distinct orders the venue accepted.
func (s *Sim) PlacedOrders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

func (s *Sim) popFailure(endpoint string) error {
	queue := s.failures[endpoint]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.failures[endpoint] = queue[1:]
	return err
}

func (s *Sim) GetQuote(_ context.Context, symbol string) (schema.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFailure(EndpointGetQuote); err != nil {
		return schema.Quote{}, err
	}
	q, ok := s.quotes[symbol]
	if !ok {
		return schema.Quote{}, ErrUnknownSymbol
	}
	return q, nil
}

func (s *Sim) GetAccounts(_ context.Context) ([]schema.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFailure(EndpointGetAccounts); err != nil {
		return nil, err
	}
	out := make([]schema.Balance, len(s.balances))
	copy(out, s.balances)
	return out, nil
}

// PlaceOrder accepts a market order and fills it against the posted
// quote. Re-submission of a known client ID returns the original
// response without executing again.
func (s *Sim) PlaceOrder(_ context.Context, req PlaceOrderRequest) (PlaceOrderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFailure(EndpointPlaceOrder); err != nil {
		return PlaceOrderResponse{}, err
	}
	if resp, ok := s.orders[req.ClientID]; ok {
		return resp, nil
	}
	q, ok := s.quotes[req.Symbol]
	if !ok {
		resp := PlaceOrderResponse{Accepted: false, Reason: "unknown symbol"}
		s.orders[req.ClientID] = resp
		return resp, nil
	}

	s.nextID++
	exchangeID := "sim-" + strconv.Itoa(s.nextID)
	resp := PlaceOrderResponse{ExchangeID: exchangeID, Accepted: true}
	s.orders[req.ClientID] = resp

	price := q.Ask
	size := req.BaseSize
	if req.Side == schema.SideBuy {
		if size.IsZero() && req.Notional.Sign() > 0 {
			size = req.Notional.Div(price)
		}
	} else {
		price = q.Bid
	}
	value := size.Mul(price)
	s.fills = append(s.fills, schema.Fill{
		TradeID:         "trade-" + strconv.Itoa(s.nextID),
		OrderClientID:   req.ClientID,
		OrderExchangeID: exchangeID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Size:            size,
		Price:           price,
		Fee:             value.Mul(s.feeRate),
		Timestamp:       s.clk.Now(),
	})
	return resp, nil
}

func (s *Sim) CancelOrder(_ context.Context, exchangeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFailure(EndpointCancelOrder); err != nil {
		return err
	}
	for _, resp := range s.orders {
		if resp.ExchangeID == exchangeID {
			return nil
		}
	}
	return ErrUnknownOrder
}

func (s *Sim) ListFills(_ context.Context, since time.Time) ([]schema.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFailure(EndpointListFills); err != nil {
		return nil, err
	}
	out := make([]schema.Fill, 0, len(s.fills))
	for _, f := range s.fills {
		if f.Timestamp.Before(since) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Sim) GetProductMeta(_ context.Context, symbol string) (schema.ProductMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFailure(EndpointProductMeta); err != nil {
		return schema.ProductMeta{}, err
	}
	m, ok := s.meta[symbol]
	if !ok {
		return schema.ProductMeta{}, ErrUnknownSymbol
	}
	return m, nil
}

var _ Client = (*Sim)(nil)
