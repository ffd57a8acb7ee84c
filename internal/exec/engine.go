package exec

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/ledger"
	"github.com/aelhadee/247trader-V2-sub000/internal/og"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
)

// Mode selects the execution route.
type Mode uint16

const (
	ModeUnknown Mode = iota
	ModeSim
	ModePaper
	ModeLive
)

func (m Mode) String() string {
	switch m {
	case ModeSim:
		return "sim"
	case ModePaper:
		return "paper"
	case ModeLive:
		return "live"
	default:
		return "unknown"
	}
}

// StopExitNote marks a proposal produced by the stop-loss monitor so the
// ledger applies the stop cooldown instead of the plain loss cooldown.
const StopExitNote = "stop_loss_exit"

// Config holds execution parameters shared by all routes.
type Config struct {
	Mode      Mode            `json:"mode"`
	Liquidity LiquidityConfig `json:"liquidity"`

	// estimated taker fee for synthetic fills, whole percent
	FeePct decimal.Decimal `json:"feePct"`

	CooldownWin  time.Duration `json:"cooldownWin"`
	CooldownLoss time.Duration `json:"cooldownLoss"`
	CooldownStop time.Duration `json:"cooldownStop"`
}

// DefaultConfig returns paper-mode execution with taker-fee estimates.
func DefaultConfig() Config {
	return Config{
		Mode:         ModePaper,
		Liquidity:    DefaultLiquidityConfig(),
		FeePct:       decimal.RequireFromString("0.6"),
		CooldownWin:  15 * time.Minute,
		CooldownLoss: 45 * time.Minute,
		CooldownStop: 2 * time.Hour,
	}
}

// ExecutionResult reports what one approved proposal turned into.
type ExecutionResult struct {
	ClientID   string
	ExchangeID string
	Symbol     string
	Side       schema.Side
	Route      schema.Route
	Status     schema.OrderStatus
	WouldPlace bool   // simulated route only
	Reason     string // liquidity or venue rejection detail
	Fill       schema.Fill
	Realized   decimal.Decimal
}

// orderMeta carries proposal context a later fill needs but the venue
// does not echo back.
type orderMeta struct {
	tier    schema.Tier
	stopOut bool
}

// Engine turns approved proposals into orders on the configured route,
// drives the order book through every lifecycle transition, and folds
// confirmed fills into the ledger. Sole writer of both.
type Engine struct {
	cfg    Config
	client venue.Client
	book   *og.Book
	led    *ledger.Ledger
	clk    clock.Clock

	mu       sync.Mutex
	pending  map[string]orderMeta
	seen     map[string]struct{} // applied venue trade IDs
	seenList []string            // eviction order for seen
}

// maxSeenFills bounds the applied-fill set. Old entries are evicted
// FIFO; a venue re-delivering fills older than this window would have
// to replay thousands of executions past the reconcile watermark.
const maxSeenFills = 4096

// NewEngine creates an execution engine.
func NewEngine(cfg Config, client venue.Client, book *og.Book, led *ledger.Ledger, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Engine{
		cfg:     cfg,
		client:  client,
		book:    book,
		led:     led,
		clk:     clk,
		pending: make(map[string]orderMeta),
		seen:    make(map[string]struct{}),
	}
}

// Execute runs one approved proposal through the configured route. The
// cycle timestamp anchors the idempotent client order id: a retry within
// the cycle reuses the id, a later cycle mints a new one.
func (e *Engine) Execute(ctx context.Context, ap schema.ApprovedProposal, cycle time.Time) (ExecutionResult, error) {
	p := ap.Proposal
	result := ExecutionResult{Symbol: p.Symbol, Side: p.Side}

	quote, err := e.client.GetQuote(ctx, p.Symbol)
	if err != nil {
		return result, errors.Wrap(err, "fetch quote for "+p.Symbol)
	}

	if reason := checkLiquidity(e.cfg.Liquidity, quote, p.Side, ap.ApprovedNotional, e.clk.Now()); reason != "" {
		result.Reason = reason
		if e.cfg.Mode == ModeSim {
			result.WouldPlace = false
			logs.Infof("would-place %s %s $%s: skipped, %s",
				p.Side, p.Symbol, ap.ApprovedNotional.StringFixed(2), reason)
			return result, nil
		}
		logs.Warnf("liquidity check failed for %s %s: %s", p.Side, p.Symbol, reason)
		return result, nil
	}

	clientID := ClientOrderID(p, ap.ApprovedNotional, cycle)
	result.ClientID = clientID

	switch e.cfg.Mode {
	case ModeSim:
		return e.executeSim(result, ap, quote)
	case ModePaper:
		return e.executePaper(result, ap, quote, clientID)
	case ModeLive:
		return e.executeLive(ctx, result, ap, quote, clientID)
	default:
		return result, errors.New("execution mode not configured")
	}
}

// dedupResult resolves a repeated submission of the same intent within
// one cycle to the already-tracked order instead of double-executing.
func (e *Engine) dedupResult(result ExecutionResult, clientID string) ExecutionResult {
	logs.Infof("duplicate intent %s deduplicated", clientID)
	if order, ok := e.book.Get(clientID); ok {
		result.ExchangeID = order.ExchangeID
		result.Route = order.Route
		result.Status = order.Status
	}
	result.Reason = "duplicate intent"
	return result
}

// fillPrice returns the taker price for a side.
func fillPrice(q schema.Quote, side schema.Side) decimal.Decimal {
	if side == schema.SideBuy {
		return q.Ask
	}
	return q.Bid
}

// baseSize resolves an order's base quantity. Buys divide notional by
// price; sells scale the open position by the fraction being closed so
// a full close never leaves residual dust from price drift.
func (e *Engine) baseSize(p schema.TradeProposal, notional, price decimal.Decimal) decimal.Decimal {
	if p.Side == schema.SideBuy {
		return notional.Div(price)
	}
	pos, ok := e.led.Position(p.Symbol)
	if !ok {
		return notional.Div(price)
	}
	exposure := pos.Quantity.Mul(pos.AvgEntryPrice)
	if exposure.LessThanOrEqual(notional) {
		return pos.Quantity
	}
	return pos.Quantity.Mul(notional).Div(exposure)
}

func (e *Engine) syntheticFill(clientID string, p schema.TradeProposal, notional decimal.Decimal, quote schema.Quote) schema.Fill {
	price := fillPrice(quote, p.Side)
	size := e.baseSize(p, notional, price)
	value := size.Mul(price)
	return schema.Fill{
		TradeID:       "synthetic-" + clientID,
		OrderClientID: clientID,
		Symbol:        p.Symbol,
		Side:          p.Side,
		Size:          size,
		Price:         price,
		Fee:           value.Mul(e.cfg.FeePct).Div(decimal.NewFromInt(100)),
		Timestamp:     e.clk.Now(),
	}
}

// executeSim logs a structured would-place record and touches nothing.
// It already passed the same liquidity gate live execution would use.
func (e *Engine) executeSim(result ExecutionResult, ap schema.ApprovedProposal, quote schema.Quote) (ExecutionResult, error) {
	fill := e.syntheticFill(result.ClientID, ap.Proposal, ap.ApprovedNotional, quote)
	result.Route = schema.RouteSimulated
	result.WouldPlace = true
	result.Fill = fill
	logs.Infof("would-place %s %s $%s at %s (size %s, est fee %s)",
		ap.Proposal.Side, ap.Proposal.Symbol, ap.ApprovedNotional.StringFixed(2),
		fill.Price.String(), fill.Size.String(), fill.Fee.StringFixed(4))
	return result, nil
}

// executePaper drives the order book through the exact transitions a
// live order takes, with a synthetic fill priced off the live quote.
func (e *Engine) executePaper(result ExecutionResult, ap schema.ApprovedProposal, quote schema.Quote, clientID string) (ExecutionResult, error) {
	p := ap.Proposal
	if _, err := e.book.Create(clientID, p.Symbol, p.Side, ap.ApprovedNotional, schema.RouteSimulated); err != nil {
		if stderrors.Is(err, og.ErrDuplicateOrder) {
			return e.dedupResult(result, clientID), nil
		}
		return result, errors.Wrap(err, "create paper order")
	}
	result.Route = schema.RouteSimulated

	fill := e.syntheticFill(clientID, p, ap.ApprovedNotional, quote)
	if err := e.book.SetRequestedSize(clientID, fill.Size); err != nil {
		return result, errors.Wrap(err, "set requested size")
	}

	exchangeID := "paper-" + clientID
	if _, err := e.book.Transition(clientID, schema.StatusOpen, exchangeID); err != nil {
		return result, errors.Wrap(err, "open paper order")
	}
	result.ExchangeID = exchangeID
	fill.OrderExchangeID = exchangeID
	e.led.RecordTrade(p.Symbol)

	res := e.applyFill(fill, p.Tier, p.Notes == StopExitNote)
	result.Fill = fill
	result.Realized = res.RealizedPnL
	if order, ok := e.book.Get(clientID); ok {
		result.Status = order.Status
	}
	return result, nil
}

// executeLive submits through the guarded venue client. Acceptance
// transitions NEW to OPEN; fills arrive later via ReconcileFills. A
// failed or rejected submission terminates the order and is never
// resubmitted in this cycle.
func (e *Engine) executeLive(ctx context.Context, result ExecutionResult, ap schema.ApprovedProposal, quote schema.Quote, clientID string) (ExecutionResult, error) {
	p := ap.Proposal
	if _, err := e.book.Create(clientID, p.Symbol, p.Side, ap.ApprovedNotional, schema.RouteTaker); err != nil {
		if stderrors.Is(err, og.ErrDuplicateOrder) {
			return e.dedupResult(result, clientID), nil
		}
		return result, errors.Wrap(err, "create live order")
	}
	result.Route = schema.RouteTaker

	price := fillPrice(quote, p.Side)
	size := e.baseSize(p, ap.ApprovedNotional, price)
	if err := e.book.SetRequestedSize(clientID, size); err != nil {
		return result, errors.Wrap(err, "set requested size")
	}

	req := venue.PlaceOrderRequest{
		ClientID: clientID,
		Symbol:   p.Symbol,
		Side:     p.Side,
		Type:     venue.OrderTypeMarket,
		Notional: ap.ApprovedNotional,
		BaseSize: size,
	}

	resp, err := e.client.PlaceOrder(ctx, req)
	if err != nil {
		if _, terr := e.book.Transition(clientID, schema.StatusFailed, ""); terr != nil {
			logs.Errorf("fail transition for %s: %v", clientID, terr)
		}
		result.Status = schema.StatusFailed
		result.Reason = err.Error()
		return result, nil
	}
	if !resp.Accepted {
		if _, terr := e.book.Transition(clientID, schema.StatusRejected, resp.ExchangeID); terr != nil {
			logs.Errorf("reject transition for %s: %v", clientID, terr)
		}
		result.Status = schema.StatusRejected
		result.Reason = resp.Reason
		return result, nil
	}

	if _, err := e.book.Transition(clientID, schema.StatusOpen, resp.ExchangeID); err != nil {
		return result, errors.Wrap(err, "open live order")
	}
	result.ExchangeID = resp.ExchangeID
	result.Status = schema.StatusOpen
	e.led.RecordTrade(p.Symbol)

	e.mu.Lock()
	e.pending[clientID] = orderMeta{tier: p.Tier, stopOut: p.Notes == StopExitNote}
	e.mu.Unlock()

	return result, nil
}
