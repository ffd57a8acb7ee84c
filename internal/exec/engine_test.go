package exec

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/ledger"
	"github.com/aelhadee/247trader-V2-sub000/internal/og"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type harness struct {
	clk  *clock.Fake
	sim  *venue.Sim
	book *og.Book
	led  *ledger.Ledger
	eng  *Engine
}

func newHarness(t *testing.T, mode Mode) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	sim := venue.NewSim(clk, dec("0.006"))
	book := og.NewBook(clk)
	led := ledger.New(clk)

	cfg := DefaultConfig()
	cfg.Mode = mode
	eng := NewEngine(cfg, sim, book, led, clk)

	sim.SetQuote(schema.Quote{
		Symbol:    "BTC-USD",
		Bid:       dec("49990"),
		Ask:       dec("50010"),
		BidSize:   dec("1"),
		AskSize:   dec("1"),
		Timestamp: clk.Now(),
	})
	return &harness{clk: clk, sim: sim, book: book, led: led, eng: eng}
}

func approvedBuy(notional string) schema.ApprovedProposal {
	return schema.ApprovedProposal{
		Proposal: schema.TradeProposal{
			Symbol: "BTC-USD",
			Side:   schema.SideBuy,
			Tier:   schema.TierCore,
		},
		ApprovedNotional: dec(notional),
	}
}

func approvedSell(notional string) schema.ApprovedProposal {
	return schema.ApprovedProposal{
		Proposal: schema.TradeProposal{
			Symbol: "BTC-USD",
			Side:   schema.SideSell,
			Tier:   schema.TierCore,
		},
		ApprovedNotional: dec(notional),
	}
}

func TestPaperRouteFillsAndSettlesLedger(t *testing.T) {
	h := newHarness(t, ModePaper)

	result, err := h.eng.Execute(context.Background(), approvedBuy("500"), h.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, schema.StatusFilled, result.Status)
	assert.Equal(t, schema.RouteSimulated, result.Route)
	assert.NotEmpty(t, result.ClientID)

	order, ok := h.book.Get(result.ClientID)
	require.True(t, ok)
	assert.Equal(t, schema.StatusFilled, order.Status)
	assert.True(t, order.AvgFillPrice().Equal(dec("50010")))

	pos, ok := h.led.Position("BTC-USD")
	require.True(t, ok, "paper fill must open a ledger position")
	assert.True(t, pos.AvgEntryPrice.Equal(dec("50010")))
}

func TestSimRouteWouldPlaceOnly(t *testing.T) {
	h := newHarness(t, ModeSim)

	result, err := h.eng.Execute(context.Background(), approvedBuy("500"), h.clk.Now())
	require.NoError(t, err)
	assert.True(t, result.WouldPlace)
	assert.True(t, result.Fill.Price.Equal(dec("50010")))

	assert.Equal(t, 0, h.book.Len(), "simulated route must not create orders")
	assert.Empty(t, h.led.Positions())
	assert.Equal(t, 0, h.sim.PlacedOrders())
}

func TestLiveResubmissionDeduplicated(t *testing.T) {
	h := newHarness(t, ModeLive)
	cycle := h.clk.Now()

	first, err := h.eng.Execute(context.Background(), approvedBuy("500"), cycle)
	require.NoError(t, err)
	assert.Equal(t, schema.StatusOpen, first.Status)

	second, err := h.eng.Execute(context.Background(), approvedBuy("500"), cycle)
	require.NoError(t, err)
	assert.Equal(t, first.ClientID, second.ClientID)
	assert.Equal(t, "duplicate intent", second.Reason)
	assert.Equal(t, schema.StatusOpen, second.Status)

	assert.Equal(t, 1, h.sim.PlacedOrders(), "venue must see one order")
	assert.Equal(t, 1, h.book.Len())
}

func TestLiveSubmissionFailureTerminatesOrder(t *testing.T) {
	h := newHarness(t, ModeLive)
	h.sim.FailNext(venue.EndpointPlaceOrder, errors.New("insufficient funds"))

	result, err := h.eng.Execute(context.Background(), approvedBuy("500"), h.clk.Now())
	require.NoError(t, err, "submission failure degrades to no trade, not an error")
	assert.Equal(t, schema.StatusFailed, result.Status)
	assert.Contains(t, result.Reason, "insufficient funds")

	order, ok := h.book.Get(result.ClientID)
	require.True(t, ok)
	assert.True(t, order.Status.Terminal())
	assert.Equal(t, 0, h.sim.PlacedOrders())
}

func TestReconcileRoundTripAppliesLossCooldown(t *testing.T) {
	h := newHarness(t, ModeLive)
	ctx := context.Background()

	_, err := h.eng.Execute(ctx, approvedBuy("500"), h.clk.Now())
	require.NoError(t, err)

	applied, err := h.eng.ReconcileFills(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	pos, ok := h.led.Position("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.AvgEntryPrice.Equal(dec("50010")))

	// close below entry: bid 49990 against 50010 entry realizes a loss
	h.clk.Advance(time.Minute)
	h.sim.SetQuote(schema.Quote{
		Symbol:    "BTC-USD",
		Bid:       dec("49990"),
		Ask:       dec("50010"),
		BidSize:   dec("1"),
		AskSize:   dec("1"),
		Timestamp: h.clk.Now(),
	})
	_, err = h.eng.Execute(ctx, approvedSell("500"), h.clk.Now())
	require.NoError(t, err)

	applied, err = h.eng.ReconcileFills(ctx, h.clk.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	_, stillOpen := h.led.Position("BTC-USD")
	assert.False(t, stillOpen, "full close removes the position")
	assert.True(t, h.led.DailyPnL().IsNegative())

	snap := h.led.Snapshot(dec("10000"))
	until, ok := snap.CooldownUntil["BTC-USD"]
	require.True(t, ok, "losing close must start a cooldown")
	assert.Equal(t, h.clk.Now().Add(45*time.Minute), until)
}

func TestLiquidityGateSkipsWideSpread(t *testing.T) {
	h := newHarness(t, ModePaper)
	h.sim.SetQuote(schema.Quote{
		Symbol:    "BTC-USD",
		Bid:       dec("49000"),
		Ask:       dec("51000"),
		BidSize:   dec("1"),
		AskSize:   dec("1"),
		Timestamp: h.clk.Now(),
	})

	result, err := h.eng.Execute(context.Background(), approvedBuy("500"), h.clk.Now())
	require.NoError(t, err)
	assert.Contains(t, result.Reason, "spread")
	assert.Equal(t, 0, h.book.Len(), "failed liquidity check must not create an order")
}

func TestLiquidityGateSkipsStaleQuote(t *testing.T) {
	h := newHarness(t, ModeSim)
	h.clk.Advance(time.Minute)

	result, err := h.eng.Execute(context.Background(), approvedBuy("500"), h.clk.Now())
	require.NoError(t, err)
	assert.False(t, result.WouldPlace)
	assert.Contains(t, result.Reason, "old")
}

func TestSweepStaleCancelsOpenOrders(t *testing.T) {
	h := newHarness(t, ModeLive)
	ctx := context.Background()

	result, err := h.eng.Execute(ctx, approvedBuy("500"), h.clk.Now())
	require.NoError(t, err)
	require.Equal(t, schema.StatusOpen, result.Status)

	h.clk.Advance(10 * time.Minute)
	canceled := h.eng.SweepStale(ctx, 5*time.Minute)
	assert.Equal(t, 1, canceled)

	order, ok := h.book.Get(result.ClientID)
	require.True(t, ok)
	assert.Equal(t, schema.StatusCanceled, order.Status)
}

func TestClientOrderIDDeterministic(t *testing.T) {
	p := schema.TradeProposal{Symbol: "ETH-USD", Side: schema.SideBuy}
	cycle := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	a := ClientOrderID(p, dec("100"), cycle)
	b := ClientOrderID(p, dec("100"), cycle)
	assert.Equal(t, a, b)

	c := ClientOrderID(p, dec("100"), cycle.Add(time.Minute))
	assert.NotEqual(t, a, c, "a later cycle is a new intent")

	d := ClientOrderID(p, dec("101"), cycle)
	assert.NotEqual(t, a, d)
}

// replayClient serves a fixed fill list on every ListFills call, the way
// overlapping reconcile windows re-deliver venue fills.
type replayClient struct {
	venue.Client
	fills []schema.Fill
}

func (c *replayClient) ListFills(context.Context, time.Time) ([]schema.Fill, error) {
	out := make([]schema.Fill, len(c.fills))
	copy(out, c.fills)
	return out, nil
}

func TestRedeliveredPartialFillAppliedOnce(t *testing.T) {
	h := newHarness(t, ModeLive)
	replay := &replayClient{Client: h.sim}
	h.eng = NewEngine(h.eng.cfg, replay, h.book, h.led, h.clk)

	result, err := h.eng.Execute(context.Background(), approvedBuy("1000"), h.clk.Now())
	require.NoError(t, err)
	require.Equal(t, schema.StatusOpen, result.Status)

	partial := schema.Fill{
		TradeID:       "trade-a",
		OrderClientID: result.ClientID,
		Symbol:        "BTC-USD",
		Side:          schema.SideBuy,
		Size:          dec("0.01"),
		Price:         dec("50010"),
		Fee:           dec("3.0006"),
		Timestamp:     h.clk.Now(),
	}
	replay.fills = []schema.Fill{partial}

	applied, err := h.eng.ReconcileFills(context.Background(), h.clk.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = h.eng.ReconcileFills(context.Background(), h.clk.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	pos, ok := h.led.Position("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(dec("0.01")),
		"quantity %s after re-delivery", pos.Quantity)

	order, found := h.book.Get(result.ClientID)
	require.True(t, found)
	assert.Equal(t, schema.StatusPartialFill, order.Status)
}
