package venue

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/resilience"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestSim(t *testing.T) (*Sim, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	s := NewSim(clk, dec("0.006"))
	s.SetQuote(schema.Quote{
		Symbol: "BTC-USD", Bid: dec("49990"), Ask: dec("50010"),
		BidSize: dec("2"), AskSize: dec("2"),
	})
	return s, clk
}

func TestSimDeduplicatesClientOrderID(t *testing.T) {
	s, _ := newTestSim(t)
	ctx := context.Background()

	req := PlaceOrderRequest{
		ClientID: "c-1", Symbol: "BTC-USD", Side: schema.SideBuy,
		Type: OrderTypeMarket, Notional: dec("100"),
	}
	first, err := s.PlaceOrder(ctx, req)
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := s.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ExchangeID, second.ExchangeID)
	assert.Equal(t, 1, s.PlacedOrders())

	fills, err := s.ListFills(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, fills, 1)
}

func TestSimFillsBuyAtAskWithFee(t *testing.T) {
	s, _ := newTestSim(t)
	ctx := context.Background()

	_, err := s.PlaceOrder(ctx, PlaceOrderRequest{
		ClientID: "c-1", Symbol: "BTC-USD", Side: schema.SideBuy,
		Type: OrderTypeMarket, Notional: dec("100.02"),
	})
	require.NoError(t, err)

	fills, err := s.ListFills(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(dec("50010")))
	assert.True(t, fills[0].Size.Equal(dec("0.002")), "size %s", fills[0].Size)
	assert.True(t, fills[0].Fee.Equal(dec("0.60012")), "fee %s", fills[0].Fee)
}

func TestSimScriptedFailure(t *testing.T) {
	s, _ := newTestSim(t)
	ctx := context.Background()

	s.FailNext(EndpointGetQuote, resilience.ErrServer)
	_, err := s.GetQuote(ctx, "BTC-USD")
	assert.ErrorIs(t, err, resilience.ErrServer)

	_, err = s.GetQuote(ctx, "BTC-USD")
	assert.NoError(t, err)
}

func TestSimRejectsUnknownSymbol(t *testing.T) {
	s, _ := newTestSim(t)
	ctx := context.Background()

	resp, err := s.PlaceOrder(ctx, PlaceOrderRequest{
		ClientID: "c-x", Symbol: "NOPE-USD", Side: schema.SideBuy,
		Type: OrderTypeMarket, Notional: dec("10"),
	})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
}

func TestMetaCacheServesWithinTTL(t *testing.T) {
	s, clk := newTestSim(t)
	s.SetProductMeta(schema.ProductMeta{Symbol: "BTC-USD", MinNotional: dec("5"), Status: "online"})
	cache := NewMetaCache(s, clk)
	ctx := context.Background()

	meta, err := cache.GetProductMeta(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.True(t, meta.MinNotional.Equal(dec("5")))

	// a scripted failure inside the TTL window is absorbed by the cache
	s.FailNext(EndpointProductMeta, resilience.ErrServer)
	meta, err = cache.GetProductMeta(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.True(t, meta.MinNotional.Equal(dec("5")))

	// after expiry the cache refreshes and can serve stale on failure
	clk.Advance(6 * time.Minute)
	s.FailNext(EndpointProductMeta, resilience.ErrServer)
	meta, err = cache.GetProductMeta(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.True(t, meta.MinNotional.Equal(dec("5")))
}

func TestFillChaosDeterministicForSeed(t *testing.T) {
	fills := make([]schema.Fill, 20)
	for i := range fills {
		fills[i] = schema.Fill{OrderClientID: "c", Symbol: "BTC-USD", Side: schema.SideBuy,
			Size: dec("0.01"), Price: dec("50000"), Timestamp: time.Unix(int64(i), 0)}
	}

	a, err := NewFillChaos(ChaosConfig{Seed: 7, DropRate: 0.2, DuplicateRate: 0.2})
	require.NoError(t, err)
	b, err := NewFillChaos(ChaosConfig{Seed: 7, DropRate: 0.2, DuplicateRate: 0.2})
	require.NoError(t, err)
	assert.Equal(t, a.Apply(fills), b.Apply(fills))
}

func TestFillChaosValidation(t *testing.T) {
	_, err := NewFillChaos(ChaosConfig{DropRate: 1.5})
	assert.Error(t, err)
}
