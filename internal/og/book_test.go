package og

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

func newTestBook(t *testing.T) (*Book, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewBook(clk), clk
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateRejectsDuplicateClientID(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.Create("c-1", "BTC-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
	require.NoError(t, err)
	_, err = b.Create("c-1", "BTC-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name string
		from schema.OrderStatus
		to   schema.OrderStatus
		ok   bool
	}{
		{"new to open", schema.StatusNew, schema.StatusOpen, true},
		{"new to failed", schema.StatusNew, schema.StatusFailed, true},
		{"new to rejected", schema.StatusNew, schema.StatusRejected, true},
		{"new to filled", schema.StatusNew, schema.StatusFilled, false},
		{"open to partial", schema.StatusOpen, schema.StatusPartialFill, true},
		{"open to filled", schema.StatusOpen, schema.StatusFilled, true},
		{"open to canceled", schema.StatusOpen, schema.StatusCanceled, true},
		{"open to expired", schema.StatusOpen, schema.StatusExpired, true},
		{"open to rejected", schema.StatusOpen, schema.StatusRejected, true},
		{"open to failed", schema.StatusOpen, schema.StatusFailed, false},
		{"partial to filled", schema.StatusPartialFill, schema.StatusFilled, true},
		{"partial to canceled", schema.StatusPartialFill, schema.StatusCanceled, true},
		{"partial to expired", schema.StatusPartialFill, schema.StatusExpired, true},
		{"partial to rejected", schema.StatusPartialFill, schema.StatusRejected, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, allowed(tt.from, tt.to))
		})
	}
}

func TestTerminalStatesAcceptNoTransitions(t *testing.T) {
	terminals := []schema.OrderStatus{
		schema.StatusFilled, schema.StatusCanceled, schema.StatusExpired,
		schema.StatusRejected, schema.StatusFailed,
	}
	for _, from := range terminals {
		assert.Empty(t, transitions[from], from.String())
	}
}

func TestTransitionOutOfTerminalIsNoOp(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.Create("c-1", "BTC-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
	require.NoError(t, err)
	_, err = b.Transition("c-1", schema.StatusRejected, "")
	require.NoError(t, err)

	o, err := b.Transition("c-1", schema.StatusOpen, "ex-1")
	require.NoError(t, err) // no-op, not an error
	assert.Equal(t, schema.StatusRejected, o.Status)
	assert.Empty(t, o.ExchangeID)
}

func TestInvalidTransitionFails(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.Create("c-1", "ETH-USD", schema.SideSell, dec("50"), schema.RouteMaker)
	require.NoError(t, err)
	_, err = b.Transition("c-1", schema.StatusPartialFill, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateFillAutoTransitions(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.Create("c-1", "BTC-USD", schema.SideBuy, dec("1000"), schema.RouteTaker)
	require.NoError(t, err)
	require.NoError(t, b.SetRequestedSize("c-1", dec("0.02")))
	_, err = b.Transition("c-1", schema.StatusOpen, "ex-1")
	require.NoError(t, err)

	o, err := b.UpdateFill("c-1", dec("0.01"), dec("500"), dec("1"))
	require.NoError(t, err)
	assert.Equal(t, schema.StatusPartialFill, o.Status)
	assert.True(t, o.AvgFillPrice().Equal(dec("50000")))

	// 0.0199 of 0.02 is 99.5%, still below the 99.9% threshold
	o, err = b.UpdateFill("c-1", dec("0.0099"), dec("495"), dec("1"))
	require.NoError(t, err)
	assert.Equal(t, schema.StatusPartialFill, o.Status)

	o, err = b.UpdateFill("c-1", dec("0.0001"), dec("5"), dec("0"))
	require.NoError(t, err)
	assert.Equal(t, schema.StatusFilled, o.Status)
	assert.False(t, o.CompletedAt.IsZero())
}

func TestUpdateFillOnTerminalIsNoOp(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.Create("c-1", "BTC-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
	require.NoError(t, err)
	_, err = b.Transition("c-1", schema.StatusFailed, "")
	require.NoError(t, err)

	o, err := b.UpdateFill("c-1", dec("0.001"), dec("50"), dec("0"))
	require.NoError(t, err)
	assert.True(t, o.FilledSize.IsZero())
}

func TestUpdateFillRejectsNonPositiveSize(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.Create("c-1", "BTC-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
	require.NoError(t, err)
	_, err = b.Transition("c-1", schema.StatusOpen, "ex-1")
	require.NoError(t, err)

	_, err = b.UpdateFill("c-1", decimal.Zero, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidFill)
}

func TestQueries(t *testing.T) {
	b, _ := newTestBook(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := b.Create(id, "BTC-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
		require.NoError(t, err)
	}
	_, err := b.Transition("a", schema.StatusOpen, "ex-a")
	require.NoError(t, err)
	_, err = b.Transition("b", schema.StatusRejected, "")
	require.NoError(t, err)

	assert.Len(t, b.Active(), 2)
	assert.Len(t, b.Terminal(), 1)
	assert.Len(t, b.ByStatus(schema.StatusOpen), 1)
	assert.Len(t, b.ByStatus(schema.StatusNew), 1)
}

func TestStaleOrders(t *testing.T) {
	b, clk := newTestBook(t)

	_, err := b.Create("old", "BTC-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
	require.NoError(t, err)
	clk.Advance(10 * time.Minute)
	_, err = b.Create("fresh", "ETH-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
	require.NoError(t, err)

	stale := b.Stale(5 * time.Minute)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ClientID)
}

func TestCleanupKeepsNewestTerminals(t *testing.T) {
	b, clk := newTestBook(t)

	for _, id := range []string{"t1", "t2", "t3", "live"} {
		_, err := b.Create(id, "BTC-USD", schema.SideBuy, dec("100"), schema.RouteTaker)
		require.NoError(t, err)
		clk.Advance(time.Second)
	}
	for _, id := range []string{"t1", "t2", "t3"} {
		_, err := b.Transition(id, schema.StatusRejected, "")
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	evicted := b.Cleanup(1)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 2, b.Len())
	_, ok := b.Get("t3")
	assert.True(t, ok)
	_, ok = b.Get("live")
	assert.True(t, ok)
}

func TestUpdateFillBeforeOpenLeavesOrderUntouched(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.Create("c-early", "BTC-USD", schema.SideBuy, dec("500"), schema.RouteTaker)
	require.NoError(t, err)
	require.NoError(t, b.SetRequestedSize("c-early", dec("0.01")))

	_, err = b.UpdateFill("c-early", dec("0.005"), dec("250"), dec("1.5"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	order, ok := b.Get("c-early")
	require.True(t, ok)
	assert.Equal(t, schema.StatusNew, order.Status)
	assert.True(t, order.FilledSize.IsZero(), "filled size %s recorded by rejected fill", order.FilledSize)
	assert.True(t, order.FilledValue.IsZero())
	assert.True(t, order.Fees.IsZero())
	assert.True(t, order.FirstFillAt.IsZero())
}
