package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
)

func TestTryAcquireExhaustsBucket(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	l := NewLimiter(map[string]LimitConfig{
		"place_order": {Capacity: 2, RefillPer: 0.001},
	}, clk)

	assert.True(t, l.TryAcquire("place_order"))
	assert.True(t, l.TryAcquire("place_order"))
	assert.False(t, l.TryAcquire("place_order"))
	assert.Equal(t, uint64(1), l.Violations("place_order"))
}

func TestUtilizationRollingWindow(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	l := NewLimiter(map[string]LimitConfig{
		"get_quote": {Capacity: 10, RefillPer: 100},
	}, clk)

	for i := 0; i < 5; i++ {
		require.True(t, l.TryAcquire("get_quote"))
	}
	assert.InDelta(t, 0.5, l.Utilization("get_quote"), 1e-9)

	clk.Advance(2 * time.Second)
	assert.Zero(t, l.Utilization("get_quote"))
}

func TestAcquireBlockingHonorsContext(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	l := NewLimiter(map[string]LimitConfig{
		"list_fills": {Capacity: 1, RefillPer: 0.0001},
	}, clk)

	require.NoError(t, l.Acquire(context.Background(), "list_fills"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "list_fills")
	assert.Error(t, err)
}

func TestUnknownEndpointGetsDefaultBucket(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	l := NewLimiter(nil, clk)

	assert.True(t, l.TryAcquire("unconfigured"))
	assert.False(t, l.TryAcquire("unconfigured"))
}
