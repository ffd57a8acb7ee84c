package resilience

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
)

func TestDelayWithinBounds(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 6, Base: 250 * time.Millisecond, Cap: 8 * time.Second}
	rng := rand.New(rand.NewSource(42))

	for attempt := 0; attempt < 6; attempt++ {
		ceil := policy.Base << uint(attempt)
		if ceil > policy.Cap {
			ceil = policy.Cap
		}
		for i := 0; i < 1000; i++ {
			d := policy.Delay(attempt, rng)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, ceil)
		}
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	r := NewRetrier(RetryPolicy{MaxAttempts: 4, Base: 100 * time.Millisecond, Cap: time.Second}, clk)

	calls := 0
	err := r.Do(context.Background(), "place_order", func(context.Context) error {
		calls++
		if calls < 3 {
			return ErrServer
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, clk.Slept(), 2)
}

func TestDoSurfacesOriginalErrorAfterExhaustion(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	r := NewRetrier(RetryPolicy{MaxAttempts: 3, Base: 100 * time.Millisecond, Cap: time.Second}, clk)

	calls := 0
	err := r.Do(context.Background(), "get_quote", func(context.Context) error {
		calls++
		return ErrRateLimited
	})
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, calls)
	// no sleep after the final attempt
	assert.Len(t, clk.Slept(), 2)
}

func TestDoDoesNotRetryRequestErrors(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	r := NewRetrier(DefaultRetryPolicy(), clk)

	badRequest := errors.New("insufficient funds")
	calls := 0
	err := r.Do(context.Background(), "place_order", func(context.Context) error {
		calls++
		return badRequest
	})
	require.ErrorIs(t, err, badRequest)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.Slept())
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(ErrRateLimited))
	assert.True(t, Retryable(ErrServer))
	assert.True(t, Retryable(ErrTransport))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(errors.New("bad request")))
}

func TestOnRetryObserverCountsAttempts(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	r := NewRetrier(RetryPolicy{MaxAttempts: 3, Base: 50 * time.Millisecond, Cap: time.Second}, clk)

	counts := map[string]int{}
	r.OnRetry(func(op string) { counts[op]++ })

	err := r.Do(context.Background(), "list_fills", func(context.Context) error {
		return ErrRateLimited
	})
	require.Error(t, err)
	assert.Equal(t, 2, counts["list_fills"])
}
