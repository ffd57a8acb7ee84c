package resilience

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
)

// RetryPolicy bounds retry behavior for one class of external call.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// DefaultRetryPolicy provides conservative retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		Base:        250 * time.Millisecond,
		Cap:         8 * time.Second,
	}
}

// Delay returns the backoff before retry number attempt (0-based), drawn
// uniformly from [0, min(cap, base*2^attempt)]. Full jitter keeps
// concurrent failures from retrying in lockstep.
func (p RetryPolicy) Delay(attempt int, rng *rand.Rand) time.Duration {
	base := p.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	cap := p.Cap
	if cap <= 0 {
		cap = 5 * time.Second
	}
	ceil := base
	for i := 0; i < attempt; i++ {
		ceil *= 2
		if ceil >= cap {
			ceil = cap
			break
		}
	}
	if ceil > cap {
		ceil = cap
	}
	return time.Duration(rng.Float64() * float64(ceil))
}

// Retrier wraps external calls with capped, jittered retries. The clock
// is injected so tests run without wall-clock delay.
type Retrier struct {
	policy  RetryPolicy
	clk     clock.Clock
	onRetry func(op string)

	mu  sync.Mutex
	rng *rand.Rand
}

// OnRetry installs a callback invoked before each retry attempt, keyed
// by operation name. Used to feed retry counters.
func (r *Retrier) OnRetry(fn func(op string)) {
	r.onRetry = fn
}

// NewRetrier creates a retrier with the given policy.
func NewRetrier(policy RetryPolicy, clk clock.Clock) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Retrier{
		policy: policy,
		clk:    clk,
		rng:    rand.New(rand.NewSource(time.Now().UTC().UnixNano())),
	}
}

// Do invokes fn, retrying transient failures. The original error is
// surfaced after the final attempt; no sleep follows it.
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if attempt == r.policy.MaxAttempts-1 {
			break
		}
		r.mu.Lock()
		delay := r.policy.Delay(attempt, r.rng)
		r.mu.Unlock()
		if r.onRetry != nil {
			r.onRetry(op)
		}
		logs.Warnf("retry %s: attempt=%d delay=%s err=%v", op, attempt+1, delay, lastErr)
		if err := r.clk.Sleep(ctx, delay); err != nil {
			return lastErr
		}
	}
	return lastErr
}
