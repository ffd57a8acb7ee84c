package resilience

import "context"

// Guard composes the rate limiter, retrier and health breaker into the
// single wrapper every venue call passes through.
type Guard struct {
	limiter *Limiter
	retrier *Retrier
	breaker *Breaker
}

// NewGuard wires the three resilience components together.
func NewGuard(limiter *Limiter, retrier *Retrier, breaker *Breaker) *Guard {
	return &Guard{limiter: limiter, retrier: retrier, breaker: breaker}
}

// Call runs fn for the endpoint behind throttling, retries and the
// circuit breaker. The breaker sees only the final outcome, so one
// retried blip does not count as several failures.
func (g *Guard) Call(ctx context.Context, endpoint string, fn func(context.Context) error) error {
	if !g.breaker.Allow() {
		return ErrBreakerOpen
	}
	err := g.retrier.Do(ctx, endpoint, func(ctx context.Context) error {
		if err := g.limiter.Acquire(ctx, endpoint); err != nil {
			return err
		}
		return fn(ctx)
	})
	g.breaker.Record(err)
	return err
}

// Limiter exposes the wrapped limiter for utilization reporting.
func (g *Guard) Limiter() *Limiter { return g.limiter }

// Breaker exposes the wrapped breaker for health checks.
func (g *Guard) Breaker() *Breaker { return g.breaker }
