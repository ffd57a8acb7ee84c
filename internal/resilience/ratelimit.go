package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
)

// LimitConfig defines one endpoint's token bucket.
type LimitConfig struct {
	Capacity  int     `json:"capacity"`
	RefillPer float64 `json:"refillPerSecond"`
}

// Utilization thresholds for alerting.
const (
	UtilizationWarn     = 0.7
	UtilizationCritical = 0.9
)

type bucket struct {
	lim        *rate.Limiter
	capacity   int
	calls      []time.Time // rolling 1-second window
	violations uint64
}

// Limiter holds one token bucket per external operation. Acquire blocks
// until a token is available, so callers throttle proactively instead of
// ever reaching the venue's hard limit.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	clk     clock.Clock
}

// NewLimiter builds buckets for the configured endpoints.
func NewLimiter(cfgs map[string]LimitConfig, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.Real{}
	}
	buckets := make(map[string]*bucket, len(cfgs))
	for endpoint, cfg := range cfgs {
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 1
		}
		refill := cfg.RefillPer
		if refill <= 0 {
			refill = float64(capacity)
		}
		buckets[endpoint] = &bucket{
			lim:      rate.NewLimiter(rate.Limit(refill), capacity),
			capacity: capacity,
		}
	}
	return &Limiter{buckets: buckets, clk: clk}
}

// Acquire blocks until a token for the endpoint is available or the
// context is canceled.
func (l *Limiter) Acquire(ctx context.Context, endpoint string) error {
	b := l.bucket(endpoint)
	if err := b.lim.Wait(ctx); err != nil {
		return err
	}
	l.record(b)
	return nil
}

// TryAcquire reports whether a token was immediately available.
func (l *Limiter) TryAcquire(endpoint string) bool {
	b := l.bucket(endpoint)
	if !b.lim.Allow() {
		l.mu.Lock()
		b.violations++
		l.mu.Unlock()
		return false
	}
	l.record(b)
	return true
}

// Utilization returns calls-in-last-second over bucket capacity.
func (l *Limiter) Utilization(endpoint string) float64 {
	b := l.bucket(endpoint)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(b)
	return float64(len(b.calls)) / float64(b.capacity)
}

// Violations returns the count of rejected non-blocking acquires.
func (l *Limiter) Violations(endpoint string) uint64 {
	b := l.bucket(endpoint)
	l.mu.Lock()
	defer l.mu.Unlock()
	return b.violations
}

// Endpoints returns the configured endpoint names.
func (l *Limiter) Endpoints() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.buckets))
	for endpoint := range l.buckets {
		out = append(out, endpoint)
	}
	return out
}

func (l *Limiter) bucket(endpoint string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[endpoint]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(1), 1), capacity: 1}
		l.buckets[endpoint] = b
	}
	return b
}

func (l *Limiter) record(b *bucket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b.calls = append(b.calls, l.clk.Now())
	l.pruneLocked(b)
}

func (l *Limiter) pruneLocked(b *bucket) {
	cutoff := l.clk.Now().Add(-time.Second)
	idx := 0
	for idx < len(b.calls) && !b.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		b.calls = b.calls[idx:]
	}
}
