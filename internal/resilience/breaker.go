package resilience

import (
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
)

// BreakerState is the exchange-health circuit state.
type BreakerState uint16

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when the exchange-health circuit trips.
type BreakerConfig struct {
	Threshold int           `json:"threshold"` // consecutive failures before opening
	Cooldown  time.Duration `json:"cooldown"`
}

// Breaker tracks consecutive venue errors plus an explicit venue status
// feed. While open it blocks new admissions (the risk engine reads
// Healthy) without stopping read-only cycles.
type Breaker struct {
	mu sync.Mutex

	cfg BreakerConfig
	clk clock.Clock

	state       BreakerState
	consecutive int
	openedAt    time.Time
	degraded    bool // venue status feed says degraded

	onTrip func(consecutive int)
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig, clk clock.Clock, onTrip func(consecutive int)) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Breaker{cfg: cfg, clk: clk, onTrip: onTrip}
}

// Allow reports whether a call may go out. After the cooldown an open
// breaker admits a single probe (half-open).
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		return false // probe already in flight
	case BreakerOpen:
		if b.clk.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// Record feeds a call outcome into the breaker. A nil error closes a
// half-open breaker and resets the failure streak.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != BreakerClosed {
			logs.Infof("exchange health recovered after %d consecutive errors", b.consecutive)
		}
		b.state = BreakerClosed
		b.consecutive = 0
		return
	}
	if !Retryable(err) {
		// request errors say nothing bad about venue health; a 4xx
		// answer during the half-open probe proves the venue is up
		if b.state == BreakerHalfOpen {
			logs.Infof("exchange health recovered, probe answered after %d consecutive errors", b.consecutive)
			b.state = BreakerClosed
			b.consecutive = 0
		}
		return
	}
	b.consecutive++
	if b.state == BreakerHalfOpen || b.consecutive >= b.cfg.Threshold {
		b.trip()
	}
}

// SetVenueStatus applies an explicit venue status feed observation.
func (b *Breaker) SetVenueStatus(degraded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if degraded && !b.degraded {
		logs.Warnf("venue status feed reports degraded")
	}
	b.degraded = degraded
	if !degraded && b.state == BreakerOpen && b.consecutive < b.cfg.Threshold {
		b.state = BreakerClosed
	}
}

// Healthy reports whether admissions may treat the venue as usable.
func (b *Breaker) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == BreakerClosed && !b.degraded
}

// State returns the current circuit state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) trip() {
	if b.state != BreakerOpen {
		logs.Errorf("exchange health breaker tripped: consecutive=%d", b.consecutive)
		if b.onTrip != nil {
			go b.onTrip(b.consecutive)
		}
	}
	b.state = BreakerOpen
	b.openedAt = b.clk.Now()
}
