package venue

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// ChaosConfig controls fill-stream fault injection for resilience
// testing against the sim venue.
type ChaosConfig struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	MaxDelay      time.Duration
}

// Validate rejects rates outside [0, 1].
func (c ChaosConfig) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate out of range: %f", c.DropRate)
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicate rate out of range: %f", c.DuplicateRate)
	}
	return nil
}

// FillChaos perturbs a fill stream: drops, duplicates and timestamp
// skew. Deterministic for a fixed seed.
type FillChaos struct {
	cfg ChaosConfig
	rng *rand.Rand
}

// NewFillChaos creates a chaos injector with validation.
func NewFillChaos(cfg ChaosConfig) (*FillChaos, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &FillChaos{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Apply returns the perturbed fill stream.
func (c *FillChaos) Apply(fills []schema.Fill) []schema.Fill {
	out := make([]schema.Fill, 0, len(fills))
	for _, fill := range fills {
		if c.cfg.DropRate > 0 && c.rng.Float64() < c.cfg.DropRate {
			continue
		}
		if c.cfg.MaxDelay > 0 {
			fill.Timestamp = fill.Timestamp.Add(time.Duration(c.rng.Int63n(int64(c.cfg.MaxDelay))))
		}
		out = append(out, fill)
		if c.cfg.DuplicateRate > 0 && c.rng.Float64() < c.cfg.DuplicateRate {
			out = append(out, fill)
		}
	}
	return out
}
