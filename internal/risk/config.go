package risk

import (
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// Config defines the admission-control limits. All percent fields are
// expressed as whole percents (3 means 3%). Zero disables a limit unless
// noted otherwise.
type Config struct {
	Version        uint16 `json:"version"`
	KillSwitchPath string `json:"killSwitchPath"`

	// circuit breakers (loss thresholds are positive magnitudes)
	DailyStopLossPct  decimal.Decimal `json:"dailyStopLossPct"`
	WeeklyStopLossPct decimal.Decimal `json:"weeklyStopLossPct"`
	MaxDrawdownPct    decimal.Decimal `json:"maxDrawdownPct"`

	// pacing
	TradeSpacing     time.Duration `json:"tradeSpacing"`
	SymbolSpacing    time.Duration `json:"symbolSpacing"`
	MaxTradesPerHour int           `json:"maxTradesPerHour"`
	MaxTradesPerDay  int           `json:"maxTradesPerDay"`

	// cooldowns; must order win < loss < stop
	CooldownWin     time.Duration `json:"cooldownWin"`
	CooldownLoss    time.Duration `json:"cooldownLoss"`
	CooldownStop    time.Duration `json:"cooldownStop"`
	StreakThreshold int           `json:"streakThreshold"`
	StreakCooldown  time.Duration `json:"streakCooldown"`

	// exposure caps
	MaxSymbolPct     decimal.Decimal                 `json:"maxSymbolPct"`
	TierCapPct       map[schema.Tier]decimal.Decimal `json:"-"`
	TierCapPctNames  map[string]decimal.Decimal      `json:"tierCapPct"`
	MaxTotalRiskPct  decimal.Decimal                 `json:"maxTotalRiskPct"`
	MinTradeNotional decimal.Decimal                 `json:"minTradeNotional"`

	// estimated taker fee used for venue-minimum headroom, whole percent
	EstimatedFeePct decimal.Decimal `json:"estimatedFeePct"`

	// quiet window for repeated circuit alerts; zero fires every cycle
	AlertSuppress time.Duration `json:"alertSuppress"`
}

// DefaultConfig returns conservative limits suitable for paper trading.
func DefaultConfig() Config {
	return Config{
		Version:           1,
		DailyStopLossPct:  decimal.NewFromInt(3),
		WeeklyStopLossPct: decimal.NewFromInt(8),
		MaxDrawdownPct:    decimal.NewFromInt(15),
		TradeSpacing:      90 * time.Second,
		SymbolSpacing:     10 * time.Minute,
		MaxTradesPerHour:  6,
		MaxTradesPerDay:   20,
		CooldownWin:       15 * time.Minute,
		CooldownLoss:      45 * time.Minute,
		CooldownStop:      2 * time.Hour,
		StreakThreshold:   3,
		StreakCooldown:    4 * time.Hour,
		MaxSymbolPct:      decimal.NewFromInt(20),
		TierCapPct: map[schema.Tier]decimal.Decimal{
			schema.TierCore:        decimal.NewFromInt(60),
			schema.TierSatellite:   decimal.NewFromInt(30),
			schema.TierSpeculative: decimal.NewFromInt(10),
		},
		MaxTotalRiskPct:  decimal.NewFromInt(80),
		MinTradeNotional: decimal.NewFromInt(5),
		EstimatedFeePct:  decimal.RequireFromString("0.6"),
	}
}

// Validate rejects configurations that would misbehave at runtime.
func (c Config) Validate() error {
	if c.CooldownWin >= c.CooldownLoss {
		return errors.New("cooldownWin must be shorter than cooldownLoss")
	}
	if c.CooldownLoss >= c.CooldownStop {
		return errors.New("cooldownLoss must be shorter than cooldownStop")
	}
	if c.MinTradeNotional.IsNegative() {
		return errors.New("minTradeNotional must not be negative")
	}
	for _, pct := range []decimal.Decimal{
		c.DailyStopLossPct, c.WeeklyStopLossPct, c.MaxDrawdownPct,
		c.MaxSymbolPct, c.MaxTotalRiskPct, c.EstimatedFeePct,
	} {
		if pct.IsNegative() {
			return errors.New("percent limits must not be negative")
		}
	}
	if c.StreakThreshold < 0 {
		return errors.New("streakThreshold must not be negative")
	}
	return nil
}

// ResolveTiers populates the typed tier cap map from the JSON name map.
// Unknown tier names are an error so a typo never silently drops a cap.
func (c *Config) ResolveTiers() error {
	if len(c.TierCapPctNames) == 0 {
		return nil
	}
	c.TierCapPct = make(map[schema.Tier]decimal.Decimal, len(c.TierCapPctNames))
	for name, pct := range c.TierCapPctNames {
		var tier schema.Tier
		switch name {
		case "core":
			tier = schema.TierCore
		case "satellite":
			tier = schema.TierSatellite
		case "speculative":
			tier = schema.TierSpeculative
		default:
			return errors.New("unknown tier name: " + name)
		}
		c.TierCapPct[tier] = pct
	}
	return nil
}

// tierCap returns the cap percent for a tier, zero meaning uncapped.
func (c Config) tierCap(t schema.Tier) decimal.Decimal {
	if c.TierCapPct == nil {
		return decimal.Zero
	}
	return c.TierCapPct[t]
}

// killSwitchEngaged reports whether the kill-switch sentinel file exists.
// Any stat error other than not-exist is treated as engaged.
func (c Config) killSwitchEngaged() bool {
	if c.KillSwitchPath == "" {
		return false
	}
	_, err := os.Stat(c.KillSwitchPath)
	if err == nil {
		return true
	}
	return !os.IsNotExist(err)
}
