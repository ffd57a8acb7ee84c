package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is the frozen portfolio view one decision cycle runs
// against. Rebuilt from the ledger at cycle start and never mutated
// mid-cycle, so every check in a batch sees the same baseline.
type PortfolioSnapshot struct {
	Taken time.Time

	NAV            decimal.Decimal
	Exposure       map[string]decimal.Decimal // symbol -> open notional
	TierExposure   map[Tier]decimal.Decimal
	TotalAtRiskPct decimal.Decimal
	OpenPositions  int

	DailyPnLPct  decimal.Decimal
	WeeklyPnLPct decimal.Decimal
	LossStreak   int
	HighWater    decimal.Decimal

	LastTradeAt       time.Time
	LastTradeBySymbol map[string]time.Time
	HourlyTrades      int
	DailyTrades       int
	CooldownUntil     map[string]time.Time
}

// SymbolExposure returns the open notional for a symbol, zero if none.
func (s PortfolioSnapshot) SymbolExposure(symbol string) decimal.Decimal {
	if s.Exposure == nil {
		return decimal.Zero
	}
	if v, ok := s.Exposure[symbol]; ok {
		return v
	}
	return decimal.Zero
}

// ExposureForTier returns the open notional for a tier, zero if none.
func (s PortfolioSnapshot) ExposureForTier(tier Tier) decimal.Decimal {
	if s.TierExposure == nil {
		return decimal.Zero
	}
	if v, ok := s.TierExposure[tier]; ok {
		return v
	}
	return decimal.Zero
}

// DrawdownPct returns the percent decline of NAV from the high-water mark.
func (s PortfolioSnapshot) DrawdownPct() decimal.Decimal {
	if s.HighWater.IsZero() || s.NAV.GreaterThanOrEqual(s.HighWater) {
		return decimal.Zero
	}
	return s.HighWater.Sub(s.NAV).Div(s.HighWater).Mul(decimal.NewFromInt(100))
}
