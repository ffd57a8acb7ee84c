package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side describes trade direction.
type Side uint16

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Tier is the liquidity/quality bucket a symbol belongs to. Per-tier
// exposure caps are keyed by this value.
type Tier uint16

const (
	TierUnknown Tier = iota
	TierCore
	TierSatellite
	TierSpeculative
)

func (t Tier) String() string {
	switch t {
	case TierCore:
		return "core"
	case TierSatellite:
		return "satellite"
	case TierSpeculative:
		return "speculative"
	default:
		return "unknown"
	}
}

// TradeProposal is a raw trade request produced by the upstream rules/AI
// layer. Immutable once handed to the risk engine; consumed exactly once
// per cycle.
type TradeProposal struct {
	Symbol     string
	Side       Side
	SizePct    decimal.Decimal // requested size as percent of NAV
	Tier       Tier
	Conviction float64 // 0..1
	Notes      string  // free-form provenance
	CreatedAt  time.Time
}

// Notional resolves the proposal size against a NAV figure.
func (p TradeProposal) Notional(nav decimal.Decimal) decimal.Decimal {
	return nav.Mul(p.SizePct).Div(decimal.NewFromInt(100))
}

// ApprovedProposal is a proposal that passed admission control, carrying
// its possibly reduced size. The engine never increases a requested size.
type ApprovedProposal struct {
	Proposal         TradeProposal
	ApprovedPct      decimal.Decimal
	ApprovedNotional decimal.Decimal
}
