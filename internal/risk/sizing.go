package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

var hundred = decimal.NewFromInt(100)

// capsTracker clamps entry sizes against the frozen snapshot plus the
// notional already committed to earlier approvals in the same batch.
// The engine only ever shrinks a requested size, never grows it.
type capsTracker struct {
	cfg Config
	nav decimal.Decimal

	committedSymbol map[string]decimal.Decimal
	committedTier   map[schema.Tier]decimal.Decimal
	committedTotal  decimal.Decimal
}

func newCapsTracker(cfg Config, nav decimal.Decimal) *capsTracker {
	return &capsTracker{
		cfg:             cfg,
		nav:             nav,
		committedSymbol: make(map[string]decimal.Decimal),
		committedTier:   make(map[schema.Tier]decimal.Decimal),
	}
}

// remaining returns headroom under a percent cap after existing exposure
// and in-batch commitments. A zero cap percent means uncapped.
func (t *capsTracker) remaining(capPct, exposure, committed decimal.Decimal) decimal.Decimal {
	if capPct.IsZero() {
		return t.nav
	}
	left := t.nav.Mul(capPct).Div(hundred).Sub(exposure).Sub(committed)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// caps computes the current capacity view for one proposal.
func (t *capsTracker) caps(p schema.TradeProposal, snap schema.PortfolioSnapshot) schema.CapsSnapshot {
	totalOpen := snap.NAV.Mul(snap.TotalAtRiskPct).Div(hundred)
	return schema.CapsSnapshot{
		SymbolRemaining: t.remaining(t.cfg.MaxSymbolPct, snap.SymbolExposure(p.Symbol), t.committedSymbol[p.Symbol]),
		TierRemaining:   t.remaining(t.cfg.tierCap(p.Tier), snap.ExposureForTier(p.Tier), t.committedTier[p.Tier]),
		TotalRemaining:  t.remaining(t.cfg.MaxTotalRiskPct, totalOpen, t.committedTotal),
		MinNotional:     t.cfg.MinTradeNotional,
	}
}

// clamp reduces the requested notional to fit every cap, then verifies
// the result still clears the configured minimum and the venue minimum
// after estimated fees. Returns the approved notional, the capacity view
// recorded with the decision, and a violation when the size dies.
func (t *capsTracker) clamp(p schema.TradeProposal, snap schema.PortfolioSnapshot, meta schema.ProductMeta) (decimal.Decimal, schema.CapsSnapshot, *schema.Violation) {
	caps := t.caps(p, snap)
	requested := p.Notional(t.nav)

	approved := requested
	for _, limit := range []decimal.Decimal{caps.SymbolRemaining, caps.TierRemaining, caps.TotalRemaining} {
		if limit.LessThan(approved) {
			approved = limit
		}
	}

	if approved.LessThan(t.cfg.MinTradeNotional) {
		shortfall := t.cfg.MinTradeNotional.Sub(approved)
		return decimal.Zero, caps, &schema.Violation{
			Code: schema.ViolationBelowMinAfterCaps,
			Message: fmt.Sprintf("size $%s after caps is below minimum $%s (short $%s)",
				approved.StringFixed(2), t.cfg.MinTradeNotional.StringFixed(2), shortfall.StringFixed(2)),
		}
	}

	if !meta.MinNotional.IsZero() {
		afterFees := approved.Mul(hundred.Sub(t.cfg.EstimatedFeePct)).Div(hundred)
		if afterFees.LessThan(meta.MinNotional) {
			return decimal.Zero, caps, &schema.Violation{
				Code: schema.ViolationVenueMinimum,
				Message: fmt.Sprintf("$%s after estimated fees is below venue minimum $%s for %s",
					afterFees.StringFixed(2), meta.MinNotional.StringFixed(2), p.Symbol),
			}
		}
	}

	return approved, caps, nil
}

// commit reserves an approved notional so later proposals in the same
// batch see reduced capacity.
func (t *capsTracker) commit(p schema.TradeProposal, notional decimal.Decimal) {
	t.committedSymbol[p.Symbol] = t.committedSymbol[p.Symbol].Add(notional)
	t.committedTier[p.Tier] = t.committedTier[p.Tier].Add(notional)
	t.committedTotal = t.committedTotal.Add(notional)
}
