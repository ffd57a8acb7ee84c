package risk

import (
	"fmt"
	"time"

	"github.com/aelhadee/247trader-V2-sub000/internal/alert"
	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// Engine is the admission gate between proposal generation and execution.
// Every check runs against the frozen snapshot handed to CheckAll, so a
// batch decision is a pure function of its inputs; the engine keeps no
// portfolio state of its own.
type Engine struct {
	cfg     Config
	healthy func() bool
	alerts  *alert.Notifier
	clk     clock.Clock

	lastAlert     map[alert.Kind]time.Time
	alertSuppress time.Duration
}

// NewEngine creates a risk engine. healthy reports exchange connectivity
// health and may be nil when no breaker is wired (tests, replay).
func NewEngine(cfg Config, healthy func() bool, alerts *alert.Notifier, clk clock.Clock) *Engine {
	if alerts == nil {
		alerts = alert.NewNotifier()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Engine{
		cfg:           cfg,
		healthy:       healthy,
		alerts:        alerts,
		clk:           clk,
		lastAlert:     make(map[alert.Kind]time.Time),
		alertSuppress: cfg.AlertSuppress,
	}
}

// CheckAll evaluates one cycle's proposal batch in order:
//
//  1. portfolio circuit breakers, once for the whole batch
//  2. pacing and cooldowns per proposal
//  3. exposure caps with in-batch commitment tracking
//  4. minimum notional, configured and venue
//
// A tripped circuit rejects every entry in the batch but never blocks
// closing orders. Decisions come back in proposal order, one per input;
// approved proposals retain their possibly reduced size.
func (e *Engine) CheckAll(proposals []schema.TradeProposal, snap schema.PortfolioSnapshot, meta map[string]schema.ProductMeta) ([]schema.ApprovedProposal, []schema.RiskDecision) {
	now := e.clk.Now()
	tripped := e.evaluateCircuits(snap)
	e.fireCircuitAlerts(tripped, now)

	batchViolations := make([]schema.Violation, 0, len(tripped))
	for _, c := range tripped {
		batchViolations = append(batchViolations, c.violation)
	}

	tracker := newCapsTracker(e.cfg, snap.NAV)
	decisions := make([]schema.RiskDecision, 0, len(proposals))
	approved := make([]schema.ApprovedProposal, 0, len(proposals))
	approvedEntries := 0

	for _, p := range proposals {
		d := schema.RiskDecision{
			Symbol:       p.Symbol,
			Side:         p.Side,
			RequestedPct: p.SizePct,
			DecidedAt:    now,
		}

		if p.Side == schema.SideSell {
			e.decideExit(&d, p, snap, meta[p.Symbol])
			if d.Approved {
				approved = append(approved, schema.ApprovedProposal{
					Proposal:         p,
					ApprovedPct:      d.ApprovedPct,
					ApprovedNotional: d.ApprovedNotional,
				})
			}
			decisions = append(decisions, d)
			continue
		}

		if len(batchViolations) > 0 {
			d.Violations = append(d.Violations, batchViolations...)
			d.Caps = tracker.caps(p, snap)
			decisions = append(decisions, d)
			continue
		}

		if v := e.checkPacing(p, snap, now, approvedEntries); v != nil {
			d.Violations = append(d.Violations, *v)
			d.Caps = tracker.caps(p, snap)
			decisions = append(decisions, d)
			continue
		}

		notional, caps, v := tracker.clamp(p, snap, meta[p.Symbol])
		d.Caps = caps
		if v != nil {
			d.Violations = append(d.Violations, *v)
			decisions = append(decisions, d)
			continue
		}

		tracker.commit(p, notional)
		approvedEntries++
		d.Approved = true
		d.ApprovedNotional = notional
		if !snap.NAV.IsZero() {
			d.ApprovedPct = notional.Div(snap.NAV).Mul(hundred)
		}
		approved = append(approved, schema.ApprovedProposal{
			Proposal:         p,
			ApprovedPct:      d.ApprovedPct,
			ApprovedNotional: d.ApprovedNotional,
		})
		decisions = append(decisions, d)
	}

	return approved, decisions
}

// decideExit admits a closing order. Exits bypass circuit breakers,
// pacing and exposure caps; they are clamped to the open position and
// still honor the venue minimum so the venue will not bounce them.
func (e *Engine) decideExit(d *schema.RiskDecision, p schema.TradeProposal, snap schema.PortfolioSnapshot, meta schema.ProductMeta) {
	open := snap.SymbolExposure(p.Symbol)
	if open.IsZero() {
		d.Violations = append(d.Violations, schema.Violation{
			Code:    schema.ViolationNoOpenPosition,
			Message: "no open position in " + p.Symbol + " to close",
		})
		return
	}

	notional := p.Notional(snap.NAV)
	if open.LessThan(notional) {
		notional = open
	}

	if !meta.MinNotional.IsZero() && notional.LessThan(meta.MinNotional) {
		// dust below the venue minimum can only be closed full-position
		if open.GreaterThanOrEqual(meta.MinNotional) {
			d.Violations = append(d.Violations, schema.Violation{
				Code: schema.ViolationVenueMinimum,
				Message: fmt.Sprintf("partial close $%s below venue minimum $%s; close at least the minimum",
					notional.StringFixed(2), meta.MinNotional.StringFixed(2)),
			})
			return
		}
		notional = open
	}

	d.Approved = true
	d.ApprovedNotional = notional
	if !snap.NAV.IsZero() {
		d.ApprovedPct = notional.Div(snap.NAV).Mul(hundred)
	}
}
