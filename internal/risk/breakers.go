package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/alert"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// circuit is one batch-level breaker evaluation result.
type circuit struct {
	violation schema.Violation
	kind      alert.Kind
	value     decimal.Decimal
	threshold decimal.Decimal
}

// evaluateCircuits runs every portfolio circuit breaker against the frozen
// snapshot. Evaluated once per batch; any trip blocks all new entries for
// the cycle.
func (e *Engine) evaluateCircuits(snap schema.PortfolioSnapshot) []circuit {
	var tripped []circuit

	if e.cfg.killSwitchEngaged() {
		tripped = append(tripped, circuit{
			kind: alert.KindKillSwitch,
			violation: schema.Violation{
				Code:    schema.ViolationKillSwitch,
				Message: "kill switch engaged at " + e.cfg.KillSwitchPath + "; remove the file to resume",
			},
		})
	}

	if !e.cfg.DailyStopLossPct.IsZero() {
		loss := snap.DailyPnLPct.Neg()
		if loss.GreaterThanOrEqual(e.cfg.DailyStopLossPct) {
			tripped = append(tripped, circuit{
				kind:      alert.KindDailyStop,
				value:     loss,
				threshold: e.cfg.DailyStopLossPct,
				violation: schema.Violation{
					Code: schema.ViolationDailyStopLoss,
					Message: fmt.Sprintf("daily loss %s%% breached stop %s%%; entries resume at next UTC day",
						loss.StringFixed(2), e.cfg.DailyStopLossPct.StringFixed(2)),
				},
			})
		}
	}

	if !e.cfg.WeeklyStopLossPct.IsZero() {
		loss := snap.WeeklyPnLPct.Neg()
		if loss.GreaterThanOrEqual(e.cfg.WeeklyStopLossPct) {
			tripped = append(tripped, circuit{
				kind:      alert.KindWeeklyStop,
				value:     loss,
				threshold: e.cfg.WeeklyStopLossPct,
				violation: schema.Violation{
					Code: schema.ViolationWeeklyStopLoss,
					Message: fmt.Sprintf("weekly loss %s%% breached stop %s%%; entries resume at next UTC week",
						loss.StringFixed(2), e.cfg.WeeklyStopLossPct.StringFixed(2)),
				},
			})
		}
	}

	if !e.cfg.MaxDrawdownPct.IsZero() {
		dd := snap.DrawdownPct()
		if dd.GreaterThanOrEqual(e.cfg.MaxDrawdownPct) {
			tripped = append(tripped, circuit{
				kind:      alert.KindDrawdown,
				value:     dd,
				threshold: e.cfg.MaxDrawdownPct,
				violation: schema.Violation{
					Code: schema.ViolationMaxDrawdown,
					Message: fmt.Sprintf("drawdown %s%% from high water breached limit %s%%; manual review required",
						dd.StringFixed(2), e.cfg.MaxDrawdownPct.StringFixed(2)),
				},
			})
		}
	}

	if e.healthy != nil && !e.healthy() {
		tripped = append(tripped, circuit{
			kind: alert.KindBreakerTrip,
			violation: schema.Violation{
				Code:    schema.ViolationExchangeHealth,
				Message: "exchange health breaker open; entries resume when the venue recovers",
			},
		})
	}

	return tripped
}

// fireCircuitAlerts raises exactly one alert per tripped circuit. Repeat
// trips within the suppression window stay quiet so a stuck condition
// does not flood the sinks every cycle.
func (e *Engine) fireCircuitAlerts(tripped []circuit, now time.Time) {
	for _, c := range tripped {
		if last, ok := e.lastAlert[c.kind]; ok && now.Sub(last) < e.alertSuppress {
			continue
		}
		e.lastAlert[c.kind] = now
		e.alerts.Fire(alert.Event{
			Kind:      c.kind,
			Value:     c.value,
			Threshold: c.threshold,
			Message:   c.violation.Message,
			At:        now,
		})
	}
}
