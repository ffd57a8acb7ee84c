package risk

import (
	"fmt"
	"time"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// checkPacing applies trade spacing, hourly/daily ceilings and symbol
// cooldowns to one entry proposal. approvedInBatch counts proposals
// already admitted earlier in this cycle so a batch cannot overshoot a
// ceiling that each proposal alone would pass.
func (e *Engine) checkPacing(p schema.TradeProposal, snap schema.PortfolioSnapshot, now time.Time, approvedInBatch int) *schema.Violation {
	if e.cfg.TradeSpacing > 0 && !snap.LastTradeAt.IsZero() {
		if since := now.Sub(snap.LastTradeAt); since < e.cfg.TradeSpacing {
			return &schema.Violation{
				Code: schema.ViolationTradeSpacing,
				Message: fmt.Sprintf("last trade %s ago, spacing requires %s; retry in %s",
					since.Round(time.Second), e.cfg.TradeSpacing, (e.cfg.TradeSpacing - since).Round(time.Second)),
			}
		}
	}

	if e.cfg.SymbolSpacing > 0 {
		if last, ok := snap.LastTradeBySymbol[p.Symbol]; ok {
			if since := now.Sub(last); since < e.cfg.SymbolSpacing {
				return &schema.Violation{
					Code: schema.ViolationSymbolSpacing,
					Message: fmt.Sprintf("%s traded %s ago, per-symbol spacing requires %s",
						p.Symbol, since.Round(time.Second), e.cfg.SymbolSpacing),
				}
			}
		}
	}

	if e.cfg.MaxTradesPerHour > 0 && snap.HourlyTrades+approvedInBatch >= e.cfg.MaxTradesPerHour {
		return &schema.Violation{
			Code: schema.ViolationHourlyTradeLimit,
			Message: fmt.Sprintf("hourly trade ceiling %d reached (%d recorded, %d pending this cycle)",
				e.cfg.MaxTradesPerHour, snap.HourlyTrades, approvedInBatch),
		}
	}

	if e.cfg.MaxTradesPerDay > 0 && snap.DailyTrades+approvedInBatch >= e.cfg.MaxTradesPerDay {
		return &schema.Violation{
			Code: schema.ViolationDailyTradeLimit,
			Message: fmt.Sprintf("daily trade ceiling %d reached (%d recorded, %d pending this cycle)",
				e.cfg.MaxTradesPerDay, snap.DailyTrades, approvedInBatch),
		}
	}

	if until, ok := snap.CooldownUntil[p.Symbol]; ok && now.Before(until) {
		return &schema.Violation{
			Code: schema.ViolationSymbolCooldown,
			Message: fmt.Sprintf("%s cooling down until %s (%s remaining)",
				p.Symbol, until.Format(time.RFC3339), until.Sub(now).Round(time.Second)),
		}
	}

	if e.cfg.StreakThreshold > 0 && snap.LossStreak >= e.cfg.StreakThreshold &&
		!snap.LastTradeAt.IsZero() && now.Sub(snap.LastTradeAt) < e.cfg.StreakCooldown {
		return &schema.Violation{
			Code: schema.ViolationStreakCooldown,
			Message: fmt.Sprintf("%d consecutive losses; entries paused %s since last trade",
				snap.LossStreak, e.cfg.StreakCooldown),
		}
	}

	return nil
}
