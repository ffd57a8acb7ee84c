package loop

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/alert"
	"github.com/aelhadee/247trader-V2-sub000/internal/audit"
	"github.com/aelhadee/247trader-V2-sub000/internal/resilience"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// RunCycle executes one full decision cycle and returns its audit
// record. Every failure inside the cycle degrades to "no trade this
// cycle"; nothing propagates out.
func (l *Loop) RunCycle(ctx context.Context) audit.CycleRecord {
	started := l.clk.Now()
	rec := audit.CycleRecord{
		Timestamp:   started,
		Mode:        l.mode.String(),
		Status:      "ok",
		ConfigHash:  l.configHash,
		StageMillis: make(map[string]int64),
	}

	// snapshot
	stageStart := l.clk.Now()
	nav := l.computeNAV(ctx)
	l.led.ObserveNAV(nav)
	snap := l.led.Snapshot(nav)
	rec.NAV = nav
	l.endStage(&rec, "snapshot", stageStart, l.cfg.SnapshotBudget)

	proposals, err := l.src.Proposals(ctx, snap)
	if err != nil {
		logs.Errorf("proposal source failed: %v", err)
		rec.Status = "no_proposals"
		l.finishCycle(&rec, started)
		return rec
	}
	rec.Proposals = len(proposals)

	// quote-independent metadata is prefetched concurrently; results
	// join before the sequential admission step
	meta := l.prefetchMeta(ctx, proposals)

	// admission
	stageStart = l.clk.Now()
	approved, decisions := l.risk().CheckAll(proposals, snap, meta)
	l.metrics.ObserveRiskEval(l.clk.Now().Sub(stageStart))
	rec.Decisions = decisions
	rec.Approved = len(approved)
	for _, d := range decisions {
		l.metrics.ObserveDecision(d)
	}
	l.endStage(&rec, "admission", stageStart, l.cfg.AdmissionBudget)

	// execution
	stageStart = l.clk.Now()
	for _, ap := range approved {
		result, execErr := l.execEng.Execute(ctx, ap, started)
		if execErr != nil {
			logs.Errorf("execute %s %s: %v", ap.Proposal.Side, ap.Proposal.Symbol, execErr)
			rec.Status = "degraded"
			continue
		}
		l.metrics.ObserveOrder(result.Status)
		rec.Orders = append(rec.Orders, audit.OrderEvent{
			ClientID:   result.ClientID,
			ExchangeID: result.ExchangeID,
			Symbol:     result.Symbol,
			Side:       result.Side.String(),
			Route:      result.Route.String(),
			Status:     result.Status.String(),
			Reason:     result.Reason,
			Realized:   result.Realized,
		})
	}
	l.endStage(&rec, "execution", stageStart, l.cfg.ExecutionBudget)

	// reconciliation
	stageStart = l.clk.Now()
	if applied, recErr := l.execEng.ReconcileFills(ctx, l.lastFillSync); recErr != nil {
		logs.Warnf("fill reconciliation failed: %v", recErr)
		rec.Status = "degraded"
	} else if applied > 0 {
		logs.Infof("reconciled %d fills", applied)
	}
	l.lastFillSync = stageStart
	if l.cfg.StaleOrderAge > 0 {
		l.execEng.SweepStale(ctx, l.cfg.StaleOrderAge)
	}
	if l.cfg.KeepTerminalOrders > 0 {
		l.book.Cleanup(l.cfg.KeepTerminalOrders)
	}
	if l.store != nil {
		if saveErr := l.store.Save(l.led); saveErr != nil {
			logs.Errorf("ledger persistence failed: %v", saveErr)
			rec.Status = "degraded"
		}
	}
	l.endStage(&rec, "reconcile", stageStart, l.cfg.ReconcileBudget)

	rec.DailyPnL = l.led.DailyPnL()
	rec.WeeklyPnL = l.led.WeeklyPnL()
	navF, _ := nav.Float64()
	dailyF, _ := rec.DailyPnL.Float64()
	l.metrics.SetNAV(navF, dailyF)

	l.observeUtilization()
	l.finishCycle(&rec, started)
	return rec
}

// computeNAV values the portfolio as quote-currency cash plus open
// exposure at entry. A balance fetch failure reuses the last observed
// NAV rather than treating the portfolio as empty.
func (l *Loop) computeNAV(ctx context.Context) decimal.Decimal {
	nav := decimal.Zero
	balances, err := l.client.GetAccounts(ctx)
	if err != nil {
		logs.Warnf("balance fetch failed, reusing last NAV: %v", err)
		return l.lastNAV
	}
	for _, b := range balances {
		if b.Currency == "USD" || b.Currency == "USDC" {
			nav = nav.Add(b.Available).Add(b.Hold)
		}
	}
	for _, pos := range l.led.Positions() {
		nav = nav.Add(pos.Quantity.Mul(pos.AvgEntryPrice))
	}
	l.lastNAV = nav
	return nav
}

// prefetchMeta fetches product metadata for the batch's symbols
// concurrently through the TTL cache.
func (l *Loop) prefetchMeta(ctx context.Context, proposals []schema.TradeProposal) map[string]schema.ProductMeta {
	if l.meta == nil {
		return nil
	}
	symbols := make(map[string]struct{}, len(proposals))
	for _, p := range proposals {
		symbols[p.Symbol] = struct{}{}
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]schema.ProductMeta, len(symbols))
	)
	for symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			m, err := l.meta.GetProductMeta(ctx, symbol)
			if err != nil {
				logs.Warnf("product meta for %s unavailable: %v", symbol, err)
				return
			}
			mu.Lock()
			out[symbol] = m
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return out
}

func (l *Loop) endStage(rec *audit.CycleRecord, stage string, start time.Time, budget time.Duration) {
	elapsed := l.clk.Now().Sub(start)
	rec.StageMillis[stage] = elapsed.Milliseconds()
	l.metrics.ObserveStage(stage, elapsed)
	if budget > 0 && elapsed > budget {
		logs.Warnf("stage %s took %s, budget %s", stage, elapsed.Round(time.Millisecond), budget)
	}
}

// finishCycle closes the total budget accounting. Repeated hard-budget
// breaches fire an operator alert.
func (l *Loop) finishCycle(rec *audit.CycleRecord, started time.Time) {
	total := l.clk.Now().Sub(started)
	rec.StageMillis["total"] = total.Milliseconds()
	l.metrics.IncCycle(total)

	if l.cfg.TotalBudget <= 0 || total <= l.cfg.TotalBudget {
		l.totalBreaches = 0
		return
	}
	l.totalBreaches++
	logs.Warnf("cycle took %s, budget %s (%d consecutive breaches)",
		total.Round(time.Millisecond), l.cfg.TotalBudget, l.totalBreaches)
	if l.totalBreaches >= l.cfg.TotalBreachLimit {
		l.alerts.Fire(alert.Event{
			Kind:      alert.KindCycleBudget,
			Value:     decimal.NewFromInt(total.Milliseconds()),
			Threshold: decimal.NewFromInt(l.cfg.TotalBudget.Milliseconds()),
			Message:   "cycle total budget breached repeatedly",
			At:        l.clk.Now(),
		})
		l.totalBreaches = 0
	}
}

// observeUtilization publishes rate-limit gauges and alerts on
// sustained critical utilization.
func (l *Loop) observeUtilization() {
	if l.limiter == nil {
		return
	}
	for _, endpoint := range l.limiter.Endpoints() {
		u := l.limiter.Utilization(endpoint)
		l.metrics.SetUtilization(endpoint, u)

		if u >= resilience.UtilizationCritical {
			l.utilHigh[endpoint]++
		} else {
			l.utilHigh[endpoint] = 0
			if u >= resilience.UtilizationWarn {
				logs.Warnf("rate limit utilization for %s at %.0f%%", endpoint, u*100)
			}
			continue
		}
		if l.cfg.SustainedUtilSamples > 0 && l.utilHigh[endpoint] >= l.cfg.SustainedUtilSamples {
			l.alerts.Fire(alert.Event{
				Kind:      alert.KindRateLimitUtilization,
				Symbol:    endpoint,
				Value:     decimal.NewFromFloat(u),
				Threshold: decimal.NewFromFloat(resilience.UtilizationCritical),
				Message:   "sustained critical rate-limit utilization on " + endpoint,
				At:        l.clk.Now(),
			})
			l.utilHigh[endpoint] = 0
		}
	}
}
