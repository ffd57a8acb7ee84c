package exec

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/ledger"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// applyFill folds one confirmed fill into the order book and the ledger,
// applying the outcome cooldown when a close realizes PnL. Shared by the
// paper route and live reconciliation so the accounting path is single.
func (e *Engine) applyFill(fill schema.Fill, tier schema.Tier, stopOut bool) ledger.CloseResult {
	if _, err := e.book.UpdateFill(fill.OrderClientID, fill.Size, fill.Value(), fill.Fee); err != nil {
		logs.Warnf("fill for %s not applied to order book: %v", fill.OrderClientID, err)
	}

	res := e.led.ApplyFill(fill, tier, stopOut)
	if res.Outcome != ledger.OutcomeNone {
		e.led.SetCooldown(fill.Symbol, e.clk.Now().Add(e.cooldownFor(res.Outcome)))
	}
	return res
}

func (e *Engine) cooldownFor(outcome ledger.Outcome) time.Duration {
	switch outcome {
	case ledger.OutcomeStopLoss:
		return e.cfg.CooldownStop
	case ledger.OutcomeLoss:
		return e.cfg.CooldownLoss
	default:
		return e.cfg.CooldownWin
	}
}

// ReconcileFills pulls fills recorded at the venue since the given time
// and applies the ones belonging to orders this engine submitted. Fills
// for unknown or already-terminal orders are logged and skipped, never
// fatal: one bad event must not halt the cycle.
func (e *Engine) ReconcileFills(ctx context.Context, since time.Time) (int, error) {
	fills, err := e.client.ListFills(ctx, since)
	if err != nil {
		return 0, errors.Wrap(err, "list fills")
	}

	applied := 0
	for _, fill := range fills {
		e.mu.Lock()
		meta, ok := e.pending[fill.OrderClientID]
		e.mu.Unlock()
		if !ok {
			logs.Warnf("fill for untracked order %s ignored", fill.OrderClientID)
			continue
		}
		// overlapping ListFills windows re-deliver fills; the trade ID
		// is the only safe dedup key for partial fills on open orders
		if fill.TradeID != "" && !e.markSeen(fill.TradeID) {
			logs.Infof("fill %s already applied, skipped", fill.TradeID)
			continue
		}

		e.applyFill(fill, meta.tier, meta.stopOut)
		applied++

		if order, found := e.book.Get(fill.OrderClientID); found && order.Status.Terminal() {
			e.mu.Lock()
			delete(e.pending, fill.OrderClientID)
			e.mu.Unlock()
		}
	}
	return applied, nil
}

// markSeen records a venue trade ID, returning false when it was
// already recorded. The set is bounded; the oldest IDs age out FIFO.
func (e *Engine) markSeen(tradeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.seen[tradeID]; dup {
		return false
	}
	e.seen[tradeID] = struct{}{}
	e.seenList = append(e.seenList, tradeID)
	if len(e.seenList) > maxSeenFills {
		delete(e.seen, e.seenList[0])
		e.seenList = e.seenList[1:]
	}
	return true
}

// SweepStale force-cancels non-terminal orders older than maxAge. Cancel
// failures leave the order for the next sweep rather than guessing at
// venue state.
func (e *Engine) SweepStale(ctx context.Context, maxAge time.Duration) int {
	canceled := 0
	for _, order := range e.book.Stale(maxAge) {
		if order.ExchangeID != "" && e.cfg.Mode == ModeLive {
			if err := e.client.CancelOrder(ctx, order.ExchangeID); err != nil {
				logs.Warnf("cancel stale order %s: %v", order.ClientID, err)
				continue
			}
		}
		if _, err := e.book.Transition(order.ClientID, schema.StatusCanceled, order.ExchangeID); err != nil {
			logs.Errorf("cancel transition for %s: %v", order.ClientID, err)
			continue
		}
		e.mu.Lock()
		delete(e.pending, order.ClientID)
		e.mu.Unlock()
		canceled++
		logs.Infof("stale order %s canceled after %s", order.ClientID, maxAge)
	}
	return canceled
}
