package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// Outcome classifies a closing fill for cooldown selection.
type Outcome uint16

const (
	OutcomeNone Outcome = iota
	OutcomeWin
	OutcomeLoss
	OutcomeStopLoss
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLoss:
		return "loss"
	case OutcomeStopLoss:
		return "stop_loss"
	default:
		return "none"
	}
}

// Position is an open holding. Owned exclusively by the ledger.
type Position struct {
	Symbol        string
	Side          schema.Side
	Tier          schema.Tier
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	EntryValue    decimal.Decimal
	EntryFees     decimal.Decimal
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// CloseResult reports the realized outcome of a closing fill.
type CloseResult struct {
	RealizedPnL    decimal.Decimal
	ClosedQuantity decimal.Decimal
	Outcome        Outcome
	PositionClosed bool
}

// residualScale is the precision at which a remaining quantity is
// considered zero and the position removed.
const residualScale = 9

// Ledger owns open positions, realized PnL accumulators, streaks and
// pacing state. ApplyFill is the sole mutation path for positions;
// everything else reads snapshots.
type Ledger struct {
	mu  sync.RWMutex
	clk clock.Clock

	positions map[string]*Position

	dailyPnL   decimal.Decimal
	weeklyPnL  decimal.Decimal
	dayAnchor  time.Time
	weekAnchor time.Time

	highWater  decimal.Decimal
	lossStreak int

	lastTradeAt       time.Time
	lastTradeBySymbol map[string]time.Time
	hourAnchor        time.Time
	hourlyCount       int
	dailyCount        int

	cooldowns map[string]time.Time
}

// New creates an empty ledger.
func New(clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.Real{}
	}
	now := clk.Now()
	return &Ledger{
		clk:               clk,
		positions:         make(map[string]*Position),
		lastTradeBySymbol: make(map[string]time.Time),
		cooldowns:         make(map[string]time.Time),
		dayAnchor:         now.Truncate(24 * time.Hour),
		weekAnchor:        weekStart(now),
		hourAnchor:        now.Truncate(time.Hour),
	}
}

// ApplyFill folds a confirmed fill into positions and PnL. Opening
// fills update the weighted-average entry; closing fills realize PnL
// with proportional entry fees. A sell with no matching position is a
// logged no-op, never a crash.
func (l *Ledger) ApplyFill(fill schema.Fill, tier schema.Tier, stopOut bool) CloseResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked(l.clk.Now())

	switch fill.Side {
	case schema.SideBuy:
		l.applyOpenLocked(fill, tier)
		return CloseResult{}
	case schema.SideSell:
		return l.applyCloseLocked(fill, stopOut)
	default:
		logs.Warnf("fill with unknown side ignored: symbol=%s", fill.Symbol)
		return CloseResult{}
	}
}

func (l *Ledger) applyOpenLocked(fill schema.Fill, tier schema.Tier) {
	now := l.clk.Now()
	pos, ok := l.positions[fill.Symbol]
	if !ok {
		l.positions[fill.Symbol] = &Position{
			Symbol:        fill.Symbol,
			Side:          schema.SideBuy,
			Tier:          tier,
			Quantity:      fill.Size,
			AvgEntryPrice: fill.Price,
			EntryValue:    fill.Value(),
			EntryFees:     fill.Fee,
			OpenedAt:      now,
			UpdatedAt:     now,
		}
		return
	}
	// newEntry = (oldQty*oldPrice + fillQty*fillPrice) / (oldQty+fillQty)
	pos.EntryValue = pos.EntryValue.Add(fill.Value())
	pos.EntryFees = pos.EntryFees.Add(fill.Fee)
	pos.Quantity = pos.Quantity.Add(fill.Size)
	pos.AvgEntryPrice = pos.EntryValue.Div(pos.Quantity)
	pos.UpdatedAt = now
	if tier != schema.TierUnknown {
		pos.Tier = tier
	}
}

func (l *Ledger) applyCloseLocked(fill schema.Fill, stopOut bool) CloseResult {
	pos, ok := l.positions[fill.Symbol]
	if !ok || pos.Quantity.Sign() <= 0 {
		logs.Warnf("sell with no open position ignored: symbol=%s size=%s",
			fill.Symbol, fill.Size.String())
		return CloseResult{}
	}

	closedQty := decimal.Min(fill.Size, pos.Quantity)
	proportionalEntryFees := pos.EntryFees.Mul(closedQty).Div(pos.Quantity)
	exitFees := fill.Fee
	pnl := fill.Price.Sub(pos.AvgEntryPrice).Mul(closedQty).
		Sub(exitFees).Sub(proportionalEntryFees)

	pos.EntryValue = pos.EntryValue.Sub(pos.AvgEntryPrice.Mul(closedQty))
	pos.EntryFees = pos.EntryFees.Sub(proportionalEntryFees)
	pos.Quantity = pos.Quantity.Sub(closedQty)
	pos.UpdatedAt = l.clk.Now()

	closed := pos.Quantity.Round(residualScale).IsZero()
	if closed {
		delete(l.positions, fill.Symbol)
	}

	l.dailyPnL = l.dailyPnL.Add(pnl)
	l.weeklyPnL = l.weeklyPnL.Add(pnl)

	outcome := OutcomeWin
	switch {
	case stopOut:
		outcome = OutcomeStopLoss
		l.lossStreak++
	case pnl.Sign() < 0:
		outcome = OutcomeLoss
		l.lossStreak++
	case pnl.Sign() > 0:
		l.lossStreak = 0
	default:
		outcome = OutcomeNone
	}

	logs.Infof("fill realized: symbol=%s closed=%s pnl=%s outcome=%s daily=%s weekly=%s",
		fill.Symbol, closedQty.String(), pnl.StringFixed(2), outcome,
		l.dailyPnL.StringFixed(2), l.weeklyPnL.StringFixed(2))

	return CloseResult{
		RealizedPnL:    pnl,
		ClosedQuantity: closedQty,
		Outcome:        outcome,
		PositionClosed: closed,
	}
}

// RecordTrade notes an accepted order for pacing purposes.
func (l *Ledger) RecordTrade(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	l.rolloverLocked(now)
	l.lastTradeAt = now
	l.lastTradeBySymbol[symbol] = now
	l.hourlyCount++
	l.dailyCount++
}

// SetCooldown blocks new entries for a symbol until the given time.
func (l *Ledger) SetCooldown(symbol string, until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cooldowns[symbol] = until
}

// ObserveNAV advances the high-water mark.
func (l *Ledger) ObserveNAV(nav decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if nav.GreaterThan(l.highWater) {
		l.highWater = nav
	}
}

// Position returns a copy of the open position for a symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// Snapshot freezes the portfolio view for one decision cycle.
func (l *Ledger) Snapshot(nav decimal.Decimal) schema.PortfolioSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	l.rolloverLocked(now)

	exposure := make(map[string]decimal.Decimal, len(l.positions))
	tierExposure := make(map[schema.Tier]decimal.Decimal)
	total := decimal.Zero
	for symbol, pos := range l.positions {
		exposure[symbol] = pos.EntryValue
		tierExposure[pos.Tier] = tierExposure[pos.Tier].Add(pos.EntryValue)
		total = total.Add(pos.EntryValue)
	}

	totalAtRiskPct := decimal.Zero
	dailyPct := decimal.Zero
	weeklyPct := decimal.Zero
	if nav.Sign() > 0 {
		hundred := decimal.NewFromInt(100)
		totalAtRiskPct = total.Div(nav).Mul(hundred)
		dailyPct = l.dailyPnL.Div(nav).Mul(hundred)
		weeklyPct = l.weeklyPnL.Div(nav).Mul(hundred)
	}

	lastBySymbol := make(map[string]time.Time, len(l.lastTradeBySymbol))
	for symbol, at := range l.lastTradeBySymbol {
		lastBySymbol[symbol] = at
	}
	cooldowns := make(map[string]time.Time, len(l.cooldowns))
	for symbol, until := range l.cooldowns {
		if until.After(now) {
			cooldowns[symbol] = until
		}
	}

	return schema.PortfolioSnapshot{
		Taken:             now,
		NAV:               nav,
		Exposure:          exposure,
		TierExposure:      tierExposure,
		TotalAtRiskPct:    totalAtRiskPct,
		OpenPositions:     len(l.positions),
		DailyPnLPct:       dailyPct,
		WeeklyPnLPct:      weeklyPct,
		LossStreak:        l.lossStreak,
		HighWater:         l.highWater,
		LastTradeAt:       l.lastTradeAt,
		LastTradeBySymbol: lastBySymbol,
		HourlyTrades:      l.hourlyCount,
		DailyTrades:       l.dailyCount,
		CooldownUntil:     cooldowns,
	}
}

// DailyPnL returns the realized PnL accumulated today, in dollars.
func (l *Ledger) DailyPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dailyPnL
}

// WeeklyPnL returns the realized PnL accumulated this week, in dollars.
func (l *Ledger) WeeklyPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.weeklyPnL
}

// rolloverLocked resets the hourly/daily/weekly windows explicitly
// instead of letting counters accumulate without bound.
func (l *Ledger) rolloverLocked(now time.Time) {
	if day := now.Truncate(24 * time.Hour); day.After(l.dayAnchor) {
		l.dayAnchor = day
		l.dailyPnL = decimal.Zero
		l.dailyCount = 0
	}
	if week := weekStart(now); week.After(l.weekAnchor) {
		l.weekAnchor = week
		l.weeklyPnL = decimal.Zero
	}
	if hour := now.Truncate(time.Hour); hour.After(l.hourAnchor) {
		l.hourAnchor = hour
		l.hourlyCount = 0
	}
}

// weekStart returns the UTC Monday midnight for the week containing t.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	days := (int(t.Weekday()) + 6) % 7
	return t.Truncate(24 * time.Hour).AddDate(0, 0, -days)
}
