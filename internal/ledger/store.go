package ledger

import (
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// PositionRow is the persisted form of an open position.
type PositionRow struct {
	Symbol        string          `gorm:"primaryKey;size:32"`
	Side          uint16          `gorm:"not null"`
	Tier          uint16          `gorm:"not null"`
	Quantity      decimal.Decimal `gorm:"type:numeric(30,12)"`
	AvgEntryPrice decimal.Decimal `gorm:"type:numeric(30,12)"`
	EntryValue    decimal.Decimal `gorm:"type:numeric(30,12)"`
	EntryFees     decimal.Decimal `gorm:"type:numeric(30,12)"`
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

func (PositionRow) TableName() string { return "positions" }

// StateRow is the singleton accumulator row.
type StateRow struct {
	ID          uint32 `gorm:"primaryKey"`
	DailyPnL    decimal.Decimal `gorm:"type:numeric(30,12)"`
	WeeklyPnL   decimal.Decimal `gorm:"type:numeric(30,12)"`
	DayAnchor   time.Time
	WeekAnchor  time.Time
	HourAnchor  time.Time
	HighWater   decimal.Decimal `gorm:"type:numeric(30,12)"`
	LossStreak  int
	LastTradeAt time.Time
	HourlyCount int
	DailyCount  int
}

func (StateRow) TableName() string { return "ledger_state" }

// PacingRow persists per-symbol pacing state (last trade, cooldown).
type PacingRow struct {
	Symbol        string `gorm:"primaryKey;size:32"`
	LastTradeAt   time.Time
	CooldownUntil time.Time
}

func (PacingRow) TableName() string { return "pacing" }

const stateRowID = 1

// Store persists ledger state so positions, accumulators and pacing
// survive restart.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and returns a store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&PositionRow{}, &StateRow{}, &PacingRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate ledger schema")
	}
	return &Store{db: db}, nil
}

// Save writes the full ledger state in one transaction.
func (s *Store) Save(l *Ledger) error {
	l.mu.RLock()
	positions := make([]PositionRow, 0, len(l.positions))
	for _, pos := range l.positions {
		positions = append(positions, PositionRow{
			Symbol:        pos.Symbol,
			Side:          uint16(pos.Side),
			Tier:          uint16(pos.Tier),
			Quantity:      pos.Quantity,
			AvgEntryPrice: pos.AvgEntryPrice,
			EntryValue:    pos.EntryValue,
			EntryFees:     pos.EntryFees,
			OpenedAt:      pos.OpenedAt,
			UpdatedAt:     pos.UpdatedAt,
		})
	}
	state := StateRow{
		ID:          stateRowID,
		DailyPnL:    l.dailyPnL,
		WeeklyPnL:   l.weeklyPnL,
		DayAnchor:   l.dayAnchor,
		WeekAnchor:  l.weekAnchor,
		HourAnchor:  l.hourAnchor,
		HighWater:   l.highWater,
		LossStreak:  l.lossStreak,
		LastTradeAt: l.lastTradeAt,
		HourlyCount: l.hourlyCount,
		DailyCount:  l.dailyCount,
	}
	pacing := make([]PacingRow, 0, len(l.lastTradeBySymbol))
	seen := make(map[string]bool, len(l.lastTradeBySymbol))
	for symbol, at := range l.lastTradeBySymbol {
		pacing = append(pacing, PacingRow{
			Symbol:        symbol,
			LastTradeAt:   at,
			CooldownUntil: l.cooldowns[symbol],
		})
		seen[symbol] = true
	}
	for symbol, until := range l.cooldowns {
		if !seen[symbol] {
			pacing = append(pacing, PacingRow{Symbol: symbol, CooldownUntil: until})
		}
	}
	l.mu.RUnlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&PositionRow{}).Error; err != nil {
			return err
		}
		if len(positions) > 0 {
			if err := tx.Create(&positions).Error; err != nil {
				return err
			}
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&state).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&PacingRow{}).Error; err != nil {
			return err
		}
		if len(pacing) > 0 {
			if err := tx.Create(&pacing).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Restore loads persisted state into the ledger, replacing its content.
func (s *Store) Restore(l *Ledger) error {
	var positions []PositionRow
	if err := s.db.Find(&positions).Error; err != nil {
		return errors.Wrap(err, "load positions")
	}
	var state StateRow
	stateErr := s.db.First(&state, stateRowID).Error
	if stateErr != nil && !stderrors.Is(stateErr, gorm.ErrRecordNotFound) {
		return errors.Wrap(stateErr, "load ledger state")
	}
	var pacing []PacingRow
	if err := s.db.Find(&pacing).Error; err != nil {
		return errors.Wrap(err, "load pacing")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions = make(map[string]*Position, len(positions))
	for _, row := range positions {
		l.positions[row.Symbol] = &Position{
			Symbol:        row.Symbol,
			Side:          schema.Side(row.Side),
			Tier:          schema.Tier(row.Tier),
			Quantity:      row.Quantity,
			AvgEntryPrice: row.AvgEntryPrice,
			EntryValue:    row.EntryValue,
			EntryFees:     row.EntryFees,
			OpenedAt:      row.OpenedAt,
			UpdatedAt:     row.UpdatedAt,
		}
	}
	if stateErr == nil {
		l.dailyPnL = state.DailyPnL
		l.weeklyPnL = state.WeeklyPnL
		l.dayAnchor = state.DayAnchor
		l.weekAnchor = state.WeekAnchor
		l.hourAnchor = state.HourAnchor
		l.highWater = state.HighWater
		l.lossStreak = state.LossStreak
		l.lastTradeAt = state.LastTradeAt
		l.hourlyCount = state.HourlyCount
		l.dailyCount = state.DailyCount
	}
	l.lastTradeBySymbol = make(map[string]time.Time, len(pacing))
	l.cooldowns = make(map[string]time.Time)
	for _, row := range pacing {
		if !row.LastTradeAt.IsZero() {
			l.lastTradeBySymbol[row.Symbol] = row.LastTradeAt
		}
		if !row.CooldownUntil.IsZero() {
			l.cooldowns[row.Symbol] = row.CooldownUntil
		}
	}
	// rollover on next access clears any stale windows
	return nil
}
