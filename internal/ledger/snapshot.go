package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FileSnapshot is the JSON export of ledger state, used by the paper
// tool and for operator inspection alongside the database store.
type FileSnapshot struct {
	Timestamp  int64           `json:"timestamp"`
	DailyPnL   decimal.Decimal `json:"dailyPnl"`
	WeeklyPnL  decimal.Decimal `json:"weeklyPnl"`
	HighWater  decimal.Decimal `json:"highWater"`
	LossStreak int             `json:"lossStreak"`
	Positions  []PositionEntry `json:"positions"`
}

// PositionEntry is one exported position.
type PositionEntry struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avgEntryPrice"`
	EntryValue    decimal.Decimal `json:"entryValue"`
	EntryFees     decimal.Decimal `json:"entryFees"`
}

// FileSnapshot builds the exportable view of the ledger.
func (l *Ledger) FileSnapshot() FileSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := make([]PositionEntry, 0, len(l.positions))
	for _, pos := range l.positions {
		entries = append(entries, PositionEntry{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AvgEntryPrice: pos.AvgEntryPrice,
			EntryValue:    pos.EntryValue,
			EntryFees:     pos.EntryFees,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Symbol < entries[j].Symbol
	})
	return FileSnapshot{
		Timestamp:  time.Now().UTC().UnixNano(),
		DailyPnL:   l.dailyPnL,
		WeeklyPnL:  l.weeklyPnL,
		HighWater:  l.highWater,
		LossStreak: l.lossStreak,
		Positions:  entries,
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot FileSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (FileSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileSnapshot{}, err
	}
	var snap FileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return FileSnapshot{}, err
	}
	return snap, nil
}
