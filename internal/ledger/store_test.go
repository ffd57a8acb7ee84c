package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	clk := clock.NewFake(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	l := New(clk)
	l.ApplyFill(buy("BTC-USD", "0.02", "50000", "20"), schema.TierCore, false)
	l.ApplyFill(sell("BTC-USD", "0.01", "51000", "10"), schema.TierUnknown, false)
	l.RecordTrade("BTC-USD")
	l.SetCooldown("ETH-USD", clk.Now().Add(time.Hour))
	l.ObserveNAV(decimal.RequireFromString("1234.56"))
	require.NoError(t, store.Save(l))

	restored := New(clk)
	require.NoError(t, store.Restore(restored))

	pos, ok := restored.Position("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(dec("0.01")))
	assert.True(t, pos.AvgEntryPrice.Equal(dec("50000")))
	assert.True(t, pos.EntryFees.Equal(dec("10")))
	assert.Equal(t, schema.TierCore, pos.Tier)

	assert.True(t, restored.DailyPnL().Equal(dec("-10")))
	snap := restored.Snapshot(dec("1000"))
	assert.Equal(t, 1, snap.DailyTrades)
	assert.True(t, snap.HighWater.Equal(dec("1234.56")))
	_, onCooldown := snap.CooldownUntil["ETH-USD"]
	assert.True(t, onCooldown)
	assert.Equal(t, 1, snap.LossStreak)
}

func TestRestoreEmptyStore(t *testing.T) {
	store := newTestStore(t)
	clk := clock.NewFake(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	l := New(clk)
	require.NoError(t, store.Restore(l))
	assert.Empty(t, l.Positions())
	assert.True(t, l.DailyPnL().IsZero())
}

func TestSaveOverwritesRemovedPositions(t *testing.T) {
	store := newTestStore(t)
	clk := clock.NewFake(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	l := New(clk)
	l.ApplyFill(buy("BTC-USD", "0.01", "50000", "0"), schema.TierCore, false)
	require.NoError(t, store.Save(l))

	l.ApplyFill(sell("BTC-USD", "0.01", "51000", "0"), schema.TierUnknown, false)
	require.NoError(t, store.Save(l))

	restored := New(clk)
	require.NoError(t, store.Restore(restored))
	assert.Empty(t, restored.Positions())
}
