package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAppendsJSONLPerDay(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, FlushInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	day1 := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)

	require.NoError(t, w.TryAppend(CycleRecord{
		Timestamp: day1,
		Mode:      "paper",
		Status:    "ok",
		NAV:       decimal.NewFromInt(10000),
		Proposals: 3,
		Approved:  1,
	}))
	require.NoError(t, w.TryAppend(CycleRecord{Timestamp: day1.Add(30 * time.Second), Mode: "paper", Status: "ok"}))
	require.NoError(t, w.TryAppend(CycleRecord{Timestamp: day2, Mode: "paper", Status: "ok"}))
	require.NoError(t, w.Close())

	first, err := ReadAll(filepath.Join(dir, "audit-20260310.jsonl"))
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "paper", first[0].Mode)
	assert.Equal(t, 3, first[0].Proposals)
	assert.NotEmpty(t, first[0].ID, "every record gets an id")
	assert.True(t, first[0].NAV.Equal(decimal.NewFromInt(10000)))

	second, err := ReadAll(filepath.Join(dir, "audit-20260311.jsonl"))
	require.NoError(t, err)
	require.Len(t, second, 1)
}

func TestWriterRejectsBeforeStartAndAfterClose(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.ErrorIs(t, w.TryAppend(CycleRecord{}), ErrNotStarted)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.TryAppend(CycleRecord{}), ErrClosed)
}
