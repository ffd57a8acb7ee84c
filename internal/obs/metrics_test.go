package obs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

func TestLatencyStatsAggregates(t *testing.T) {
	var s LatencyStats
	s.Observe(10 * time.Millisecond)
	s.Observe(30 * time.Millisecond)
	s.Observe(20 * time.Millisecond)

	snap := s.snapshot()
	assert.Equal(t, uint64(3), snap.Count)
	assert.Equal(t, 10*time.Millisecond, snap.Min)
	assert.Equal(t, 30*time.Millisecond, snap.Max)
	assert.Equal(t, 20*time.Millisecond, snap.Avg)
}

func TestMetricsRegisterAndObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.IncCycle(50 * time.Millisecond)
	m.ObserveDecision(schema.RiskDecision{Approved: true})
	m.ObserveDecision(schema.RiskDecision{Violations: []schema.Violation{{Code: schema.ViolationDailyStopLoss}}})
	m.ObserveOrder(schema.StatusFilled)
	m.ObserveStage("admission", 5*time.Millisecond)
	m.SetUtilization("place_order", 0.4)
	m.IncQueueDrop()

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.QueueDrops)
	assert.Equal(t, uint64(1), snap.CycleLatency.Count)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncCycle(time.Second)
	m.ObserveOrder(schema.StatusOpen)
	m.IncQueueDrop()
	m.IncRetry("place_order")
	m.SetBreakerState(1)
	assert.Equal(t, Snapshot{}, m.Snapshot())
}
