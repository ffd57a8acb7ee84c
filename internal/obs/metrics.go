package obs

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// Metrics exposes trading counters to Prometheus and keeps cheap atomic
// latency stats for in-process snapshots.
type Metrics struct {
	cycles        prometheus.Counter
	decisions     *prometheus.CounterVec
	orders        *prometheus.CounterVec
	queueDropsVec prometheus.Counter
	nav           prometheus.Gauge
	dailyPnL      prometheus.Gauge
	utilization   *prometheus.GaugeVec
	stageSeconds  *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	breakerState  prometheus.Gauge

	queueDrops uint64

	cycleLatency    LatencyStats
	riskEvalLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// Observe records one duration sample.
func (s *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)
	for {
		cur := atomic.LoadUint64(&s.min)
		if cur != 0 && v >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&s.min, cur, v) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&s.max)
		if v <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&s.max, cur, v) {
			break
		}
	}
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&s.count)
	out := LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&s.min)),
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
	}
	if count > 0 {
		out.Avg = time.Duration(atomic.LoadUint64(&s.sum) / count)
	}
	return out
}

// Snapshot captures the current in-process metric values.
type Snapshot struct {
	QueueDrops      uint64
	CycleLatency    LatencySnapshot
	RiskEvalLatency LatencySnapshot
}

// NewMetrics allocates the collectors and registers them. A nil
// registerer skips registration (tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_cycles_total",
			Help: "Decision cycles completed.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_risk_decisions_total",
			Help: "Admission decisions by outcome and violation code.",
		}, []string{"outcome", "code"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders by terminal or current status.",
		}, []string{"status"}),
		queueDropsVec: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_audit_queue_drops_total",
			Help: "Audit records dropped because the queue was full.",
		}),
		nav: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_nav_dollars",
			Help: "Net asset value.",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_daily_pnl_dollars",
			Help: "Realized PnL since the UTC day start.",
		}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trader_rate_limit_utilization",
			Help: "Calls in the last second over bucket capacity.",
		}, []string{"endpoint"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trader_cycle_stage_seconds",
			Help:    "Per-stage latency within a decision cycle.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stage"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_retries_total",
			Help: "Retry attempts by operation.",
		}, []string{"op"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_breaker_state",
			Help: "Exchange health breaker state: 0 closed, 1 open, 2 half-open.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.decisions, m.orders, m.queueDropsVec,
			m.nav, m.dailyPnL, m.utilization, m.stageSeconds,
			m.retries, m.breakerState)
	}
	return m
}

// IncCycle counts a completed decision cycle and its total latency.
func (m *Metrics) IncCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleLatency.Observe(d)
}

// ObserveDecision counts one admission decision.
func (m *Metrics) ObserveDecision(d schema.RiskDecision) {
	if m == nil {
		return
	}
	if d.Approved {
		m.decisions.WithLabelValues("approved", "none").Inc()
		return
	}
	code := "unknown"
	if len(d.Violations) > 0 {
		code = d.Violations[0].Code.String()
	}
	m.decisions.WithLabelValues("rejected", code).Inc()
}

// ObserveOrder counts an order reaching a status.
func (m *Metrics) ObserveOrder(status schema.OrderStatus) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(status.String()).Inc()
}

// ObserveRiskEval measures one admission batch evaluation.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// ObserveStage records one pipeline stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// SetNAV publishes portfolio value gauges.
func (m *Metrics) SetNAV(nav, dailyPnL float64) {
	if m == nil {
		return
	}
	m.nav.Set(nav)
	m.dailyPnL.Set(dailyPnL)
}

// SetUtilization publishes one endpoint's rate-limit utilization.
func (m *Metrics) SetUtilization(endpoint string, u float64) {
	if m == nil {
		return
	}
	m.utilization.WithLabelValues(endpoint).Set(u)
}

// IncRetry counts a retry attempt for an operation.
func (m *Metrics) IncRetry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

// SetBreakerState publishes the breaker state as a numeric gauge.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.breakerState.Set(float64(state))
}

// IncQueueDrop records an audit queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
	m.queueDropsVec.Inc()
}

// Snapshot returns a copy of the in-process metric values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		CycleLatency:    m.cycleLatency.snapshot(),
		RiskEvalLatency: m.riskEvalLatency.snapshot(),
	}
}
