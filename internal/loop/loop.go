package loop

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/aelhadee/247trader-V2-sub000/internal/alert"
	"github.com/aelhadee/247trader-V2-sub000/internal/audit"
	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/exec"
	"github.com/aelhadee/247trader-V2-sub000/internal/ledger"
	"github.com/aelhadee/247trader-V2-sub000/internal/obs"
	"github.com/aelhadee/247trader-V2-sub000/internal/og"
	"github.com/aelhadee/247trader-V2-sub000/internal/resilience"
	"github.com/aelhadee/247trader-V2-sub000/internal/risk"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
)

// ProposalSource supplies the cycle's raw trade proposals. The upstream
// rules/AI layer implements this; tests use a stub.
type ProposalSource interface {
	Proposals(ctx context.Context, snap schema.PortfolioSnapshot) ([]schema.TradeProposal, error)
}

// Config controls cycle cadence and budgets.
type Config struct {
	Interval  time.Duration `json:"interval"`
	JitterPct float64       `json:"jitterPct"`

	// soft per-stage deadlines; breaches are logged, never fatal
	SnapshotBudget  time.Duration `json:"snapshotBudget"`
	AdmissionBudget time.Duration `json:"admissionBudget"`
	ExecutionBudget time.Duration `json:"executionBudget"`
	ReconcileBudget time.Duration `json:"reconcileBudget"`

	// hard total budget; repeated breaches page the operator
	TotalBudget      time.Duration `json:"totalBudget"`
	TotalBreachLimit int           `json:"totalBreachLimit"`

	StaleOrderAge      time.Duration `json:"staleOrderAge"`
	KeepTerminalOrders int           `json:"keepTerminalOrders"`

	// consecutive critical utilization samples before alerting
	SustainedUtilSamples int `json:"sustainedUtilSamples"`
}

// DefaultConfig returns a sub-minute cycle with conservative budgets.
func DefaultConfig() Config {
	return Config{
		Interval:             30 * time.Second,
		JitterPct:            0.1,
		SnapshotBudget:       3 * time.Second,
		AdmissionBudget:      time.Second,
		ExecutionBudget:      15 * time.Second,
		ReconcileBudget:      5 * time.Second,
		TotalBudget:          25 * time.Second,
		TotalBreachLimit:     3,
		StaleOrderAge:        10 * time.Minute,
		KeepTerminalOrders:   500,
		SustainedUtilSamples: 3,
	}
}

// Loop is the single logical decision loop: snapshot, admission,
// execution, reconciliation, audit, sleep. It is the sole writer of the
// order book and ledger through the engines it drives.
type Loop struct {
	cfg Config

	src     ProposalSource
	riskMu  sync.RWMutex
	riskEng *risk.Engine
	execEng *exec.Engine
	client  venue.Client
	meta    *venue.MetaCache
	led     *ledger.Ledger
	book    *og.Book
	store   *ledger.Store
	auditW  *audit.Writer
	alerts  *alert.Notifier
	metrics *obs.Metrics
	limiter *resilience.Limiter
	clk     clock.Clock
	rng     *rand.Rand

	mode       exec.Mode
	configHash string

	lastFillSync  time.Time
	lastNAV       decimal.Decimal
	totalBreaches int
	utilHigh      map[string]int
}

// Deps bundles the loop's collaborators.
type Deps struct {
	Source  ProposalSource
	Risk    *risk.Engine
	Exec    *exec.Engine
	Client  venue.Client
	Meta    *venue.MetaCache
	Ledger  *ledger.Ledger
	Book    *og.Book
	Store   *ledger.Store
	Audit   *audit.Writer
	Alerts  *alert.Notifier
	Metrics *obs.Metrics
	Limiter *resilience.Limiter
	Clock   clock.Clock

	Mode       exec.Mode
	ConfigHash string
}

// New assembles a decision loop.
func New(cfg Config, deps Deps) *Loop {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	alerts := deps.Alerts
	if alerts == nil {
		alerts = alert.NewNotifier()
	}
	return &Loop{
		cfg:        cfg,
		src:        deps.Source,
		riskEng:    deps.Risk,
		execEng:    deps.Exec,
		client:     deps.Client,
		meta:       deps.Meta,
		led:        deps.Ledger,
		book:       deps.Book,
		store:      deps.Store,
		auditW:     deps.Audit,
		alerts:     alerts,
		metrics:    deps.Metrics,
		limiter:    deps.Limiter,
		clk:        clk,
		rng:        rand.New(rand.NewSource(clk.Now().UnixNano())),
		mode:       deps.Mode,
		configHash: deps.ConfigHash,
		utilHigh:   make(map[string]int),
	}
}

// Run executes cycles until the context is canceled. Cycle start times
// are jittered so a fleet does not burst the venue in lockstep.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := l.RunCycle(ctx)
		if l.auditW != nil {
			if err := l.auditW.TryAppend(rec); err != nil {
				l.metrics.IncQueueDrop()
				logs.Warnf("audit record dropped: %v", err)
			}
		}
		if err := l.clk.Sleep(ctx, l.jitteredInterval()); err != nil {
			return err
		}
	}
}

// SwapRisk installs a new admission engine. Config hot-reload rebuilds
// the engine rather than mutating limits mid-cycle.
func (l *Loop) SwapRisk(e *risk.Engine) {
	l.riskMu.Lock()
	l.riskEng = e
	l.riskMu.Unlock()
}

func (l *Loop) risk() *risk.Engine {
	l.riskMu.RLock()
	defer l.riskMu.RUnlock()
	return l.riskEng
}

func (l *Loop) jitteredInterval() time.Duration {
	if l.cfg.JitterPct <= 0 {
		return l.cfg.Interval
	}
	spread := (l.rng.Float64()*2 - 1) * l.cfg.JitterPct
	return time.Duration(float64(l.cfg.Interval) * (1 + spread))
}
