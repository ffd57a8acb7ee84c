package loop

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelhadee/247trader-V2-sub000/internal/alert"
	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/exec"
	"github.com/aelhadee/247trader-V2-sub000/internal/ledger"
	"github.com/aelhadee/247trader-V2-sub000/internal/obs"
	"github.com/aelhadee/247trader-V2-sub000/internal/og"
	"github.com/aelhadee/247trader-V2-sub000/internal/risk"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stubSource struct {
	proposals []schema.TradeProposal
}

func (s *stubSource) Proposals(context.Context, schema.PortfolioSnapshot) ([]schema.TradeProposal, error) {
	return s.proposals, nil
}

func newTestLoop(t *testing.T) (*Loop, *clock.Fake, *venue.Sim, *ledger.Ledger, *stubSource) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	sim := venue.NewSim(clk, dec("0.006"))
	book := og.NewBook(clk)
	led := ledger.New(clk)

	sim.SetBalances([]schema.Balance{{Currency: "USD", Available: dec("10000")}})
	sim.SetQuote(schema.Quote{
		Symbol:    "BTC-USD",
		Bid:       dec("49990"),
		Ask:       dec("50010"),
		BidSize:   dec("1"),
		AskSize:   dec("1"),
		Timestamp: clk.Now(),
	})
	sim.SetProductMeta(schema.ProductMeta{Symbol: "BTC-USD", MinNotional: dec("10"), Status: "online"})

	execCfg := exec.DefaultConfig()
	execEng := exec.NewEngine(execCfg, sim, book, led, clk)
	riskEng := risk.NewEngine(risk.DefaultConfig(), nil, alert.NewNotifier(), clk)

	src := &stubSource{proposals: []schema.TradeProposal{{
		Symbol:  "BTC-USD",
		Side:    schema.SideBuy,
		SizePct: dec("5"),
		Tier:    schema.TierCore,
	}}}

	l := New(DefaultConfig(), Deps{
		Source:     src,
		Risk:       riskEng,
		Exec:       execEng,
		Client:     sim,
		Meta:       venue.NewMetaCache(sim, clk),
		Ledger:     led,
		Book:       book,
		Metrics:    obs.NewMetrics(nil),
		Clock:      clk,
		Mode:       exec.ModePaper,
		ConfigHash: "deadbeef",
	})
	return l, clk, sim, led, src
}

func TestCycleExecutesApprovedProposal(t *testing.T) {
	l, _, _, led, _ := newTestLoop(t)

	rec := l.RunCycle(context.Background())

	assert.Equal(t, "ok", rec.Status)
	assert.Equal(t, "paper", rec.Mode)
	assert.Equal(t, "deadbeef", rec.ConfigHash)
	assert.Equal(t, 1, rec.Proposals)
	assert.Equal(t, 1, rec.Approved)
	require.Len(t, rec.Orders, 1)
	assert.Equal(t, "filled", rec.Orders[0].Status)
	assert.True(t, rec.NAV.Equal(dec("10000")))

	pos, ok := led.Position("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.AvgEntryPrice.Equal(dec("50010")))

	for _, stage := range []string{"snapshot", "admission", "execution", "reconcile", "total"} {
		_, present := rec.StageMillis[stage]
		assert.True(t, present, "stage %s missing from record", stage)
	}
}

func TestSecondCycleBlockedByTradeSpacing(t *testing.T) {
	l, clk, sim, _, _ := newTestLoop(t)
	ctx := context.Background()

	first := l.RunCycle(ctx)
	require.Equal(t, 1, first.Approved)

	clk.Advance(10 * time.Second)
	sim.SetQuote(schema.Quote{
		Symbol:    "BTC-USD",
		Bid:       dec("49990"),
		Ask:       dec("50010"),
		BidSize:   dec("1"),
		AskSize:   dec("1"),
		Timestamp: clk.Now(),
	})

	second := l.RunCycle(ctx)
	assert.Equal(t, 0, second.Approved)
	require.Len(t, second.Decisions, 1)
	require.NotEmpty(t, second.Decisions[0].Violations)
	assert.Equal(t, schema.ViolationTradeSpacing, second.Decisions[0].Violations[0].Code)
}

func TestJitteredIntervalStaysWithinSpread(t *testing.T) {
	l, _, _, _, _ := newTestLoop(t)

	min := time.Duration(float64(l.cfg.Interval) * 0.9)
	max := time.Duration(float64(l.cfg.Interval) * 1.1)
	for i := 0; i < 200; i++ {
		d := l.jitteredInterval()
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}
}

func TestProposalSourceFailureDegrades(t *testing.T) {
	l, _, _, _, src := newTestLoop(t)
	src.proposals = nil

	rec := l.RunCycle(context.Background())
	assert.Equal(t, "ok", rec.Status)
	assert.Zero(t, rec.Proposals)
	assert.Empty(t, rec.Orders)
}
