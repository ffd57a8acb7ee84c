package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/exec"
	"github.com/aelhadee/247trader-V2-sub000/internal/ledger"
	"github.com/aelhadee/247trader-V2-sub000/internal/og"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
)

// chaosClient perturbs the sim venue's fill stream so reconciliation can
// be soaked against dropped, duplicated and delayed fills.
type chaosClient struct {
	venue.Client
	chaos *venue.FillChaos
}

func (c *chaosClient) ListFills(ctx context.Context, since time.Time) ([]schema.Fill, error) {
	fills, err := c.Client.ListFills(ctx, since)
	if err != nil {
		return nil, err
	}
	return c.chaos.Apply(fills), nil
}

// Soaks the live execution route against a sim venue with fill-stream
// fault injection, then reports whether the order book and ledger stayed
// consistent. Duplicated fills must be absorbed, dropped fills must end
// as swept orders, and the position count must match what actually filled.
func main() {
	rounds := flag.Int("rounds", 200, "Order rounds to run")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	dropRate := flag.Float64("drop-rate", 0.1, "Fill drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0.1, "Fill duplicate probability [0-1]")
	maxDelay := flag.Duration("max-delay", 2*time.Second, "Max fill timestamp skew")
	flag.Parse()

	clk := clock.NewFake(time.Now().UTC())
	sim := venue.NewSim(clk, decimal.RequireFromString("0.006"))
	sim.SetBalances([]schema.Balance{{Currency: "USD", Available: decimal.NewFromInt(100_000)}})
	sim.SetProductMeta(schema.ProductMeta{Symbol: "BTC-USD", MinNotional: decimal.NewFromInt(10), Status: "online"})

	chaos, err := venue.NewFillChaos(venue.ChaosConfig{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		MaxDelay:      *maxDelay,
	})
	if err != nil {
		log.Fatalf("chaos config: %v", err)
	}
	client := &chaosClient{Client: sim, chaos: chaos}

	cfg := exec.DefaultConfig()
	cfg.Mode = exec.ModeLive
	book := og.NewBook(clk)
	led := ledger.New(clk)
	eng := exec.NewEngine(cfg, client, book, led, clk)

	ctx := context.Background()
	watermark := clk.Now()
	submitted := 0
	applied := 0
	for i := 0; i < *rounds; i++ {
		sim.SetQuote(schema.Quote{
			Symbol:  "BTC-USD",
			Bid:     decimal.NewFromInt(49_990),
			Ask:     decimal.NewFromInt(50_010),
			BidSize: decimal.NewFromInt(5),
			AskSize: decimal.NewFromInt(5),
		})
		ap := schema.ApprovedProposal{
			Proposal: schema.TradeProposal{
				Symbol:    "BTC-USD",
				Side:      schema.SideBuy,
				Tier:      schema.TierCore,
				CreatedAt: clk.Now(),
			},
			ApprovedNotional: decimal.NewFromInt(100),
		}
		if _, err := eng.Execute(ctx, ap, clk.Now()); err != nil {
			log.Fatalf("round %d execute: %v", i, err)
		}
		submitted++

		clk.Advance(3 * time.Second)
		// skewed timestamps can land before the previous watermark
		n, err := eng.ReconcileFills(ctx, watermark.Add(-*maxDelay))
		if err != nil {
			log.Fatalf("round %d reconcile: %v", i, err)
		}
		applied += n
		watermark = clk.Now()
	}

	clk.Advance(time.Hour)
	swept := eng.SweepStale(ctx, 30*time.Minute)

	open := len(book.Active())
	if open != 0 {
		log.Fatalf("FAIL: %d orders still open after sweep", open)
	}
	if applied > sim.PlacedOrders() {
		log.Fatalf("FAIL: %d fills applied but only %d orders placed, duplicates leaked", applied, sim.PlacedOrders())
	}

	snap := led.Snapshot(decimal.NewFromInt(100_000))
	log.Printf("PASS: submitted=%d placed=%d fills_applied=%d swept=%d positions=%d daily_pnl=%s",
		submitted, sim.PlacedOrders(), applied, swept, snap.OpenPositions, led.DailyPnL().StringFixed(2))
}
