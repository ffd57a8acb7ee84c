package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/alert"
	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/exec"
	"github.com/aelhadee/247trader-V2-sub000/internal/ledger"
	"github.com/aelhadee/247trader-V2-sub000/internal/loop"
	"github.com/aelhadee/247trader-V2-sub000/internal/obs"
	"github.com/aelhadee/247trader-V2-sub000/internal/og"
	"github.com/aelhadee/247trader-V2-sub000/internal/risk"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
)

// marketDoc seeds the sim venue for one dry cycle.
type marketDoc struct {
	NAV    decimal.Decimal `json:"nav"`
	Quotes []struct {
		Symbol  string          `json:"symbol"`
		Bid     decimal.Decimal `json:"bid"`
		Ask     decimal.Decimal `json:"ask"`
		BidSize decimal.Decimal `json:"bidSize"`
		AskSize decimal.Decimal `json:"askSize"`
	} `json:"quotes"`
	Meta []struct {
		Symbol      string          `json:"symbol"`
		MinNotional decimal.Decimal `json:"minNotional"`
	} `json:"meta"`
}

// Runs one decision cycle against the sim venue and prints the audit
// record, so a proposal batch can be sanity-checked before the trader
// ever touches a real venue.
func main() {
	marketPath := flag.String("market", "market.json", "Seed market data (nav, quotes, meta)")
	proposalsPath := flag.String("proposals", "proposals.json", "Proposal batch to evaluate")
	mode := flag.String("mode", "paper", "Route: sim or paper")
	flag.Parse()

	clk := clock.Real{}
	sim := venue.NewSim(clk, decimal.RequireFromString("0.006"))
	seedMarket(sim, *marketPath, clk.Now())

	execCfg := exec.DefaultConfig()
	switch *mode {
	case "paper":
	case "sim":
		execCfg.Mode = exec.ModeSim
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	book := og.NewBook(clk)
	led := ledger.New(clk)
	alerts := alert.NewNotifier()

	l := loop.New(loop.DefaultConfig(), loop.Deps{
		Source:  &loop.FileSource{Path: *proposalsPath},
		Risk:    risk.NewEngine(risk.DefaultConfig(), nil, alerts, clk),
		Exec:    exec.NewEngine(execCfg, sim, book, led, clk),
		Client:  sim,
		Meta:    venue.NewMetaCache(sim, clk),
		Ledger:  led,
		Book:    book,
		Metrics: obs.NewMetrics(nil),
		Clock:   clk,
		Mode:    execCfg.Mode,
	})

	rec := l.RunCycle(context.Background())
	out, err := sonic.ConfigStd.MarshalIndent(rec, "", "  ")
	if err != nil {
		log.Fatalf("marshal record: %v", err)
	}
	fmt.Println(string(out))
}

func seedMarket(sim *venue.Sim, path string, now time.Time) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read market file: %v", err)
	}
	var doc marketDoc
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		log.Fatalf("parse market file: %v", err)
	}

	sim.SetBalances([]schema.Balance{{Currency: "USD", Available: doc.NAV}})
	for _, q := range doc.Quotes {
		sim.SetQuote(schema.Quote{
			Symbol:    q.Symbol,
			Bid:       q.Bid,
			Ask:       q.Ask,
			BidSize:   q.BidSize,
			AskSize:   q.AskSize,
			Timestamp: now,
		})
	}
	for _, m := range doc.Meta {
		sim.SetProductMeta(schema.ProductMeta{Symbol: m.Symbol, MinNotional: m.MinNotional, Status: "online"})
	}
}
