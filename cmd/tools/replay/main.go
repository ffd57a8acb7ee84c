package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/audit"
)

// Replays audit logs offline: walks the JSONL files in a directory and
// prints per-day cycle counts, rejection reasons, order outcomes and the
// PnL trajectory. Also flags config-hash drift across the files, which
// is how a mixed fleet deploy shows up in the logs.
func main() {
	dir := flag.String("dir", "audit", "Audit log directory")
	verbose := flag.Bool("verbose", false, "Print every rejection with its message")
	flag.Parse()

	paths, err := filepath.Glob(filepath.Join(*dir, "*.jsonl"))
	if err != nil {
		log.Fatalf("glob audit dir: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("no audit files under %s", *dir)
	}
	sort.Strings(paths)

	cycles := 0
	proposals := 0
	approved := 0
	rejections := map[string]int{}
	orderStatus := map[string]int{}
	hashes := map[string]int{}
	var lastPnL decimal.Decimal

	for _, path := range paths {
		records, err := audit.ReadAll(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		for _, rec := range records {
			cycles++
			proposals += rec.Proposals
			approved += rec.Approved
			if rec.ConfigHash != "" {
				hashes[rec.ConfigHash]++
			}
			lastPnL = rec.DailyPnL
			for _, d := range rec.Decisions {
				if d.Approved {
					continue
				}
				for _, v := range d.Violations {
					rejections[v.Code.String()]++
					if *verbose {
						fmt.Printf("%s  %s %s  %s: %s\n",
							rec.Timestamp.Format("2006-01-02 15:04:05"), d.Side, d.Symbol, v.Code, v.Message)
					}
				}
			}
			for _, o := range rec.Orders {
				orderStatus[o.Status]++
			}
		}
		fmt.Printf("%s: %d cycles\n", filepath.Base(path), len(records))
	}

	fmt.Printf("\ncycles=%d proposals=%d approved=%d daily_pnl=%s\n",
		cycles, proposals, approved, lastPnL.StringFixed(2))

	fmt.Println("\nrejections:")
	for _, code := range sortedKeys(rejections) {
		fmt.Printf("  %-24s %d\n", code, rejections[code])
	}
	fmt.Println("\norder status:")
	for _, status := range sortedKeys(orderStatus) {
		fmt.Printf("  %-24s %d\n", status, orderStatus[status])
	}

	if len(hashes) > 1 {
		fmt.Println("\nWARNING: multiple config hashes seen:")
		for _, h := range sortedKeys(hashes) {
			fmt.Printf("  %s  %d cycles\n", h, hashes[h])
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
