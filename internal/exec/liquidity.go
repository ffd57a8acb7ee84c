package exec

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// LiquidityConfig bounds the microstructure conditions an order may
// execute under. The same checks run on every route so a simulated
// decision predicts what live execution would have done.
type LiquidityConfig struct {
	MaxSpreadPct  decimal.Decimal `json:"maxSpreadPct"`
	MinDepthRatio decimal.Decimal `json:"minDepthRatio"`
	MaxQuoteAge   time.Duration   `json:"maxQuoteAge"`
}

// DefaultLiquidityConfig matches taker execution on liquid spot pairs.
func DefaultLiquidityConfig() LiquidityConfig {
	return LiquidityConfig{
		MaxSpreadPct:  decimal.RequireFromString("0.5"),
		MinDepthRatio: decimal.NewFromInt(2),
		MaxQuoteAge:   10 * time.Second,
	}
}

// checkLiquidity validates a quote against the configured bounds for an
// order of the given side and notional. Returns a human-readable reason
// when the order must not execute, empty string when it may.
func checkLiquidity(cfg LiquidityConfig, q schema.Quote, side schema.Side, notional decimal.Decimal, now time.Time) string {
	if q.Bid.IsZero() || q.Ask.IsZero() {
		return "quote has no book on one side"
	}

	if cfg.MaxQuoteAge > 0 && !q.Timestamp.IsZero() {
		if age := now.Sub(q.Timestamp); age > cfg.MaxQuoteAge {
			return fmt.Sprintf("quote is %s old, limit %s", age.Round(time.Millisecond), cfg.MaxQuoteAge)
		}
	}

	if !cfg.MaxSpreadPct.IsZero() {
		if spread := q.SpreadPct(); spread.GreaterThan(cfg.MaxSpreadPct) {
			return fmt.Sprintf("spread %s%% exceeds limit %s%%", spread.StringFixed(3), cfg.MaxSpreadPct.StringFixed(3))
		}
	}

	if !cfg.MinDepthRatio.IsZero() {
		price, depth := q.Ask, q.AskSize
		if side == schema.SideSell {
			price, depth = q.Bid, q.BidSize
		}
		if !depth.IsZero() && !price.IsZero() {
			available := depth.Mul(price)
			needed := notional.Mul(cfg.MinDepthRatio)
			if available.LessThan(needed) {
				return fmt.Sprintf("top-of-book depth $%s below %sx order size",
					available.StringFixed(2), cfg.MinDepthRatio.String())
			}
		}
	}

	return ""
}
