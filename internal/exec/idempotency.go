package exec

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// ClientOrderID derives the idempotent client order identifier from the
// proposal content and the cycle timestamp. The same intended order in
// the same cycle always hashes to the same id, so a retried submission
// deduplicates at the venue instead of double-executing; a new cycle
// produces a fresh id because re-proposing later is a new intent.
func ClientOrderID(p schema.TradeProposal, notional decimal.Decimal, cycle time.Time) string {
	h := sha256.New()
	h.Write([]byte(p.Symbol))
	h.Write([]byte{0})
	h.Write([]byte(p.Side.String()))
	h.Write([]byte{0})
	h.Write([]byte(notional.StringFixed(8)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(cycle.UTC().Unix(), 10)))
	sum := h.Sum(nil)
	return "t-" + hex.EncodeToString(sum[:12])
}
