package venue

import (
	"context"
	"sync"
	"time"

	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// metaTTL bounds product metadata staleness. Metadata changes are rare
// and a stale read is an accepted, bounded risk.
const metaTTL = 5 * time.Minute

// MetaCache wraps a client and caches GetProductMeta answers.
type MetaCache struct {
	Client

	mu      sync.Mutex
	clk     clock.Clock
	ttl     time.Duration
	entries map[string]metaEntry
}

type metaEntry struct {
	meta    schema.ProductMeta
	fetched time.Time
}

// NewMetaCache wraps a client with a product metadata cache.
func NewMetaCache(inner Client, clk clock.Clock) *MetaCache {
	if clk == nil {
		clk = clock.Real{}
	}
	return &MetaCache{
		Client:  inner,
		clk:     clk,
		ttl:     metaTTL,
		entries: make(map[string]metaEntry),
	}
}

func (c *MetaCache) GetProductMeta(ctx context.Context, symbol string) (schema.ProductMeta, error) {
	c.mu.Lock()
	entry, ok := c.entries[symbol]
	fresh := ok && c.clk.Now().Sub(entry.fetched) < c.ttl
	c.mu.Unlock()
	if fresh {
		return entry.meta, nil
	}

	meta, err := c.Client.GetProductMeta(ctx, symbol)
	if err != nil {
		if ok {
			// serve stale over failing the cycle
			return entry.meta, nil
		}
		return schema.ProductMeta{}, err
	}
	c.mu.Lock()
	c.entries[symbol] = metaEntry{meta: meta, fetched: c.clk.Now()}
	c.mu.Unlock()
	return meta, nil
}
