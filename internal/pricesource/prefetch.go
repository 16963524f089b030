// Package pricesource hosts the Prices View's backing stores (csv,
// postgres) and an optional prefetch cache that warms the next session's
// rows in the background, the one sanctioned place for concurrency in
// the simulator: the kernel still sees a synchronous, same-answer Bar
// call, it just sometimes finds the answer already cached.
package pricesource

import (
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/nordlight/backtester/internal/pricing"
)

// PrefetchCache wraps a pricing.DataSource, optionally warming a set of
// (symbol, date) rows concurrently ahead of when the kernel will need
// them. It implements pricing.DataSource itself, so it can replace the
// underlying source transparently wherever one is accepted.
type PrefetchCache struct {
	source pricing.DataSource

	mu    sync.RWMutex
	cache map[string]pricing.OHLCV // "symbol@2006-01-02" -> bar

	maxWorkers int
}

// NewPrefetchCache wraps source with a cache warmed by at most maxWorkers
// concurrent fetches. maxWorkers <= 0 defaults to 4.
func NewPrefetchCache(source pricing.DataSource, maxWorkers int) *PrefetchCache {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &PrefetchCache{
		source:     source,
		cache:      make(map[string]pricing.OHLCV),
		maxWorkers: maxWorkers,
	}
}

func cacheKey(symbol string, date time.Time) string {
	return symbol + "@" + date.Format("2006-01-02")
}

// Warm fetches symbols for date concurrently and populates the cache,
// swallowing individual fetch errors (a symbol with no row for date is
// simply left uncached; Bar falls through to the source as usual when
// the kernel actually asks for it). Warm blocks until every fetch in this
// batch completes, so it should be called from a goroutine the kernel
// doesn't wait on — it exists to run ahead of the kernel's own clock, not
// alongside it.
func (c *PrefetchCache) Warm(symbols []string, date time.Time) {
	p := pool.New().WithMaxGoroutines(c.maxWorkers)
	for _, symbol := range symbols {
		sym := symbol
		p.Go(func() {
			bar, err := c.source.Bar(sym, date)
			if err != nil {
				return
			}
			c.mu.Lock()
			c.cache[cacheKey(sym, date)] = bar
			c.mu.Unlock()
		})
	}
	p.Wait()
}

// Bar implements pricing.DataSource: it returns the cached bar if Warm
// already populated it, otherwise it fetches synchronously from the
// underlying source.
func (c *PrefetchCache) Bar(symbol string, date time.Time) (pricing.OHLCV, error) {
	key := cacheKey(symbol, date)

	c.mu.RLock()
	bar, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return bar, nil
	}

	bar, err := c.source.Bar(symbol, date)
	if err != nil {
		return pricing.OHLCV{}, err
	}

	c.mu.Lock()
	c.cache[key] = bar
	c.mu.Unlock()
	return bar, nil
}
