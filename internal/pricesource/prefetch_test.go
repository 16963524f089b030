package pricesource

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nordlight/backtester/errs"
	"github.com/nordlight/backtester/internal/pricing"
)

type countingSource struct {
	bars  map[string]pricing.OHLCV
	fetch atomic.Int64
}

func newCountingSource() *countingSource {
	return &countingSource{bars: make(map[string]pricing.OHLCV)}
}

func (s *countingSource) put(symbol string, date time.Time, bar pricing.OHLCV) {
	s.bars[symbol+"@"+date.Format("2006-01-02")] = bar
}

func (s *countingSource) Bar(symbol string, date time.Time) (pricing.OHLCV, error) {
	s.fetch.Add(1)
	bar, ok := s.bars[symbol+"@"+date.Format("2006-01-02")]
	if !ok {
		return pricing.OHLCV{}, errs.New("fake", errs.KindSymbolNotFound)
	}
	return bar, nil
}

func TestWarmPopulatesCacheSoBarAvoidsASecondSourceFetch(t *testing.T) {
	src := newCountingSource()
	day := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	src.put("AAPL", day, pricing.OHLCV{Close: 102})
	src.put("MSFT", day, pricing.OHLCV{Close: 300})

	cache := NewPrefetchCache(src, 2)
	cache.Warm([]string{"AAPL", "MSFT"}, day)

	if got := src.fetch.Load(); got != 2 {
		t.Fatalf("expected exactly 2 warming fetches, got %d", got)
	}

	bar, err := cache.Bar("AAPL", day)
	if err != nil {
		t.Fatalf("bar: %v", err)
	}
	if bar.Close != 102 {
		t.Fatalf("expected close 102, got %v", bar.Close)
	}
	if got := src.fetch.Load(); got != 2 {
		t.Fatalf("expected Bar to be served from cache with no extra fetch, got %d total fetches", got)
	}
}

func TestBarFallsThroughToSourceOnCacheMiss(t *testing.T) {
	src := newCountingSource()
	day := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	src.put("AAPL", day, pricing.OHLCV{Close: 102})

	cache := NewPrefetchCache(src, 2)

	bar, err := cache.Bar("AAPL", day)
	if err != nil {
		t.Fatalf("bar: %v", err)
	}
	if bar.Close != 102 {
		t.Fatalf("expected close 102, got %v", bar.Close)
	}
	if got := src.fetch.Load(); got != 1 {
		t.Fatalf("expected exactly 1 fetch on cache miss, got %d", got)
	}
}

func TestWarmSkipsSymbolsWithNoRowForDate(t *testing.T) {
	src := newCountingSource()
	day := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)

	cache := NewPrefetchCache(src, 2)
	cache.Warm([]string{"UNKNOWN"}, day)

	if _, err := cache.Bar("UNKNOWN", day); err == nil {
		t.Fatalf("expected an error for a symbol with no row, not a silently cached zero value")
	}
}
