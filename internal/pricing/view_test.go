package pricing

import (
	"testing"
	"time"

	"github.com/nordlight/backtester/errs"
	"github.com/nordlight/backtester/internal/calendar"
)

type fakeSource struct {
	bars map[string]OHLCV // keyed by symbol+date string
}

func newFakeSource() *fakeSource {
	return &fakeSource{bars: make(map[string]OHLCV)}
}

func (f *fakeSource) put(symbol string, date time.Time, bar OHLCV) {
	f.bars[key(symbol, date)] = bar
}

func key(symbol string, date time.Time) string {
	return symbol + "@" + date.Format("2006-01-02")
}

func (f *fakeSource) Bar(symbol string, date time.Time) (OHLCV, error) {
	bar, ok := f.bars[key(symbol, date)]
	if !ok {
		return OHLCV{}, errs.New("fake", errs.KindPriceUnavailable, errs.WithMessage("no bar for "+key(symbol, date)))
	}
	return bar, nil
}

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestCurrentPriceBeforeOpenUsesPreviousClose(t *testing.T) {
	loc := mustLoc(t)
	cal := calendar.XNYS()
	src := newFakeSource()
	src.put("AAPL", time.Date(2020, 1, 2, 0, 0, 0, 0, loc), OHLCV{Open: 100, Close: 102})
	view := NewView(src, cal)

	// 2020-01-03, 08:00 — before open, previous session is 2020-01-02.
	t0 := time.Date(2020, 1, 3, 8, 0, 0, 0, loc)
	price, err := view.CurrentPrice("AAPL", t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 102 {
		t.Fatalf("expected previous close 102, got %v", price)
	}
}

func TestCurrentPriceDuringSessionUsesTodayOpen(t *testing.T) {
	loc := mustLoc(t)
	cal := calendar.XNYS()
	src := newFakeSource()
	src.put("AAPL", time.Date(2020, 1, 2, 0, 0, 0, 0, loc), OHLCV{Open: 100, Close: 102})
	view := NewView(src, cal)

	t0 := time.Date(2020, 1, 2, 10, 0, 0, 0, loc)
	price, err := view.CurrentPrice("AAPL", t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 100 {
		t.Fatalf("expected today's open 100, got %v", price)
	}
}

func TestCurrentPriceAtOrAfterCloseUsesTodayClose(t *testing.T) {
	loc := mustLoc(t)
	cal := calendar.XNYS()
	src := newFakeSource()
	src.put("AAPL", time.Date(2020, 1, 2, 0, 0, 0, 0, loc), OHLCV{Open: 100, Close: 102})
	view := NewView(src, cal)

	closeTime := time.Date(2020, 1, 2, 16, 0, 0, 0, loc)
	price, err := view.CurrentPrice("AAPL", closeTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 102 {
		t.Fatalf("expected today's close 102 at t==close, got %v", price)
	}

	later := closeTime.Add(30 * time.Minute)
	price, err = view.CurrentPrice("AAPL", later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 102 {
		t.Fatalf("expected today's close 102 after close, got %v", price)
	}
}

func TestCurrentPriceUnknownSymbolReturnsError(t *testing.T) {
	loc := mustLoc(t)
	cal := calendar.XNYS()
	src := newFakeSource()
	view := NewView(src, cal)

	t0 := time.Date(2020, 1, 2, 10, 0, 0, 0, loc)
	if _, err := view.CurrentPrice("MISSING", t0); err == nil {
		t.Fatalf("expected error for unknown symbol")
	}
}
