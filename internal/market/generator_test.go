package market

import (
	"testing"
	"time"

	"github.com/nordlight/backtester/internal/calendar"
	"github.com/nordlight/backtester/internal/event"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %q: %v", name, err)
	}
	return loc
}

func TestNextBeforePreOpenReturnsPreMarketOpen(t *testing.T) {
	gen := New(calendar.XNYS())
	loc := mustLocation(t, "America/New_York")
	t0 := time.Date(2020, 1, 2, 8, 0, 0, 0, loc)

	got := gen.Next(t0)
	if got.Type != event.PreMarketOpen {
		t.Fatalf("expected PRE_MARKET_OPEN, got %s", got.Type)
	}
	want := time.Date(2020, 1, 2, 9, 15, 0, 0, loc)
	if !got.Time.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got.Time)
	}
}

func TestNextAtCloseReturnsPostMarketClose(t *testing.T) {
	gen := New(calendar.XNYS())
	loc := mustLocation(t, "America/New_York")
	closeTime := time.Date(2020, 1, 2, 16, 0, 0, 0, loc)

	got := gen.Next(closeTime)
	if got.Type != event.PostMarketClose {
		t.Fatalf("expected POST_MARKET_CLOSE when t == close, got %s", got.Type)
	}
	want := closeTime.Add(15 * time.Minute)
	if !got.Time.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got.Time)
	}
}

func TestNextAfterPostCloseRollsToNextSession(t *testing.T) {
	gen := New(calendar.XNYS())
	loc := mustLocation(t, "America/New_York")
	// 2020-01-02 is a Thursday; next trading day is Friday 2020-01-03.
	t0 := time.Date(2020, 1, 2, 16, 20, 0, 0, loc)

	got := gen.Next(t0)
	if got.Type != event.PreMarketOpen {
		t.Fatalf("expected next session's PRE_MARKET_OPEN, got %s", got.Type)
	}
	want := time.Date(2020, 1, 3, 9, 15, 0, 0, loc)
	if !got.Time.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got.Time)
	}
}

func TestNextSkipsWeekendAndHoliday(t *testing.T) {
	gen := New(calendar.XNYS())
	loc := mustLocation(t, "America/New_York")
	// 2020-01-01 is New Year's Day (holiday); first session of the year is
	// 2020-01-02.
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, loc)

	got := gen.Next(t0)
	if got.Type != event.PreMarketOpen {
		t.Fatalf("expected PRE_MARKET_OPEN, got %s", got.Type)
	}
	want := time.Date(2020, 1, 2, 9, 15, 0, 0, loc)
	if !got.Time.Equal(want) {
		t.Fatalf("expected first session of 2020 at %v, got %v", want, got.Time)
	}
}

func TestNextSequenceCoversSixJanuaryTradingDays(t *testing.T) {
	// Scenario S1: January 2020, holiday on Jan 1 plus the Jan 4-5 weekend
	// yields six trading days: Jan 2, 3, 6, 7, 8, 9.
	gen := New(calendar.XNYS())
	loc := mustLocation(t, "America/New_York")

	t0 := time.Date(2019, 12, 31, 20, 0, 0, 0, loc)
	wantDays := []int{2, 3, 6, 7, 8, 9}

	seen := map[int]bool{}
	cur := t0
	for i := 0; i < len(wantDays)*4 && len(seen) < len(wantDays); i++ {
		b := gen.Next(cur)
		if b.Type == event.MarketOpen {
			seen[b.Time.Day()] = true
		}
		cur = b.Time
	}
	for _, d := range wantDays {
		if !seen[d] {
			t.Fatalf("expected trading day Jan %d to produce a MARKET_OPEN event", d)
		}
	}
	if len(seen) != len(wantDays) {
		t.Fatalf("expected exactly %d trading days, saw %d: %v", len(wantDays), len(seen), seen)
	}
}
