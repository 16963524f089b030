package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/nordlight/backtester/errs"
	"github.com/nordlight/backtester/internal/calendar"
	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/pricing"
)

type fakeSource struct {
	bars map[string]pricing.OHLCV
}

func newFakeSource() *fakeSource { return &fakeSource{bars: make(map[string]pricing.OHLCV)} }

func (f *fakeSource) put(symbol string, date time.Time, bar pricing.OHLCV) {
	f.bars[symbol+"@"+date.Format("2006-01-02")] = bar
}

func (f *fakeSource) Bar(symbol string, date time.Time) (pricing.OHLCV, error) {
	bar, ok := f.bars[symbol+"@"+date.Format("2006-01-02")]
	if !ok {
		return pricing.OHLCV{}, errs.New("fake", errs.KindPriceUnavailable)
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

func TestManagerAppliesFulfilledTransactionAndPublishesUpdate(t *testing.T) {
	loc := mustLoc(t)
	cal := calendar.XNYS()
	src := newFakeSource()
	day := time.Date(2021, 10, 1, 0, 0, 0, 0, loc)
	src.put("AAPL", day, pricing.OHLCV{Open: 100, Close: 102})
	view := pricing.NewView(src, cal)

	t0 := time.Date(2021, 10, 1, 10, 0, 0, 0, loc)
	k := kernel.New(t0, kernel.WithIDGenerator(&event.CounterIDGenerator{}))
	m := NewManager(k, view, 10000, WithIDGenerator(&event.CounterIDGenerator{}))

	var updates int
	k.Subscribe(event.PortfolioUpdate, func(_ context.Context, _ *event.Event) error {
		updates++
		return nil
	})

	txn := event.Transaction{
		Asset:      event.NewAsset(1, "AAPL", "Apple Inc."),
		Amount:     10,
		Dt:         t0,
		Price:      100,
		Commission: 1.5,
	}
	evt := event.New(&event.CounterIDGenerator{}, event.OrderFulfilled, event.TransactionPayload{Transaction: txn})
	k.Schedule(evt, t0)

	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	positions := m.Portfolio().Positions()
	if positions["AAPL"] != 10 {
		t.Fatalf("expected 10 shares of AAPL, got %v", positions["AAPL"])
	}
	wantCash := 10000 - 10*100 - 1.5
	if m.Portfolio().Cash() != wantCash {
		t.Fatalf("expected cash %v, got %v", wantCash, m.Portfolio().Cash())
	}
	if updates == 0 {
		t.Fatalf("expected at least one PORTFOLIO_UPDATE to be published")
	}
}

func TestManagerSkipsPriceRefreshWhenNoPositions(t *testing.T) {
	loc := mustLoc(t)
	cal := calendar.XNYS()
	src := newFakeSource()
	view := pricing.NewView(src, cal)

	t0 := time.Date(2021, 10, 1, 10, 0, 0, 0, loc)
	k := kernel.New(t0, kernel.WithIDGenerator(&event.CounterIDGenerator{}))
	m := NewManager(k, view, 10000, WithIDGenerator(&event.CounterIDGenerator{}))

	var updates int
	k.Subscribe(event.PortfolioUpdate, func(_ context.Context, _ *event.Event) error {
		updates++
		return nil
	})

	evt := event.New(&event.CounterIDGenerator{}, event.PriceChange, event.PriceChangePayload{})
	k.Schedule(evt, t0)

	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if updates != 0 {
		t.Fatalf("expected no PORTFOLIO_UPDATE when there are no positions, got %d", updates)
	}
}

func TestManagerRefreshesPricesOnPriceChangeWhenPositionsHeld(t *testing.T) {
	loc := mustLoc(t)
	cal := calendar.XNYS()
	src := newFakeSource()
	day := time.Date(2021, 10, 1, 0, 0, 0, 0, loc)
	src.put("AAPL", day, pricing.OHLCV{Open: 100, Close: 102})
	view := pricing.NewView(src, cal)

	t0 := time.Date(2021, 10, 1, 10, 0, 0, 0, loc)
	k := kernel.New(t0, kernel.WithIDGenerator(&event.CounterIDGenerator{}))
	m := NewManager(k, view, 10000, WithIDGenerator(&event.CounterIDGenerator{}))
	m.Portfolio().ApplyTransaction("AAPL", t0, 10, 100, 0)

	evt := event.New(&event.CounterIDGenerator{}, event.PriceChange, event.PriceChangePayload{})
	k.Schedule(evt, t0)

	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := m.Portfolio().PositionsValue(); got != 1000 {
		t.Fatalf("expected positions value refreshed to 1000, got %v", got)
	}
}
