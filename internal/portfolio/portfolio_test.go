package portfolio

import (
	"testing"
	"time"
)

func TestNewPortfolioStartsWithCapitalBaseAndNoPositions(t *testing.T) {
	p := New(10000)
	if p.Cash() != 10000 {
		t.Fatalf("expected cash 10000, got %v", p.Cash())
	}
	if p.StartingCash() != 10000 {
		t.Fatalf("expected starting cash 10000, got %v", p.StartingCash())
	}
	if len(p.Positions()) != 0 {
		t.Fatalf("expected no positions, got %v", p.Positions())
	}
	if p.PortfolioValue() != 10000 {
		t.Fatalf("expected portfolio value 10000, got %v", p.PortfolioValue())
	}
}

func TestApplyTransactionDebitsCashIncludingCommission(t *testing.T) {
	p := New(10000)
	dt := time.Date(2021, 10, 1, 10, 0, 0, 0, time.UTC)
	p.ApplyTransaction("AAPL", dt, 10, 100, 1.5)

	wantCash := 10000 - 10*100 - 1.5
	if p.Cash() != wantCash {
		t.Fatalf("expected cash %v, got %v", wantCash, p.Cash())
	}
	positions := p.Positions()
	if positions["AAPL"] != 10 {
		t.Fatalf("expected 10 shares of AAPL, got %v", positions["AAPL"])
	}
}

func TestApplyTransactionAccumulatesLotsForSameSymbol(t *testing.T) {
	p := New(10000)
	dt1 := time.Date(2021, 10, 1, 10, 0, 0, 0, time.UTC)
	dt2 := time.Date(2021, 10, 2, 10, 0, 0, 0, time.UTC)
	p.ApplyTransaction("AAPL", dt1, 10, 100, 0)
	p.ApplyTransaction("AAPL", dt2, -4, 110, 0)

	positions := p.Positions()
	if positions["AAPL"] != 6 {
		t.Fatalf("expected net 6 shares, got %v", positions["AAPL"])
	}
	if len(p.Lots()) != 2 {
		t.Fatalf("expected 2 lots retained, got %v", len(p.Lots()))
	}
}

func TestSetCurrentPricesInvalidatesCacheAndUpdatesValuations(t *testing.T) {
	p := New(10000)
	dt := time.Date(2021, 10, 1, 10, 0, 0, 0, time.UTC)
	p.ApplyTransaction("AAPL", dt, 10, 100, 0)

	p.SetCurrentPrices(map[string]float64{"AAPL": 100})
	if got := p.PositionsValue(); got != 1000 {
		t.Fatalf("expected positions value 1000, got %v", got)
	}

	p.SetCurrentPrices(map[string]float64{"AAPL": 150})
	if got := p.PositionsValue(); got != 1500 {
		t.Fatalf("expected positions value to refresh to 1500, got %v", got)
	}
}

func TestWeightsSumToOneAcrossMultipleSymbols(t *testing.T) {
	p := New(10000)
	dt := time.Date(2021, 10, 1, 10, 0, 0, 0, time.UTC)
	p.ApplyTransaction("AAPL", dt, 10, 100, 0)
	p.ApplyTransaction("MSFT", dt, 5, 200, 0)
	p.SetCurrentPrices(map[string]float64{"AAPL": 100, "MSFT": 200})

	weights := p.Weights()
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total < 0.999 || total > 1.001 {
		t.Fatalf("expected weights to sum to 1, got %v", total)
	}
}

func TestWeightsEmptyWhenNoPositions(t *testing.T) {
	p := New(10000)
	weights := p.Weights()
	if len(weights) != 0 {
		t.Fatalf("expected no weights, got %v", weights)
	}
}
