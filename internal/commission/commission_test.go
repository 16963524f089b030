package commission

import (
	"testing"
	"time"

	"github.com/nordlight/backtester/internal/event"
)

func TestNoCommissionReturnsZero(t *testing.T) {
	asset := event.NewAsset(1, "AAPL", "Apple Inc.")
	order := event.Order{Asset: asset, Amount: 100}
	txn := event.Transaction{Asset: asset, Amount: 100, Dt: time.Now(), Price: 100.0}

	if got := (NoCommission{}).Calculate(order, txn); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestPerShareChargesAbsoluteQuantity(t *testing.T) {
	asset := event.NewAsset(1, "AAPL", "Apple Inc.")
	txn := event.Transaction{Asset: asset, Amount: -50, Price: 10.0}

	model := PerShare{Rate: 0.01}
	if got := model.Calculate(event.Order{}, txn); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestProportionalChargesNotionalFraction(t *testing.T) {
	asset := event.NewAsset(1, "AAPL", "Apple Inc.")
	txn := event.Transaction{Asset: asset, Amount: 100, Price: 50.0}

	model := Proportional{Rate: 0.001}
	want := 100.0 * 50.0 * 0.001
	if got := model.Calculate(event.Order{}, txn); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
