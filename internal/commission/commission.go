// Package commission implements the broker's pluggable commission models.
package commission

import "github.com/nordlight/backtester/internal/event"

// Model computes the commission charged for a single transaction filling
// order. It is evaluated once per fill, at the moment the broker settles
// the transaction, and its result is charged directly against cash.
type Model interface {
	Calculate(order event.Order, txn event.Transaction) float64
}

// NoCommission charges nothing. It is the broker's default.
type NoCommission struct{}

// Calculate implements Model.
func (NoCommission) Calculate(event.Order, event.Transaction) float64 { return 0 }

// PerShare charges a fixed amount per share (or contract) traded,
// regardless of price.
type PerShare struct {
	Rate float64
}

// Calculate implements Model.
func (p PerShare) Calculate(_ event.Order, txn event.Transaction) float64 {
	qty := txn.Amount
	if qty < 0 {
		qty = -qty
	}
	return float64(qty) * p.Rate
}

// Proportional charges a fixed fraction of the transaction's notional
// value (price * quantity).
type Proportional struct {
	Rate float64
}

// Calculate implements Model.
func (p Proportional) Calculate(_ event.Order, txn event.Transaction) float64 {
	qty := txn.Amount
	if qty < 0 {
		qty = -qty
	}
	return float64(qty) * txn.Price * p.Rate
}
