// Package portfolio tracks positions, cash, and derived portfolio
// valuations as transactions and price changes arrive.
package portfolio

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a single position lot: one transaction's worth of shares at the
// price they were acquired, keyed by (symbol, dt). Lots are append-only;
// a sell is simply a lot with negative amount.
type Lot struct {
	Symbol    string
	Dt        time.Time
	Amount    int
	CostBasis float64
}

// Portfolio is a read-only point-in-time view over positions, cash, and
// their derived valuations. Derived values (positions value, portfolio
// value, weights) are computed lazily and cached until the next mutation
// invalidates them — mirroring the cached-property pattern the values
// were modeled on, since re-deriving them on every access would redo the
// same aggregation for every one of potentially thousands of handlers
// reading the portfolio between mutations.
type Portfolio struct {
	mu sync.Mutex

	startingCash float64
	cash         decimal.Decimal
	lots         []Lot

	currentPrices map[string]float64

	dirty          bool
	positionsValue decimal.Decimal
	portfolioValue decimal.Decimal
	weights        map[string]float64
}

// New constructs a Portfolio starting with capitalBase in cash and no
// positions.
func New(capitalBase float64) *Portfolio {
	return &Portfolio{
		startingCash:  capitalBase,
		cash:          decimal.NewFromFloat(capitalBase),
		currentPrices: make(map[string]float64),
		dirty:         true,
	}
}

// ApplyTransaction records a fill: it appends a new lot and debits cash
// by the transaction's notional value plus its commission. Cash is
// accumulated internally as decimal.Decimal so that thousands of small
// fills don't compound float64 summation error into the reported
// balance; only the final value crosses the float64 boundary.
func (p *Portfolio) ApplyTransaction(symbol string, dt time.Time, amount int, price, commissionCharge float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lots = append(p.lots, Lot{Symbol: symbol, Dt: dt, Amount: amount, CostBasis: price})
	notional := decimal.NewFromInt(int64(amount)).Mul(decimal.NewFromFloat(price))
	p.cash = p.cash.Sub(notional).Sub(decimal.NewFromFloat(commissionCharge))
	p.dirty = true
}

// SetCurrentPrices replaces the market prices used to value open
// positions and invalidates the cached derived values.
func (p *Portfolio) SetCurrentPrices(prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentPrices = prices
	p.dirty = true
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	cash, _ := p.cash.Float64()
	return cash
}

// StartingCash returns the capital base the portfolio was seeded with.
func (p *Portfolio) StartingCash() float64 {
	return p.startingCash
}

// Positions returns the net share count per symbol across all lots.
func (p *Portfolio) Positions() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionsLocked()
}

func (p *Portfolio) positionsLocked() map[string]int {
	out := make(map[string]int)
	for _, lot := range p.lots {
		out[lot.Symbol] += lot.Amount
	}
	return out
}

// Lots returns a copy of every recorded position lot.
func (p *Portfolio) Lots() []Lot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Lot, len(p.lots))
	copy(out, p.lots)
	return out
}

// PositionsValue returns the current mark-to-market value of all open
// positions (excluding cash).
func (p *Portfolio) PositionsValue() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recomputeLocked()
	v, _ := p.positionsValue.Float64()
	return v
}

// PortfolioValue returns cash plus PositionsValue.
func (p *Portfolio) PortfolioValue() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recomputeLocked()
	v, _ := p.portfolioValue.Float64()
	return v
}

// Weights returns each held symbol's fraction of total positions value.
// Empty if there are no open positions.
func (p *Portfolio) Weights() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recomputeLocked()
	out := make(map[string]float64, len(p.weights))
	for k, v := range p.weights {
		out[k] = v
	}
	return out
}

func (p *Portfolio) recomputeLocked() {
	if !p.dirty {
		return
	}
	positions := p.positionsLocked()
	posVal := decimal.Zero
	for symbol, amount := range positions {
		posVal = posVal.Add(decimal.NewFromInt(int64(amount)).Mul(decimal.NewFromFloat(p.currentPrices[symbol])))
	}
	p.positionsValue = posVal
	p.portfolioValue = p.cash.Add(posVal)

	weights := make(map[string]float64, len(positions))
	posValFloat, _ := posVal.Float64()
	if posValFloat != 0 {
		for symbol, amount := range positions {
			weights[symbol] = (float64(amount) * p.currentPrices[symbol]) / posValFloat
		}
	}
	p.weights = weights
	p.dirty = false
}
