// Package performance records daily portfolio metrics: net positions and
// day-over-day return, snapshotted at every MARKET_CLOSE.
package performance

import (
	"context"
	"time"

	"github.com/nordlight/backtester/internal/event"
	"github.com/nordlight/backtester/internal/kernel"
	"github.com/nordlight/backtester/internal/portfolio"
)

// Point is a single recorded daily return, keyed by the trading day it
// was observed on.
type Point struct {
	Date   time.Time
	Return float64
}

// Tracker subscribes to MARKET_CLOSE and records daily positions and
// returns. Tear-sheet-style analytics (risk stats, drawdown curves) are
// deliberately out of scope; it only accumulates the raw series.
type Tracker struct {
	portfolio *portfolio.Portfolio
	k         *kernel.Kernel

	dailyPositions map[time.Time]map[string]int
	series         []Point

	havePrevValue bool
	prevValue     float64
}

// New constructs a Tracker over p and subscribes it to k's MARKET_CLOSE
// events.
func New(k *kernel.Kernel, p *portfolio.Portfolio) *Tracker {
	t := &Tracker{
		portfolio:      p,
		k:              k,
		dailyPositions: make(map[time.Time]map[string]int),
	}
	k.Subscribe(event.MarketClose, t.onMarketClose)
	return t
}

func (t *Tracker) onMarketClose(_ context.Context, _ *event.Event) error {
	day := t.k.Now()

	positions := t.portfolio.Positions()
	snapshot := make(map[string]int, len(positions))
	for symbol, amount := range positions {
		snapshot[symbol] = amount
	}
	t.dailyPositions[day] = snapshot

	value := t.portfolio.PortfolioValue()
	if t.havePrevValue {
		ret := (value - t.prevValue) / t.prevValue
		t.series = append(t.series, Point{Date: day, Return: ret})
	}
	t.prevValue = value
	t.havePrevValue = true
	return nil
}

// DailyPositions returns the recorded net-position snapshot for day, and
// whether one was recorded.
func (t *Tracker) DailyPositions(day time.Time) (map[string]int, bool) {
	snapshot, ok := t.dailyPositions[day]
	return snapshot, ok
}

// Series returns the ordered (date, return) pairs collected so far, from
// the second observed close onward.
func (t *Tracker) Series() []Point {
	out := make([]Point, len(t.series))
	copy(out, t.series)
	return out
}
