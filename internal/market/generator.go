// Package market implements the calendar-driven session-boundary event
// generator. It is pure with respect to (t, calendar): given the current
// virtual time and a calendar, it returns the single next boundary event
// strictly after t, never mutating any state.
package market

import (
	"time"

	"github.com/nordlight/backtester/internal/calendar"
	"github.com/nordlight/backtester/internal/event"
)

const preOpenOffset = 15 * time.Minute
const postCloseOffset = 15 * time.Minute

// maxLookaheadDays bounds how far Next will scan forward for a trading
// session. 30 comfortably covers any realistic holiday cluster; a calendar
// with a longer gap than that is a configuration error, not a valid input.
const maxLookaheadDays = 30

// Boundary pairs a session-boundary timestamp with its event type.
type Boundary struct {
	Time time.Time
	Type event.Type
}

// Generator produces the next market (session-boundary) event after a
// given virtual time, for a single exchange calendar at daily frequency.
type Generator struct {
	cal calendar.Calendar
}

// New constructs a Generator bound to cal.
func New(cal calendar.Calendar) *Generator {
	return &Generator{cal: cal}
}

// Next returns the single next boundary event with time strictly greater
// than t. Each trading day contributes four candidates: open-15m, open,
// close, close+15m. Next walks forward day by day starting from t's own
// calendar day (so a still-pending post-close on t's own session is never
// missed) and returns the earliest candidate strictly after t, rolling
// into following sessions as needed. The edge case where t lands exactly
// on a boundary (e.g. t == close) falls out naturally: close is not
// strictly after itself, so only close+15m qualifies that day.
func (g *Generator) Next(t time.Time) Boundary {
	day := t
	for i := 0; i < maxLookaheadDays; i++ {
		if best, ok := g.bestOnDay(day, t); ok {
			return best
		}
		day = day.AddDate(0, 0, 1)
	}
	panic("market: no trading session found within lookahead window")
}

func (g *Generator) bestOnDay(day, t time.Time) (Boundary, bool) {
	open, ok := g.cal.SessionOpen(day)
	if !ok {
		return Boundary{}, false
	}
	close, _ := g.cal.SessionClose(day)

	candidates := []Boundary{
		{Time: open.Add(-preOpenOffset), Type: event.PreMarketOpen},
		{Time: open, Type: event.MarketOpen},
		{Time: close, Type: event.MarketClose},
		{Time: close.Add(postCloseOffset), Type: event.PostMarketClose},
	}

	var best *Boundary
	for i := range candidates {
		c := candidates[i]
		if !c.Time.After(t) {
			continue
		}
		if best == nil || c.Time.Before(best.Time) {
			best = &candidates[i]
		}
	}
	if best == nil {
		return Boundary{}, false
	}
	return *best, true
}
