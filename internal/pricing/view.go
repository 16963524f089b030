package pricing

import (
	"time"

	"github.com/nordlight/backtester/errs"
	"github.com/nordlight/backtester/internal/calendar"
)

// View is the Prices View: it resolves a single current price for a
// symbol at virtual time t, never looking past t. The resolution rule
// depends on where t falls relative to the symbol's trading session:
//
//   - t before the session open: the previous session's close.
//   - t within [open, close): the current session's open (the only price
//     point known without looking into the future).
//   - t at or after the session close: the current session's close.
type View struct {
	source DataSource
	cal    calendar.Calendar
}

// NewView constructs a Prices View over source, resolving session
// boundaries against cal.
func NewView(source DataSource, cal calendar.Calendar) *View {
	return &View{source: source, cal: cal}
}

// CurrentPrice resolves the current price for symbol at virtual time t.
func (v *View) CurrentPrice(symbol string, t time.Time) (float64, error) {
	open, hasOpen := v.cal.SessionOpen(t)
	close, hasClose := v.cal.SessionClose(t)

	switch {
	case hasOpen && t.Before(open):
		prevClose := v.cal.PreviousClose(t)
		bar, err := v.source.Bar(symbol, prevClose)
		if err != nil {
			return 0, err
		}
		return bar.Close, nil

	case hasClose && t.Before(close):
		bar, err := v.source.Bar(symbol, t)
		if err != nil {
			return 0, err
		}
		return bar.Open, nil

	case hasClose:
		bar, err := v.source.Bar(symbol, t)
		if err != nil {
			return 0, err
		}
		return bar.Close, nil

	default:
		// t falls on a non-trading day: resolve against the most recent
		// completed session.
		prevClose := v.cal.PreviousClose(t)
		bar, err := v.source.Bar(symbol, prevClose)
		if err != nil {
			return 0, err
		}
		return bar.Close, nil
	}
}

// CurrentPrices resolves CurrentPrice for every symbol in symbols,
// returning a map keyed by symbol. The first error encountered aborts the
// batch; partial results are not returned.
func (v *View) CurrentPrices(symbols []string, t time.Time) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		price, err := v.CurrentPrice(sym, t)
		if err != nil {
			return nil, errs.New("pricing", errs.KindPriceUnavailable,
				errs.WithMessage("batch fetch failed for "+sym), errs.WithCause(err))
		}
		out[sym] = price
	}
	return out, nil
}
