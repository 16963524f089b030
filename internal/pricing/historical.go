package pricing

import (
	"time"

	"github.com/nordlight/backtester/internal/calendar"
)

// HistoricalWindow walks cal backward session-by-session from to, collecting
// one bar per trading day from source until the day falls before from,
// returning the bars in chronological order. Shared by every strategy
// harness (native and JS) that declares a HistoricalPrices data binding, so
// both see identical window semantics.
func HistoricalWindow(source DataSource, cal calendar.Calendar, symbol string, from, to time.Time) ([]OHLCV, error) {
	var bars []OHLCV
	day := cal.PreviousClose(to)
	for !day.Before(from) {
		if cal.IsSessionDay(day) {
			bar, err := source.Bar(symbol, day)
			if err != nil {
				return nil, err
			}
			bars = append(bars, bar)
		}
		day = day.AddDate(0, 0, -1)
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}
