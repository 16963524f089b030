// Package calendar provides the trading-calendar contract the market event
// generator depends on, plus a concrete XNYS (NYSE/Nasdaq) implementation
// used as the default exchange and as the fixture behind the spec's
// end-to-end test scenarios.
package calendar

import "time"

// Calendar exposes the session-boundary queries the simulator needs.
// Exchanges are identified by their ISO MIC (e.g. "XNYS").
type Calendar interface {
	MIC() string
	// NextOpen returns the earliest session open strictly after t.
	NextOpen(t time.Time) time.Time
	// NextClose returns the earliest session close strictly after t.
	NextClose(t time.Time) time.Time
	// PreviousClose returns the latest session close strictly before t.
	PreviousClose(t time.Time) time.Time
	// SessionOpen returns the open time for the trading session
	// containing date, or the zero Time if date is not a trading day.
	SessionOpen(date time.Time) (time.Time, bool)
	// SessionClose returns the close time for the trading session
	// containing date, or the zero Time if date is not a trading day.
	SessionClose(date time.Time) (time.Time, bool)
	// IsTradingMinute reports whether t falls within a session
	// [open, close).
	IsTradingMinute(t time.Time) bool
	// IsSessionDay reports whether date (any time-of-day) falls on a
	// trading day for this calendar.
	IsSessionDay(date time.Time) bool
}

// Window describes the daily open/close offsets from midnight in the
// calendar's timezone.
type Window struct {
	OpenHour, OpenMinute   int
	CloseHour, CloseMinute int
}

// HolidayFunc reports whether the given date (normalized to midnight in
// the calendar's timezone) is a market holiday.
type HolidayFunc func(date time.Time) bool

// Daily is a calendar with a single trading window per weekday and a
// pluggable holiday predicate. It is the concrete shape both the XNYS
// default and any custom exchange calendar share.
type Daily struct {
	mic      string
	loc      *time.Location
	window   Window
	holiday  HolidayFunc
	weekends map[time.Weekday]bool
}

// NewDaily constructs a Daily calendar. A nil holiday func means no
// holidays (every weekday trades).
func NewDaily(mic string, loc *time.Location, window Window, holiday HolidayFunc) *Daily {
	if holiday == nil {
		holiday = func(time.Time) bool { return false }
	}
	return &Daily{
		mic:     mic,
		loc:     loc,
		window:  window,
		holiday: holiday,
		weekends: map[time.Weekday]bool{
			time.Saturday: true,
			time.Sunday:   true,
		},
	}
}

func (d *Daily) MIC() string { return d.mic }

func (d *Daily) midnight(t time.Time) time.Time {
	t = t.In(d.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, d.loc)
}

func (d *Daily) isTradingDay(date time.Time) bool {
	day := d.midnight(date)
	if d.weekends[day.Weekday()] {
		return false
	}
	return !d.holiday(day)
}

func (d *Daily) openFor(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), d.window.OpenHour, d.window.OpenMinute, 0, 0, d.loc)
}

func (d *Daily) closeFor(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), d.window.CloseHour, d.window.CloseMinute, 0, 0, d.loc)
}

func (d *Daily) IsSessionDay(date time.Time) bool {
	return d.isTradingDay(date)
}

func (d *Daily) SessionOpen(date time.Time) (time.Time, bool) {
	day := d.midnight(date)
	if !d.isTradingDay(day) {
		return time.Time{}, false
	}
	return d.openFor(day), true
}

func (d *Daily) SessionClose(date time.Time) (time.Time, bool) {
	day := d.midnight(date)
	if !d.isTradingDay(day) {
		return time.Time{}, false
	}
	return d.closeFor(day), true
}

// NextOpen returns the earliest session open strictly after t.
func (d *Daily) NextOpen(t time.Time) time.Time {
	day := d.midnight(t)
	for {
		if d.isTradingDay(day) {
			open := d.openFor(day)
			if open.After(t) {
				return open
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}

// NextClose returns the earliest session close strictly after t.
func (d *Daily) NextClose(t time.Time) time.Time {
	day := d.midnight(t)
	for {
		if d.isTradingDay(day) {
			close := d.closeFor(day)
			if close.After(t) {
				return close
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}

// PreviousClose returns the latest session close strictly before t.
func (d *Daily) PreviousClose(t time.Time) time.Time {
	day := d.midnight(t).AddDate(0, 0, -1)
	for {
		if d.isTradingDay(day) {
			close := d.closeFor(day)
			if close.Before(t) {
				return close
			}
		}
		day = day.AddDate(0, 0, -1)
	}
}

// IsTradingMinute reports whether t falls within [open, close) for its
// session day.
func (d *Daily) IsTradingMinute(t time.Time) bool {
	day := d.midnight(t)
	if !d.isTradingDay(day) {
		return false
	}
	open := d.openFor(day)
	close := d.closeFor(day)
	return !t.Before(open) && t.Before(close)
}
