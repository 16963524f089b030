package calendar

import "time"

// XNYS returns the standard NYSE/Nasdaq calendar: regular session
// 09:30-16:00 America/New_York, closed weekends and the standard set of
// US market holidays (with Good Friday, which the exchange observes but
// which is not a federal holiday).
func XNYS() *Daily {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("America/New_York", -5*60*60)
	}
	window := Window{OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0}
	return NewDaily("XNYS", loc, window, usMarketHoliday)
}

// usMarketHoliday implements the standard NYSE holiday rules. date is
// normalized to midnight in the exchange's timezone.
func usMarketHoliday(date time.Time) bool {
	year := date.Year()
	candidates := []time.Time{
		observedFixed(year, time.January, 1, date.Location()),               // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3, date.Location()),     // MLK Day
		nthWeekday(year, time.February, time.Monday, 3, date.Location()),    // Washington's Birthday
		goodFriday(year, date.Location()),                                  // Good Friday
		lastWeekday(year, time.May, time.Monday, date.Location()),          // Memorial Day
		observedFixed(year, time.June, 19, date.Location()),                // Juneteenth
		observedFixed(year, time.July, 4, date.Location()),                 // Independence Day
		nthWeekday(year, time.September, time.Monday, 1, date.Location()),  // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4, date.Location()), // Thanksgiving
		observedFixed(year, time.December, 25, date.Location()),            // Christmas
	}
	for _, c := range candidates {
		if sameDay(c, date) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// observedFixed returns the date a fixed-date holiday is observed on: if it
// falls on a Saturday it is observed the preceding Friday; if Sunday, the
// following Monday.
func observedFixed(year int, month time.Month, day int, loc *time.Location) time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d
	}
}

// nthWeekday returns the date of the n-th occurrence of weekday in month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int, loc *time.Location) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	d = d.AddDate(0, 0, offset)
	d = d.AddDate(0, 0, 7*(n-1))
	return d
}

// lastWeekday returns the date of the last occurrence of weekday in month.
func lastWeekday(year int, month time.Month, weekday time.Weekday, loc *time.Location) time.Time {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	d := firstOfNext.AddDate(0, 0, -1)
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// goodFriday computes Good Friday (two days before Easter Sunday) using
// the anonymous Gregorian algorithm for the Easter date.
func goodFriday(year int, loc *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	return easter.AddDate(0, 0, -2)
}
