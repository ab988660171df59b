package rate

import "time"

// Calendar decides which calendar date an instant belongs to and which of
// those dates are weekend nights. The zero value is UTC with a Saturday and
// Sunday weekend.
type Calendar struct {
	Location    *time.Location
	WeekendDays []time.Weekday
}

var defaultWeekend = []time.Weekday{time.Saturday, time.Sunday}

func NewCalendar(loc *time.Location, weekend []time.Weekday) Calendar {
	return Calendar{Location: loc, WeekendDays: weekend}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Day truncates t to midnight of its calendar date in the calendar's location.
func (c Calendar) Day(t time.Time) time.Time {
	y, m, d := t.In(c.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// ParseDate reads a YYYY-MM-DD string as a calendar date.
func (c Calendar) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, c.location())
}

func (c Calendar) Format(t time.Time) string {
	return t.In(c.location()).Format("2006-01-02")
}

func (c Calendar) IsWeekend(t time.Time) bool {
	wd := t.In(c.location()).Weekday()
	days := c.WeekendDays
	if days == nil {
		days = defaultWeekend
	}
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

// Nights counts calendar days between check-in and check-out. DST shifts do
// not change the count.
func (c Calendar) Nights(checkIn, checkOut time.Time) int {
	return int(dayNumber(c.Day(checkOut)) - dayNumber(c.Day(checkIn)))
}

// EachNight calls fn with the start date of every night in [checkIn, checkOut).
func (c Calendar) EachNight(checkIn, checkOut time.Time, fn func(night time.Time)) {
	start := c.Day(checkIn)
	n := c.Nights(checkIn, checkOut)
	for i := 0; i < n; i++ {
		fn(start.AddDate(0, 0, i))
	}
}

// Contains reports whether night falls inside the inclusive window [from, to].
func (c Calendar) Contains(from, to, night time.Time) bool {
	d := dayNumber(c.Day(night))
	return d >= dayNumber(c.Day(from)) && d <= dayNumber(c.Day(to))
}

func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
