package generic

import (
	"time"
)

// =============================================================================
// CALENDAR - Business-day model (fixed 07:00-17:00 weekday window)
// =============================================================================

const (
	WorkdayStartHour = 7
	WorkdayEndHour   = 17

	// HoursPerWorkday is the availability one weekday contributes.
	HoursPerWorkday = WorkdayEndHour - WorkdayStartHour
)

// Calendar pins business-hour arithmetic to a location. The zero value uses UTC.
type Calendar struct {
	Location *time.Location
}

// NewCalendar returns a calendar for loc (UTC when nil).
func NewCalendar(loc *time.Location) Calendar {
	return Calendar{Location: loc}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// StartOfDay returns midnight of t's date in the calendar location.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())
}

// At returns the given wall-clock hour on day's date.
func (c Calendar) At(day time.Time, hour int) time.Time {
	d := day.In(c.loc())
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, c.loc())
}

// BusinessWindow returns [07:00, 17:00) on day's date.
func (c Calendar) BusinessWindow(day time.Time) Window {
	return Window{Start: c.At(day, WorkdayStartHour), End: c.At(day, WorkdayEndHour)}
}

// IsWeekend reports whether t falls on Saturday or Sunday in the calendar location.
func (c Calendar) IsWeekend(t time.Time) bool {
	wd := t.In(c.loc()).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (c Calendar) IsWorkday(t time.Time) bool { return !c.IsWeekend(t) }

// NextDay returns midnight of the following calendar date, rebuilt with
// time.Date in the calendar zone so a DST shift never lands off midnight.
func (c Calendar) NextDay(day time.Time) time.Time {
	d := day.In(c.loc())
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, c.loc())
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysInclusive counts calendar dates from from's date to to's date, both included.
// Returns 0 when to's date is before from's date.
func (c Calendar) DaysInclusive(from, to time.Time) int {
	a := c.StartOfDay(from)
	b := c.StartOfDay(to)
	if b.Before(a) {
		return 0
	}
	// Dates in UTC have no DST shift, so the hour difference is an exact day count.
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours()/24) + 1
}

func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func MinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
