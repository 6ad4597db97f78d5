package domain

import "time"

// Localize reads the wall clock of w, ignoring its location, as a time in
// loc. A wall time that falls in a DST gap resolves to the first instant
// after the gap, so the calendar date never moves backwards. Zones that skip
// midnight (America/Santiago, America/Havana) start such a day at 01:00.
func Localize(w time.Time, loc *time.Location) time.Time {
	want := wallClock(w)
	t := time.Date(want.Year(), want.Month(), want.Day(), want.Hour(), want.Minute(), want.Second(), want.Nanosecond(), loc)
	got := wallClock(t)
	if got.Equal(want) {
		return t
	}

	start, end := t.ZoneBounds()
	switch {
	case got.Before(want) && !end.IsZero():
		return end
	case got.After(want) && !start.IsZero():
		return start
	}
	return t
}

// WallTime returns hour:minute on the civil day year-month-day in loc.
// Out-of-range fields normalize the way time.Date does.
func WallTime(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	return Localize(time.Date(year, month, day, hour, minute, 0, 0, time.UTC), loc)
}

// StartOfDay returns the first instant of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return WallTime(y, m, d, 0, 0, t.Location())
}

// AddDays returns the first instant of the calendar day n days after t's.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return WallTime(y, m, d+n, 0, 0, t.Location())
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
