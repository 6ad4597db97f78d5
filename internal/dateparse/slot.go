package dateparse

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/justcal/internal/domain"
)

var dayParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextSlot returns the first hour:minute strictly after `after` on a day
// matching the cron day fields. The schedule only picks the day (at noon,
// clear of DST transitions); the wall time is built with domain.WallTime, so
// a day whose hour:minute falls in a gap is kept, not skipped.
func nextSlot(minute, hour int, dom, month, dow string, after time.Time) (time.Time, bool) {
	sched, err := dayParser.Parse(fmt.Sprintf("0 12 %s %s %s", dom, month, dow))
	if err != nil {
		return time.Time{}, false
	}
	loc := after.Location()
	y, m, d := after.Date()
	from := time.Date(y, m, d-1, 12, 0, 0, 0, loc)

	// After's own day first, then the next matching day, which is always later.
	for range 2 {
		day := sched.Next(from)
		if day.IsZero() {
			return time.Time{}, false
		}
		if t := domain.WallTime(day.Year(), day.Month(), day.Day(), hour, minute, loc); t.After(after) {
			return t, true
		}
		from = day
	}
	return time.Time{}, false
}

// justBefore returns the instant one second before t, so a slot at t itself
// is still eligible for nextSlot.
func justBefore(t time.Time) time.Time {
	return t.Add(-time.Second)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
