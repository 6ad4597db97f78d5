package dateparse

import (
	"time"

	"github.com/tazhate/justcal/internal/domain"
)

var (
	// zonedLayouts carry their own offset, which is kept as parsed.
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04Z07:00",
		"2006-01-02T15:04:05.999999999-0700",
		"2006-01-02T15:04-0700",
		"2006-01-02 15:04:05.999999999-0700",
		"2006-01-02 15:04-0700",
		"20060102T150405Z",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
		"20060102T150405",
	}
	dateLayouts = []string{
		"2006-01-02",
		"20060102",
	}
)

func parseISO(text string, loc *time.Location) (Instant, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return Instant{Time: t}, true
		}
	}
	// Zone-less forms are parsed as a wall clock and then placed in loc, so a
	// DST gap moves the time forward instead of onto the previous day.
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return Instant{Time: domain.Localize(t, loc)}, true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return Instant{Time: domain.Localize(t, loc), DateOnly: true}, true
		}
	}
	return Instant{}, false
}
