// Package dateparse resolves free-form date and time text ("next Monday at
// 2pm", "2026-01-15T10:00:00Z") into a single timezone-aware instant.
package dateparse

import (
	"strings"
	"time"
)

// Instant is a resolved point in time. DateOnly marks inputs that named a
// calendar day without a time of day; Time is then the first instant of that
// day, midnight unless a DST gap skips it.
type Instant struct {
	Time     time.Time
	DateOnly bool
}

// String formats date-only instants as YYYY-MM-DD and everything else as
// RFC 3339.
func (i Instant) String() string {
	if i.DateOnly {
		return i.Time.Format("2006-01-02")
	}
	return i.Time.Format(time.RFC3339)
}

// Resolve interprets text relative to now. Strict ISO-8601 forms are tried
// first, then the natural language grammar. Inputs without an explicit zone
// are placed in loc; a nil loc means now's location.
//
// Ambiguous inputs resolve toward the future: a year-less date that already
// passed moves to next year, a bare time that already passed moves to
// tomorrow and a bare weekday means the next such day after today. Explicit
// full dates and backward phrases ("yesterday", "ago", "last") are honored
// as written.
func Resolve(text string, now time.Time, loc *time.Location) (Instant, error) {
	if loc == nil {
		loc = now.Location()
	}
	input := strings.TrimSpace(text)
	if input == "" {
		return Instant{}, &ParseError{Input: text, Reason: "empty input"}
	}

	if inst, ok := parseISO(input, loc); ok {
		return inst, nil
	}
	if inst, ok := parseNatural(input, now, loc); ok {
		return inst, nil
	}
	return Instant{}, &ParseError{Input: text}
}
