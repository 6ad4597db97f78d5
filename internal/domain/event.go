package domain

import (
	"strings"
	"time"
)

// Event is a calendar event as stored on the CalDAV server.
type Event struct {
	UID         string
	Path        string // Object path on the server, empty until saved
	Title       string // SUMMARY
	Description string
	Location    string
	Start       time.Time
	End         time.Time // Exclusive; for all-day events the day after the last day
	AllDay      bool
	RRule       string // Canonical recurrence rule, e.g. "FREQ=WEEKLY;BYDAY=MO"
}

// SearchField selects which event fields a query is matched against.
type SearchField string

const (
	FieldTitle       SearchField = "title"
	FieldDescription SearchField = "description"
	FieldLocation    SearchField = "location"
	FieldAll         SearchField = "all"
)

// ParseSearchField validates a user-supplied field name.
func ParseSearchField(s string) (SearchField, bool) {
	switch f := SearchField(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldTitle, FieldDescription, FieldLocation, FieldAll:
		return f, true
	case "":
		return FieldAll, true
	}
	return "", false
}

// Matches reports whether query occurs, case-insensitively, in the given field.
func (e *Event) Matches(query string, field SearchField) bool {
	q := strings.ToLower(query)
	contains := func(s string) bool {
		return s != "" && strings.Contains(strings.ToLower(s), q)
	}

	switch field {
	case FieldTitle:
		return strings.Contains(strings.ToLower(e.Title), q)
	case FieldDescription:
		return contains(e.Description)
	case FieldLocation:
		return contains(e.Location)
	case FieldAll:
		return strings.Contains(strings.ToLower(e.Title), q) || contains(e.Description) || contains(e.Location)
	}
	return false
}

// IsRecurring returns true if the event carries a recurrence rule
func (e *Event) IsRecurring() bool {
	return e.RRule != ""
}

// SameDay returns true if a timed event starts and ends on the same calendar day
func (e *Event) SameDay() bool {
	y1, m1, d1 := e.Start.Date()
	y2, m2, d2 := e.End.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// LastDay returns the last calendar day an all-day event covers.
func (e *Event) LastDay() time.Time {
	if !e.AllDay || !e.End.After(e.Start) {
		return e.End
	}
	return AddDays(e.End, -1)
}
