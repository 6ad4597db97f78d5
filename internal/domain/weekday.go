package domain

import (
	"strconv"
	"strings"
	"time"
)

// Weekday is a two-letter iCalendar weekday token ("MO".."SU").
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

// weekOrder is RRULE order, Monday first.
var weekOrder = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = map[string]Weekday{
	"monday": Monday, "mon": Monday,
	"tuesday": Tuesday, "tue": Tuesday, "tues": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday,
	"thursday": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday,
	"friday": Friday, "fri": Friday,
	"saturday": Saturday, "sat": Saturday,
	"sunday": Sunday, "sun": Sunday,
}

var weekdayTitles = map[Weekday]string{
	Monday: "Monday", Tuesday: "Tuesday", Wednesday: "Wednesday", Thursday: "Thursday",
	Friday: "Friday", Saturday: "Saturday", Sunday: "Sunday",
}

// ParseWeekday maps an English weekday name or abbreviation to its token.
// Besides full names and three-letter forms it takes "tues", "thur" and
// "thurs". Matching is case-insensitive; a plural of a full name ("mondays")
// is accepted.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdayNames[s]; ok {
		return d, true
	}
	if d, ok := weekdayNames[strings.TrimSuffix(s, "s")]; ok && len(s) > 4 {
		return d, true
	}
	return "", false
}

// ParseWeekdayToken parses a two-letter token such as "fr" or "SU".
func ParseWeekdayToken(s string) (Weekday, bool) {
	d := Weekday(strings.ToUpper(s))
	if d.Valid() {
		return d, true
	}
	return "", false
}

// AllWeekdays returns the seven tokens in RRULE order.
func AllWeekdays() []Weekday {
	out := make([]Weekday, len(weekOrder))
	copy(out, weekOrder[:])
	return out
}

func (d Weekday) Valid() bool {
	return d.Order() >= 0
}

// Order returns the position of d in a Monday-first week, or -1.
func (d Weekday) Order() int {
	for i, w := range weekOrder {
		if w == d {
			return i
		}
	}
	return -1
}

// Time converts the token to time.Weekday.
func (d Weekday) Time() time.Weekday {
	return time.Weekday((d.Order() + 1) % 7)
}

// WeekdayOf returns the token for a time.Weekday.
func WeekdayOf(wd time.Weekday) Weekday {
	return weekOrder[(int(wd)+6)%7]
}

// Name returns the English day name, e.g. "Friday".
func (d Weekday) Name() string {
	return weekdayTitles[d]
}

var ordinalWords = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
	"fourth": 4, "4th": 4,
	"last": -1,
}

var ordinalTitles = map[int]string{1: "first", 2: "second", 3: "third", 4: "fourth", -1: "last"}

// ParseOrdinal maps "first".."fourth", "1st".."4th" and "last" to 1..4 and -1.
func ParseOrdinal(s string) (int, bool) {
	n, ok := ordinalWords[strings.ToLower(strings.TrimSpace(s))]
	return n, ok
}

// OrdinalName is the inverse of ParseOrdinal for the word forms.
func OrdinalName(n int) string {
	return ordinalTitles[n]
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// ParseCount parses a non-negative count written as digits or as an English
// number word ("a", "two", "twelve").
func ParseCount(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	if s == "" || len(s) > 6 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || strings.ContainsAny(s, "+-") {
		return 0, false
	}
	return n, true
}
