// Package recurrence turns recurrence phrases ("every 2 weeks", "monthly on the
// first Friday") and RRULE text into one canonical rule value.
package recurrence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/justcal/internal/domain"
)

// Frequency is the base period of a rule.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (f Frequency) unit() string {
	switch f {
	case Daily:
		return "day"
	case Weekly:
		return "week"
	case Monthly:
		return "month"
	case Yearly:
		return "year"
	}
	return strings.ToLower(string(f))
}

// Position anchors a monthly rule to the Nth weekday of the month.
// Ordinal is 1..4, or -1 for the last one.
type Position struct {
	Ordinal int
	Day     domain.Weekday
}

func (p Position) String() string {
	return strconv.Itoa(p.Ordinal) + string(p.Day)
}

// Rule is a canonical recurrence rule. Zero values mean "no restriction":
// Interval 0 is read as 1, ByMonthDay 0 and Count 0 are unset, a zero Until
// is unset.
type Rule struct {
	Freq        Frequency
	Interval    int
	ByDay       []domain.Weekday
	ByMonthDay  int
	ByPosition  *Position
	Count       int
	Until       time.Time
	UntilIsDate bool // UNTIL serialized as YYYYMMDD rather than a UTC timestamp

	spelling *spelling // set by Parse
}

// spelling records how canonical text wrote a rule, so String gives the same
// text back.
type spelling struct {
	keys     []string // in input order
	interval bool     // INTERVAL was given, even as 1
	setPos   bool     // position written as BYDAY=<day>;BYSETPOS=<n>
}

const (
	untilDateLayout     = "20060102"
	untilDateTimeLayout = "20060102T150405Z"
)

var keyOrder = []string{"FREQ", "INTERVAL", "BYDAY", "BYMONTHDAY", "BYSETPOS", "COUNT", "UNTIL"}

// String serializes the rule to RRULE text. A rule read by Parse keeps the
// input's key order, an explicit INTERVAL=1 and the BYSETPOS form; BYDAY is
// always listed Monday first. Other rules use the fixed order FREQ,
// INTERVAL, BYDAY, BYMONTHDAY, COUNT, UNTIL with INTERVAL omitted when 1.
func (r *Rule) String() string {
	values := r.values()
	order := keyOrder
	if r.spelling != nil {
		order = append(append([]string(nil), r.spelling.keys...), keyOrder...)
	}

	parts := make([]string, 0, len(values))
	for _, key := range order {
		if v, ok := values[key]; ok {
			parts = append(parts, key+"="+v)
			delete(values, key)
		}
	}
	return strings.Join(parts, ";")
}

func (r *Rule) values() map[string]string {
	sp := r.spelling
	if sp == nil {
		sp = &spelling{}
	}

	v := map[string]string{"FREQ": string(r.Freq)}
	if r.Interval > 1 || (sp.interval && r.Interval == 1) {
		v["INTERVAL"] = strconv.Itoa(r.Interval)
	}
	switch {
	case r.ByPosition != nil && sp.setPos:
		v["BYDAY"] = string(r.ByPosition.Day)
		v["BYSETPOS"] = strconv.Itoa(r.ByPosition.Ordinal)
	case r.ByPosition != nil:
		v["BYDAY"] = r.ByPosition.String()
	case len(r.ByDay) > 0:
		days := sortedDays(r.ByDay)
		tokens := make([]string, len(days))
		for i, d := range days {
			tokens[i] = string(d)
		}
		v["BYDAY"] = strings.Join(tokens, ",")
	}
	if r.ByMonthDay > 0 {
		v["BYMONTHDAY"] = strconv.Itoa(r.ByMonthDay)
	}
	if r.Count > 0 {
		v["COUNT"] = strconv.Itoa(r.Count)
	}
	if !r.Until.IsZero() {
		v["UNTIL"] = r.untilString()
	}
	return v
}

func (r *Rule) untilString() string {
	if r.UntilIsDate {
		return r.Until.Format(untilDateLayout)
	}
	return r.Until.UTC().Format(untilDateTimeLayout)
}

// ROption converts the rule to the rrule-go representation.
func (r *Rule) ROption() (*rrule.ROption, error) {
	return rrule.StrToROption(r.String())
}

// Between returns the occurrences of a series starting at dtstart that fall
// in [from, to].
func (r *Rule) Between(dtstart, from, to time.Time) ([]time.Time, error) {
	opt, err := r.ROption()
	if err != nil {
		return nil, err
	}
	opt.Dtstart = dtstart
	rr, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, err
	}
	return rr.Between(from, to, true), nil
}

// Equal reports whether two rules describe the same recurrence, however
// their source text was spelled.
func (r *Rule) Equal(other *Rule) bool {
	if r == nil || other == nil {
		return r == other
	}
	a, b := *r, *other
	a.spelling, b.spelling = nil, nil
	return a.String() == b.String()
}

// Describe renders the rule as a short English phrase, e.g.
// "every 2 weeks on Monday and Wednesday, 10 times".
func (r *Rule) Describe() string {
	var sb strings.Builder

	interval := r.Interval
	if interval <= 1 {
		sb.WriteString(strings.ToLower(string(r.Freq)))
	} else {
		fmt.Fprintf(&sb, "every %d %ss", interval, r.Freq.unit())
	}

	switch {
	case r.ByPosition != nil:
		fmt.Fprintf(&sb, " on the %s %s", domain.OrdinalName(r.ByPosition.Ordinal), r.ByPosition.Day.Name())
	case isDaySet(r.ByDay, weekdaySet):
		sb.WriteString(" on weekdays")
	case isDaySet(r.ByDay, weekendSet):
		sb.WriteString(" on weekends")
	case len(r.ByDay) > 0:
		days := sortedDays(r.ByDay)
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = d.Name()
		}
		sb.WriteString(" on " + joinEnglish(names))
	}

	if r.ByMonthDay > 0 {
		fmt.Fprintf(&sb, " on the %d%s", r.ByMonthDay, ordinalSuffix(r.ByMonthDay))
	}
	if r.Count > 0 {
		if r.Count == 1 {
			sb.WriteString(", once")
		} else {
			fmt.Fprintf(&sb, ", %d times", r.Count)
		}
	}
	if !r.Until.IsZero() {
		if r.UntilIsDate {
			sb.WriteString(", until " + r.Until.Format("2006-01-02"))
		} else {
			sb.WriteString(", until " + r.Until.UTC().Format("2006-01-02 15:04 UTC"))
		}
	}
	return sb.String()
}

var (
	weekdaySet = []domain.Weekday{domain.Monday, domain.Tuesday, domain.Wednesday, domain.Thursday, domain.Friday}
	weekendSet = []domain.Weekday{domain.Saturday, domain.Sunday}
)

func isDaySet(days, set []domain.Weekday) bool {
	if len(days) != len(set) {
		return false
	}
	sorted := sortedDays(days)
	for i := range set {
		if sorted[i] != set[i] {
			return false
		}
	}
	return true
}

// sortedDays returns a deduplicated copy of days in Monday-first order.
func sortedDays(days []domain.Weekday) []domain.Weekday {
	seen := make(map[domain.Weekday]bool, len(days))
	out := make([]domain.Weekday, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}

func joinEnglish(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
