package recurrence

import (
	"regexp"
	"strings"
	"time"

	"github.com/tazhate/justcal/internal/domain"
)

// tier is one row of the phrase table. build returns false when the phrase
// has the tier's shape but its words are not in the vocabulary, letting
// lower tiers try.
type tier struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string) (*Rule, bool)
}

// tiers are evaluated top to bottom; the first tier that builds a rule wins.
// New phrase shapes are appended here.
var tiers = []tier{
	{
		name:    "interval",
		pattern: regexp.MustCompile(`^every(?: (\d+|other|[a-z]+))? (day|week|month|year)s?$`),
		build:   buildInterval,
	},
	{
		name:    "frequency",
		pattern: regexp.MustCompile(`^(daily|weekly|monthly|yearly|annually)$`),
		build:   buildFrequency,
	},
	{
		name:    "weekdays",
		pattern: regexp.MustCompile(`^(?:weekdays|every weekday|on weekdays)$`),
		build: func([]string) (*Rule, bool) {
			return &Rule{Freq: Weekly, ByDay: append([]domain.Weekday(nil), weekdaySet...)}, true
		},
	},
	{
		name:    "weekends",
		pattern: regexp.MustCompile(`^(?:weekends|every weekend|on weekends)$`),
		build: func([]string) (*Rule, bool) {
			return &Rule{Freq: Weekly, ByDay: append([]domain.Weekday(nil), weekendSet...)}, true
		},
	},
	{
		name:    "weekly on days",
		pattern: regexp.MustCompile(`^(?:weekly on|every) (.+)$`),
		build:   buildWeeklyOn,
	},
	{
		name:    "monthly by position",
		pattern: regexp.MustCompile(`^monthly on the ([a-z0-9]+) ([a-z]+)$`),
		build:   buildMonthlyPosition,
	},
	{
		name:    "monthly by day",
		pattern: regexp.MustCompile(`^monthly on the (\d{1,2})(?:st|nd|rd|th)?$`),
		build:   buildMonthlyDay,
	},
}

var (
	countSuffix = regexp.MustCompile(`^(.+?),? (?:for )?(\d+|[a-z]+) (?:times|occurrences)$`)
	untilSuffix = regexp.MustCompile(`^(.+?),? until (\d{4}-\d{2}-\d{2})$`)
)

// Resolve turns a recurrence phrase or canonical RRULE text into a rule.
// Canonical text (anything containing '=') is handed to Parse; phrases go
// through the tier table. A trailing "for N times" or "until YYYY-MM-DD"
// bounds a phrase; giving both is ErrConflictingBounds.
func Resolve(text string) (*Rule, error) {
	phrase := normalizePhrase(text)
	if phrase == "" {
		return nil, newError(ErrUnparsable, text, "empty recurrence")
	}
	if strings.Contains(phrase, "=") {
		return Parse(text)
	}

	head, count, until, ok := splitBound(phrase)
	if !ok {
		return nil, newError(ErrUnparsable, text, "no recurrence pattern matches")
	}

	for _, t := range tiers {
		m := t.pattern.FindStringSubmatch(head)
		if m == nil {
			continue
		}
		r, ok := t.build(m)
		if !ok {
			continue
		}
		r.Count = count
		if !until.IsZero() {
			r.Until, r.UntilIsDate = until, true
		}
		return normalize(r, text)
	}

	return nil, newError(ErrUnparsable, text, "no recurrence pattern matches")
}

// ResolveString resolves text and returns the canonical rule string.
func ResolveString(text string) (string, error) {
	r, err := Resolve(text)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

func normalizePhrase(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimSuffix(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

// splitBound strips a count suffix, an until suffix, or both in either
// order. Conflicting bounds are left for normalize to reject. ok is false
// when a suffix is present but its value is unusable.
func splitBound(phrase string) (head string, count int, until time.Time, ok bool) {
	head = phrase
	for {
		if count == 0 {
			if m := countSuffix.FindStringSubmatch(head); m != nil {
				if n, valid := domain.ParseCount(m[2]); valid {
					if n < 1 {
						return phrase, 0, time.Time{}, false
					}
					head, count = m[1], n
					continue
				}
			}
		}
		if until.IsZero() {
			if m := untilSuffix.FindStringSubmatch(head); m != nil {
				t, err := time.Parse("2006-01-02", m[2])
				if err != nil {
					return phrase, 0, time.Time{}, false
				}
				head, until = m[1], t
				continue
			}
		}
		return head, count, until, true
	}
}

var unitFrequency = map[string]Frequency{
	"day":   Daily,
	"week":  Weekly,
	"month": Monthly,
	"year":  Yearly,
}

func buildInterval(m []string) (*Rule, bool) {
	n := 1
	switch m[1] {
	case "":
	case "other":
		n = 2
	default:
		var ok bool
		if n, ok = domain.ParseCount(m[1]); !ok {
			return nil, false
		}
		if n == 0 {
			n = -1 // "every 0 days" is a shape match with an invalid interval
		}
	}
	return &Rule{Freq: unitFrequency[m[2]], Interval: n}, true
}

func buildFrequency(m []string) (*Rule, bool) {
	if m[1] == "annually" {
		return &Rule{Freq: Yearly}, true
	}
	return &Rule{Freq: Frequency(strings.ToUpper(m[1]))}, true
}

var daySeparators = strings.NewReplacer(" and ", ",", "&", ",", "/", ",")

func buildWeeklyOn(m []string) (*Rule, bool) {
	var days []domain.Weekday
	for _, item := range strings.Split(daySeparators.Replace(m[1]), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		d, ok := domain.ParseWeekday(item)
		if !ok {
			return nil, false
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, false
	}
	return &Rule{Freq: Weekly, ByDay: days}, true
}

func buildMonthlyPosition(m []string) (*Rule, bool) {
	ord, ok := domain.ParseOrdinal(m[1])
	if !ok {
		return nil, false
	}
	day, ok := domain.ParseWeekday(m[2])
	if !ok {
		return nil, false
	}
	return &Rule{Freq: Monthly, ByPosition: &Position{Ordinal: ord, Day: day}}, true
}

func buildMonthlyDay(m []string) (*Rule, bool) {
	n, ok := domain.ParseCount(m[1])
	if !ok {
		return nil, false
	}
	if n == 0 {
		n = -1
	}
	return &Rule{Freq: Monthly, ByMonthDay: n}, true
}
