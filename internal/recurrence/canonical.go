package recurrence

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/justcal/internal/domain"
)

var bydayItem = regexp.MustCompile(`^([+-]?\d{1,2})?(MO|TU|WE|TH|FR|SA|SU)$`)

// Parse reads canonical RRULE text ("FREQ=WEEKLY;BYDAY=MO,WE") into a
// validated Rule. Keys are case-insensitive and an "RRULE:" prefix is allowed.
// BYDAY=FR;BYSETPOS=1 is accepted and stored as the positional form 1FR. The
// returned rule remembers the input's key order, an explicit INTERVAL=1 and
// the BYSETPOS form, so String reproduces canonical input unchanged.
func Parse(text string) (*Rule, error) {
	input := strings.TrimSpace(text)
	body := strings.ToUpper(input)
	body = strings.TrimSpace(strings.TrimPrefix(body, "RRULE:"))
	if body == "" {
		return nil, newError(ErrUnparsable, text, "empty rule")
	}

	r := &Rule{}
	seen := make(map[string]bool)
	sp := &spelling{}
	var (
		byday  []string
		setpos int
	)

	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, newError(ErrUnparsable, input, "malformed pair %q", part)
		}
		if seen[key] {
			return nil, newError(ErrUnparsable, input, "duplicate key %s", key)
		}
		seen[key] = true
		sp.keys = append(sp.keys, key)

		var err error
		switch key {
		case "FREQ":
			r.Freq = Frequency(value)
		case "INTERVAL":
			r.Interval, err = positiveInt(input, key, value)
		case "BYDAY":
			byday = strings.Split(value, ",")
		case "BYMONTHDAY":
			r.ByMonthDay, err = positiveInt(input, key, value)
		case "BYSETPOS":
			setpos, err = parseInt(input, key, value)
		case "COUNT":
			r.Count, err = positiveInt(input, key, value)
		case "UNTIL":
			r.Until, r.UntilIsDate, err = parseUntil(input, value)
		default:
			return nil, newError(ErrUnparsable, input, "unknown key %s", key)
		}
		if err != nil {
			return nil, err
		}
	}

	if !seen["FREQ"] {
		return nil, newError(ErrInvalidRule, input, "FREQ is required")
	}

	var positional []Position
	for _, item := range byday {
		m := bydayItem.FindStringSubmatch(strings.TrimSpace(item))
		if m == nil {
			return nil, newError(ErrUnparsable, input, "malformed BYDAY value %q", item)
		}
		day := domain.Weekday(m[2])
		if m[1] == "" {
			r.ByDay = append(r.ByDay, day)
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, newError(ErrUnparsable, input, "malformed BYDAY value %q", item)
		}
		positional = append(positional, Position{Ordinal: n, Day: day})
	}

	switch {
	case len(positional) > 1:
		return nil, newError(ErrInvalidRule, input, "only one positional weekday is supported")
	case len(positional) == 1 && len(r.ByDay) > 0:
		return nil, newError(ErrInvalidRule, input, "positional and plain BYDAY values cannot be combined")
	case len(positional) == 1:
		r.ByPosition = &positional[0]
	}

	if seen["BYSETPOS"] {
		if r.ByPosition != nil || len(r.ByDay) != 1 {
			return nil, newError(ErrInvalidRule, input, "BYSETPOS requires exactly one plain BYDAY weekday")
		}
		r.ByPosition = &Position{Ordinal: setpos, Day: r.ByDay[0]}
		r.ByDay = nil
		sp.setPos = true
	}
	sp.interval = seen["INTERVAL"]
	r.spelling = sp

	return normalize(r, input)
}

// Normalize validates r and returns a canonical copy: Interval defaults to 1,
// BYDAY is deduplicated and ordered, and the result is accepted by rrule-go.
func Normalize(r *Rule) (*Rule, error) {
	if r == nil {
		return nil, newError(ErrInvalidRule, "", "nil rule")
	}
	return normalize(r, r.String())
}

func normalize(r *Rule, input string) (*Rule, error) {
	if r == nil {
		return nil, newError(ErrInvalidRule, input, "nil rule")
	}
	if !r.Freq.Valid() {
		if r.Freq == "" {
			return nil, newError(ErrInvalidRule, input, "FREQ is required")
		}
		return nil, newError(ErrInvalidRule, input, "unsupported frequency %s", r.Freq)
	}
	if r.Count > 0 && !r.Until.IsZero() {
		return nil, newError(ErrConflictingBounds, input, "COUNT and UNTIL are mutually exclusive")
	}
	if r.ByMonthDay != 0 && r.ByPosition != nil {
		return nil, newError(ErrConflictingAnchor, input, "BYMONTHDAY and a positional BYDAY are mutually exclusive")
	}

	out := &Rule{
		Freq:        r.Freq,
		Interval:    r.Interval,
		ByMonthDay:  r.ByMonthDay,
		Count:       r.Count,
		Until:       r.Until,
		UntilIsDate: r.UntilIsDate,
		spelling:    r.spelling,
	}
	if out.Interval == 0 {
		out.Interval = 1
	}
	if out.Interval < 0 {
		return nil, newError(ErrInvalidRule, input, "INTERVAL must be at least 1")
	}
	if out.Count < 0 {
		return nil, newError(ErrInvalidRule, input, "COUNT must be at least 1")
	}
	if out.ByMonthDay < 0 || out.ByMonthDay > 31 {
		return nil, newError(ErrInvalidRule, input, "BYMONTHDAY must be between 1 and 31")
	}
	if out.ByMonthDay > 0 && out.Freq == Weekly {
		return nil, newError(ErrInvalidRule, input, "BYMONTHDAY cannot be used with FREQ=WEEKLY")
	}
	if out.UntilIsDate {
		y, m, d := out.Until.Date()
		out.Until = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	} else if !out.Until.IsZero() {
		out.Until = out.Until.UTC().Truncate(time.Second)
	}

	for _, d := range r.ByDay {
		if !d.Valid() {
			return nil, newError(ErrInvalidRule, input, "unknown weekday %q", string(d))
		}
	}
	if len(r.ByDay) > 0 {
		out.ByDay = sortedDays(r.ByDay)
	}

	if r.ByPosition != nil {
		p := *r.ByPosition
		if len(out.ByDay) > 0 {
			return nil, newError(ErrInvalidRule, input, "positional and plain BYDAY values cannot be combined")
		}
		if !p.Day.Valid() {
			return nil, newError(ErrInvalidRule, input, "unknown weekday %q", string(p.Day))
		}
		if domain.OrdinalName(p.Ordinal) == "" {
			return nil, newError(ErrInvalidRule, input, "weekday position must be 1, 2, 3, 4 or -1")
		}
		if out.Freq != Monthly {
			return nil, newError(ErrInvalidRule, input, "positional weekdays require FREQ=MONTHLY")
		}
		out.ByPosition = &p
	}

	if _, err := out.ROption(); err != nil {
		return nil, newError(ErrInvalidRule, input, "%v", err)
	}
	return out, nil
}

func parseInt(input, key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, newError(ErrUnparsable, input, "%s must be an integer, got %q", key, value)
	}
	return n, nil
}

// positiveInt parses a value whose zero value would otherwise read as "unset".
func positiveInt(input, key, value string) (int, error) {
	n, err := parseInt(input, key, value)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, newError(ErrInvalidRule, input, "%s must be at least 1", key)
	}
	return n, nil
}

func parseUntil(input, value string) (time.Time, bool, error) {
	if t, err := time.Parse(untilDateTimeLayout, value); err == nil {
		return t, false, nil
	}
	if len(value) == len(untilDateLayout) {
		if t, err := time.Parse(untilDateLayout, value); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, newError(ErrUnparsable, input, "UNTIL must be YYYYMMDD or YYYYMMDDTHHMMSSZ, got %q", value)
}
