package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/justcal/internal/domain"
)

type dateKind int

const (
	noDate dateKind = iota
	absoluteDate
	relativeDate
	weekdayDate
)

type weekdayMode int

const (
	bareWeekday weekdayMode = iota
	nextWeekday
	thisWeekday
	lastWeekday
)

// phrase accumulates what the tokens said. At most one date and one time of
// day may be given; an exact shift ("in 2 hours", "now") excludes both.
type phrase struct {
	kind dateKind

	year      int
	month     time.Month
	day       int
	yearGiven bool

	years, months, days int

	weekday domain.Weekday
	mode    weekdayMode

	hasShift bool
	shift    time.Duration

	hasClock bool
	hour     int
	minute   int
	meridiem string
	part     string
}

func (p *phrase) setDate(k dateKind) bool {
	if p.kind != noDate || p.hasShift {
		return false
	}
	p.kind = k
	return true
}

func (p *phrase) setClock(hour, minute int, meridiem string) bool {
	if p.hasClock || p.hasShift {
		return false
	}
	p.hasClock, p.hour, p.minute, p.meridiem = true, hour, minute, meridiem
	return true
}

func (p *phrase) setPart(part string) bool {
	if p.part != "" || p.hasShift {
		return false
	}
	p.part = part
	return true
}

func (p *phrase) setShift(d time.Duration) bool {
	if p.hasShift || p.kind != noDate || p.hasClock || p.part != "" {
		return false
	}
	p.hasShift, p.shift = true, d
	return true
}

// reject is returned by a matcher whose shape matched but whose values are
// invalid or conflict with what was already parsed.
const reject = -1

// matcher inspects toks[i:] and reports how many tokens it consumed.
type matcher func(p *phrase, toks []string, i int) int

var matchers = []matcher{
	matchNow,
	matchRelativeDay,
	matchIn,
	matchAgo,
	matchModifier,
	matchWeekday,
	matchMonthDay,
	matchDayMonth,
	matchNumericDate,
	matchClock,
	matchAtHour,
	matchPartOfDay,
	matchFiller,
}

func parseNatural(text string, now time.Time, loc *time.Location) (Instant, bool) {
	toks, zone := tokenize(text)
	if len(toks) == 0 {
		return Instant{}, false
	}
	if zone == nil {
		zone = loc
	}

	p := &phrase{}
	for i := 0; i < len(toks); {
		consumed := 0
		for _, m := range matchers {
			if consumed = m(p, toks, i); consumed != 0 {
				break
			}
		}
		if consumed <= 0 {
			return Instant{}, false
		}
		i += consumed
	}
	return p.resolve(now.In(zone))
}

var (
	meridiemDots = strings.NewReplacer("a.m.", "am", "p.m.", "pm")
	numericZone  = regexp.MustCompile(`^([+-])(\d{2}):?(\d{2})$`)
	clockDigits  = regexp.MustCompile(`^\d{1,2}(:\d{2})?$`)
)

// tokenize lower-cases text and splits it on whitespace and commas. A trailing
// zone token (UTC, +02:00, Europe/Berlin) is removed and returned separately.
func tokenize(text string) ([]string, *time.Location) {
	fields := strings.Fields(strings.ReplaceAll(text, ",", " "))

	var zone *time.Location
	if n := len(fields); n > 1 {
		if z, ok := parseZone(fields[n-1]); ok {
			zone = z
			fields = fields[:n-1]
		}
	}

	toks := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSuffix(meridiemDots.Replace(strings.ToLower(f)), ".")
		if f == "" {
			continue
		}
		if (f == "am" || f == "pm") && len(toks) > 0 && clockDigits.MatchString(toks[len(toks)-1]) {
			toks[len(toks)-1] += f
			continue
		}
		toks = append(toks, f)
	}
	return toks, zone
}

func parseZone(tok string) (*time.Location, bool) {
	switch strings.ToLower(tok) {
	case "utc", "gmt", "z":
		return time.UTC, true
	}
	if m := numericZone.FindStringSubmatch(tok); m != nil {
		h, _ := strconv.Atoi(m[2])
		mins, _ := strconv.Atoi(m[3])
		if h > 14 || mins > 59 {
			return nil, false
		}
		offset := h*3600 + mins*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone("", offset), true
	}
	if strings.Contains(tok, "/") && isLetter(tok[0]) {
		if loc, err := time.LoadLocation(tok); err == nil {
			return loc, true
		}
	}
	return nil, false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func at(toks []string, i int) string {
	if i < len(toks) {
		return toks[i]
	}
	return ""
}

func matchNow(p *phrase, toks []string, i int) int {
	if toks[i] != "now" {
		return 0
	}
	if !p.setShift(0) {
		return reject
	}
	return 1
}

func matchRelativeDay(p *phrase, toks []string, i int) int {
	days, n := 0, 1
	switch {
	case toks[i] == "today":
	case toks[i] == "tonight":
		if !p.setPart("night") {
			return reject
		}
	case toks[i] == "tomorrow" || toks[i] == "tmrw":
		days = 1
	case toks[i] == "yesterday":
		days = -1
	case toks[i] == "day" && at(toks, i+1) == "after" && at(toks, i+2) == "tomorrow":
		days, n = 2, 3
	case toks[i] == "day" && at(toks, i+1) == "before" && at(toks, i+2) == "yesterday":
		days, n = -2, 3
	default:
		return 0
	}
	if !p.setDate(relativeDate) {
		return reject
	}
	p.days = days
	return n
}

var unitNames = map[string]string{
	"second": "second", "seconds": "second", "sec": "second", "secs": "second",
	"minute": "minute", "minutes": "minute", "min": "minute", "mins": "minute",
	"hour": "hour", "hours": "hour", "hr": "hour", "hrs": "hour",
	"day": "day", "days": "day",
	"week": "week", "weeks": "week",
	"fortnight": "fortnight", "fortnights": "fortnight",
	"month": "month", "months": "month",
	"year": "year", "years": "year",
}

// applyOffset moves the phrase by n units. Units below a day shift the
// current instant; larger units move the calendar date.
func (p *phrase) applyOffset(n int, unit string) bool {
	switch unit {
	case "second":
		return p.setShift(time.Duration(n) * time.Second)
	case "minute":
		return p.setShift(time.Duration(n) * time.Minute)
	case "hour":
		return p.setShift(time.Duration(n) * time.Hour)
	}
	if !p.setDate(relativeDate) {
		return false
	}
	switch unit {
	case "day":
		p.days = n
	case "week":
		p.days = 7 * n
	case "fortnight":
		p.days = 14 * n
	case "month":
		p.months = n
	case "year":
		p.years = n
	}
	return true
}

// matchIn handles "in N <unit>".
func matchIn(p *phrase, toks []string, i int) int {
	if toks[i] != "in" {
		return 0
	}
	n, ok := domain.ParseCount(at(toks, i+1))
	if !ok {
		return 0
	}
	unit, ok := unitNames[at(toks, i+2)]
	if !ok {
		return 0
	}
	if !p.applyOffset(n, unit) {
		return reject
	}
	return 3
}

// matchAgo handles "N <unit> ago", "N <unit> from now" and "N <unit> later".
func matchAgo(p *phrase, toks []string, i int) int {
	n, ok := domain.ParseCount(toks[i])
	if !ok {
		return 0
	}
	unit, ok := unitNames[at(toks, i+1)]
	if !ok {
		return 0
	}
	sign, consumed := 0, 0
	switch {
	case at(toks, i+2) == "ago":
		sign, consumed = -1, 3
	case at(toks, i+2) == "later":
		sign, consumed = 1, 3
	case at(toks, i+2) == "from" && at(toks, i+3) == "now":
		sign, consumed = 1, 4
	default:
		return 0
	}
	if !p.applyOffset(sign*n, unit) {
		return reject
	}
	return consumed
}

var modifiers = map[string]weekdayMode{
	"next":     nextWeekday,
	"coming":   nextWeekday,
	"this":     thisWeekday,
	"last":     lastWeekday,
	"previous": lastWeekday,
	"past":     lastWeekday,
}

// matchModifier handles next|last|this followed by a weekday, a period or a
// part of the day ("this evening").
func matchModifier(p *phrase, toks []string, i int) int {
	mode, ok := modifiers[toks[i]]
	if !ok {
		return 0
	}
	next := at(toks, i+1)

	if d, ok := domain.ParseWeekday(next); ok {
		if !p.setDate(weekdayDate) {
			return reject
		}
		p.weekday, p.mode = d, mode
		return 2
	}

	if unit, ok := unitNames[next]; ok && unit != "second" && unit != "minute" && unit != "hour" {
		n := 1
		switch mode {
		case thisWeekday:
			n = 0
		case lastWeekday:
			n = -1
		}
		if !p.applyOffset(n, unit) {
			return reject
		}
		return 2
	}

	if _, ok := partHours[next]; ok && mode == thisWeekday {
		if !p.setDate(relativeDate) || !p.setPart(next) {
			return reject
		}
		return 2
	}
	return 0
}

func matchWeekday(p *phrase, toks []string, i int) int {
	d, ok := domain.ParseWeekday(toks[i])
	if !ok {
		return 0
	}
	if !p.setDate(weekdayDate) {
		return reject
	}
	p.weekday, p.mode = d, bareWeekday
	return 1
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	dayToken  = regexp.MustCompile(`^(\d{1,2})(st|nd|rd|th)?$`)
	yearToken = regexp.MustCompile(`^\d{4}$`)
)

func parseDayOfMonth(tok string) (int, bool) {
	m := dayToken.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	d, _ := strconv.Atoi(m[1])
	return d, d >= 1 && d <= 31
}

func (p *phrase) setCalendarDate(year int, month time.Month, day int, yearGiven bool) bool {
	if !p.setDate(absoluteDate) {
		return false
	}
	p.year, p.month, p.day, p.yearGiven = year, month, day, yearGiven
	return true
}

// matchMonthDay handles "<month> <day>[ <year>]".
func matchMonthDay(p *phrase, toks []string, i int) int {
	month, ok := monthNames[toks[i]]
	if !ok {
		return 0
	}
	day, ok := parseDayOfMonth(at(toks, i+1))
	if !ok {
		return 0
	}
	year, consumed := 0, 2
	if y := at(toks, i+2); yearToken.MatchString(y) {
		year, _ = strconv.Atoi(y)
		consumed = 3
	}
	if !p.setCalendarDate(year, month, day, consumed == 3) {
		return reject
	}
	return consumed
}

// matchDayMonth handles "<day> [of] <month>[ <year>]".
func matchDayMonth(p *phrase, toks []string, i int) int {
	day, ok := parseDayOfMonth(toks[i])
	if !ok {
		return 0
	}
	j := i + 1
	if at(toks, j) == "of" {
		j++
	}
	month, ok := monthNames[at(toks, j)]
	if !ok {
		return 0
	}
	j++
	year, yearGiven := 0, false
	if y := at(toks, j); yearToken.MatchString(y) {
		year, _ = strconv.Atoi(y)
		yearGiven = true
		j++
	}
	if !p.setCalendarDate(year, month, day, yearGiven) {
		return reject
	}
	return j - i
}

var (
	usDate    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?$`)
	slashDate = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	dashDate  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
)

// matchNumericDate handles M/D[/Y] (month first), YYYY/MM/DD and YYYY-M-D.
func matchNumericDate(p *phrase, toks []string, i int) int {
	var year, month, day int
	yearGiven := true
	if m := usDate.FindStringSubmatch(toks[i]); m != nil {
		month, _ = strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		switch len(m[3]) {
		case 0:
			yearGiven = false
		case 2:
			year, _ = strconv.Atoi(m[3])
			year += 2000
		default:
			year, _ = strconv.Atoi(m[3])
		}
	} else if m := slashDate.FindStringSubmatch(toks[i]); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else if m := dashDate.FindStringSubmatch(toks[i]); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else {
		return 0
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return reject
	}
	if !p.setCalendarDate(year, time.Month(month), day, yearGiven) {
		return reject
	}
	return 1
}

var (
	twelveHour = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)$`)
	twentyFour = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	bareHour   = regexp.MustCompile(`^\d{1,2}$`)
)

func matchClock(p *phrase, toks []string, i int) int {
	var hour, minute int
	meridiem := ""
	switch tok := toks[i]; {
	case tok == "noon" || tok == "midday":
		hour = 12
	case tok == "midnight":
		hour = 0
	case twelveHour.MatchString(tok):
		m := twelveHour.FindStringSubmatch(tok)
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem = m[3]
	case twentyFour.MatchString(tok):
		m := twentyFour.FindStringSubmatch(tok)
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
	default:
		return 0
	}
	if !p.setClock(hour, minute, meridiem) {
		return reject
	}
	return 1
}

// matchAtHour handles "at 9", a bare hour introduced by "at".
func matchAtHour(p *phrase, toks []string, i int) int {
	if toks[i] != "at" || !bareHour.MatchString(at(toks, i+1)) {
		return 0
	}
	hour, _ := strconv.Atoi(toks[i+1])
	if !p.setClock(hour, 0, "") {
		return reject
	}
	return 2
}

var partHours = map[string]int{
	"morning":   9,
	"afternoon": 15,
	"evening":   18,
	"night":     20,
}

// matchPartOfDay handles "morning", "in the evening" and friends.
func matchPartOfDay(p *phrase, toks []string, i int) int {
	n := 1
	part := toks[i]
	if part == "in" && at(toks, i+1) == "the" {
		part, n = at(toks, i+2), 3
	}
	if _, ok := partHours[part]; !ok {
		return 0
	}
	if !p.setPart(part) {
		return reject
	}
	return n
}

var fillers = map[string]bool{"at": true, "on": true, "the": true, "of": true}

func matchFiller(_ *phrase, toks []string, i int) int {
	if fillers[toks[i]] {
		return 1
	}
	return 0
}

// clock returns the resolved time of day. has is false when the phrase named
// neither a clock time nor a part of the day.
func (p *phrase) clock() (hour, minute int, has, ok bool) {
	if !p.hasClock {
		if p.part == "" {
			return 0, 0, false, true
		}
		return partHours[p.part], 0, true, true
	}

	hour, minute = p.hour, p.minute
	switch p.meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false, false
		}
		hour %= 12
		if p.meridiem == "pm" {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, 0, false, false
		}
		switch p.part {
		case "afternoon", "evening":
			if hour < 12 {
				hour += 12
			}
		case "night":
			if hour >= 6 && hour < 12 {
				hour += 12
			}
		}
	}
	if minute > 59 {
		return 0, 0, false, false
	}
	return hour, minute, true, true
}

// resolve turns the accumulated phrase into an instant. now is already in the
// target location.
func (p *phrase) resolve(now time.Time) (Instant, bool) {
	if p.hasShift {
		return Instant{Time: now.Add(p.shift)}, true
	}

	hour, minute, hasClock, ok := p.clock()
	if !ok {
		return Instant{}, false
	}
	loc := now.Location()
	today := domain.StartOfDay(now)
	// A clock time in the current minute still counts as upcoming.
	upcoming := justBefore(now.Truncate(time.Minute))

	var t time.Time
	switch p.kind {
	case noDate:
		if !hasClock {
			return Instant{}, false
		}
		if t, ok = nextSlot(minute, hour, "*", "*", "*", upcoming); !ok {
			return Instant{}, false
		}

	case absoluteDate:
		if p.yearGiven {
			if p.day > daysIn(p.year, p.month) {
				return Instant{}, false
			}
			t = domain.WallTime(p.year, p.month, p.day, hour, minute, loc)
			break
		}
		after := justBefore(today)
		if hasClock {
			after = upcoming
		}
		if t, ok = nextSlot(minute, hour, strconv.Itoa(p.day), strconv.Itoa(int(p.month)), "*", after); !ok {
			return Instant{}, false
		}

	case relativeDate:
		y, m, d := today.Date()
		if p.years != 0 || p.months != 0 {
			y, m = y+p.years, m+time.Month(p.months)
			for m > time.December {
				y, m = y+1, m-12
			}
			for m < time.January {
				y, m = y-1, m+12
			}
			if last := daysIn(y, m); d > last {
				d = last
			}
		}
		t = domain.WallTime(y, m, d+p.days, hour, minute, loc)

	case weekdayDate:
		if p.mode == lastWeekday {
			back := (int(now.Weekday()) - int(p.weekday.Time()) + 7) % 7
			if back == 0 {
				back = 7
			}
			y, m, d := today.Date()
			t = domain.WallTime(y, m, d-back, hour, minute, loc)
			break
		}
		after := justBefore(domain.AddDays(today, 1))
		if p.mode == thisWeekday {
			after = justBefore(today)
			if hasClock {
				after = upcoming
			}
		}
		dow := strconv.Itoa(int(p.weekday.Time()))
		if t, ok = nextSlot(minute, hour, "*", "*", dow, after); !ok {
			return Instant{}, false
		}
	}

	return Instant{Time: t, DateOnly: !hasClock}, true
}
