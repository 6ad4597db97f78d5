package dateparse

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func assertInstant(t *testing.T, want time.Time, dateOnly bool, got Instant) {
	t.Helper()
	assert.True(t, want.Equal(got.Time), "want %s, got %s", want.Format(time.RFC3339), got.Time.Format(time.RFC3339))
	assert.Equal(t, want.Location().String(), got.Time.Location().String())
	assert.Equal(t, dateOnly, got.DateOnly)
}

// 2026-01-14 is a Wednesday.
func wednesday(loc *time.Location) time.Time {
	return time.Date(2026, 1, 14, 10, 30, 0, 0, loc)
}

func TestResolveRelative(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	now := wednesday(ny)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, ny) }
	clock := func(y int, m time.Month, d, h, mi int) time.Time { return time.Date(y, m, d, h, mi, 0, 0, ny) }

	tests := []struct {
		input    string
		want     time.Time
		dateOnly bool
	}{
		{"tomorrow at 2pm", clock(2026, 1, 15, 14, 0), false},
		{"Tomorrow at 2 PM", clock(2026, 1, 15, 14, 0), false},
		{"2pm tomorrow", clock(2026, 1, 15, 14, 0), false},
		{"tomorrow at 2:30 p.m.", clock(2026, 1, 15, 14, 30), false},
		{"tomorrow", day(2026, 1, 15), true},
		{"today", day(2026, 1, 14), true},
		{"yesterday", day(2026, 1, 13), true},
		{"yesterday at 5pm", clock(2026, 1, 13, 17, 0), false},
		{"day after tomorrow", day(2026, 1, 16), true},
		{"the day before yesterday", day(2026, 1, 12), true},
		{"tonight", clock(2026, 1, 14, 20, 0), false},
		{"tonight at 9", clock(2026, 1, 14, 21, 0), false},
		{"tomorrow morning", clock(2026, 1, 15, 9, 0), false},
		{"tomorrow afternoon", clock(2026, 1, 15, 15, 0), false},
		{"this evening", clock(2026, 1, 14, 18, 0), false},

		{"friday", day(2026, 1, 16), true},
		{"fri", day(2026, 1, 16), true},
		{"wednesday", day(2026, 1, 21), true},
		{"next wednesday", day(2026, 1, 21), true},
		{"next monday at 2pm", clock(2026, 1, 19, 14, 0), false},
		{"monday at 9", clock(2026, 1, 19, 9, 0), false},
		{"on Friday at 7 in the evening", clock(2026, 1, 16, 19, 0), false},
		{"this wednesday", day(2026, 1, 14), true},
		{"this wednesday at 11am", clock(2026, 1, 14, 11, 0), false},
		{"this wednesday at 9am", clock(2026, 1, 21, 9, 0), false},
		{"this friday", day(2026, 1, 16), true},
		{"last wednesday", day(2026, 1, 7), true},
		{"last friday", day(2026, 1, 9), true},
		{"coming tuesday", day(2026, 1, 20), true},

		{"2pm", clock(2026, 1, 14, 14, 0), false},
		{"at 2 pm", clock(2026, 1, 14, 14, 0), false},
		{"9am", clock(2026, 1, 15, 9, 0), false},
		{"10:30", clock(2026, 1, 14, 10, 30), false},
		{"10:29", clock(2026, 1, 15, 10, 29), false},
		{"14:00", clock(2026, 1, 14, 14, 0), false},
		{"at 9", clock(2026, 1, 15, 9, 0), false},
		{"noon", clock(2026, 1, 14, 12, 0), false},
		{"midnight", clock(2026, 1, 15, 0, 0), false},
		{"12am", clock(2026, 1, 15, 0, 0), false},
		{"12pm", clock(2026, 1, 14, 12, 0), false},
		{"morning", clock(2026, 1, 15, 9, 0), false},

		{"in 2 days", day(2026, 1, 16), true},
		{"in a week", day(2026, 1, 21), true},
		{"in 2 weeks at 10am", clock(2026, 1, 28, 10, 0), false},
		{"3 days from now", day(2026, 1, 17), true},
		{"2 weeks ago", day(2025, 12, 31), true},
		{"in 3 hours", clock(2026, 1, 14, 13, 30), false},
		{"30 minutes ago", clock(2026, 1, 14, 10, 0), false},
		{"in 90 seconds", time.Date(2026, 1, 14, 10, 31, 30, 0, ny), false},
		{"now", now, false},
		{"next week", day(2026, 1, 21), true},
		{"this week", day(2026, 1, 14), true},
		{"last week", day(2026, 1, 7), true},
		{"next month", day(2026, 2, 14), true},
		{"in 2 months", day(2026, 3, 14), true},
		{"next year", day(2027, 1, 14), true},
		{"last year", day(2025, 1, 14), true},

		{"march 5", day(2026, 3, 5), true},
		{"Mar 5th", day(2026, 3, 5), true},
		{"january 10", day(2027, 1, 10), true},
		{"january 14", day(2026, 1, 14), true},
		{"jan 14 at 9am", clock(2027, 1, 14, 9, 0), false},
		{"jan 14 at 11am", clock(2026, 1, 14, 11, 0), false},
		{"march 3rd, 2027 at 2:30 pm", clock(2027, 3, 3, 14, 30), false},
		{"5th of march 2027", day(2027, 3, 5), true},
		{"the 15th of june", day(2026, 6, 15), true},
		{"15 june", day(2026, 6, 15), true},
		{"january 10 2025", day(2025, 1, 10), true},
		{"3/15", day(2026, 3, 15), true},
		{"1/2", day(2027, 1, 2), true},
		{"3/15/27", day(2027, 3, 15), true},
		{"3/15/2027 at 8am", clock(2027, 3, 15, 8, 0), false},
		{"2026/03/15", day(2026, 3, 15), true},
		{"2026-3-5 at 14:00", clock(2026, 3, 5, 14, 0), false},
		{"2020-01-01 at noon", clock(2020, 1, 1, 12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Resolve(tt.input, now, ny)
			require.NoError(t, err)
			assertInstant(t, tt.want, tt.dateOnly, got)
		})
	}
}

func TestResolveISO(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	now := wednesday(ny)

	tests := []struct {
		input    string
		want     time.Time
		dateOnly bool
	}{
		{"2020-01-01", time.Date(2020, 1, 1, 0, 0, 0, 0, ny), true},
		{"2026-01-15", time.Date(2026, 1, 15, 0, 0, 0, 0, ny), true},
		{"20260115", time.Date(2026, 1, 15, 0, 0, 0, 0, ny), true},
		{"2026-01-15T10:00", time.Date(2026, 1, 15, 10, 0, 0, 0, ny), false},
		{"2026-01-15 10:00:30", time.Date(2026, 1, 15, 10, 0, 30, 0, ny), false},
		{"2026-01-15T10:00:00Z", time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), false},
		{"2026-01-15T10:00:00.250Z", time.Date(2026, 1, 15, 10, 0, 0, 250e6, time.UTC), false},
		{"20260115T100000Z", time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Resolve(tt.input, now, ny)
			require.NoError(t, err)
			assertInstant(t, tt.want, tt.dateOnly, got)
		})
	}
}

func TestResolveKeepsExplicitOffset(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	got, err := Resolve("2026-01-15T10:00:00+02:00", wednesday(ny), ny)
	require.NoError(t, err)
	_, offset := got.Time.Zone()
	assert.Equal(t, 2*3600, offset)
	assert.Equal(t, 10, got.Time.Hour())

	got, err = Resolve("2026-01-15 10:00+0530", wednesday(ny), ny)
	require.NoError(t, err)
	_, offset = got.Time.Zone()
	assert.Equal(t, 5*3600+30*60, offset)
}

func TestResolveZoneSuffix(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	berlin := mustLoad(t, "Europe/Berlin")
	now := wednesday(ny)

	got, err := Resolve("tomorrow at 2pm UTC", now, ny)
	require.NoError(t, err)
	assertInstant(t, time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC), false, got)

	got, err = Resolve("tomorrow at 9am Europe/Berlin", now, ny)
	require.NoError(t, err)
	assertInstant(t, time.Date(2026, 1, 15, 9, 0, 0, 0, berlin), false, got)

	got, err = Resolve("tomorrow 9am +05:30", now, ny)
	require.NoError(t, err)
	_, offset := got.Time.Zone()
	assert.Equal(t, 5*3600+30*60, offset)
	assert.Equal(t, 9, got.Time.Hour())
	assert.Equal(t, 15, got.Time.Day())

	got, err = Resolve("now utc", now, ny)
	require.NoError(t, err)
	assert.True(t, now.Equal(got.Time))
	assert.Equal(t, time.UTC, got.Time.Location())
}

func TestResolveZoneChangesToday(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// 22:00 in New York is already Thursday in UTC.
	now := time.Date(2026, 1, 14, 22, 0, 0, 0, ny)

	got, err := Resolve("tomorrow utc", now, ny)
	require.NoError(t, err)
	assertInstant(t, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), true, got)
}

func TestResolveAttachesDefaultLocation(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := time.Date(2026, 1, 14, 1, 30, 0, 0, time.UTC) // 10:30 in Tokyo

	got, err := Resolve("today at 11am", now, tokyo)
	require.NoError(t, err)
	assertInstant(t, time.Date(2026, 1, 14, 11, 0, 0, 0, tokyo), false, got)

	got, err = Resolve("tomorrow", now, nil)
	require.NoError(t, err)
	assertInstant(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true, got)
}

func TestResolveBoundaries(t *testing.T) {
	loc := time.UTC

	t.Run("year rollover", func(t *testing.T) {
		now := time.Date(2026, 12, 31, 18, 0, 0, 0, loc)
		got, err := Resolve("tomorrow", now, loc)
		require.NoError(t, err)
		assertInstant(t, time.Date(2027, 1, 1, 0, 0, 0, 0, loc), true, got)
	})

	t.Run("time passed rolls into next year", func(t *testing.T) {
		now := time.Date(2026, 12, 31, 23, 30, 0, 0, loc)
		got, err := Resolve("9am", now, loc)
		require.NoError(t, err)
		assertInstant(t, time.Date(2027, 1, 1, 9, 0, 0, 0, loc), false, got)
	})

	t.Run("month end clamps", func(t *testing.T) {
		now := time.Date(2026, 1, 31, 12, 0, 0, 0, loc)
		got, err := Resolve("next month", now, loc)
		require.NoError(t, err)
		assertInstant(t, time.Date(2026, 2, 28, 0, 0, 0, 0, loc), true, got)
	})

	t.Run("leap day without year", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
		got, err := Resolve("feb 29", now, loc)
		require.NoError(t, err)
		assertInstant(t, time.Date(2028, 2, 29, 0, 0, 0, 0, loc), true, got)
	})

	t.Run("weekday on saturday", func(t *testing.T) {
		now := time.Date(2026, 1, 17, 8, 0, 0, 0, loc)
		got, err := Resolve("sunday", now, loc)
		require.NoError(t, err)
		assertInstant(t, time.Date(2026, 1, 18, 0, 0, 0, 0, loc), true, got)
	})
}

func TestResolveAcrossDSTGaps(t *testing.T) {
	santiago := mustLoad(t, "America/Santiago")
	ny := mustLoad(t, "America/New_York")

	// Santiago skips 2026-09-06 00:00; the day starts at 01:00 -03.
	sepSix := time.Date(2026, 9, 6, 1, 0, 0, 0, santiago)
	// New York skips 2026-03-08 02:00-03:00.
	marEight := time.Date(2026, 3, 8, 3, 0, 0, 0, ny)

	tests := []struct {
		name     string
		input    string
		now      time.Time
		want     time.Time
		dateOnly bool
	}{
		{"iso date", "2026-09-06", time.Date(2026, 9, 3, 10, 0, 0, 0, santiago), sepSix, true},
		{"slash date", "2026/09/06", time.Date(2026, 9, 3, 10, 0, 0, 0, santiago), sepSix, true},
		{"us date", "9/6/2026", time.Date(2026, 9, 3, 10, 0, 0, 0, santiago), sepSix, true},
		{"month day without year", "september 6", time.Date(2026, 9, 3, 10, 0, 0, 0, santiago), sepSix, true},
		{"bare weekday", "sunday", time.Date(2026, 9, 3, 10, 0, 0, 0, santiago), sepSix, true},
		{"tomorrow", "tomorrow", time.Date(2026, 9, 5, 10, 0, 0, 0, santiago), sepSix, true},
		{"in days", "in 3 days", time.Date(2026, 9, 3, 10, 0, 0, 0, santiago), sepSix, true},
		{"local time in gap", "2026-09-06T00:30", time.Date(2026, 9, 3, 10, 0, 0, 0, santiago), sepSix, false},
		{"day after gap", "2026-09-07", time.Date(2026, 9, 3, 10, 0, 0, 0, santiago), time.Date(2026, 9, 7, 0, 0, 0, 0, santiago), true},

		{"month day in gap", "march 8 at 2:30am", time.Date(2026, 3, 7, 10, 0, 0, 0, ny), marEight, false},
		{"weekday in gap", "sunday at 2:30am", time.Date(2026, 3, 7, 10, 0, 0, 0, ny), marEight, false},
		{"tomorrow in gap", "tomorrow at 2:30am", time.Date(2026, 3, 7, 10, 0, 0, 0, ny), marEight, false},
		{"bare time in gap", "2:30am", time.Date(2026, 3, 7, 23, 0, 0, 0, ny), marEight, false},
		{"after gap", "march 8 at 3:30am", time.Date(2026, 3, 7, 10, 0, 0, 0, ny), time.Date(2026, 3, 8, 3, 30, 0, 0, ny), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.input, tt.now, tt.now.Location())
			require.NoError(t, err)
			assertInstant(t, tt.want, tt.dateOnly, got)
			assert.Equal(t, tt.want.Day(), got.Time.Day())
		})
	}
}

func TestResolveIsPure(t *testing.T) {
	now := wednesday(time.UTC)
	first, err := Resolve("next friday at 3pm", now, time.UTC)
	require.NoError(t, err)
	second, err := Resolve("next friday at 3pm", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveFailures(t *testing.T) {
	now := wednesday(time.UTC)
	inputs := []string{
		"",
		"   ",
		"sometimes",
		"blah blah",
		"at",
		"the",
		"utc",
		"feb 30 2026",
		"feb 30",
		"13/45",
		"25:00",
		"13pm",
		"10:75",
		"tomorrow yesterday",
		"2pm 3pm",
		"now at 3pm",
		"in 2 hours tomorrow",
		"friday march 5",
		"tomorrow 9",
		"2026-02-30",
		"next",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Resolve(in, now, time.UTC)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnparsable)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, in, perr.Input)
		})
	}
}

func TestInstantString(t *testing.T) {
	ts := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-15", Instant{Time: ts, DateOnly: true}.String())
	assert.Equal(t, "2026-01-15T14:00:00Z", Instant{Time: ts}.String())
}
