package caldav

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/justcal/internal/domain"
)

var stamp = time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)

func ics(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func TestSelectCalendar(t *testing.T) {
	cals := []Calendar{
		{Path: "/cal/work/", Name: "Work"},
		{Path: "/cal/personal/", Name: "Personal"},
		{Path: "/cal/unnamed/"},
	}

	cal, err := selectCalendar(cals, "Work")
	require.NoError(t, err)
	assert.Equal(t, "/cal/work/", cal.Path)

	cal, err = selectCalendar(cals, "")
	require.NoError(t, err)
	assert.Equal(t, "/cal/personal/", cal.Path)

	_, err = selectCalendar(cals, "Holidays")
	require.ErrorIs(t, err, ErrNoCalendar)
	assert.Contains(t, err.Error(), "Holidays")
	assert.Contains(t, err.Error(), "available: Work, Personal")

	_, err = selectCalendar(nil, "Work")
	assert.ErrorIs(t, err, ErrNoCalendars)
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "/cal/work/abc.ics", objectPath("/cal/work/", "abc"))
	assert.Equal(t, "/cal/work/abc.ics", objectPath("/cal/work", "abc"))
}

func TestEventRoundTrip(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name  string
		event domain.Event
	}{
		{
			name: "named zone",
			event: domain.Event{
				UID:         "uid-1",
				Title:       "Standup",
				Description: "Daily sync, room 4; bring notes",
				Location:    "Office",
				Start:       time.Date(2026, 1, 15, 9, 30, 0, 0, berlin),
				End:         time.Date(2026, 1, 15, 10, 0, 0, 0, berlin),
				RRule:       "FREQ=WEEKLY;BYDAY=MO,WE,FR",
			},
		},
		{
			name: "utc",
			event: domain.Event{
				UID:   "uid-2",
				Title: "Deploy",
				Start: time.Date(2026, 2, 1, 14, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 2, 1, 15, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "all day",
			event: domain.Event{
				UID:    "uid-3",
				Title:  "Holiday",
				Start:  time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC),
				End:    time.Date(2026, 12, 26, 0, 0, 0, 0, time.UTC),
				AllDay: true,
				RRule:  "FREQ=YEARLY",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := SerializeEvent(&tt.event, stamp)
			require.NoError(t, err)

			got, err := ParseEvent(text, time.UTC)
			require.NoError(t, err)

			assert.Equal(t, tt.event.UID, got.UID)
			assert.Equal(t, tt.event.Title, got.Title)
			assert.Equal(t, tt.event.Description, got.Description)
			assert.Equal(t, tt.event.Location, got.Location)
			assert.Equal(t, tt.event.AllDay, got.AllDay)
			assert.Equal(t, tt.event.RRule, got.RRule)
			assert.True(t, tt.event.Start.Equal(got.Start), "start %s != %s", tt.event.Start, got.Start)
			assert.True(t, tt.event.End.Equal(got.End), "end %s != %s", tt.event.End, got.End)
		})
	}
}

func TestSerializeEventWireFormat(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	event := domain.Event{
		UID:   "uid-1",
		Title: "Review",
		Start: time.Date(2026, 1, 15, 9, 0, 0, 0, berlin),
		End:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.FixedZone("", 3600)),
		RRule: "FREQ=MONTHLY;BYDAY=1FR",
	}
	text, err := SerializeEvent(&event, stamp)
	require.NoError(t, err)

	assert.Contains(t, text, "DTSTART;TZID=Europe/Berlin:20260115T090000")
	assert.Contains(t, text, "DTEND:20260115T090000Z")
	assert.Contains(t, text, "RRULE:FREQ=MONTHLY;BYDAY=1FR")
	assert.Contains(t, text, "DTSTAMP:20260114T120000Z")
	assert.Contains(t, text, "PRODID:"+productID)

	allDay := domain.Event{
		UID:    "uid-2",
		Title:  "Trip",
		Start:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		AllDay: true,
	}
	text, err = SerializeEvent(&allDay, stamp)
	require.NoError(t, err)
	assert.Contains(t, text, "DTSTART;VALUE=DATE:20260301")
	assert.Contains(t, text, "DTEND;VALUE=DATE:20260304")
}

func TestParseEventDefaults(t *testing.T) {
	t.Run("all day without end", func(t *testing.T) {
		got, err := ParseEvent(ics(
			"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN",
			"BEGIN:VEVENT", "UID:a", "DTSTAMP:20260101T000000Z", "SUMMARY:Birthday",
			"DTSTART;VALUE=DATE:20260310",
			"END:VEVENT", "END:VCALENDAR",
		), time.UTC)
		require.NoError(t, err)
		assert.True(t, got.AllDay)
		assert.True(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC).Equal(got.End))
	})

	t.Run("duration", func(t *testing.T) {
		got, err := ParseEvent(ics(
			"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN",
			"BEGIN:VEVENT", "UID:b", "DTSTAMP:20260101T000000Z", "SUMMARY:Call",
			"DTSTART:20260310T100000Z", "DURATION:PT45M",
			"END:VEVENT", "END:VCALENDAR",
		), time.UTC)
		require.NoError(t, err)
		assert.False(t, got.AllDay)
		assert.Equal(t, time.Date(2026, 3, 10, 10, 45, 0, 0, time.UTC), got.End.UTC())
	})

	t.Run("floating time uses client location", func(t *testing.T) {
		tokyo, err := time.LoadLocation("Asia/Tokyo")
		require.NoError(t, err)
		got, err := ParseEvent(ics(
			"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN",
			"BEGIN:VEVENT", "UID:c", "DTSTAMP:20260101T000000Z", "SUMMARY:Lunch",
			"DTSTART:20260310T120000", "DTEND:20260310T130000",
			"END:VEVENT", "END:VCALENDAR",
		), tokyo)
		require.NoError(t, err)
		assert.True(t, time.Date(2026, 3, 10, 12, 0, 0, 0, tokyo).Equal(got.Start))
		assert.Equal(t, "Asia/Tokyo", got.Start.Location().String())
	})

	t.Run("all day on a day without midnight", func(t *testing.T) {
		santiago, err := time.LoadLocation("America/Santiago")
		require.NoError(t, err)
		data := ics(
			"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN",
			"BEGIN:VEVENT", "UID:d", "DTSTAMP:20260101T000000Z", "SUMMARY:Fiestas",
			"DTSTART;VALUE=DATE:20260906", "DTEND;VALUE=DATE:20260907",
			"END:VEVENT", "END:VCALENDAR",
		)
		got, err := ParseEvent(data, santiago)
		require.NoError(t, err)
		assert.True(t, got.AllDay)
		assert.Equal(t, "2026-09-06 01:00 -03", got.Start.Format("2006-01-02 15:04 -07"))
		assert.Equal(t, "2026-09-07", got.End.Format("2006-01-02"))

		out, err := SerializeEvent(&got, stamp)
		require.NoError(t, err)
		assert.Contains(t, out, "DTSTART;VALUE=DATE:20260906")
		assert.Contains(t, out, "DTEND;VALUE=DATE:20260907")
	})
}

func TestParseEventRejectsIncompleteObjects(t *testing.T) {
	tests := map[string]string{
		"no event": ics("BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN",
			"BEGIN:VTODO", "UID:t", "DTSTAMP:20260101T000000Z", "END:VTODO", "END:VCALENDAR"),
		"no uid": ics("BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN",
			"BEGIN:VEVENT", "DTSTAMP:20260101T000000Z", "DTSTART:20260310T100000Z", "END:VEVENT", "END:VCALENDAR"),
		"no start": ics("BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN",
			"BEGIN:VEVENT", "UID:x", "DTSTAMP:20260101T000000Z", "END:VEVENT", "END:VCALENDAR"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent(data, time.UTC)
			assert.Error(t, err)
		})
	}
}

func TestConnectUnauthorized(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/dav/", "alice", "wrong", time.UTC)
	_, err := c.Connect(context.Background(), "Personal")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "wrong", gotPass)
	assert.Nil(t, c.Calendar())
}

func TestClientRequiresConfigurationAndConnection(t *testing.T) {
	ctx := context.Background()

	c := NewClient("", "", "", nil)
	assert.False(t, c.IsConfigured())
	_, err := c.Connect(ctx, "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	c = NewClient("https://dav.example.com", "bob", "secret", time.UTC)
	assert.True(t, c.IsConfigured())

	_, err = c.ListEvents(ctx, stamp, stamp.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.AllEvents(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.PutEvent(ctx, &domain.Event{UID: "x"}), ErrNotConnected)
	assert.ErrorIs(t, c.DeleteEvent(ctx, "/cal/x.ics"), ErrNotConnected)
}
