package storage

import (
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/justcal/internal/domain"
)

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "events.db")
	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func sampleEvents(t *testing.T) []domain.Event {
	t.Helper()
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return []domain.Event{
		{
			UID:   "abc12345-0001",
			Path:  "/cal/personal/abc12345-0001.ics",
			Title: "Standup",
			Start: time.Date(2026, 1, 15, 9, 0, 0, 0, berlin),
			End:   time.Date(2026, 1, 15, 9, 15, 0, 0, berlin),
			RRule: "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR",
		},
		{
			UID:    "abc12345-0002",
			Path:   "/cal/personal/abc12345-0002.ics",
			Title:  "Holiday",
			Start:  time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC),
			AllDay: true,
		},
		{
			UID:         "ffee0000-0003",
			Path:        "/cal/personal/ffee0000-0003.ics",
			Title:       "Dentist",
			Description: "Check-up",
			Location:    "Main St",
			Start:       time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
			End:         time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC),
		},
	}
}

func TestUpsertAndGet(t *testing.T) {
	s, _ := newTestStorage(t)
	events := sampleEvents(t)
	synced := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertEvents(events, synced))

	got, err := s.GetEvent("abc12345-0001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Standup", got.Title)
	assert.Equal(t, events[0].RRule, got.RRule)
	assert.Equal(t, events[0].Path, got.Path)
	assert.True(t, events[0].Start.Equal(got.Start))
	assert.Equal(t, "Europe/Berlin", got.Start.Location().String())
	assert.Equal(t, 9, got.Start.Hour())

	missing, err := s.GetEvent("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	events[0].Title = "Daily standup"
	require.NoError(t, s.UpsertEvents(events[:1], synced.Add(time.Hour)))
	got, err = s.GetEvent("abc12345-0001")
	require.NoError(t, err)
	assert.Equal(t, "Daily standup", got.Title)
}

func TestFindByUIDPrefix(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.UpsertEvents(sampleEvents(t), time.Now()))

	tests := []struct {
		prefix string
		want   []string
	}{
		{"abc12345", []string{"abc12345-0001", "abc12345-0002"}},
		{"abc12345-0002", []string{"abc12345-0002"}},
		{"ffee", []string{"ffee0000-0003"}},
		{"zzz", nil},
		{"%", nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			events, err := s.FindByUIDPrefix(tt.prefix)
			require.NoError(t, err)
			var uids []string
			for _, e := range events {
				uids = append(uids, e.UID)
			}
			assert.Equal(t, tt.want, uids)
		})
	}
}

func TestListEventsOverlap(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.UpsertEvents(sampleEvents(t), time.Now()))

	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	events, err := s.ListEvents(from, to)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", events[0].Title)
	assert.Equal(t, "Holiday", events[1].Title)
	assert.True(t, events[1].AllDay)

	// An event in progress at the window start is included.
	events, err = s.ListEvents(time.Date(2026, 2, 3, 14, 30, 0, 0, time.UTC), time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Dentist", events[0].Title)
	assert.Equal(t, "Main St", events[0].Location)
}

func TestListRecurring(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.UpsertEvents(sampleEvents(t), time.Now()))

	events, err := s.ListRecurring(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Title)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", events[0].RRule)

	events, err = s.ListRecurring(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDeleteEvent(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.UpsertEvents(sampleEvents(t), time.Now()))

	require.NoError(t, s.DeleteEvent("ffee0000-0003"))
	got, err := s.GetEvent("ffee0000-0003")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.DeleteEvent("ffee0000-0003"))
}

func TestReopenRunsMigrationsAgain(t *testing.T) {
	s, path := newTestStorage(t)
	require.NoError(t, s.UpsertEvents(sampleEvents(t), time.Now()))
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.FindByUIDPrefix("")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
