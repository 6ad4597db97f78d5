package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tazhate/justcal/internal/dateparse"
	"github.com/tazhate/justcal/internal/domain"
	"github.com/tazhate/justcal/internal/recurrence"
)

var (
	ErrNotFound           = errors.New("event not found")
	ErrAmbiguousUID       = errors.New("ambiguous event UID")
	ErrEmptyTitle         = errors.New("event title cannot be empty")
	ErrEndBeforeStart     = errors.New("end time must be after start time")
	ErrNoChanges          = errors.New("no changes specified")
	ErrInvalidRange       = errors.New("invalid date range")
	ErrInvalidField       = errors.New("invalid search field")
	ErrRecurrenceConflict = errors.New("cannot set and clear recurrence at the same time")
	ErrNoCache            = errors.New("event cache is not enabled")
)

// maxAmbiguousShown caps the number of candidate UIDs listed in an
// AmbiguousUIDError.
const maxAmbiguousShown = 5

// AmbiguousUIDError is returned when a partial UID matches several events.
type AmbiguousUIDError struct {
	Prefix string
	UIDs   []string
}

func (e *AmbiguousUIDError) Error() string {
	shown := e.UIDs
	if len(shown) > maxAmbiguousShown {
		shown = shown[:maxAmbiguousShown]
	}
	return fmt.Sprintf("partial UID %q matches multiple events: %s. Please provide more characters",
		e.Prefix, strings.Join(shown, ", "))
}

func (e *AmbiguousUIDError) Unwrap() error { return ErrAmbiguousUID }

// Calendar is the remote calendar the service reads from and writes to.
// *caldav.Client satisfies it once connected.
type Calendar interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]domain.Event, error)
	AllEvents(ctx context.Context) ([]domain.Event, error)
	GetEvent(ctx context.Context, path string) (*domain.Event, error)
	PutEvent(ctx context.Context, event *domain.Event) error
	DeleteEvent(ctx context.Context, path string) error
}

// Cache is the local index of events already seen on the server.
type Cache interface {
	UpsertEvents(events []domain.Event, syncedAt time.Time) error
	GetEvent(uid string) (*domain.Event, error)
	FindByUIDPrefix(prefix string) ([]domain.Event, error)
	ListEvents(from, to time.Time) ([]domain.Event, error)
	ListRecurring(before time.Time) ([]domain.Event, error)
	DeleteEvent(uid string) error
}

// CalendarService implements the justcal commands on top of a Calendar.
type CalendarService struct {
	calendar        Calendar
	cache           Cache          // optional
	timezone        *time.Location // for natural-language times without a zone
	defaultDuration time.Duration
	now             func() time.Time
	log             zerolog.Logger
}

// Option customizes a CalendarService.
type Option func(*CalendarService)

// WithCache enables the local event cache.
func WithCache(c Cache) Option {
	return func(s *CalendarService) { s.cache = c }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *CalendarService) { s.now = now }
}

// WithLogger sets the logger used for cache and sync diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *CalendarService) { s.log = l }
}

// WithDefaultDuration sets the length of timed events added without an end.
func WithDefaultDuration(d time.Duration) Option {
	return func(s *CalendarService) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

// NewCalendarService creates a new calendar service
func NewCalendarService(cal Calendar, tz *time.Location, opts ...Option) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	s := &CalendarService{
		calendar:        cal,
		timezone:        tz,
		defaultDuration: time.Hour,
		now:             time.Now,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveInstant interprets a date/time phrase relative to the service clock.
func (s *CalendarService) ResolveInstant(text string) (dateparse.Instant, error) {
	return dateparse.Resolve(text, s.now().In(s.timezone), s.timezone)
}

// ResolveRecurrence turns a recurrence phrase or RRULE text into a canonical rule.
func (s *CalendarService) ResolveRecurrence(text string) (string, error) {
	return recurrence.ResolveString(text)
}

// AddRequest holds the raw user input for a new event.
type AddRequest struct {
	Title       string
	Start       string
	End         string
	Description string
	Location    string
	Recurrence  string
	AllDay      bool
}

// AddEvent creates an event on the calendar
func (s *CalendarService) AddEvent(ctx context.Context, req AddRequest) (*domain.Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	start, err := s.ResolveInstant(req.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date/time: %w", err)
	}

	event := &domain.Event{
		UID:         uuid.NewString(),
		Title:       title,
		Description: req.Description,
		Location:    req.Location,
		AllDay:      req.AllDay || start.DateOnly,
	}
	event.Start, event.End, err = s.span(start, req.End, event.AllDay)
	if err != nil {
		return nil, err
	}

	if req.Recurrence != "" {
		if event.RRule, err = s.ResolveRecurrence(req.Recurrence); err != nil {
			return nil, fmt.Errorf("invalid recurrence pattern: %w", err)
		}
	}

	if err := s.calendar.PutEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.remember(*event)
	return event, nil
}

// span computes the stored start and exclusive end of an event. An all-day
// end names the last day covered.
func (s *CalendarService) span(start dateparse.Instant, endText string, allDay bool) (time.Time, time.Time, error) {
	from := start.Time
	if allDay {
		from = domain.StartOfDay(from)
	}

	var to time.Time
	switch {
	case endText != "":
		end, err := s.ResolveInstant(endText)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date/time: %w", err)
		}
		to = end.Time
		if allDay {
			to = domain.AddDays(to.In(from.Location()), 1)
		}
	case allDay:
		to = domain.AddDays(from, 1)
	default:
		to = from.Add(s.defaultDuration)
	}

	if err := checkOrder(from, to, allDay); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func checkOrder(start, end time.Time, allDay bool) error {
	if end.Before(start) || (allDay && !end.After(start)) {
		return ErrEndBeforeStart
	}
	return nil
}

// ListRequest selects the events shown by the list command.
type ListRequest struct {
	From  string
	To    string
	Limit int
}

// ListEvents returns events between From and To. From defaults to the start
// of today and To to the end of the seventh day after From.
func (s *CalendarService) ListEvents(ctx context.Context, req ListRequest) ([]domain.Event, error) {
	from, err := s.bound(req.From, domain.StartOfDay(s.now().In(s.timezone)), false)
	if err != nil {
		return nil, fmt.Errorf("invalid from date: %w", err)
	}
	to, err := s.bound(req.To, endOfDay(domain.AddDays(from, 7)), true)
	if err != nil {
		return nil, fmt.Errorf("invalid to date: %w", err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	events, err := s.calendar.ListEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	s.remember(events...)

	if req.Limit > 0 && len(events) > req.Limit {
		events = events[:req.Limit]
	}
	return events, nil
}

// SearchRequest is a text query over a date range.
type SearchRequest struct {
	Query string
	Field string
	From  string
	To    string
}

const (
	searchWindow   = 365 // days each side of today
	searchOpenSide = 10  // years on the unspecified side
)

// SearchEvents finds events whose Field contains Query, case-insensitively.
// Without dates the range is a year each side of today; with only one side
// given the other extends ten years.
func (s *CalendarService) SearchEvents(ctx context.Context, req SearchRequest) ([]domain.Event, error) {
	field, ok := domain.ParseSearchField(req.Field)
	if !ok {
		return nil, fmt.Errorf("%w: %q (use title, description, location or all)", ErrInvalidField, req.Field)
	}

	today := domain.StartOfDay(s.now().In(s.timezone))
	from, err := s.bound(req.From, time.Time{}, false)
	if err != nil {
		return nil, fmt.Errorf("invalid from date: %w", err)
	}
	to, err := s.bound(req.To, time.Time{}, true)
	if err != nil {
		return nil, fmt.Errorf("invalid to date: %w", err)
	}

	switch {
	case from.IsZero() && to.IsZero():
		from = domain.AddDays(today, -searchWindow)
		to = domain.AddDays(today, searchWindow)
	case from.IsZero():
		from = to.AddDate(-searchOpenSide, 0, 0)
	case to.IsZero():
		to = from.AddDate(searchOpenSide, 0, 0)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	events, err := s.calendar.ListEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	s.remember(events...)

	var found []domain.Event
	for i := range events {
		if events[i].Matches(req.Query, field) {
			found = append(found, events[i])
		}
	}
	return found, nil
}

// bound resolves an optional range endpoint. A date-only upper bound covers
// the whole day.
func (s *CalendarService) bound(text string, def time.Time, upper bool) (time.Time, error) {
	if strings.TrimSpace(text) == "" {
		return def, nil
	}
	inst, err := s.ResolveInstant(text)
	if err != nil {
		return time.Time{}, err
	}
	if inst.DateOnly && upper {
		return endOfDay(inst.Time), nil
	}
	return inst.Time, nil
}

// GetEvent finds an event by full UID or by a unique UID prefix.
func (s *CalendarService) GetEvent(ctx context.Context, uid string) (*domain.Event, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, fmt.Errorf("%w: empty UID", ErrNotFound)
	}

	if event := s.cachedEvent(ctx, uid); event != nil {
		return event, nil
	}

	events, err := s.calendar.AllEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	s.remember(events...)

	var matches []domain.Event
	for _, e := range events {
		if e.UID == uid {
			found := e
			return &found, nil
		}
		if strings.HasPrefix(e.UID, uid) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uid)
	case 1:
		return &matches[0], nil
	}
	uids := make([]string, len(matches))
	for i, e := range matches {
		uids[i] = e.UID
	}
	return nil, &AmbiguousUIDError{Prefix: uid, UIDs: uids}
}

// cachedEvent looks a full UID up in the cache and confirms it on the server.
// Prefixes always go to the server, since the cache may miss events that
// share the prefix.
func (s *CalendarService) cachedEvent(ctx context.Context, uid string) *domain.Event {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.GetEvent(uid)
	if err != nil {
		s.log.Warn().Err(err).Str("uid", uid).Msg("cache lookup failed")
		return nil
	}
	if cached == nil || cached.Path == "" {
		return nil
	}

	event, err := s.calendar.GetEvent(ctx, cached.Path)
	if err != nil || event.UID != uid {
		s.log.Debug().Err(err).Str("uid", uid).Str("path", cached.Path).Msg("cached event is stale")
		s.forget(uid)
		return nil
	}
	s.remember(*event)
	return event
}

// CompleteUID suggests cached UIDs starting with prefix, with titles, in
// the "value\tdescription" form shell completion expects. It never contacts
// the server.
func (s *CalendarService) CompleteUID(prefix string) []string {
	if s.cache == nil {
		return nil
	}
	events, err := s.cache.FindByUIDPrefix(prefix)
	if err != nil {
		s.log.Debug().Err(err).Str("prefix", prefix).Msg("uid completion failed")
		return nil
	}
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.UID+"\t"+e.Title)
	}
	return out
}

// EditRequest carries the fields to change; nil means unchanged.
type EditRequest struct {
	UID         string
	Title       *string
	Start       *string
	End         *string
	Description *string
	Location    *string
	Recurrence  *string
	NoRecur     bool
}

// EditEvent applies the supplied changes and returns the updated event with a
// human-readable list of what changed. Moving the start without an end keeps
// the event's duration.
func (s *CalendarService) EditEvent(ctx context.Context, req EditRequest) (*domain.Event, []string, error) {
	if req.NoRecur && req.Recurrence != nil {
		return nil, nil, ErrRecurrenceConflict
	}

	event, err := s.GetEvent(ctx, req.UID)
	if err != nil {
		return nil, nil, err
	}
	updated := *event
	var changes []string

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, nil, ErrEmptyTitle
		}
		updated.Title = title
		changes = append(changes, "title -> "+title)
	}

	if req.Start != nil {
		start, err := s.ResolveInstant(*req.Start)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start date/time: %w", err)
		}
		if updated.AllDay {
			updated.Start = domain.StartOfDay(start.Time)
			updated.End = domain.AddDays(updated.Start, civilDays(event.Start, event.End))
		} else {
			updated.Start = start.Time
			updated.End = updated.Start.Add(event.End.Sub(event.Start))
		}
		changes = append(changes, "start -> "+formatChange(updated.Start, updated.AllDay))
	}

	if req.End != nil {
		end, err := s.ResolveInstant(*req.End)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end date/time: %w", err)
		}
		if updated.AllDay {
			updated.End = domain.AddDays(end.Time.In(updated.Start.Location()), 1)
			changes = append(changes, "end -> "+formatChange(updated.LastDay(), true))
		} else {
			updated.End = end.Time
			changes = append(changes, "end -> "+formatChange(updated.End, false))
		}
	}

	if req.Description != nil {
		updated.Description = *req.Description
		changes = append(changes, "description updated")
	}
	if req.Location != nil {
		updated.Location = *req.Location
		changes = append(changes, "location -> "+*req.Location)
	}

	switch {
	case req.NoRecur:
		if updated.RRule != "" {
			updated.RRule = ""
			changes = append(changes, "recurrence removed")
		}
	case req.Recurrence != nil:
		rule, err := s.ResolveRecurrence(*req.Recurrence)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid recurrence pattern: %w", err)
		}
		updated.RRule = rule
		changes = append(changes, "recurrence -> "+rule)
	}

	if len(changes) == 0 {
		return nil, nil, ErrNoChanges
	}
	if err := checkOrder(updated.Start, updated.End, updated.AllDay); err != nil {
		return nil, nil, err
	}

	if err := s.calendar.PutEvent(ctx, &updated); err != nil {
		return nil, nil, fmt.Errorf("update event: %w", err)
	}
	s.remember(updated)
	return &updated, changes, nil
}

func formatChange(t time.Time, allDay bool) string {
	if allDay {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04 MST")
}

// DeleteEvent removes an event from the calendar and returns what was deleted.
func (s *CalendarService) DeleteEvent(ctx context.Context, uid string) (*domain.Event, error) {
	event, err := s.GetEvent(ctx, uid)
	if err != nil {
		return nil, err
	}
	if event.Path == "" {
		return nil, fmt.Errorf("delete event %s: server path unknown", event.UID)
	}
	if err := s.calendar.DeleteEvent(ctx, event.Path); err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	s.forget(event.UID)
	return event, nil
}

// SyncResult contains sync operation results
type SyncResult struct {
	Added   int
	Updated int
	Deleted int
	Errors  []string
}

// SyncRequest is the range refreshed by the sync command, as user text.
type SyncRequest struct {
	From string
	To   string
}

// SyncRange resolves the request and calls Sync. From defaults to the start
// of today and To to three months after From.
func (s *CalendarService) SyncRange(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	from, err := s.bound(req.From, domain.StartOfDay(s.now().In(s.timezone)), false)
	if err != nil {
		return nil, fmt.Errorf("invalid from date: %w", err)
	}
	to, err := s.bound(req.To, from.AddDate(0, 3, 0), true)
	if err != nil {
		return nil, fmt.Errorf("invalid to date: %w", err)
	}
	return s.Sync(ctx, from, to)
}

// Sync refreshes the cache for [from, to] from the server. Cached events in
// the range that no longer exist on the server are removed; a recurring
// event is in the range when any of its occurrences is.
func (s *CalendarService) Sync(ctx context.Context, from, to time.Time) (*SyncResult, error) {
	if s.cache == nil {
		return nil, ErrNoCache
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	remote, err := s.calendar.ListEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("sync events: %w", err)
	}
	cached, err := s.cachedInRange(from, to)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	known := make(map[string]bool, len(cached))
	for _, e := range cached {
		known[e.UID] = true
	}
	for _, e := range remote {
		if known[e.UID] {
			continue
		}
		// Cached, but outside the range before this sync.
		prev, err := s.cache.GetEvent(e.UID)
		if err != nil {
			return nil, fmt.Errorf("read cache: %w", err)
		}
		known[e.UID] = prev != nil
	}

	result := &SyncResult{}
	onServer := make(map[string]bool, len(remote))
	for _, e := range remote {
		onServer[e.UID] = true
		if known[e.UID] {
			result.Updated++
		} else {
			result.Added++
		}
	}
	if err := s.cache.UpsertEvents(remote, s.now()); err != nil {
		return nil, fmt.Errorf("write cache: %w", err)
	}

	for _, e := range cached {
		if onServer[e.UID] {
			continue
		}
		if err := s.cache.DeleteEvent(e.UID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", e.UID, err))
			continue
		}
		result.Deleted++
	}

	s.log.Info().
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("errors", len(result.Errors)).
		Msg("cache synced")
	return result, nil
}

// cachedInRange returns cached events overlapping [from, to], including
// recurring events that start earlier but have an occurrence in the range.
func (s *CalendarService) cachedInRange(from, to time.Time) ([]domain.Event, error) {
	events, err := s.cache.ListEvents(from, to)
	if err != nil {
		return nil, err
	}
	recurring, err := s.cache.ListRecurring(to)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(events))
	for _, e := range events {
		seen[e.UID] = true
	}
	for _, e := range recurring {
		if seen[e.UID] {
			continue
		}
		rule, err := recurrence.Parse(e.RRule)
		if err != nil {
			s.log.Warn().Err(err).Str("uid", e.UID).Msg("cached rule unreadable")
			continue
		}
		// An occurrence starting up to one event length before from still overlaps.
		hits, err := rule.Between(e.Start, from.Add(-e.End.Sub(e.Start)), to)
		if err != nil || len(hits) == 0 {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func (s *CalendarService) remember(events ...domain.Event) {
	if s.cache == nil || len(events) == 0 {
		return
	}
	if err := s.cache.UpsertEvents(events, s.now()); err != nil {
		s.log.Warn().Err(err).Int("events", len(events)).Msg("cache update failed")
	}
}

func (s *CalendarService) forget(uid string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteEvent(uid); err != nil {
		s.log.Warn().Err(err).Str("uid", uid).Msg("cache delete failed")
	}
}

func endOfDay(t time.Time) time.Time {
	return domain.AddDays(t, 1).Add(-time.Nanosecond)
}

// civilDays counts calendar days from a to b, ignoring DST-shortened days.
func civilDays(a, b time.Time) int {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.In(a.Location()).Date()
	from := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
