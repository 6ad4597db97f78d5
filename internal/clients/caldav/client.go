package caldav

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"github.com/tazhate/justcal/internal/domain"
)

const (
	// DefaultCalendar is used when no calendar name is configured.
	DefaultCalendar = "Personal"

	productID = "-//justcal//CalDAV//EN"
)

// Client talks to a single calendar collection on a CalDAV server
// (Nextcloud, iCloud, Radicale).
type Client struct {
	baseURL  string
	username string
	password string
	location *time.Location // for floating times

	client   *caldav.Client
	calendar *Calendar
}

// NewClient creates a new CalDAV client. Floating times on the server are
// read in loc.
func NewClient(baseURL, username, password string, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		location: loc,
	}
}

// IsConfigured returns true if the client has a server and credentials
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != ""
}

// Calendar returns the selected calendar, or nil before Connect.
func (c *Client) Calendar() *Calendar {
	return c.calendar
}

func (c *Client) dial() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests and turns 401/403
// responses into ErrUnauthorized.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
	}
	return resp, nil
}

// DiscoverCalendars returns all calendars for the user
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	client, err := c.dial()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	result := make([]Calendar, 0, len(cals))
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			Name:        cal.Name,
			Description: cal.Description,
		})
	}
	return result, nil
}

// Connect discovers the user's calendars and selects the one called name.
func (c *Client) Connect(ctx context.Context, name string) (*Calendar, error) {
	cals, err := c.DiscoverCalendars(ctx)
	if err != nil {
		return nil, err
	}
	cal, err := selectCalendar(cals, name)
	if err != nil {
		return nil, err
	}
	c.calendar = cal
	return cal, nil
}

func selectCalendar(cals []Calendar, name string) (*Calendar, error) {
	if len(cals) == 0 {
		return nil, ErrNoCalendars
	}
	if name == "" {
		name = DefaultCalendar
	}
	var available []string
	for i := range cals {
		if cals[i].Name == name {
			cal := cals[i]
			return &cal, nil
		}
		if cals[i].Name != "" {
			available = append(available, cals[i].Name)
		}
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrNoCalendar, name, strings.Join(available, ", "))
}

func (c *Client) connected() (*caldav.Client, string, error) {
	if c.client == nil || c.calendar == nil {
		return nil, "", ErrNotConnected
	}
	return c.client, c.calendar.Path, nil
}

// ListEvents returns events overlapping [from, to), sorted by start time.
// Recurring events are returned once, as stored on the server.
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]domain.Event, error) {
	return c.query(ctx, caldav.CompFilter{Name: ical.CompEvent, Start: from.UTC(), End: to.UTC()})
}

// AllEvents returns every event in the calendar.
func (c *Client) AllEvents(ctx context.Context) ([]domain.Event, error) {
	return c.query(ctx, caldav.CompFilter{Name: ical.CompEvent})
}

func (c *Client) query(ctx context.Context, filter caldav.CompFilter) ([]domain.Event, error) {
	client, calendarPath, err := c.connected()
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{filter},
		},
	}

	objects, err := client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	events := make([]domain.Event, 0, len(objects))
	for _, obj := range objects {
		event, err := parseCalendarObject(&obj, c.location)
		if err != nil {
			continue // Skip invalid events
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

// GetEvent fetches the event stored at path.
func (c *Client) GetEvent(ctx context.Context, path string) (*domain.Event, error) {
	client, _, err := c.connected()
	if err != nil {
		return nil, err
	}
	obj, err := client.GetCalendarObject(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	event, err := parseCalendarObject(obj, c.location)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.Path == "" {
		event.Path = path
	}
	return &event, nil
}

// PutEvent creates or replaces an event. New events are stored at
// <calendar>/<uid>.ics; the path is written back to the event.
func (c *Client) PutEvent(ctx context.Context, event *domain.Event) error {
	client, calendarPath, err := c.connected()
	if err != nil {
		return err
	}
	if event.UID == "" {
		return fmt.Errorf("put event: missing UID")
	}

	eventPath := event.Path
	if eventPath == "" {
		eventPath = objectPath(calendarPath, event.UID)
	}

	obj, err := client.PutCalendarObject(ctx, eventPath, eventToICS(event, time.Now()))
	if err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	if obj != nil && obj.Path != "" {
		eventPath = obj.Path
	}
	event.Path = eventPath
	return nil
}

// DeleteEvent removes the calendar object at path.
func (c *Client) DeleteEvent(ctx context.Context, path string) error {
	client, _, err := c.connected()
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, path); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func objectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + uid + ".ics"
}

// parseCalendarObject parses a CalDAV object into an Event
func parseCalendarObject(obj *caldav.CalendarObject, loc *time.Location) (domain.Event, error) {
	if obj.Data == nil {
		return domain.Event{}, fmt.Errorf("no data in calendar object")
	}
	event, err := parseCalendar(obj.Data, loc)
	if err != nil {
		return domain.Event{}, err
	}
	event.Path = obj.Path
	return event, nil
}

func parseCalendar(cal *ical.Calendar, loc *time.Location) (domain.Event, error) {
	events := cal.Events()
	if len(events) == 0 {
		return domain.Event{}, fmt.Errorf("no VEVENT in calendar object")
	}
	// Only the first VEVENT; overrides of recurring events are not read.
	vevent := events[0]

	uid := vevent.Props.Get(ical.PropUID)
	if uid == nil || uid.Value == "" {
		return domain.Event{}, fmt.Errorf("event without UID")
	}
	event := domain.Event{UID: uid.Value}

	if prop := vevent.Props.Get(ical.PropSummary); prop != nil {
		event.Title, _ = prop.Text()
	}
	if prop := vevent.Props.Get(ical.PropDescription); prop != nil {
		event.Description, _ = prop.Text()
	}
	if prop := vevent.Props.Get(ical.PropLocation); prop != nil {
		event.Location, _ = prop.Text()
	}
	if prop := vevent.Props.Get(ical.PropRecurrenceRule); prop != nil {
		event.RRule = prop.Value
	}

	start := vevent.Props.Get(ical.PropDateTimeStart)
	if start == nil {
		return domain.Event{}, fmt.Errorf("event %s: missing DTSTART", event.UID)
	}
	event.AllDay = isDate(start)
	var err error
	if event.Start, err = propTime(start, loc); err != nil {
		return domain.Event{}, fmt.Errorf("event %s: parse DTSTART: %w", event.UID, err)
	}

	switch {
	case vevent.Props.Get(ical.PropDateTimeEnd) != nil:
		if event.End, err = propTime(vevent.Props.Get(ical.PropDateTimeEnd), loc); err != nil {
			return domain.Event{}, fmt.Errorf("event %s: parse DTEND: %w", event.UID, err)
		}
	case vevent.Props.Get(ical.PropDuration) != nil:
		d, err := vevent.Props.Get(ical.PropDuration).Duration()
		if err != nil {
			return domain.Event{}, fmt.Errorf("event %s: parse DURATION: %w", event.UID, err)
		}
		event.End = event.Start.Add(d)
	case event.AllDay:
		event.End = domain.AddDays(event.Start, 1)
	default:
		event.End = event.Start
	}
	return event, nil
}

// propTime decodes a DATE or DATE-TIME property. A DATE is the first instant
// of that day in loc, which is 01:00 when DST skips midnight.
func propTime(prop *ical.Prop, loc *time.Location) (time.Time, error) {
	if !isDate(prop) {
		return prop.DateTime(loc)
	}
	day, err := time.Parse("20060102", prop.Value)
	if err != nil {
		return time.Time{}, err
	}
	return domain.Localize(day, loc), nil
}

func isDate(prop *ical.Prop) bool {
	if v := prop.Params.Get(ical.ParamValue); v != "" {
		return v == string(ical.ValueDate)
	}
	return len(prop.Value) == len("20060102")
}

// eventToICS converts an Event to iCalendar format
func eventToICS(event *domain.Event, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Title)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}

	if event.AllDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, event.Start)
		if !event.End.IsZero() {
			vevent.Props.SetDate(ical.PropDateTimeEnd, event.End)
		}
	} else {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, wireTime(event.Start))
		if !event.End.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, wireTime(event.End))
		}
	}

	// RRULE is a RECUR value; SetText would escape its ';' and ','.
	if event.RRule != "" {
		rrule := ical.NewProp(ical.PropRecurrenceRule)
		rrule.SetValueType(ical.ValueRecurrence)
		rrule.Value = event.RRule
		vevent.Props.Set(rrule)
	}

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

// wireTime keeps named IANA zones (written with TZID) and converts local and
// fixed-offset times to UTC.
func wireTime(t time.Time) time.Time {
	name := t.Location().String()
	if t.Location() == time.UTC || name == "" || name == "Local" || !strings.Contains(name, "/") {
		return t.UTC()
	}
	return t
}

// SerializeEvent renders an event as iCalendar text.
func SerializeEvent(event *domain.Event, stamp time.Time) (string, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(eventToICS(event, stamp)); err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return buf.String(), nil
}

// ParseEvent reads the first VEVENT of iCalendar text.
func ParseEvent(data string, loc *time.Location) (domain.Event, error) {
	cal, err := ical.NewDecoder(strings.NewReader(data)).Decode()
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode calendar: %w", err)
	}
	return parseCalendar(cal, loc)
}
