package caldav

import "errors"

var (
	ErrUnauthorized  = errors.New("caldav: authentication failed")
	ErrNotConnected  = errors.New("caldav: not connected")
	ErrNoCalendars   = errors.New("caldav: no calendars found")
	ErrNoCalendar    = errors.New("caldav: calendar not found")
	ErrNotConfigured = errors.New("caldav: url and username must be configured")
)

// Calendar is a calendar collection on the server.
type Calendar struct {
	Path        string
	Name        string
	Description string
}
