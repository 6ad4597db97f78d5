package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/justcal/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is a local index of events seen on the CalDAV server. The server
// stays authoritative; the index makes short-UID lookups cheap.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			uid TEXT PRIMARY KEY,
			path TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			description TEXT DEFAULT '',
			location TEXT DEFAULT '',
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			all_day INTEGER DEFAULT 0,
			rrule TEXT DEFAULT '',
			synced_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time)`,
		// Zone name so times come back in the zone they were written in
		`ALTER TABLE events ADD COLUMN tzid TEXT DEFAULT ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

const eventColumns = `uid, path, title, description, location, start_time, end_time, all_day, rrule, tzid`

// UpsertEvents inserts or replaces events in one transaction.
func (s *Storage) UpsertEvents(events []domain.Event, syncedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO events (` + eventColumns + `, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(uid) DO UPDATE SET
			path = excluded.path, title = excluded.title, description = excluded.description,
			location = excluded.location, start_time = excluded.start_time, end_time = excluded.end_time,
			all_day = excluded.all_day, rrule = excluded.rrule, tzid = excluded.tzid,
			synced_at = excluded.synced_at`,
	)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(
			e.UID, e.Path, e.Title, e.Description, e.Location,
			dbTime(e.Start), dbTime(e.End), e.AllDay, e.RRule, zoneName(e.Start),
			dbTime(syncedAt),
		); err != nil {
			return fmt.Errorf("upsert event %s: %w", e.UID, err)
		}
	}
	return tx.Commit()
}

// GetEvent returns a cached event by exact UID, or nil if it is not cached.
func (s *Storage) GetEvent(uid string) (*domain.Event, error) {
	events, err := s.query(`SELECT `+eventColumns+` FROM events WHERE uid = ?`, uid)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// FindByUIDPrefix returns cached events whose UID starts with prefix.
func (s *Storage) FindByUIDPrefix(prefix string) ([]domain.Event, error) {
	return s.query(
		`SELECT `+eventColumns+` FROM events
		 WHERE substr(uid, 1, ?) = ?
		 ORDER BY uid ASC`,
		len(prefix), prefix,
	)
}

// ListEvents returns cached events overlapping [from, to), ordered by start.
func (s *Storage) ListEvents(from, to time.Time) ([]domain.Event, error) {
	return s.query(
		`SELECT `+eventColumns+` FROM events
		 WHERE start_time < ? AND (end_time > ? OR (end_time IS NULL AND start_time >= ?))
		 ORDER BY start_time ASC`,
		dbTime(to), dbTime(from), dbTime(from),
	)
}

// ListRecurring returns cached recurring events that start before `before`.
// ListEvents only sees a series' first occurrence; callers expand these.
func (s *Storage) ListRecurring(before time.Time) ([]domain.Event, error) {
	return s.query(
		`SELECT `+eventColumns+` FROM events
		 WHERE rrule != '' AND start_time < ?
		 ORDER BY start_time ASC`,
		dbTime(before),
	)
}

// DeleteEvent removes an event from the cache by UID
func (s *Storage) DeleteEvent(uid string) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE uid = ?`, uid)
	return err
}

func (s *Storage) query(query string, args ...any) ([]domain.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e    domain.Event
			end  sql.NullTime
			tzid string
		)
		if err := rows.Scan(&e.UID, &e.Path, &e.Title, &e.Description, &e.Location, &e.Start, &end, &e.AllDay, &e.RRule, &tzid); err != nil {
			return nil, err
		}
		loc := loadZone(tzid)
		e.Start = e.Start.In(loc)
		if end.Valid {
			e.End = end.Time.In(loc)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func dbTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Truncate(time.Second)
}

func zoneName(t time.Time) string {
	if t.Location() == time.UTC {
		return ""
	}
	return t.Location().String()
}

func loadZone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.UTC
}
