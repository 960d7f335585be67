// Package store owns the durable attendance state: registered users,
// attendance events with once-per-day deduplication, and the optional
// best-effort mirror to a remote service. The local SQLite database is
// always the source of truth.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/facegate/facegate/internal/config"
)

// ErrDuplicateEmployee is returned when a registration reuses an
// existing employee identifier.
var ErrDuplicateEmployee = errors.New("employee id already exists")

// LogStatus is the outcome of an attendance log attempt. Both values
// are normal results, not errors.
type LogStatus int

const (
	StatusLogged LogStatus = iota
	StatusAlreadyLogged
)

// timeLayout is the wall-clock format persisted for events, second
// precision in the local timezone.
const timeLayout = "2006-01-02 15:04:05"

// dayLayout is the local calendar date used as the dedup window key.
const dayLayout = "2006-01-02"

// User is a registered identity. The id doubles as the classifier
// label for this person and is never reassigned or reused.
type User struct {
	ID         int64
	Name       string
	EmployeeID string
	CreatedAt  time.Time
}

// Event is a single attendance record, immutable once created.
type Event struct {
	ID        int64
	UserID    int64
	Name      string // display name snapshot at logging time
	Timestamp time.Time
	Synced    bool
}

// Stats summarizes the store for dashboard display.
type Stats struct {
	TotalUsers       int
	TodaysAttendance int
}

// EventMirror replicates events to a remote store. Push is called in a
// fire-and-forget goroutine; its result never affects the local write.
type EventMirror interface {
	Push(evt Event) error
}

// Store is the SQLite-backed identity store.
type Store struct {
	db     *sql.DB
	mirror EventMirror
	pushes sync.WaitGroup   // in-flight mirror goroutines
	now    func() time.Time // test hook, defaults to time.Now
}

// Open creates or opens the database file and applies the schema.
func Open(cfg config.StoreConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		employee_id TEXT UNIQUE NOT NULL,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id   INTEGER NOT NULL REFERENCES users(id),
		name      TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		day       TEXT NOT NULL,
		synced    BOOLEAN NOT NULL DEFAULT 0
	);

	-- The dedup invariant lives in the storage layer: at most one
	-- event per user per local calendar day, race-free regardless of
	-- how many recognitions fire concurrently.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_user_day ON attendance(user_id, day);
	CREATE INDEX IF NOT EXISTS idx_attendance_time ON attendance(timestamp);
	`
	_, err := db.Exec(schema)
	return err
}

// SetMirror attaches an optional remote mirror for attendance events.
func (s *Store) SetMirror(m EventMirror) {
	s.mirror = m
}

// Close waits for in-flight mirror pushes and closes the database, so
// a push confirmed mid-shutdown still gets its synced flag written.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.pushes.Wait()
	return s.db.Close()
}

// CreateUser registers a new identity and returns its freshly assigned
// id, which becomes the classifier label for that person. A reused
// employee id is rejected with ErrDuplicateEmployee before any write.
func (s *Store) CreateUser(ctx context.Context, name, employeeID string) (int64, error) {
	createdAt := s.now().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, employee_id, created_at) VALUES (?, ?, ?)`,
		name, employeeID, createdAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, ErrDuplicateEmployee
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}
	return id, nil
}

// DeleteUser removes a user row. Only used to roll back an identity
// whose enrollment failed after the row was created; enrolled users
// are never deleted in normal operation.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// UserName resolves a user's display name.
func (s *Store) UserName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, id).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("lookup user %d: %w", id, err)
	}
	return name, nil
}

// UserCount returns the number of registered users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// LogAttendance records that the user was seen today. The first call
// per local calendar day inserts an event and returns StatusLogged;
// subsequent calls are no-ops returning StatusAlreadyLogged. The
// unique (user_id, day) index makes the check-and-insert atomic, so
// concurrent recognitions of the same person produce exactly one row.
func (s *Store) LogAttendance(ctx context.Context, userID int64, name string) (LogStatus, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO attendance (user_id, name, timestamp, day) VALUES (?, ?, ?, ?)`,
		userID, name, now.Format(timeLayout), now.Format(dayLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attendance: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("attendance rows affected: %w", err)
	}
	if inserted == 0 {
		return StatusAlreadyLogged, nil
	}

	if s.mirror != nil {
		id, err := res.LastInsertId()
		if err == nil {
			evt := Event{ID: id, UserID: userID, Name: name, Timestamp: now}
			// Best effort, one attempt, never blocks or rolls back
			// the local commit.
			s.pushes.Add(1)
			go func() {
				defer s.pushes.Done()
				s.pushToMirror(evt)
			}()
		}
	}
	return StatusLogged, nil
}

// pushToMirror replicates one event and flips its synced flag on
// confirmed success. Failures are logged and never retried; the local
// row simply stays unsynced.
func (s *Store) pushToMirror(evt Event) {
	if err := s.mirror.Push(evt); err != nil {
		log.Printf("remote mirror push failed for event %d: %v", evt.ID, err)
		return
	}
	if _, err := s.db.Exec(`UPDATE attendance SET synced = 1 WHERE id = ?`, evt.ID); err != nil {
		log.Printf("failed to mark event %d synced: %v", evt.ID, err)
	}
}

// GetStats reports user and today's attendance totals.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers); err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	today := s.now().Format(dayLayout)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE day = ?`, today,
	).Scan(&stats.TodaysAttendance)
	if err != nil {
		return Stats{}, fmt.Errorf("count today's attendance: %w", err)
	}
	return stats, nil
}

// GetRecentEvents returns the newest attendance events, most recent
// first.
func (s *Store) GetRecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, timestamp, synced
		 FROM attendance
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var evt Event
		var ts string
		if err := rows.Scan(&evt.ID, &evt.UserID, &evt.Name, &ts, &evt.Synced); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp, err = time.ParseInLocation(timeLayout, ts, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", ts, err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}
