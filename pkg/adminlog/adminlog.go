// Package adminlog records administrative actions in a SQLite database so
// they survive restarts and can be audited from the web API.
package adminlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Impact is the severity of an admin action.
type Impact int

const (
	ImpactNone Impact = iota
	ImpactLow
	ImpactMedium
	ImpactHigh
	ImpactExtreme
)

func (i Impact) String() string {
	switch i {
	case ImpactLow:
		return "low"
	case ImpactMedium:
		return "medium"
	case ImpactHigh:
		return "high"
	case ImpactExtreme:
		return "extreme"
	default:
		return "none"
	}
}

// ParseImpact maps a name back to an Impact. Unknown names yield ImpactNone.
func ParseImpact(s string) Impact {
	switch strings.ToLower(s) {
	case "low":
		return ImpactLow
	case "medium":
		return ImpactMedium
	case "high":
		return ImpactHigh
	case "extreme":
		return ImpactExtreme
	default:
		return ImpactNone
	}
}

// Log types.
const (
	TypeVerb    = "verb"
	TypeSandbox = "sandbox"
	TypeConsole = "console"
	TypeRole    = "role"
)

// Entry is one admin log row.
type Entry struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"time"`
	Type    string    `json:"type"`
	Impact  Impact    `json:"impact"`
	User    string    `json:"user"`
	Message string    `json:"message"`
}

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	MinImpact Impact
	User      string
	Type      string
	Limit     int
}

const schema = `CREATE TABLE IF NOT EXISTS admin_log (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	time    INTEGER NOT NULL,
	type    TEXT NOT NULL,
	impact  INTEGER NOT NULL,
	user    TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS admin_log_user ON admin_log(user);`

// DefaultLimit caps Query when the filter sets no limit.
const DefaultLimit = 100

// Store is the SQLite-backed admin log.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration

	// OnWrite, if set, runs after every successful Add.
	OnWrite func(Entry)
}

// Open opens a SQLite admin log, sets WAL mode and busy timeout, and
// creates the table if needed.
func Open(path string, timeoutSec int) (*Store, error) {
	if timeoutSec <= 0 {
		timeoutSec = 5
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("adminlog: open %s: %w", path, err)
	}
	// Set WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("adminlog: setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("adminlog: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("adminlog: create schema: %w", err)
	}
	return &Store{
		db:      db,
		path:    path,
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Path returns the filesystem path of the SQLite database.
func (s *Store) Path() string { return s.path }

// Add appends an entry. A zero Time is stamped with the current time.
func (s *Store) Add(e Entry) (Entry, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.mu.Lock()
	if s.db == nil {
		s.mu.Unlock()
		return e, fmt.Errorf("adminlog: store closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO admin_log (time, type, impact, user, message) VALUES (?, ?, ?, ?, ?)",
		e.Time.UnixNano(), e.Type, int(e.Impact), e.User, e.Message)
	cancel()
	s.mu.Unlock()
	if err != nil {
		return e, fmt.Errorf("adminlog: insert: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	if s.OnWrite != nil {
		s.OnWrite(e)
	}
	return e, nil
}

// Query returns matching entries, newest first.
func (s *Store) Query(f Filter) ([]Entry, error) {
	var where []string
	var args []any
	if f.MinImpact > ImpactNone {
		where = append(where, "impact >= ?")
		args = append(args, int(f.MinImpact))
	}
	if f.User != "" {
		where = append(where, "user = ? COLLATE NOCASE")
		args = append(args, f.User)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := "SELECT id, time, type, impact, user, message FROM admin_log"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("adminlog: store closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("adminlog: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var impact int
		if err := rows.Scan(&e.ID, &ts, &e.Type, &impact, &e.User, &e.Message); err != nil {
			return nil, fmt.Errorf("adminlog: scan: %w", err)
		}
		e.Time = time.Unix(0, ts)
		e.Impact = Impact(impact)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Checkpoint forces a WAL checkpoint to flush all writes to the main database file.
func (s *Store) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("adminlog: store closed")
	}
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}
