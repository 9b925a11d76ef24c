// Package store wraps the night logger's SQLite database: the sampled
// detections in logs and the once-per-night posted-date ledger in posts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentstation/nightsync/pkg/errors"
)

// Store is an open night logger database.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Open opens or creates the database at path and ensures its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	// SQLite allows one writer; a single connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.WrapIO("migrate", path, err)
	}
	return s, nil
}

// OpenReadOnly opens an existing database without write access and without
// touching its schema. A missing file is reported as not found.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("database", path)
		}
		return nil, errors.WrapIO("stat", path, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WrapIO("open", path, err)
	}
	return &Store{db: db, path: path, readOnly: true}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			logged_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			is_night INTEGER NOT NULL CHECK(is_night IN (0,1))
		);`,
		`CREATE TABLE IF NOT EXISTS posts (
			ymd TEXT PRIMARY KEY,
			posted_at_utc TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordSample appends one sampler observation taken at t.
func (s *Store) RecordSample(ctx context.Context, t time.Time, night bool) error {
	if s.readOnly {
		return errors.NewIOError("write", s.path, errors.New("database is read-only"))
	}
	flag := 0
	if night {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (logged_at, is_night) VALUES (?, ?)`,
		formatTimestamp(t), flag)
	if err != nil {
		return errors.WrapIO("insert", s.path, err)
	}
	return nil
}

// timestampLayouts are the logged_at forms the sampler has written over
// time, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// parseTimestamp parses a logged_at value. Values without a zone are UTC.
func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}
