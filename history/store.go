// Package history keeps a local log of session and tunnel transitions.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/yllada/ncconnect/common"
)

// Kind classifies a history entry.
type Kind string

const (
	KindSessionStarted Kind = "session_started"
	KindSessionEnded   Kind = "session_ended"
	KindTunnelUp       Kind = "tunnel_up"
	KindTunnelDown     Kind = "tunnel_down"
)

// Entry is one recorded transition.
type Entry struct {
	ID     int64
	At     time.Time
	Kind   Kind
	Detail string
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	at     INTEGER NOT NULL,
	kind   TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_at ON events(at);
`

// Store is a sqlite-backed history log.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the history database location in the data directory.
func DefaultPath() (string, error) {
	dir, err := common.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.HistoryFileName), nil
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "creating history directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating history schema")
	}
	return &Store{db: db}, nil
}

// Record appends an entry stamped with the current time.
func (s *Store) Record(ctx context.Context, kind Kind, detail string) error {
	return s.RecordAt(ctx, time.Now(), kind, detail)
}

// RecordAt appends an entry with an explicit timestamp.
func (s *Store) RecordAt(ctx context.Context, at time.Time, kind Kind, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (at, kind, detail) VALUES (?, ?, ?)`,
		at.UnixNano(), string(kind), detail)
	return errors.Wrap(err, "recording history entry")
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, kind, detail FROM events ORDER BY at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			at   int64
			kind string
		)
		if err := rows.Scan(&e.ID, &at, &kind, &e.Detail); err != nil {
			return nil, errors.Wrap(err, "scanning history row")
		}
		e.At = time.Unix(0, at)
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "reading history")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
