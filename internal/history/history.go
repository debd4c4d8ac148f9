// Package history persists a per-process Recheck history to a SQLite
// database, the way the teacher's filecache dumps cache state: here
// repurposed as a queryable diagnostics log the RageRequest collector
// reads from, not as cross-restart persistence (spec §1 Non-goals rule
// that out — this file is expected to be recreated per process, typically
// in a temp directory).
package history

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS recheck_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	occurred_at INTEGER NOT NULL,
	checked_count INTEGER NOT NULL,
	error_count INTEGER NOT NULL,
	heap_bytes INTEGER NOT NULL
);
`

// History is a SQLite-backed log of Recheck outcomes for one server
// process.
type History struct {
	db *sql.DB
}

// Open creates (or reopens) the SQLite database at path and ensures its
// schema exists, the way Filecache.NewFilecache enables WAL mode and
// executes an embedded schema before returning.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &History{db: db}, nil
}

// Close releases the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}

// RecordRecheck appends one row describing a completed Recheck.
func (h *History) RecordRecheck(checkedCount, errorCount int, heapBytes int64) error {
	_, err := h.db.Exec(
		`INSERT INTO recheck_events (occurred_at, checked_count, error_count, heap_bytes) VALUES (?, ?, ?, ?)`,
		time.Now().Unix(), checkedCount, errorCount, heapBytes,
	)
	return err
}

// Event is one row of recorded Recheck history.
type Event struct {
	OccurredAt   time.Time
	CheckedCount int
	ErrorCount   int
	HeapBytes    int64
}

// Recent returns the last n recorded Recheck events, most recent first —
// the data RageRequest's log-excerpt collector folds into its bundle.
func (h *History) Recent(n int) ([]Event, error) {
	rows, err := h.db.Query(
		`SELECT occurred_at, checked_count, error_count, heap_bytes FROM recheck_events ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var unixSec int64
		var e Event
		if err := rows.Scan(&unixSec, &e.CheckedCount, &e.ErrorCount, &e.HeapBytes); err != nil {
			return nil, err
		}
		e.OccurredAt = time.Unix(unixSec, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}
