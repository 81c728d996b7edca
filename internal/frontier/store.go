// Package frontier owns the durable, deduplicated URL queue every
// worker pulls from: a persistent SQLite-backed table of discovered
// URLs, a bloom filter for cheap dedup pre-checks, and a pull-based
// pending queue guarded by a mutex/condvar monitor.
package frontier

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// row mirrors one record of the urls table.
type row struct {
	URLHash   string
	URL       string
	Completed bool
}

// store wraps the persistent urls table.
type store struct {
	db *sql.DB
}

func openStore(path string, restart bool) (*store, error) {
	if restart {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(path + suffix)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening frontier store: %w", err)
	}
	// Single-writer discipline: the frontier's own mutex serializes all
	// access, so the driver never needs to arbitrate concurrent writers.
	db.SetMaxOpenConns(1)

	// Journal and sync settings are best-effort: if the database rejects
	// them, the store runs with SQLite's defaults.
	_, _ = db.Exec("PRAGMA journal_mode=WAL;")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL;")
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS urls (
		urlhash TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		completed INTEGER NOT NULL
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating urls table: %w", err)
	}

	return &store{db: db}, nil
}

func (s *store) insertIfAbsent(urlHash, url string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO urls(urlhash, url, completed) VALUES(?, ?, 0);`, urlHash, url)
	return err
}

func (s *store) markCompleted(urlHash string) error {
	_, err := s.db.Exec(`UPDATE urls SET completed = 1 WHERE urlhash = ?;`, urlHash)
	return err
}

func (s *store) loadAll() ([]row, error) {
	rows, err := s.db.Query(`SELECT urlhash, url, completed FROM urls;`)
	if err != nil {
		return nil, fmt.Errorf("reading urls table: %w", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		var completed int
		if err := rows.Scan(&r.URLHash, &r.URL, &completed); err != nil {
			return nil, fmt.Errorf("scanning urls row: %w", err)
		}
		r.Completed = completed != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *store) close() error {
	return s.db.Close()
}
