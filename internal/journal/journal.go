// Package journal is the SQLite audit log of intercept attempts. It is
// write-only from the control loop's point of view: nothing here feeds
// back into tracking.
package journal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Journal wraps the attempts database.
type Journal struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the journal at path and applies pending
// migrations.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	// The debug SQL console reads while the loop writes.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	j := &Journal{DB: db, path: path}
	if err := j.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Path is the file the journal was opened from.
func (j *Journal) Path() string {
	return j.path
}
