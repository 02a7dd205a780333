// Package db opens the SQLite database that holds comments, users and login
// state, and keeps its schema current.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath returns the default database path: ~/.config/pf/comments.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pf", "comments.db"), nil
}

// Open opens (or creates) the database at path and applies any pending
// migrations. Every pooled connection runs in WAL mode with foreign keys on.
func Open(path string) (d *sql.DB, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	d, err = sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, d.Close())
			d = nil
		}
	}()

	if err := d.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	if err := migrate(d); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return d, nil
}

// dsn adds the connection parameters the go-sqlite3 driver applies to each
// new connection.
func dsn(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + params.Encode()
}
