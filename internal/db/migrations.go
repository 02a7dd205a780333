package db

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order. The schema version stored in
// PRAGMA user_version counts how many have run; append, never edit.
var migrations = []string{
	`CREATE TABLE comments (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		username   TEXT    NOT NULL,
		email      TEXT    NOT NULL,
		text       TEXT    NOT NULL CHECK (length(text) > 0),
		timestamp  INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX idx_comments_timestamp ON comments (timestamp, id)`,

	`CREATE TABLE users (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		email      TEXT    NOT NULL UNIQUE,
		username   TEXT    UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE auth_tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		token      TEXT     NOT NULL UNIQUE,
		email      TEXT     NOT NULL,
		expires_at DATETIME NOT NULL,
		used       INTEGER  DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE sessions (
		id         TEXT     PRIMARY KEY,
		email      TEXT     NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE passkey_credentials (
		id              TEXT    PRIMARY KEY,
		email           TEXT    NOT NULL REFERENCES users(email) ON DELETE CASCADE,
		name            TEXT    NOT NULL DEFAULT '',
		credential_json TEXT    NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE api_keys (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		name         TEXT     NOT NULL,
		email        TEXT     NOT NULL,
		key_prefix   TEXT     NOT NULL,
		key_hash     TEXT     NOT NULL UNIQUE,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME
	);
	CREATE INDEX idx_api_keys_email ON api_keys (email)`,
}

// SchemaVersion is the number of migrations this build knows about.
func SchemaVersion() int {
	return len(migrations)
}

// migrate applies the migrations the database has not seen yet, each in its
// own transaction together with the version bump.
func migrate(d *sql.DB) error {
	var version int
	if err := d.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if err := apply(d, i); err != nil {
			return err
		}
	}
	return nil
}

func apply(d *sql.DB, i int) (err error) {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", i+1, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.Exec(migrations[i]); err != nil {
		return fmt.Errorf("migration %d: %w", i+1, err)
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
		return fmt.Errorf("migration %d: setting version: %w", i+1, err)
	}
	return tx.Commit()
}
