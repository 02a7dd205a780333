package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "creates new database",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "comments.db")
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "a", "b", "comments.db")
			},
		},
		{
			name: "opens existing database",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "comments.db")
				d, err := Open(path)
				if err != nil {
					t.Fatalf("setup: %v", err)
				}
				if err := d.Close(); err != nil {
					t.Fatalf("setup close: %v", err)
				}
				return path
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			d, err := Open(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer func() {
				if err := d.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			}()

			if _, err := os.Stat(path); os.IsNotExist(err) {
				t.Error("database file was not created")
			}
		})
	}
}

func TestWALMode(t *testing.T) {
	d := openTestDB(t)

	var mode string
	if err := d.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	d := openTestDB(t)
	d.SetMaxIdleConns(4)

	// Hold several connections at once so the pool has to open new ones.
	ctx := context.Background()
	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		c, err := d.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		conns = append(conns, c)
	}
	for i, c := range conns {
		var fk int
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("query foreign_keys: %v", err)
		}
		if fk != 1 {
			t.Errorf("conn %d foreign_keys = %d, want 1", i, fk)
		}
		if err := c.Close(); err != nil {
			t.Errorf("close conn: %v", err)
		}
	}
}

func TestSchemaVersion(t *testing.T) {
	d := openTestDB(t)

	var version int
	if err := d.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != SchemaVersion() {
		t.Errorf("user_version = %d, want %d", version, SchemaVersion())
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comments.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := d.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion()+1)); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("expected error for a database from a newer build")
	}
}

func TestMigrations(t *testing.T) {
	tests := []struct {
		name  string
		table string
		cols  []string
	}{
		{
			name:  "comments table exists",
			table: "comments",
			cols:  []string{"id", "username", "email", "text", "timestamp", "created_at"},
		},
		{
			name:  "users table exists",
			table: "users",
			cols:  []string{"id", "email", "username", "created_at"},
		},
		{
			name:  "auth_tokens table exists",
			table: "auth_tokens",
			cols:  []string{"id", "token", "email", "expires_at", "used", "created_at"},
		},
		{
			name:  "sessions table exists",
			table: "sessions",
			cols:  []string{"id", "email", "expires_at", "created_at"},
		},
		{
			name:  "passkey_credentials table exists",
			table: "passkey_credentials",
			cols:  []string{"id", "email", "name", "credential_json", "created_at"},
		},
		{
			name:  "api_keys table exists",
			table: "api_keys",
			cols:  []string{"id", "name", "email", "key_prefix", "key_hash", "created_at", "last_used_at"},
		},
	}

	d := openTestDB(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := tableColumns(t, d, tt.table)
			if len(cols) != len(tt.cols) {
				t.Fatalf("got %d columns, want %d: %v", len(cols), len(tt.cols), cols)
			}
			for i, want := range tt.cols {
				if cols[i] != want {
					t.Errorf("column %d = %q, want %q", i, cols[i], want)
				}
			}
		})
	}
}

func TestCommentTextConstraint(t *testing.T) {
	d := openTestDB(t)

	insert := `INSERT INTO comments (username, email, text, timestamp) VALUES (?, ?, ?, ?)`

	tests := []struct {
		name    string
		text    interface{}
		wantErr bool
	}{
		{"text is valid", "hello", false},
		{"empty text is invalid", "", true},
		{"null text is invalid", nil, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Exec(insert, "ada", "ada@example.com", tt.text, int64(1000+i))
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestUsernameUnique(t *testing.T) {
	d := openTestDB(t)

	if _, err := d.Exec(`INSERT INTO users (email, username) VALUES (?, ?)`, "a@example.com", "ada"); err != nil {
		t.Fatalf("insert first user: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO users (email, username) VALUES (?, ?)`, "b@example.com", "ada"); err == nil {
		t.Error("expected unique violation for duplicate username")
	}

	// Users without a username do not collide with each other.
	for _, email := range []string{"c@example.com", "d@example.com"} {
		if _, err := d.Exec(`INSERT INTO users (email) VALUES (?)`, email); err != nil {
			t.Fatalf("insert %s: %v", email, err)
		}
	}
}

func TestCascadeDeleteUser(t *testing.T) {
	d := openTestDB(t)

	if _, err := d.Exec(`INSERT INTO users (email) VALUES (?)`, "a@example.com"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, err := d.Exec(
			`INSERT INTO passkey_credentials (id, email, credential_json) VALUES (?, ?, ?)`,
			fmt.Sprintf("cred-%d", i), "a@example.com", "{}",
		)
		if err != nil {
			t.Fatalf("insert credential %d: %v", i, err)
		}
	}

	if _, err := d.Exec(`DELETE FROM users WHERE email = ?`, "a@example.com"); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	var count int
	if err := d.QueryRow(`SELECT COUNT(*) FROM passkey_credentials`).Scan(&count); err != nil {
		t.Fatalf("count credentials: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 credentials after cascade delete, got %d", count)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comments.db")

	// Reopening runs no migrations twice.
	d1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := d1.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	d2, err := Open(path)
	if err != nil {
		t.Fatalf("second open (idempotency): %v", err)
	}
	if err := d2.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	p, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Base(p) != "comments.db" {
		t.Errorf("expected filename comments.db, got %s", filepath.Base(p))
	}

	dir := filepath.Base(filepath.Dir(p))
	if dir != "pf" {
		t.Errorf("expected directory pf, got %s", dir)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "comments.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close test db: %v", err)
		}
	})
	return d
}

// tableColumns returns column names for a table using PRAGMA table_info.
func tableColumns(t *testing.T, d *sql.DB, table string) []string {
	t.Helper()
	rows, err := d.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		t.Fatalf("pragma table_info(%s): %v", table, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			t.Errorf("close rows: %v", err)
		}
	}()

	var cols []string
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull int
		var dflt *string
		var pk int
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}
