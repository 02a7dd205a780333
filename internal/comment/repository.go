package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Repository provides comment storage on SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a comment repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Add stores a new comment and returns it with its assigned ID.
func (r *Repository) Add(ctx context.Context, n NewComment) (*Comment, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO comments (username, email, text, timestamp) VALUES (?, ?, ?, ?)",
		strings.TrimSpace(n.Username), strings.TrimSpace(n.Email), n.Text, ts.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	return r.Get(ctx, id)
}

// Get returns a single comment by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Comment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, text, timestamp FROM comments WHERE id = ?", id,
	)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading comment: %w", err)
	}
	return c, nil
}

// ListPage returns up to limit comments in the given order, starting after cursor.
// An empty cursor starts from the beginning.
func (r *Repository) ListPage(ctx context.Context, order Order, cursor string, limit int) (*Page, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	cmp, dir := "<", "DESC"
	if order == Oldest {
		cmp, dir = ">", "ASC"
	}

	query := "SELECT id, username, email, text, timestamp FROM comments"
	args := []interface{}{}
	if cursor != "" {
		cur, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(" WHERE (timestamp %[1]s ? OR (timestamp = ? AND id %[1]s ?))", cmp)
		args = append(args, cur.Timestamp, cur.Timestamp, cur.ID)
	}
	query += fmt.Sprintf(" ORDER BY timestamp %[1]s, id %[1]s LIMIT ?", dir)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer closeRows(rows)

	comments := []*Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}

	return pageFrom(comments, cursor), nil
}

// Delete removes a comment by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComment(row rowScanner) (*Comment, error) {
	var c Comment
	var ms int64
	if err := row.Scan(&c.ID, &c.Username, &c.Email, &c.Text, &ms); err != nil {
		return nil, err
	}
	c.Timestamp = time.UnixMilli(ms)
	return &c, nil
}

func closeRows(rows io.Closer) {
	if err := rows.Close(); err != nil {
		slog.Warn("closing rows", "error", err)
	}
}
