package comment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS comments (
		id         BIGSERIAL PRIMARY KEY,
		username   TEXT   NOT NULL,
		email      TEXT   NOT NULL,
		text       TEXT   NOT NULL CHECK (length(text) > 0),
		timestamp  BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_comments_timestamp ON comments (timestamp, id);
`

// PostgresRepository provides comment storage on PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database at dsn and creates the comments table.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating comments table: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Add stores a new comment and returns it with its assigned ID.
func (r *PostgresRepository) Add(ctx context.Context, n NewComment) (*Comment, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO comments (username, email, text, timestamp) VALUES ($1, $2, $3, $4) RETURNING id`,
		strings.TrimSpace(n.Username), strings.TrimSpace(n.Email), n.Text, ts.UnixMilli(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting comment: %w", err)
	}

	return r.Get(ctx, id)
}

// Get returns a single comment by ID.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Comment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, text, timestamp FROM comments WHERE id = $1`, id,
	)
	c, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading comment: %w", err)
	}
	return c, nil
}

// ListPage returns up to limit comments in the given order, starting after cursor.
func (r *PostgresRepository) ListPage(ctx context.Context, order Order, cursor string, limit int) (*Page, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	cmp, dir := "<", "DESC"
	if order == Oldest {
		cmp, dir = ">", "ASC"
	}

	var rows pgx.Rows
	var err error
	if cursor == "" {
		rows, err = r.pool.Query(ctx, fmt.Sprintf(
			`SELECT id, username, email, text, timestamp FROM comments
			ORDER BY timestamp %[1]s, id %[1]s LIMIT $1`, dir), limit)
	} else {
		cur, decodeErr := DecodeCursor(cursor)
		if decodeErr != nil {
			return nil, decodeErr
		}
		rows, err = r.pool.Query(ctx, fmt.Sprintf(
			`SELECT id, username, email, text, timestamp FROM comments
			WHERE (timestamp, id) %[1]s ($1, $2)
			ORDER BY timestamp %[2]s, id %[2]s LIMIT $3`, cmp, dir),
			cur.Timestamp, cur.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

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
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	return nil
}
