package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tokenExpiry = 15 * time.Minute

// ErrInvalidToken is returned for unknown, used or expired login tokens.
var ErrInvalidToken = errors.New("invalid or expired login link")

// TokenStore manages single-use magic link tokens in SQLite.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Create issues a token for email and returns it.
func (s *TokenStore) Create(ctx context.Context, email string) (string, error) {
	token, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO auth_tokens (token, email, expires_at) VALUES (?, ?, ?)",
		token, email, time.Now().Add(tokenExpiry),
	); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

// Redeem consumes a token and returns its email. A token works once.
func (s *TokenStore) Redeem(ctx context.Context, token string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var email string
	var used int
	var expiresAt time.Time
	err = tx.QueryRowContext(ctx,
		"SELECT email, used, expires_at FROM auth_tokens WHERE token = ?", token,
	).Scan(&email, &used, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("querying token: %w", err)
	}

	if used != 0 {
		return "", fmt.Errorf("token already used: %w", ErrInvalidToken)
	}
	if time.Now().After(expiresAt) {
		return "", fmt.Errorf("token expired: %w", ErrInvalidToken)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE auth_tokens SET used = 1 WHERE token = ?", token); err != nil {
		return "", fmt.Errorf("marking token used: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing token: %w", err)
	}

	return email, nil
}

// Cleanup removes expired tokens.
func (s *TokenStore) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE expires_at < ?", time.Now()); err != nil {
		return fmt.Errorf("cleaning up tokens: %w", err)
	}
	return nil
}
