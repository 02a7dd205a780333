package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// APIKeyPrefix starts every raw API key.
const APIKeyPrefix = "pf_"

// ErrKeyNotFound is returned when deleting a key the caller does not own.
var ErrKeyNotFound = errors.New("api key not found")

// APIKey is the stored representation of an API key. The raw key is never stored.
type APIKey struct {
	ID         int64
	Name       string
	Email      string
	KeyPrefix  string // first 8 chars, for display
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// APIKeyStore manages API keys in SQLite.
type APIKeyStore struct {
	db *sql.DB
}

// NewAPIKeyStore creates an API key store.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Create issues a key for email. The raw key is returned once and only its
// hash is kept.
func (s *APIKeyStore) Create(ctx context.Context, name, email string) (string, *APIKey, error) {
	secret, err := randomHex(32)
	if err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}
	raw := APIKeyPrefix + secret
	prefix := raw[:8]

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO api_keys (name, email, key_prefix, key_hash) VALUES (?, ?, ?, ?)",
		name, email, prefix, hashAPIKey(raw),
	)
	if err != nil {
		return "", nil, fmt.Errorf("storing key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("getting key id: %w", err)
	}

	return raw, &APIKey{ID: id, Name: name, Email: email, KeyPrefix: prefix, CreatedAt: time.Now()}, nil
}

// List returns the keys owned by email, newest first.
func (s *APIKeyStore) List(ctx context.Context, email string) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, key_prefix, created_at, last_used_at
		FROM api_keys WHERE email = ? ORDER BY created_at DESC, id DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "error", cerr)
		}
	}()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.Email, &k.KeyPrefix, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// Delete removes a key owned by email.
func (s *APIKeyStore) Delete(ctx context.Context, id int64, email string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ? AND email = ?", id, email)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Validate looks up a raw key and returns the owner's email, or "" when the
// key is unknown. A hit records the time of use.
func (s *APIKeyStore) Validate(ctx context.Context, rawKey string) (string, error) {
	hash := hashAPIKey(rawKey)

	var email string
	err := s.db.QueryRowContext(ctx, "SELECT email FROM api_keys WHERE key_hash = ?", hash).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("validating key: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used_at = ? WHERE key_hash = ?", time.Now(), hash,
	); err != nil {
		return "", fmt.Errorf("recording key use: %w", err)
	}

	return email, nil
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
