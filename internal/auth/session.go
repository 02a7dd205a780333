package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	sessionExpiry = 30 * 24 * time.Hour
	cookieName    = "pf_session"
)

// ErrNoSession is returned when a request carries no valid session.
var ErrNoSession = errors.New("no valid session")

// SessionStore manages login sessions in SQLite.
type SessionStore struct {
	db     *sql.DB
	secure bool
}

// NewSessionStore creates a session store. secure sets the cookie Secure flag.
func NewSessionStore(db *sql.DB, secure bool) *SessionStore {
	return &SessionStore{db: db, secure: secure}
}

// Create starts a session for email and sets the session cookie.
func (s *SessionStore) Create(w http.ResponseWriter, email string) error {
	id, err := randomHex(32)
	if err != nil {
		return fmt.Errorf("generating session ID: %w", err)
	}

	expiresAt := time.Now().Add(sessionExpiry)
	if _, err := s.db.Exec(
		"INSERT INTO sessions (id, email, expires_at) VALUES (?, ?, ?)",
		id, email, expiresAt,
	); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	http.SetCookie(w, s.cookie(id, expiresAt, 0))
	return nil
}

// Validate returns the email of the session on r.
func (s *SessionStore) Validate(r *http.Request) (string, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return "", ErrNoSession
	}

	ctx := r.Context()
	var email string
	var expiresAt time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT email, expires_at FROM sessions WHERE id = ?", cookie.Value,
	).Scan(&email, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("querying session: %w", err)
	}

	if time.Now().After(expiresAt) {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", cookie.Value); err != nil {
			return "", fmt.Errorf("deleting expired session: %w", err)
		}
		return "", fmt.Errorf("session expired: %w", ErrNoSession)
	}

	return email, nil
}

// Destroy ends the session on r and clears the cookie.
func (s *SessionStore) Destroy(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil
	}

	if _, err := s.db.ExecContext(r.Context(), "DELETE FROM sessions WHERE id = ?", cookie.Value); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	http.SetCookie(w, s.cookie("", time.Time{}, -1))
	return nil
}

// Cleanup removes expired sessions.
func (s *SessionStore) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", time.Now()); err != nil {
		return fmt.Errorf("cleaning up sessions: %w", err)
	}
	return nil
}

func (s *SessionStore) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
