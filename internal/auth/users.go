package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxUsernameLength is the longest username accepted, in characters.
const MaxUsernameLength = 32

var (
	// ErrUsernameTaken is returned when another user already holds a username.
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrInvalidUsername is returned for usernames that fail validation.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrUserNotFound is returned when no user has the given email.
	ErrUserNotFound = errors.New("user not found")
)

// User is someone who has logged in at least once.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"` // empty until chosen
	CreatedAt time.Time `json:"created_at"`
}

// UserStore manages users and their usernames in SQLite.
type UserStore struct {
	db         *sql.DB
	adminEmail string
}

// NewUserStore creates a user store. adminEmail may delete any comment.
func NewUserStore(db *sql.DB, adminEmail string) *UserStore {
	return &UserStore{db: db, adminEmail: normalizeEmail(adminEmail)}
}

// IsAdmin reports whether email belongs to the site admin.
func (s *UserStore) IsAdmin(email string) bool {
	return s.adminEmail != "" && normalizeEmail(email) == s.adminEmail
}

// Ensure returns the user for email, creating the record on first login.
func (s *UserStore) Ensure(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO users (email) VALUES (?)", email); err != nil {
		return nil, fmt.Errorf("adding user: %w", err)
	}
	return s.Get(ctx, email)
}

// Get returns the user for email.
func (s *UserStore) Get(ctx context.Context, email string) (*User, error) {
	var u User
	var username sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, username, created_at FROM users WHERE email = ?", normalizeEmail(email),
	).Scan(&u.ID, &u.Email, &username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u.Username = username.String
	return &u, nil
}

// Username returns the username chosen by email, or "" if none.
func (s *UserStore) Username(ctx context.Context, email string) (string, error) {
	u, err := s.Get(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// SetUsername gives email the username name. Setting a name the user
// already holds succeeds; a name held by someone else is ErrUsernameTaken.
// The user's previous username is released.
func (s *UserStore) SetUsername(ctx context.Context, email, name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateUsername(name); err != nil {
		return err
	}
	email = normalizeEmail(email)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var holder string
	err = tx.QueryRowContext(ctx, "SELECT email FROM users WHERE username = ?", name).Scan(&holder)
	switch {
	case err == nil && holder != email:
		return ErrUsernameTaken
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("checking username: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO users (email) VALUES (?)", email); err != nil {
		return fmt.Errorf("adding user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET username = ? WHERE email = ?", name, email); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrUsernameTaken
		}
		return fmt.Errorf("setting username: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing username: %w", err)
	}
	return nil
}

// AllEmails returns the email of every user, plus the admin.
// Passkey login uses it to resolve a credential's owner.
func (s *UserStore) AllEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT email FROM users ORDER BY email")
	if err != nil {
		return nil, fmt.Errorf("listing emails: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "error", cerr)
		}
	}()

	var emails []string
	if s.adminEmail != "" {
		emails = append(emails, s.adminEmail)
	}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scanning email: %w", err)
		}
		if email != s.adminEmail {
			emails = append(emails, email)
		}
	}

	return emails, rows.Err()
}

// ValidateUsername checks that name is 1 to MaxUsernameLength printable
// characters without whitespace.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUsername)
	}
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return fmt.Errorf("%w: username must be at most %d characters", ErrInvalidUsername, MaxUsernameLength)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: username must not contain spaces or control characters", ErrInvalidUsername)
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
