package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/webauthn"
)

// ErrUnknownPasskey is returned when a passkey's user handle matches no user.
var ErrUnknownPasskey = errors.New("unknown passkey user")

// PasskeyUser adapts a commenter's email to webauthn.User.
type PasskeyUser struct {
	email       string
	credentials []webauthn.Credential
}

// NewPasskeyUser creates a PasskeyUser for the given email.
func NewPasskeyUser(email string, credentials []webauthn.Credential) *PasskeyUser {
	return &PasskeyUser{email: email, credentials: credentials}
}

// Email returns the user's email.
func (u *PasskeyUser) Email() string { return u.email }

// WebAuthnID returns a stable user handle derived from the email.
func (u *PasskeyUser) WebAuthnID() []byte {
	h := sha256.Sum256([]byte(u.email))
	return h[:]
}

// WebAuthnName returns the email.
func (u *PasskeyUser) WebAuthnName() string { return u.email }

// WebAuthnDisplayName returns the email.
func (u *PasskeyUser) WebAuthnDisplayName() string { return u.email }

// WebAuthnCredentials returns the stored credentials.
func (u *PasskeyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// StoredCredential is a passkey credential with metadata.
type StoredCredential struct {
	ID         string
	Email      string
	Name       string
	Credential webauthn.Credential
}

// PasskeyStore manages passkey credentials in SQLite.
type PasskeyStore struct {
	db *sql.DB
}

// NewPasskeyStore creates a passkey store.
func NewPasskeyStore(db *sql.DB) *PasskeyStore {
	return &PasskeyStore{db: db}
}

// Save stores a new credential for email. The user record must exist.
func (s *PasskeyStore) Save(ctx context.Context, email, name string, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO passkey_credentials (id, email, name, credential_json) VALUES (?, ?, ?, ?)",
		fmt.Sprintf("%x", cred.ID), email, name, string(data),
	); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	return nil
}

// ListByEmail returns all credentials of email.
func (s *PasskeyStore) ListByEmail(ctx context.Context, email string) ([]StoredCredential, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, email, name, credential_json FROM passkey_credentials WHERE email = ? ORDER BY created_at",
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "error", cerr)
		}
	}()

	var result []StoredCredential
	for rows.Next() {
		var sc StoredCredential
		var data string
		if err := rows.Scan(&sc.ID, &sc.Email, &sc.Name, &data); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &sc.Credential); err != nil {
			return nil, fmt.Errorf("unmarshaling credential: %w", err)
		}
		result = append(result, sc)
	}

	return result, rows.Err()
}

// User loads email's credentials into a PasskeyUser.
func (s *PasskeyStore) User(ctx context.Context, email string) (*PasskeyUser, error) {
	stored, err := s.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	creds := make([]webauthn.Credential, len(stored))
	for i, sc := range stored {
		creds[i] = sc.Credential
	}
	return NewPasskeyUser(email, creds), nil
}

// FindUser resolves a discoverable login's user handle against the given
// emails.
func (s *PasskeyStore) FindUser(ctx context.Context, emails []string, handle []byte) (*PasskeyUser, error) {
	for _, email := range emails {
		if bytes.Equal(NewPasskeyUser(email, nil).WebAuthnID(), handle) {
			return s.User(ctx, email)
		}
	}
	return nil, ErrUnknownPasskey
}

// Delete removes a credential owned by email.
func (s *PasskeyStore) Delete(ctx context.Context, id, email string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM passkey_credentials WHERE id = ? AND email = ?", id, email,
	)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("credential not found")
	}
	return nil
}
