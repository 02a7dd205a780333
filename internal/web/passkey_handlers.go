package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/evcraddock/portfolio/internal/auth"
)

const (
	loginCeremonyCookie = "pf_passkey_login"
	ceremonyTTL         = 5 * time.Minute
)

type ceremony struct {
	data    *webauthn.SessionData
	expires time.Time
}

// passkeyHandlers holds WebAuthn-related HTTP handlers.
type passkeyHandlers struct {
	wan      *webauthn.WebAuthn
	passkeys *auth.PasskeyStore
	sessions *auth.SessionStore
	users    *auth.UserStore
	secure   bool

	// In-flight ceremonies. Registrations are keyed by email, logins by
	// the id in the loginCeremonyCookie.
	mu     sync.Mutex
	reg    map[string]ceremony
	logins map[string]ceremony
}

func newPasskeyHandlers(cfg auth.Config, passkeys *auth.PasskeyStore, sessions *auth.SessionStore, users *auth.UserStore) (*passkeyHandlers, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	wan, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "Portfolio",
		RPID:          parsed.Hostname(),
		RPOrigins:     []string{cfg.BaseURL},
	})
	if err != nil {
		return nil, err
	}

	return &passkeyHandlers{
		wan:      wan,
		passkeys: passkeys,
		sessions: sessions,
		users:    users,
		secure:   cfg.SecureCookies(),
		reg:      make(map[string]ceremony),
		logins:   make(map[string]ceremony),
	}, nil
}

// put stores a ceremony and drops expired ones.
func (h *passkeyHandlers) put(m map[string]ceremony, key string, data *webauthn.SessionData) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for k, c := range m {
		if now.After(c.expires) {
			delete(m, k)
		}
	}
	m[key] = ceremony{data: data, expires: now.Add(ceremonyTTL)}
}

// take removes and returns a live ceremony.
func (h *passkeyHandlers) take(m map[string]ceremony, key string) (*webauthn.SessionData, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := m[key]
	delete(m, key)
	if !ok || time.Now().After(c.expires) {
		return nil, false
	}
	return c.data, true
}

// handleBeginRegistration starts passkey registration from the settings page.
func (h *passkeyHandlers) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := auth.IdentityFrom(r.Context())
	if !ok || id.Method != auth.MethodSession {
		apiError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.passkeys.User(r.Context(), id.Email)
	if err != nil {
		slog.Error("loading credentials", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Exclude existing credentials so the same authenticator is not
	// registered twice.
	creds := user.WebAuthnCredentials()
	exclude := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		exclude[i] = c.Descriptor()
	}

	creation, session, err := h.wan.BeginRegistration(user,
		webauthn.WithExclusions(exclude),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		slog.Error("beginning registration", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.put(h.reg, id.Email, session)
	apiJSON(w, creation, http.StatusOK)
}

// handleFinishRegistration completes passkey registration.
func (h *passkeyHandlers) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := auth.IdentityFrom(r.Context())
	if !ok || id.Method != auth.MethodSession {
		apiError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session, ok := h.take(h.reg, id.Email)
	if !ok {
		apiError(w, "no registration in progress", http.StatusBadRequest)
		return
	}

	user, err := h.passkeys.User(r.Context(), id.Email)
	if err != nil {
		slog.Error("loading credentials", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	credential, err := h.wan.FinishRegistration(user, *session, r)
	if err != nil {
		slog.Warn("finishing registration", "err", err)
		apiError(w, "registration failed", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Passkey"
	}

	if err := h.passkeys.Save(r.Context(), id.Email, name, credential); err != nil {
		slog.Error("saving credential", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("passkey registered", "email", id.Email, "name", name)
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleBeginLogin starts a discoverable passkey login.
func (h *passkeyHandlers) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	assertion, session, err := h.wan.BeginDiscoverableLogin()
	if err != nil {
		slog.Error("beginning passkey login", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	key := uuid.NewString()
	h.put(h.logins, key, session)
	http.SetCookie(w, &http.Cookie{
		Name:     loginCeremonyCookie,
		Value:    key,
		Path:     "/passkey/login",
		MaxAge:   int(ceremonyTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	apiJSON(w, assertion, http.StatusOK)
}

// handleFinishLogin completes passkey login and creates a session.
func (h *passkeyHandlers) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cookie, err := r.Cookie(loginCeremonyCookie)
	if err != nil {
		apiError(w, "no login in progress", http.StatusBadRequest)
		return
	}
	session, ok := h.take(h.logins, cookie.Value)
	if !ok {
		apiError(w, "no login in progress", http.StatusBadRequest)
		return
	}

	var loggedIn *auth.PasskeyUser
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		emails, err := h.users.AllEmails(r.Context())
		if err != nil {
			return nil, err
		}
		user, err := h.passkeys.FindUser(r.Context(), emails, userHandle)
		if errors.Is(err, auth.ErrUnknownPasskey) {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		if err != nil {
			return nil, err
		}
		loggedIn = user
		return user, nil
	}

	if _, _, err := h.wan.FinishPasskeyLogin(handler, *session, r); err != nil {
		slog.Warn("finishing passkey login", "err", err)
		apiError(w, "login failed", http.StatusUnauthorized)
		return
	}

	if err := h.sessions.Create(w, loggedIn.Email()); err != nil {
		slog.Error("creating session", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("login success", "email", loggedIn.Email(), "method", "passkey")
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
