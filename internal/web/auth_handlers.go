package web

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/evcraddock/portfolio/internal/auth"
)

// authHandlers holds the magic link login handlers.
type authHandlers struct {
	users    *auth.UserStore
	tokens   *auth.TokenStore
	sessions *auth.SessionStore
	mailer   *auth.Mailer
	render   func(w http.ResponseWriter, name string, data interface{})
}

type loginData struct {
	Message string
	Error   string
}

const loginSentMsg = "A login link has been sent if the address can receive mail. Check your inbox."

// handleLoginPage renders the login form.
func (h *authHandlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFrom(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, "login.html", loginData{})
}

// handleLoginSubmit mails a login link to the submitted address.
func (h *authHandlers) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	email, ok := parseEmail(r.FormValue("email"))
	if !ok {
		h.render(w, "login.html", loginData{Error: "A valid email address is required"})
		return
	}

	token, err := h.tokens.Create(r.Context(), email)
	if err != nil {
		slog.Error("creating login token", "err", err)
		h.render(w, "login.html", loginData{Message: loginSentMsg})
		return
	}

	if _, err := h.mailer.SendMagicLink(email, token); err != nil {
		slog.Error("sending magic link", "email", email, "err", err)
	}

	h.render(w, "login.html", loginData{Message: loginSentMsg})
}

// handleVerify redeems a magic link token and starts a session.
func (h *authHandlers) handleVerify(w http.ResponseWriter, r *http.Request) {
	email, ok := h.redeem(w, r, "login.html", func(msg string) interface{} {
		return loginData{Error: msg}
	})
	if !ok {
		return
	}

	slog.Info("login success", "email", email, "method", "magic_link")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// redeem consumes the token in the query string, records the user and sets
// the session cookie. On failure it renders page with an error and reports
// false.
func (h *authHandlers) redeem(w http.ResponseWriter, r *http.Request, page string, errData func(string) interface{}) (string, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.render(w, page, errData("Invalid login link"))
		return "", false
	}

	email, err := h.tokens.Redeem(r.Context(), token)
	if err != nil {
		h.render(w, page, errData("Invalid or expired login link. Please request a new one."))
		return "", false
	}

	if _, err := h.users.Ensure(r.Context(), email); err != nil {
		slog.Error("recording user", "email", email, "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return "", false
	}

	if err := h.sessions.Create(w, email); err != nil {
		slog.Error("creating session", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return "", false
	}
	return email, true
}

// handleLogout destroys the session and returns to the index page.
func (h *authHandlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		slog.Warn("destroying session", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// parseEmail lowercases and checks a submitted address.
func parseEmail(raw string) (string, bool) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}
