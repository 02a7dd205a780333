package web

import (
	"log/slog"
	"net/http"

	"github.com/evcraddock/portfolio/internal/auth"
)

// cliAuthHandlers handles the /cli/auth flow, which ends by showing an API
// key for `pf login` to store.
type cliAuthHandlers struct {
	*authHandlers
	passkeys *auth.PasskeyStore
	apiKeys  *auth.APIKeyStore
}

type cliAuthData struct {
	APIKey      string
	Message     string
	Error       string
	HasPasskeys bool
}

// handleCLIAuth serves the CLI login page (GET) and processes email submission (POST).
func (h *cliAuthHandlers) handleCLIAuth(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.render(w, "cli_auth.html", cliAuthData{HasPasskeys: h.hasPasskeys(r)})
	case http.MethodPost:
		h.submitEmail(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *cliAuthHandlers) submitEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	hp := h.hasPasskeys(r)
	email, ok := parseEmail(r.FormValue("email"))
	if !ok {
		h.render(w, "cli_auth.html", cliAuthData{Error: "A valid email address is required", HasPasskeys: hp})
		return
	}

	token, err := h.tokens.Create(r.Context(), email)
	if err != nil {
		slog.Error("creating login token", "err", err)
		h.render(w, "cli_auth.html", cliAuthData{Message: loginSentMsg, HasPasskeys: hp})
		return
	}

	if _, err := h.mailer.SendCLIMagicLink(email, token); err != nil {
		slog.Error("sending cli magic link", "email", email, "err", err)
	}

	h.render(w, "cli_auth.html", cliAuthData{Message: loginSentMsg, HasPasskeys: hp})
}

// handleCLIAuthVerify redeems the magic link token, starts a session, then
// redirects to /cli/auth/complete.
func (h *cliAuthHandlers) handleCLIAuthVerify(w http.ResponseWriter, r *http.Request) {
	hp := h.hasPasskeys(r)
	_, ok := h.redeem(w, r, "cli_auth.html", func(msg string) interface{} {
		return cliAuthData{Error: msg, HasPasskeys: hp}
	})
	if !ok {
		return
	}
	http.Redirect(w, r, "/cli/auth/complete", http.StatusSeeOther)
}

// handleCLIAuthComplete generates an API key for the logged-in user and
// displays it once.
func (h *cliAuthHandlers) handleCLIAuthComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok || id.Method != auth.MethodSession {
		http.Redirect(w, r, "/cli/auth", http.StatusSeeOther)
		return
	}

	rawKey, _, err := h.apiKeys.Create(r.Context(), "CLI", id.Email)
	if err != nil {
		slog.Error("creating api key", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("cli key issued", "email", id.Email)
	h.render(w, "cli_auth.html", cliAuthData{APIKey: rawKey})
}

// hasPasskeys reports whether any user has registered a passkey, which
// decides whether the page offers passkey login.
func (h *cliAuthHandlers) hasPasskeys(r *http.Request) bool {
	emails, err := h.users.AllEmails(r.Context())
	if err != nil {
		slog.Warn("listing users", "err", err)
		return false
	}
	for _, email := range emails {
		creds, err := h.passkeys.ListByEmail(r.Context(), email)
		if err == nil && len(creds) > 0 {
			return true
		}
	}
	return false
}
