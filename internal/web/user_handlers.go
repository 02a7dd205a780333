package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/portfolio/internal/api"
	"github.com/evcraddock/portfolio/internal/auth"
)

// handleLoginStatus reports who the caller is, with a login or logout link.
func (s *Server) handleLoginStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		apiJSON(w, api.LoginStatus{URL: "/login"}, http.StatusOK)
		return
	}

	status := api.LoginStatus{URL: "/auth/logout", Email: id.Email}
	name, err := s.users.Username(r.Context(), id.Email)
	if err != nil {
		slog.Error("loading username", "email", id.Email, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if name != "" {
		status.Username = &name
	}
	apiJSON(w, status, http.StatusOK)
}

// handleUsername lets a logged-in caller choose a unique username.
func (s *Server) handleUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		apiError(w, "you cannot set a username if you are not logged in", http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		apiError(w, "bad request", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.FormValue("username"))

	err := s.users.SetUsername(r.Context(), id.Email, name)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		apiError(w, "username already exists", http.StatusConflict)
		return
	case errors.Is(err, auth.ErrInvalidUsername):
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("setting username", "email", id.Email, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("username set", "email", id.Email, "username", name)
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	apiJSON(w, map[string]string{"username": name}, http.StatusCreated)
}

// wantsHTML reports whether r is a browser form navigation rather than an
// API call.
func wantsHTML(r *http.Request) bool {
	return !auth.IsBearer(r) && strings.Contains(r.Header.Get("Accept"), "text/html")
}
