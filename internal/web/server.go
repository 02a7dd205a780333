// Package web provides the HTTP server for the comment section: the JSON
// endpoints used by the pager and CLI, the server-rendered index page, and
// login by magic link or passkey.
package web

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/evcraddock/portfolio/internal/auth"
	"github.com/evcraddock/portfolio/internal/comment"
	"github.com/evcraddock/portfolio/internal/email"
	"github.com/evcraddock/portfolio/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Login form limits, stricter than the API key limiter.
const (
	loginRPS   = 1
	loginBurst = 5
)

// Server is the comment site HTTP server.
type Server struct {
	config    auth.Config
	comments  comment.Store
	users     *auth.UserStore
	sessions  *auth.SessionStore
	tokens    *auth.TokenStore
	apiKeys   *auth.APIKeyStore
	passkeys  *auth.PasskeyStore
	notifier  *email.Notifier
	sanitizer *bluemonday.Policy

	apiLimiter   *auth.RateLimiter
	loginLimiter *auth.RateLimiter

	templates *template.Template
	mux       *http.ServeMux
	handler   http.Handler
}

// Option customizes a Server.
type Option func(*Server)

// WithCommentStore stores comments in store instead of the SQLite database.
func WithCommentStore(store comment.Store) Option {
	return func(s *Server) { s.comments = store }
}

// WithNotifier emails the site owner about new comments.
func WithNotifier(n *email.Notifier) Option {
	return func(s *Server) { s.notifier = n }
}

// NewServer creates a web server. Users, sessions and keys always live in d;
// comments do too unless WithCommentStore says otherwise.
func NewServer(d *sql.DB, cfg auth.Config, opts ...Option) (*Server, error) {
	funcMap := template.FuncMap{
		"formatTime": email.FormatTimestamp,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	rps, burst := cfg.RateLimitRPS, cfg.RateLimitBurst
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 20
	}

	s := &Server{
		config:       cfg,
		comments:     comment.NewRepository(d),
		users:        auth.NewUserStore(d, cfg.AdminEmail),
		sessions:     auth.NewSessionStore(d, cfg.SecureCookies()),
		tokens:       auth.NewTokenStore(d),
		apiKeys:      auth.NewAPIKeyStore(d),
		passkeys:     auth.NewPasskeyStore(d),
		sanitizer:    bluemonday.StrictPolicy(),
		apiLimiter:   auth.NewRateLimiter(rps, burst),
		loginLimiter: auth.NewRateLimiter(loginRPS, loginBurst),
		templates:    tmpl,
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating static sub-fs: %w", err)
	}

	mailer := auth.NewMailer(cfg)
	ah := &authHandlers{
		users:    s.users,
		tokens:   s.tokens,
		sessions: s.sessions,
		mailer:   mailer,
		render:   s.render,
	}
	ch := &cliAuthHandlers{
		authHandlers: ah,
		passkeys:     s.passkeys,
		apiKeys:      s.apiKeys,
	}
	kh := &apikeyHandlers{apiKeys: s.apiKeys}

	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	s.mux.HandleFunc("/health", handleHealth)
	s.mux.HandleFunc("/", s.handleIndex)

	s.mux.HandleFunc("/get-comments", s.handleGetComments)
	s.mux.HandleFunc("/data", s.handleData)
	s.mux.HandleFunc("/delete-comment", s.handleDeleteComment)
	s.mux.HandleFunc("/login-status", s.handleLoginStatus)
	s.mux.HandleFunc("/username", s.handleUsername)

	s.mux.HandleFunc("/login", ah.handleLoginPage)
	s.mux.HandleFunc("/auth/login", s.loginLimiter.LimitPOST(ah.handleLoginSubmit))
	s.mux.HandleFunc("/auth/verify", ah.handleVerify)
	s.mux.HandleFunc("/auth/logout", ah.handleLogout)

	s.mux.HandleFunc("/cli/auth", s.loginLimiter.LimitPOST(ch.handleCLIAuth))
	s.mux.HandleFunc("/cli/auth/verify", ch.handleCLIAuthVerify)
	s.mux.HandleFunc("/cli/auth/complete", ch.handleCLIAuthComplete)

	s.mux.HandleFunc("/settings", auth.RequireLogin(s.handleSettings))
	s.mux.HandleFunc("/settings/passkey/delete", auth.RequireLogin(s.handlePasskeyDelete))
	s.mux.HandleFunc("/api/keys", kh.handleAPIKeysRoute)
	s.mux.HandleFunc("/api/keys/", kh.handleAPIKeysRoute)

	// Passkeys need a parseable base URL for the relying party id.
	if cfg.BaseURL != "" {
		ph, err := newPasskeyHandlers(cfg, s.passkeys, s.sessions, s.users)
		if err != nil {
			return nil, fmt.Errorf("configuring passkeys: %w", err)
		}
		s.mux.HandleFunc("/passkey/register/begin", ph.handleBeginRegistration)
		s.mux.HandleFunc("/passkey/register/finish", ph.handleFinishRegistration)
		s.mux.HandleFunc("/passkey/login/begin", s.loginLimiter.LimitPOST(ph.handleBeginLogin))
		s.mux.HandleFunc("/passkey/login/finish", ph.handleFinishLogin)
	}

	s.handler = logging.RequestLogger(auth.Identify(s.sessions, s.apiKeys, s.apiLimiter, s.mux))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting web server", "addr", addr, "base_url", s.config.BaseURL)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Cleanup drops expired sessions and login tokens and forgets idle rate
// limiter entries.
func (s *Server) Cleanup(ctx context.Context) error {
	if err := s.sessions.Cleanup(ctx); err != nil {
		return err
	}
	if err := s.tokens.Cleanup(ctx); err != nil {
		return err
	}
	s.apiLimiter.Cleanup()
	s.loginLimiter.Cleanup()
	return nil
}

// render executes a full page template.
func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("rendering template", "template", name, "err", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}
