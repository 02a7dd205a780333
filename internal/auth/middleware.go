package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Login methods recorded on an Identity.
const (
	MethodSession = "session"
	MethodAPIKey  = "api_key"
)

// Identity is the logged-in caller of a request.
type Identity struct {
	Email  string
	Method string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity stored by Identify.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.Email != ""
}

// Identify is middleware that resolves the caller from a bearer API key or
// the session cookie. Anonymous requests pass through without an identity.
// A bearer key that does not validate is rejected with 401; key checks are
// rate limited per IP and answer 429 when over the limit.
func Identify(sessions *SessionStore, apiKeys *APIKeyStore, limiter *RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key, ok := bearerToken(r); ok {
			if limiter != nil && !limiter.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			email, err := apiKeys.Validate(r.Context(), key)
			if err != nil {
				slog.Error("validating api key", "err", err)
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if email == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{Email: email, Method: MethodAPIKey})))
			return
		}

		if email, err := sessions.Validate(r); err == nil {
			r = r.WithContext(WithIdentity(r.Context(), Identity{Email: email, Method: MethodSession}))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLogin redirects callers without an identity to the login page.
func RequireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// IsBearer reports whether r authenticates with an API key rather than a
// browser session.
func IsBearer(r *http.Request) bool {
	_, ok := bearerToken(r)
	return ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	key := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return key, key != ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		slog.Error("encoding error response", "err", err)
	}
}
