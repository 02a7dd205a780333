package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/portfolio/internal/auth"
)

// apikeyHandlers lets a logged-in user manage their own API keys.
type apikeyHandlers struct {
	apiKeys *auth.APIKeyStore
}

type apiKeyResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	KeyPrefix  string  `json:"key_prefix"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
}

type apiKeyCreateResponse struct {
	Key            string         `json:"key"` // raw key, shown once
	APIKeyResponse apiKeyResponse `json:"api_key"`
}

func toAPIKeyResponse(k *auth.APIKey) apiKeyResponse {
	resp := apiKeyResponse{
		ID:        k.ID,
		Name:      k.Name,
		KeyPrefix: k.KeyPrefix,
		CreatedAt: k.CreatedAt.UTC().Format(time.RFC3339),
	}
	if k.LastUsedAt != nil {
		s := k.LastUsedAt.UTC().Format(time.RFC3339)
		resp.LastUsedAt = &s
	}
	return resp
}

// handleAPIKeysRoute routes /api/keys and /api/keys/{id}. Keys can only be
// managed from a browser session, never with another key.
func (h *apikeyHandlers) handleAPIKeysRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok || id.Method != auth.MethodSession {
		apiError(w, "login required", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/keys")
	if path == "" || path == "/" {
		switch r.Method {
		case http.MethodGet:
			h.handleListKeys(w, r, id.Email)
		case http.MethodPost:
			h.handleCreateKey(w, r, id.Email)
		default:
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	keyID, err := strconv.ParseInt(strings.TrimPrefix(path, "/"), 10, 64)
	if err != nil {
		apiError(w, "invalid key ID", http.StatusBadRequest)
		return
	}
	h.handleDeleteKey(w, r, keyID, id.Email)
}

// handleCreateKey generates a new API key.
func (h *apikeyHandlers) handleCreateKey(w http.ResponseWriter, r *http.Request, email string) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apiError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = "API Key"
	}

	rawKey, key, err := h.apiKeys.Create(r.Context(), name, email)
	if err != nil {
		slog.Error("creating api key", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	apiJSON(w, apiKeyCreateResponse{Key: rawKey, APIKeyResponse: toAPIKeyResponse(key)}, http.StatusCreated)
}

// handleListKeys returns the caller's API keys without the raw keys.
func (h *apikeyHandlers) handleListKeys(w http.ResponseWriter, r *http.Request, email string) {
	keys, err := h.apiKeys.List(r.Context(), email)
	if err != nil {
		slog.Error("listing api keys", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]apiKeyResponse, len(keys))
	for i := range keys {
		resp[i] = toAPIKeyResponse(&keys[i])
	}
	apiJSON(w, resp, http.StatusOK)
}

// handleDeleteKey revokes one of the caller's API keys.
func (h *apikeyHandlers) handleDeleteKey(w http.ResponseWriter, r *http.Request, id int64, email string) {
	err := h.apiKeys.Delete(r.Context(), id, email)
	if errors.Is(err, auth.ErrKeyNotFound) {
		apiError(w, "key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("deleting api key", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
