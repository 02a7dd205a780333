package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evcraddock/portfolio/internal/auth"
)

func TestCreateAPIKey(t *testing.T) {
	srv, d := testServerWithDB(t)
	cookie := createTestSession(t, d, "ada@example.com")

	r := httptest.NewRequest("POST", "/api/keys", strings.NewReader(`{"name":"Test CLI"}`))
	r.Header.Set("Content-Type", "application/json")
	r.AddCookie(cookie)
	w := serve(srv, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp apiKeyCreateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.Key, auth.APIKeyPrefix) {
		t.Errorf("key = %q, want %s prefix", resp.Key, auth.APIKeyPrefix)
	}
	if resp.APIKeyResponse.Name != "Test CLI" {
		t.Errorf("name = %q, want %q", resp.APIKeyResponse.Name, "Test CLI")
	}

	// The new key works as a bearer credential.
	r = httptest.NewRequest("GET", "/login-status", nil)
	r.Header.Set("Authorization", "Bearer "+resp.Key)
	if st := loginStatus(t, srv, r); st.Email != "ada@example.com" {
		t.Errorf("bearer email = %q", st.Email)
	}
}

func TestListAPIKeysOnlyOwn(t *testing.T) {
	srv, d := testServerWithDB(t)
	cookie := createTestSession(t, d, "ada@example.com")

	store := auth.NewAPIKeyStore(d)
	if _, _, err := store.Create(context.Background(), "Key 1", "ada@example.com"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := store.Create(context.Background(), "Bob's", "bob@example.com"); err != nil {
		t.Fatalf("create: %v", err)
	}

	r := httptest.NewRequest("GET", "/api/keys", nil)
	r.AddCookie(cookie)
	w := serve(srv, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var keys []apiKeyResponse
	if err := json.NewDecoder(w.Body).Decode(&keys); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(keys) != 1 || keys[0].Name != "Key 1" {
		t.Errorf("keys = %+v", keys)
	}
}

func TestDeleteAPIKey(t *testing.T) {
	srv, d := testServerWithDB(t)
	cookie := createTestSession(t, d, "ada@example.com")

	store := auth.NewAPIKeyStore(d)
	_, key, err := store.Create(context.Background(), "To Revoke", "ada@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	r := httptest.NewRequest("DELETE", fmt.Sprintf("/api/keys/%d", key.ID), nil)
	r.AddCookie(cookie)
	w := serve(srv, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	keys, err := store.List(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("got %d keys after delete, want 0", len(keys))
	}
}

func TestDeleteOtherUsersKey(t *testing.T) {
	srv, d := testServerWithDB(t)
	cookie := createTestSession(t, d, "ada@example.com")

	_, key, err := auth.NewAPIKeyStore(d).Create(context.Background(), "Bob's", "bob@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	r := httptest.NewRequest("DELETE", fmt.Sprintf("/api/keys/%d", key.ID), nil)
	r.AddCookie(cookie)
	w := serve(srv, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAPIKeysRequireSession(t *testing.T) {
	srv, d := testServerWithDB(t)
	key := createTestAPIKey(t, d, "ada@example.com")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"valid api key", "Bearer " + key, http.StatusUnauthorized},
		{"invalid api key", "Bearer pf_invalidkey", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/keys", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if w := serve(srv, r); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAPIKeyBadID(t *testing.T) {
	srv, d := testServerWithDB(t)
	cookie := createTestSession(t, d, "ada@example.com")

	r := httptest.NewRequest("DELETE", "/api/keys/abc", nil)
	r.AddCookie(cookie)
	if w := serve(srv, r); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
