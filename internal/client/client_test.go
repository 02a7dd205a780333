package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evcraddock/portfolio/internal/api"
	"github.com/evcraddock/portfolio/internal/comment"
	"github.com/evcraddock/portfolio/internal/pager"
)

var _ pager.Backend = (*Client)(nil)

func TestFetchComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-comments" {
			t.Errorf("path = %q, want /get-comments", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("order") != "oldest" || q.Get("pageCursor") != "null" || q.Get("num") != "3" {
			t.Errorf("query = %v", q)
		}
		if r.Header.Get("Authorization") != "Bearer testkey" {
			t.Error("expected Bearer testkey")
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"comments":"[{\"id\":1,\"username\":\"ada\",\"text\":\"hi\",\"timestamp\":1700000000000}]","nextPageCursor":"abc"}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	page, err := c.FetchComments(context.Background(), api.CommentsQuery{Order: comment.Oldest, Num: 3})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(page.Comments) != 1 || page.Comments[0].Username != "ada" {
		t.Fatalf("comments = %+v", page.Comments)
	}
	if page.Cursor() != "abc" {
		t.Errorf("cursor = %q, want abc", page.Cursor())
	}
}

func TestFetchCommentsSendsCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageCursor") != "c42" {
			t.Errorf("pageCursor = %q, want c42", r.URL.Query().Get("pageCursor"))
		}
		if _, err := w.Write([]byte(`{"comments":"[]","nextPageCursor":null}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "")
	page, err := c.FetchComments(context.Background(), api.CommentsQuery{Cursor: "c42", Num: 5})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(page.Comments) != 0 || page.NextPageCursor != nil {
		t.Errorf("page = %+v, want empty", page)
	}
}

func TestSubmitComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/data" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("text") != "hello" {
			t.Errorf("text = %q", r.PostForm.Get("text"))
		}
		if _, ok := r.PostForm["email"]; ok {
			t.Error("empty email should not be sent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(api.WireComment{ID: 9, Username: "ada", Text: "hello", Timestamp: 1000}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	got, err := c.SubmitComment(context.Background(), comment.NewComment{Text: "hello"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.ID != 9 || got.Text != "hello" {
		t.Errorf("comment = %+v", got)
	}
}

func TestSubmitCommentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(api.ErrorResponse{Error: "text is required"}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	_, err := c.SubmitComment(context.Background(), comment.NewComment{})
	if err == nil || err.Error() != "text is required" {
		t.Fatalf("err = %v, want server message", err)
	}
}

func TestDeleteComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/delete-comment" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("id") != "12" {
			t.Errorf("id = %q, want 12", r.PostForm.Get("id"))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	if err := c.DeleteComment(context.Background(), 12); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestDeleteCommentForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	err := c.DeleteComment(context.Background(), 12)
	if err == nil || err.Error() != "server error: Forbidden" {
		t.Fatalf("err = %v, want server error: Forbidden", err)
	}
}

func TestLoginStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login-status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if _, err := w.Write([]byte(`{"url":"/auth/logout","email":"ada@example.com","username":"ada"}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	status, err := c.LoginStatus(context.Background())
	if err != nil {
		t.Fatalf("login status: %v", err)
	}
	if !status.LoggedIn() || status.Username == nil || *status.Username != "ada" {
		t.Errorf("status = %+v", status)
	}
}

func TestChooseUsername(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "created", status: http.StatusCreated},
		{name: "taken", status: http.StatusConflict, wantErr: ErrUsernameTaken},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrNotLoggedIn},
		{name: "redirect page", status: http.StatusOK, wantErr: ErrNotLoggedIn},
		{name: "invalid", status: http.StatusBadRequest, body: `{"error":"username must not contain spaces"}`, wantMsg: "username must not contain spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("parse form: %v", err)
				}
				if r.PostForm.Get("username") != "ada" {
					t.Errorf("username = %q", r.PostForm.Get("username"))
				}
				w.WriteHeader(tt.status)
				if tt.body != "" {
					if _, err := w.Write([]byte(tt.body)); err != nil {
						t.Fatalf("write: %v", err)
					}
				}
			}))
			defer srv.Close()

			err := New(srv.URL, "testkey").ChooseUsername(context.Background(), "ada")
			switch {
			case tt.wantMsg != "":
				if err == nil || err.Error() != tt.wantMsg {
					t.Fatalf("err = %v, want %q", err, tt.wantMsg)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("expected no Authorization header")
		}
		if _, err := w.Write([]byte(`{"url":"/login"}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}))
	defer srv.Close()

	status, err := New(srv.URL, "").LoginStatus(context.Background())
	if err != nil {
		t.Fatalf("login status: %v", err)
	}
	if status.LoggedIn() {
		t.Error("expected anonymous status")
	}
}

func TestCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(srv.URL, "").LoginStatus(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestUnauthorizedWrapsNotLoggedIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, err := w.Write([]byte(`{"error":"invalid API key"}`)); err != nil {
			t.Errorf("write: %v", err)
		}
	}))
	defer srv.Close()

	_, err := New(srv.URL, "pf_revoked").LoginStatus(context.Background())
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}
	if !strings.Contains(err.Error(), "invalid API key") {
		t.Errorf("err = %v, want server message", err)
	}
}
