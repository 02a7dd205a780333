package cli

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/evcraddock/portfolio/internal/auth"
	"github.com/evcraddock/portfolio/internal/comment"
	"github.com/evcraddock/portfolio/internal/db"
	"github.com/evcraddock/portfolio/internal/web"
)

// startServer runs a comment server on a temp database and points the CLI at
// it with an API key for email.
func startServer(t *testing.T, email string) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	srv, err := web.NewServer(d, auth.Config{AdminEmail: "admin@example.com", DevMode: true})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	ctx := context.Background()
	if _, err := auth.NewUserStore(d, "admin@example.com").Ensure(ctx, email); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	key, _, err := auth.NewAPIKeyStore(d).Create(ctx, "cli", email)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("PF_SERVER_URL", ts.URL)
	t.Setenv("PF_API_KEY", key)
}

func TestCommandsAgainstServer(t *testing.T) {
	startServer(t, "ada@example.com")

	out, err := executeCommand("whoami")
	if err != nil || !strings.Contains(out, "not set") {
		t.Fatalf("whoami = %q, %v", out, err)
	}

	if _, err := executeCommand("comment", "too", "early"); err == nil {
		t.Error("posting without a username should fail")
	}

	out, err = executeCommand("username", "ada")
	if err != nil || !strings.Contains(out, "Username set to ada") {
		t.Fatalf("username = %q, %v", out, err)
	}

	out, err = executeCommand("--format", "json", "comment", "hello", "world")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	var posted comment.Comment
	if err := json.Unmarshal([]byte(out), &posted); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if posted.Username != "ada" || posted.Text != "hello world" {
		t.Errorf("posted = %+v", posted)
	}

	if _, err := executeCommand("comment", "second"); err != nil {
		t.Fatalf("comment: %v", err)
	}

	out, err = executeCommand("comments", "--num", "1")
	if err != nil {
		t.Fatalf("comments: %v", err)
	}
	if !strings.Contains(out, "second") || strings.Contains(out, "hello world") {
		t.Errorf("first page = %q", out)
	}

	out, err = executeCommand("comments", "--num", "1", "--page", "2")
	if err != nil || !strings.Contains(out, "hello world") {
		t.Errorf("second page = %q, %v", out, err)
	}

	out, err = executeCommand("comments", "--num", "1", "--page", "9")
	if err != nil || !strings.Contains(out, "Only 2 page(s)") {
		t.Errorf("past the end = %q, %v", out, err)
	}

	out, err = executeCommand("delete", strconv.FormatInt(posted.ID, 10))
	if err != nil || !strings.Contains(out, "deleted") {
		t.Fatalf("delete = %q, %v", out, err)
	}

	out, err = executeCommand("--format", "json", "comments", "--order", "oldest")
	if err != nil {
		t.Fatalf("comments json: %v", err)
	}
	var page pageJSON
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if page.Order != comment.Oldest || len(page.Comments) != 1 || page.Comments[0].Text != "second" {
		t.Errorf("page = %+v", page)
	}
}

func TestDeleteRequiresLogin(t *testing.T) {
	startServer(t, "bob@example.com")
	if _, err := executeCommand("username", "bob"); err != nil {
		t.Fatalf("username: %v", err)
	}
	out, err := executeCommand("--format", "json", "comment", "mine")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	var posted comment.Comment
	if err := json.Unmarshal([]byte(out), &posted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	t.Setenv("PF_API_KEY", "")
	if _, err := executeCommand("delete", strconv.FormatInt(posted.ID, 10)); err == nil {
		t.Error("anonymous delete should fail")
	}
}

func TestUsernameNotLoggedIn(t *testing.T) {
	startServer(t, "ada@example.com")
	t.Setenv("PF_API_KEY", "")

	_, err := executeCommand("username", "ada")
	if err == nil || !strings.Contains(err.Error(), "pf login") {
		t.Errorf("err = %v", err)
	}
}
