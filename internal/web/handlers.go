package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/portfolio/internal/api"
	"github.com/evcraddock/portfolio/internal/auth"
	"github.com/evcraddock/portfolio/internal/comment"
)

type commentItem struct {
	*comment.Comment
	CanDelete bool
}

type indexData struct {
	Email      string
	Username   string
	IsAdmin    bool
	Comments   []commentItem
	Order      comment.Order
	OtherOrder comment.Order
	Num        int
	Cursor     string
	NextCursor string
	Error      string
	PageSizes  []int
}

// handleIndex renders the comment section: login bar, username and comment
// forms, and one page of comments.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := indexData{PageSizes: []int{5, 10, 20}}

	q, err := api.ParseCommentsQuery(r.URL.Query())
	if err != nil {
		q = api.CommentsQuery{Order: comment.ParseOrder(r.URL.Query().Get("order")), Num: api.DefaultPageSize}
		data.Error = err.Error()
	}
	data.Order, data.OtherOrder = q.Order, q.Order.Toggle()
	data.Num = q.Num
	data.Cursor = q.Cursor

	if id, ok := auth.IdentityFrom(r.Context()); ok {
		data.Email = id.Email
		data.IsAdmin = s.users.IsAdmin(id.Email)
		name, err := s.users.Username(r.Context(), id.Email)
		if err != nil {
			slog.Error("loading username", "email", id.Email, "err", err)
		}
		data.Username = name
	}

	page, err := s.comments.ListPage(r.Context(), q.Order, q.Cursor, q.Num)
	if errors.Is(err, comment.ErrInvalidCursor) {
		data.Cursor = ""
		data.Error = "That page link is no longer valid."
		page, err = s.comments.ListPage(r.Context(), q.Order, "", q.Num)
	}
	if err != nil {
		slog.Error("listing comments", "err", err)
		http.Error(w, "Error loading comments", http.StatusInternalServerError)
		return
	}

	for _, c := range page.Comments {
		data.Comments = append(data.Comments, commentItem{
			Comment:   c,
			CanDelete: data.Email != "" && s.mayDelete(data.Email, c),
		})
	}
	// A short page is the last one.
	if len(page.Comments) == q.Num {
		data.NextCursor = page.NextCursor
	}

	s.render(w, "index.html", data)
}

type passkeyItem struct {
	ID   string
	Name string
}

type apiKeyItem struct {
	ID        int64
	Name      string
	KeyPrefix string
	LastUsed  string
}

type settingsData struct {
	Email    string
	Username string
	Passkeys []passkeyItem
	APIKeys  []apiKeyItem
	IsAdmin  bool
}

// handleSettings renders the settings page with passkey and API key
// management.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	stored, err := s.passkeys.ListByEmail(r.Context(), id.Email)
	if err != nil {
		slog.Error("loading passkeys", "email", id.Email, "err", err)
		http.Error(w, "Error loading passkeys", http.StatusInternalServerError)
		return
	}
	keys, err := s.apiKeys.List(r.Context(), id.Email)
	if err != nil {
		slog.Error("loading api keys", "email", id.Email, "err", err)
		http.Error(w, "Error loading API keys", http.StatusInternalServerError)
		return
	}
	name, err := s.users.Username(r.Context(), id.Email)
	if err != nil {
		slog.Error("loading username", "email", id.Email, "err", err)
	}

	data := settingsData{
		Email:    id.Email,
		Username: name,
		IsAdmin:  s.users.IsAdmin(id.Email),
	}
	for _, sc := range stored {
		data.Passkeys = append(data.Passkeys, passkeyItem{ID: sc.ID, Name: sc.Name})
	}
	for _, k := range keys {
		item := apiKeyItem{ID: k.ID, Name: k.Name, KeyPrefix: k.KeyPrefix, LastUsed: "never"}
		if k.LastUsedAt != nil {
			item.LastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
		}
		data.APIKeys = append(data.APIKeys, item)
	}

	s.render(w, "settings.html", data)
}

// handlePasskeyDelete removes one of the caller's passkeys.
func (s *Server) handlePasskeyDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, _ := auth.IdentityFrom(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	credID := strings.TrimSpace(r.FormValue("id"))
	if credID == "" {
		http.Error(w, "Missing credential ID", http.StatusBadRequest)
		return
	}

	if err := s.passkeys.Delete(r.Context(), credID, id.Email); err != nil {
		slog.Warn("deleting passkey", "email", id.Email, "err", err)
		http.Error(w, "Passkey not found", http.StatusNotFound)
		return
	}

	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}
