package web

import (
	"encoding/json"
	"errors"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/evcraddock/portfolio/internal/api"
	"github.com/evcraddock/portfolio/internal/auth"
	"github.com/evcraddock/portfolio/internal/comment"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	apiJSON(w, api.ErrorResponse{Error: msg}, code)
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleGetComments serves one page of comments.
func (s *Server) handleGetComments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q, err := api.ParseCommentsQuery(r.URL.Query())
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := s.comments.ListPage(r.Context(), q.Order, q.Cursor, q.Num)
	if errors.Is(err, comment.ErrInvalidCursor) {
		apiError(w, "invalid page cursor", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("listing comments", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	apiJSON(w, publicPage(page), http.StatusOK)
}

// publicPage converts a store page for the wire. Author emails are not
// published.
func publicPage(page *comment.Page) api.CommentsPage {
	comments := make([]*comment.Comment, len(page.Comments))
	for i, c := range page.Comments {
		pub := *c
		pub.Email = ""
		comments[i] = &pub
	}

	resp := api.CommentsPage{Comments: comments}
	if page.NextCursor != "" {
		next := page.NextCursor
		resp.NextPageCursor = &next
	}
	return resp
}

// handleData stores a new comment. Browsers are redirected back to the
// index page; API callers get the stored comment.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.dataFailed(w, r, "bad request", http.StatusBadRequest)
		return
	}

	n := comment.NewComment{
		Text:     s.plainText(r.FormValue("text")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Username: s.plainText(r.FormValue("username")),
	}

	if id, ok := auth.IdentityFrom(r.Context()); ok {
		n.Email = id.Email
		if n.Username == "" {
			name, err := s.users.Username(r.Context(), id.Email)
			if err != nil {
				slog.Error("loading username", "email", id.Email, "err", err)
				s.dataFailed(w, r, "internal error", http.StatusInternalServerError)
				return
			}
			n.Username = name
		}
	}

	if err := n.Validate(); err != nil {
		s.dataFailed(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := s.comments.Add(r.Context(), n)
	if err != nil {
		slog.Error("adding comment", "err", err)
		s.dataFailed(w, r, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("comment added", "id", c.ID, "username", c.Username)

	if s.notifier.Enabled() {
		if err := s.notifier.NotifyComment(r.Context(), c); err != nil {
			slog.Warn("sending comment notification", "id", c.ID, "err", err)
		}
	}

	if auth.IsBearer(r) {
		apiJSON(w, api.FromComment(c), http.StatusCreated)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// plainText strips markup from user input. Entities are decoded again so
// the stored text is plain; templates escape it on output.
func (s *Server) plainText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(in)))
}

// dataFailed answers a rejected submission: API callers get a JSON error,
// browsers go back to the index page.
func (s *Server) dataFailed(w http.ResponseWriter, r *http.Request, msg string, code int) {
	if auth.IsBearer(r) {
		apiError(w, msg, code)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleDeleteComment removes a comment. Only its author or the admin may.
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		apiError(w, "login required", http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		apiError(w, "bad request", http.StatusBadRequest)
		return
	}
	commentID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("id")), 10, 64)
	if err != nil || commentID <= 0 {
		apiError(w, "invalid comment id", http.StatusBadRequest)
		return
	}

	c, err := s.comments.Get(r.Context(), commentID)
	if errors.Is(err, comment.ErrNotFound) {
		apiError(w, "comment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("loading comment", "id", commentID, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	if !s.mayDelete(id.Email, c) {
		apiError(w, "you may only delete your own comments", http.StatusForbidden)
		return
	}

	if err := s.comments.Delete(r.Context(), commentID); err != nil {
		if errors.Is(err, comment.ErrNotFound) {
			apiError(w, "comment not found", http.StatusNotFound)
			return
		}
		slog.Error("deleting comment", "id", commentID, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("comment deleted", "id", commentID, "by", id.Email)
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) mayDelete(email string, c *comment.Comment) bool {
	return s.users.IsAdmin(email) || strings.EqualFold(email, c.Email)
}
