// Package api defines the wire format shared by the comment server and its clients.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/portfolio/internal/comment"
)

const (
	// DefaultPageSize is used when a page size is missing or unusable.
	DefaultPageSize = 5
	// MaxPageSize caps how many comments one request may ask for.
	MaxPageSize = 100
	// NullCursor is how "no cursor" travels in a query string.
	NullCursor = "null"
)

// CommentsQuery is the query of GET /get-comments.
type CommentsQuery struct {
	Order  comment.Order
	Cursor string // empty means no cursor
	Num    int
}

// Values encodes the query as order, pageCursor and num parameters.
func (q CommentsQuery) Values() url.Values {
	cursor := q.Cursor
	if cursor == "" {
		cursor = NullCursor
	}
	num := q.Num
	if num <= 0 {
		num = DefaultPageSize
	}
	order := q.Order
	if order == "" {
		order = comment.Newest
	}
	return url.Values{
		"order":      {string(order)},
		"pageCursor": {cursor},
		"num":        {strconv.Itoa(num)},
	}
}

// ParseCommentsQuery reads a CommentsQuery from request parameters.
// A missing num means DefaultPageSize; larger values are capped at MaxPageSize.
func ParseCommentsQuery(v url.Values) (CommentsQuery, error) {
	q := CommentsQuery{
		Order: comment.ParseOrder(v.Get("order")),
		Num:   DefaultPageSize,
	}

	if c := strings.TrimSpace(v.Get("pageCursor")); c != "" && c != NullCursor {
		q.Cursor = c
	}

	if s := strings.TrimSpace(v.Get("num")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return CommentsQuery{}, fmt.Errorf("num must be a positive integer, got %q", s)
		}
		q.Num = min(n, MaxPageSize)
	}

	return q, nil
}

// WireComment is a comment as it travels over HTTP. Timestamp is unix milliseconds.
type WireComment struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// FromComment converts a stored comment for the wire.
func FromComment(c *comment.Comment) WireComment {
	return WireComment{
		ID:        c.ID,
		Username:  c.Username,
		Email:     c.Email,
		Text:      c.Text,
		Timestamp: c.Timestamp.UnixMilli(),
	}
}

// Comment converts back to the domain type.
func (w WireComment) Comment() *comment.Comment {
	return &comment.Comment{
		ID:        w.ID,
		Username:  w.Username,
		Email:     w.Email,
		Text:      w.Text,
		Timestamp: time.UnixMilli(w.Timestamp),
	}
}

// CommentsPage is the response of GET /get-comments.
//
// On the wire "comments" is a JSON array encoded into a string. Marshaling
// produces that form; unmarshaling accepts it or a plain array.
type CommentsPage struct {
	Comments       []*comment.Comment
	NextPageCursor *string
}

type commentsPageWire struct {
	Comments       json.RawMessage `json:"comments"`
	NextPageCursor *string         `json:"nextPageCursor"`
}

// MarshalJSON implements json.Marshaler.
func (p CommentsPage) MarshalJSON() ([]byte, error) {
	wire := make([]WireComment, len(p.Comments))
	for i, c := range p.Comments {
		wire[i] = FromComment(c)
	}
	inner, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding comments: %w", err)
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		return nil, fmt.Errorf("encoding comments string: %w", err)
	}
	return json.Marshal(commentsPageWire{Comments: outer, NextPageCursor: p.NextPageCursor})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *CommentsPage) UnmarshalJSON(data []byte) error {
	var raw commentsPageWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	payload := bytes.TrimSpace(raw.Comments)
	if len(payload) > 0 && payload[0] == '"' {
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("decoding comments string: %w", err)
		}
		payload = []byte(s)
	}

	var wire []WireComment
	if len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
		if err := json.Unmarshal(payload, &wire); err != nil {
			return fmt.Errorf("decoding comments: %w", err)
		}
	}

	p.Comments = make([]*comment.Comment, len(wire))
	for i, w := range wire {
		p.Comments[i] = w.Comment()
	}
	p.NextPageCursor = raw.NextPageCursor
	if p.NextPageCursor != nil && (*p.NextPageCursor == "" || *p.NextPageCursor == NullCursor) {
		p.NextPageCursor = nil
	}
	return nil
}

// Cursor returns the next page cursor, or "" when there is none.
func (p *CommentsPage) Cursor() string {
	if p.NextPageCursor == nil {
		return ""
	}
	return *p.NextPageCursor
}

// LoginStatus is the response of GET /login-status.
// URL is the login link for anonymous callers and the logout link otherwise.
type LoginStatus struct {
	URL      string  `json:"url"`
	Email    string  `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
}

// LoggedIn reports whether the caller was identified.
func (s LoginStatus) LoggedIn() bool {
	return s.Email != ""
}

// ErrorResponse is the body of a failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
