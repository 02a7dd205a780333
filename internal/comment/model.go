// Package comment provides the comment domain model and data access.
package comment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Order is the sort order of a comment listing.
type Order string

const (
	// Newest lists the most recent comments first. It is the default.
	Newest Order = "newest"
	// Oldest lists comments in the order they were posted.
	Oldest Order = "oldest"
)

// ParseOrder maps "oldest" to Oldest and anything else to Newest.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), string(Oldest)) {
		return Oldest
	}
	return Newest
}

// Toggle returns the opposite order.
func (o Order) Toggle() Order {
	if o == Oldest {
		return Newest
	}
	return Oldest
}

var (
	// ErrNotFound is returned when a comment does not exist.
	ErrNotFound = errors.New("comment not found")
	// ErrInvalid is returned when a new comment is missing a required field.
	ErrInvalid = errors.New("invalid comment")
)

// Comment is a visitor comment left on the site.
type Comment struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewComment holds the fields needed to post a comment.
// A zero Timestamp means "now".
type NewComment struct {
	Username  string
	Email     string
	Text      string
	Timestamp time.Time
}

// Validate checks that text, email and username are all present.
func (n NewComment) Validate() error {
	switch {
	case strings.TrimSpace(n.Text) == "":
		return fmt.Errorf("%w: text is required", ErrInvalid)
	case strings.TrimSpace(n.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalid)
	case strings.TrimSpace(n.Username) == "":
		return fmt.Errorf("%w: username is required", ErrInvalid)
	}
	return nil
}

// Page is one page of a cursor-paginated comment listing.
type Page struct {
	Comments []*Comment
	// NextCursor resumes the listing after the last comment of this page.
	// Empty means no cursor.
	NextCursor string
}
