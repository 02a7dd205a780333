// Package pager keeps client-side comment paging state in step with the
// cursors returned by the comment server.
package pager

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/evcraddock/portfolio/internal/api"
	"github.com/evcraddock/portfolio/internal/comment"
)

// Backend is the remote comment service the pager reads from and writes to.
type Backend interface {
	FetchComments(ctx context.Context, q api.CommentsQuery) (*api.CommentsPage, error)
	SubmitComment(ctx context.Context, c comment.NewComment) (*comment.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

// State is a snapshot of the pager for rendering.
type State struct {
	PageNum  int
	Cursors  []string // Cursors[0] is always "" (no cursor)
	Order    comment.Order
	PageSize int
	Comments []*comment.Comment
}

// HasPrev reports whether there is a page before the current one.
func (s State) HasPrev() bool {
	return s.PageNum > 0
}

// HasNext reports whether a cursor for the following page is known.
func (s State) HasNext() bool {
	return s.PageNum < len(s.Cursors)-1
}

// Pager walks a cursor-paginated comment listing. It is safe for concurrent
// use; only the most recently issued load may change what is rendered.
type Pager struct {
	backend Backend

	mu       sync.Mutex
	pageNum  int
	cursors  []string
	order    comment.Order
	pageSize int
	comments []*comment.Comment
	seq      uint64
}

// Option configures a Pager.
type Option func(*Pager)

// WithOrder sets the initial order.
func WithOrder(o comment.Order) Option {
	return func(p *Pager) { p.order = o }
}

// WithPageSize sets the initial page size. Non-positive values mean the default.
func WithPageSize(n int) Option {
	return func(p *Pager) { p.pageSize = normalizeSize(n) }
}

// New returns a pager positioned before the first page. Nothing is fetched
// until LoadPage is called.
func New(backend Backend, opts ...Option) *Pager {
	p := &Pager{
		backend:  backend,
		cursors:  []string{""},
		order:    comment.Newest,
		pageSize: api.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParsePageSize reads a page size from user input, falling back to the
// default when the input is empty, unparseable or not positive.
func ParsePageSize(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return api.DefaultPageSize
	}
	return normalizeSize(n)
}

func normalizeSize(n int) int {
	if n <= 0 {
		return api.DefaultPageSize
	}
	return n
}

// State returns a copy of the current state.
func (p *Pager) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return State{
		PageNum:  p.pageNum,
		Cursors:  append([]string(nil), p.cursors...),
		Order:    p.order,
		PageSize: p.pageSize,
		Comments: append([]*comment.Comment(nil), p.comments...),
	}
}

// LoadPage fetches the current page.
func (p *Pager) LoadPage(ctx context.Context) error {
	return p.load(ctx, "load", nil)
}

// Advance moves one page forward. Moving past the last page is undone once
// the server answers with an empty page. Advance does nothing while the
// next page's cursor is unknown, either because the server sent none or
// because the load that brings it is still in flight.
func (p *Pager) Advance(ctx context.Context) error {
	return p.load(ctx, "advance", func() bool {
		if p.pageNum >= len(p.cursors)-1 {
			return false
		}
		p.pageNum++
		return true
	})
}

// Retreat moves one page back, stopping at the first page.
func (p *Pager) Retreat(ctx context.Context) error {
	return p.load(ctx, "retreat", func() bool {
		if p.pageNum > 0 {
			p.pageNum--
		}
		return true
	})
}

// SetOrder changes the order and starts over from the first page.
func (p *Pager) SetOrder(ctx context.Context, o comment.Order) error {
	return p.load(ctx, "set order", func() bool {
		p.order = o
		return p.resetLocked()
	})
}

// SetPageSize changes the page size and starts over from the first page.
func (p *Pager) SetPageSize(ctx context.Context, n int) error {
	return p.load(ctx, "set page size", func() bool {
		p.pageSize = normalizeSize(n)
		return p.resetLocked()
	})
}

// Reset starts over from the first page.
func (p *Pager) Reset(ctx context.Context) error {
	return p.load(ctx, "reset", p.resetLocked)
}

// Submit posts a comment, then reloads the first page. When posting fails the
// paging state is left alone.
func (p *Pager) Submit(ctx context.Context, c comment.NewComment) (*comment.Comment, error) {
	created, err := p.backend.SubmitComment(ctx, c)
	if err != nil {
		return nil, p.warn("submit", err)
	}
	return created, p.Reset(ctx)
}

// Delete removes a comment, then reloads the first page. When deleting fails
// the paging state is left alone.
func (p *Pager) Delete(ctx context.Context, id int64) error {
	if err := p.backend.DeleteComment(ctx, id); err != nil {
		return p.warn("delete", err)
	}
	return p.Reset(ctx)
}

func (p *Pager) resetLocked() bool {
	p.pageNum = 0
	p.cursors = []string{""}
	return true
}

// load applies mutate and issues a fetch for the resulting page in one
// critical section, so the request id always matches the state it was
// built from. A mutate returning false cancels the fetch. The lock is not
// held while the request is in flight.
func (p *Pager) load(ctx context.Context, op string, mutate func() bool) error {
	p.mu.Lock()
	if mutate != nil && !mutate() {
		slog.Debug("no next page", "op", op, "page", p.pageNum, "cursors", len(p.cursors))
		p.mu.Unlock()
		return nil
	}
	p.seq++
	id := p.seq
	page := p.pageNum
	q := api.CommentsQuery{
		Order:  p.order,
		Cursor: p.cursorLocked(page),
		Num:    p.pageSize,
	}
	p.mu.Unlock()

	resp, err := p.backend.FetchComments(ctx, q)
	if err != nil {
		return p.warn(op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id != p.seq {
		slog.Debug("dropping superseded page", "op", op, "page", page, "request", id, "latest", p.seq)
		return nil
	}

	if len(resp.Comments) == 0 {
		if p.pageNum > 0 {
			// Overshot the end: step back and keep what is on screen.
			p.pageNum--
			return nil
		}
		p.comments = nil
		return nil
	}

	// A page without a next cursor is the last one.
	if p.pageNum >= len(p.cursors)-1 && resp.NextPageCursor != nil {
		p.cursors = append(p.cursors, *resp.NextPageCursor)
	}
	p.comments = resp.Comments
	return nil
}

// cursorLocked returns the cursor that starts page n, or no cursor when n
// has not been reached yet.
func (p *Pager) cursorLocked(n int) string {
	if n < 0 || n >= len(p.cursors) {
		return ""
	}
	return p.cursors[n]
}

func (p *Pager) warn(op string, err error) error {
	p.mu.Lock()
	page := p.pageNum
	p.mu.Unlock()

	slog.Warn("comment pager", "op", op, "page", page, "err", err)
	return err
}
