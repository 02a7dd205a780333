package comment

import "context"

// Store persists comments. Repository (SQLite) and PostgresRepository implement it.
type Store interface {
	Add(ctx context.Context, n NewComment) (*Comment, error)
	Get(ctx context.Context, id int64) (*Comment, error)
	ListPage(ctx context.Context, order Order, cursor string, limit int) (*Page, error)
	Delete(ctx context.Context, id int64) error
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*PostgresRepository)(nil)
)

// pageFrom finishes a page: a non-empty page resumes after its last comment,
// an empty page hands back the cursor it was asked for.
func pageFrom(comments []*Comment, requested string) *Page {
	if len(comments) == 0 {
		return &Page{Comments: comments, NextCursor: requested}
	}
	return &Page{Comments: comments, NextCursor: CursorAfter(comments[len(comments)-1])}
}
