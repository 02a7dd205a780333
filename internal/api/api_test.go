package api

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/portfolio/internal/comment"
)

func TestCommentsPageWireFormat(t *testing.T) {
	next := "abc"
	page := CommentsPage{
		Comments: []*comment.Comment{
			{ID: 7, Username: "ada", Text: "hi <b>there</b>", Timestamp: time.UnixMilli(1_700_000_000_000)},
		},
		NextPageCursor: &next,
	}

	data, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	s, ok := raw["comments"].(string)
	if !ok {
		t.Fatalf("comments = %T, want JSON string", raw["comments"])
	}
	if !strings.HasPrefix(s, "[") || !strings.Contains(s, `"timestamp":1700000000000`) {
		t.Errorf("comments string = %q", s)
	}
	if raw["nextPageCursor"] != "abc" {
		t.Errorf("nextPageCursor = %v, want abc", raw["nextPageCursor"])
	}
}

func TestCommentsPageDecode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCount  int
		wantCursor string
	}{
		{
			name:       "string encoded comments",
			body:       `{"comments":"[{\"id\":1,\"username\":\"ada\",\"text\":\"hi\",\"timestamp\":1000}]","nextPageCursor":"c1"}`,
			wantCount:  1,
			wantCursor: "c1",
		},
		{
			name:       "plain array comments",
			body:       `{"comments":[{"id":1,"username":"ada","text":"hi","timestamp":1000},{"id":2}],"nextPageCursor":"c2"}`,
			wantCount:  2,
			wantCursor: "c2",
		},
		{
			name: "empty string array and null cursor",
			body: `{"comments":"[]","nextPageCursor":null}`,
		},
		{
			name: "literal null cursor string",
			body: `{"comments":"[]","nextPageCursor":"null"}`,
		},
		{
			name: "missing comments",
			body: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page CommentsPage
			if err := json.Unmarshal([]byte(tt.body), &page); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(page.Comments) != tt.wantCount {
				t.Errorf("got %d comments, want %d", len(page.Comments), tt.wantCount)
			}
			if page.Cursor() != tt.wantCursor {
				t.Errorf("cursor = %q, want %q", page.Cursor(), tt.wantCursor)
			}
		})
	}
}

func TestCommentsPageDecodeTimestamp(t *testing.T) {
	body := `{"comments":"[{\"id\":3,\"username\":\"bob\",\"text\":\"yo\",\"timestamp\":1700000000000}]"}`
	var page CommentsPage
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	c := page.Comments[0]
	if c.ID != 3 || c.Username != "bob" || c.Text != "yo" {
		t.Errorf("comment = %+v", c)
	}
	if !c.Timestamp.Equal(time.UnixMilli(1_700_000_000_000)) {
		t.Errorf("timestamp = %v", c.Timestamp)
	}
}

func TestCommentsPageDecodeGarbage(t *testing.T) {
	var page CommentsPage
	if err := json.Unmarshal([]byte(`{"comments":"not json"}`), &page); err == nil {
		t.Fatal("expected error for undecodable comments string")
	}
}

func TestParseCommentsQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    CommentsQuery
		wantErr bool
	}{
		{
			name:  "defaults",
			query: "",
			want:  CommentsQuery{Order: comment.Newest, Num: DefaultPageSize},
		},
		{
			name:  "null cursor is no cursor",
			query: "order=oldest&pageCursor=null&num=10",
			want:  CommentsQuery{Order: comment.Oldest, Num: 10},
		},
		{
			name:  "cursor kept",
			query: "pageCursor=abc&num=3",
			want:  CommentsQuery{Order: comment.Newest, Cursor: "abc", Num: 3},
		},
		{
			name:  "num capped",
			query: "num=5000",
			want:  CommentsQuery{Order: comment.Newest, Num: MaxPageSize},
		},
		{name: "num not a number", query: "num=five", wantErr: true},
		{name: "num zero", query: "num=0", wantErr: true},
		{name: "num negative", query: "num=-2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("parse query: %v", err)
			}
			got, err := ParseCommentsQuery(v)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCommentsQueryValues(t *testing.T) {
	v := CommentsQuery{}.Values()
	if v.Get("pageCursor") != NullCursor {
		t.Errorf("pageCursor = %q, want %q", v.Get("pageCursor"), NullCursor)
	}
	if v.Get("num") != "5" {
		t.Errorf("num = %q, want 5", v.Get("num"))
	}
	if v.Get("order") != "newest" {
		t.Errorf("order = %q, want newest", v.Get("order"))
	}

	v = CommentsQuery{Order: comment.Oldest, Cursor: "c9", Num: 20}.Values()
	if v.Get("pageCursor") != "c9" || v.Get("num") != "20" || v.Get("order") != "oldest" {
		t.Errorf("values = %v", v)
	}
}

func TestLoginStatusLoggedIn(t *testing.T) {
	if (LoginStatus{URL: "/login"}).LoggedIn() {
		t.Error("anonymous status should not be logged in")
	}
	if !(LoginStatus{URL: "/auth/logout", Email: "a@example.com"}).LoggedIn() {
		t.Error("status with email should be logged in")
	}
}
