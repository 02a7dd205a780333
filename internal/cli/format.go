package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/evcraddock/portfolio/internal/api"
	"github.com/evcraddock/portfolio/internal/comment"
	"github.com/evcraddock/portfolio/internal/email"
	"github.com/evcraddock/portfolio/internal/pager"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// pageJSON is the --format json shape of one listing page.
type pageJSON struct {
	Page     int                `json:"page"`
	Order    comment.Order      `json:"order"`
	PageSize int                `json:"pageSize"`
	Comments []*comment.Comment `json:"comments"`
}

// printCommentPage prints the pager's current page as a table.
func printCommentPage(w io.Writer, st pager.State) error {
	if _, err := fmt.Fprintf(w, "Page %d, %s first\n\n", st.PageNum+1, st.Order); err != nil {
		return err
	}
	if len(st.Comments) == 0 {
		_, err := fmt.Fprintln(w, "No comments.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tWHEN\tAUTHOR\tTEXT"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(tw, "--\t----\t------\t----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}
	for _, c := range st.Comments {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			c.ID, email.FormatTimestamp(c.Timestamp), authorName(c.Username), truncate(oneLine(c.Text), 60)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

// printCommentSingle prints a newly posted comment.
func printCommentSingle(w io.Writer, c *comment.Comment) error {
	_, err := fmt.Fprintf(w, "Comment #%d posted as %s.\n  %s\n", c.ID, authorName(c.Username), c.Text)
	return err
}

// printLoginStatus prints who the server thinks the caller is.
func printLoginStatus(w io.Writer, st *api.LoginStatus) error {
	if !st.LoggedIn() {
		_, err := fmt.Fprintln(w, "Not logged in. Run 'pf login' to authenticate.")
		return err
	}
	username := "(not set, run 'pf username NAME')"
	if st.Username != nil {
		username = *st.Username
	}
	_, err := fmt.Fprintf(w, "Email:    %s\nUsername: %s\n", st.Email, username)
	return err
}

func authorName(username string) string {
	if username == "" {
		return "anonymous"
	}
	return username
}

// oneLine collapses runs of whitespace, including newlines, to single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
