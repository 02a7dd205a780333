package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/portfolio/internal/client"
	"github.com/evcraddock/portfolio/internal/comment"
	"github.com/evcraddock/portfolio/internal/tui"
)

func newCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `comment "text"`,
		Short: "Post a comment",
		Long:  "Post a comment as the logged-in user. Choose a username with 'pf username' first.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runComment,
	}
}

func runComment(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("comment text is required")
	}

	c, err := newAPIClient().SubmitComment(cmd.Context(), comment.NewComment{Text: text})
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(cmd.OutOrStdout(), c)
	}
	return printCommentSingle(cmd.OutOrStdout(), c)
}

// currentAuthor asks the server who the API key belongs to. A failed lookup
// browses anonymously.
func currentAuthor(ctx context.Context, c *client.Client) tui.Author {
	st, err := c.LoginStatus(ctx)
	if err != nil {
		slog.Warn("looking up login status", "err", err)
		return tui.Author{}
	}
	author := tui.Author{Email: st.Email}
	if st.Username != nil {
		author.Username = *st.Username
	}
	return author
}
