package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/evcraddock/portfolio/internal/pager"
	"github.com/evcraddock/portfolio/internal/tui"
)

func newCommentsCmd() *cobra.Command {
	var (
		order string
		num   int
		page  int
	)

	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Browse comments",
		Long: "Browse comments interactively when run on a terminal. Otherwise, or with " +
			"--format json, print a single page.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("invalid page: %d", page)
			}
			c := newAPIClient()
			p := pager.New(c, pagerOptions(order, num)...)

			if !isJSON() && !cmd.Flags().Changed("page") && term.IsTerminal(int(os.Stdout.Fd())) {
				return tui.Run(cmd.Context(), p, currentAuthor(cmd.Context(), c))
			}
			return printPage(cmd.Context(), cmd.OutOrStdout(), p, page)
		},
	}

	cmd.Flags().StringVar(&order, "order", "", "sort order (newest|oldest, default: from config or newest)")
	cmd.Flags().IntVar(&num, "num", 0, "comments per page (default: from config or 5)")
	cmd.Flags().IntVar(&page, "page", 1, "page to print, starting at 1")

	return cmd
}

// printPage walks forward to page (1-based) and prints it. Asking for a page
// past the end prints the last page.
func printPage(ctx context.Context, w io.Writer, p *pager.Pager, page int) error {
	if err := p.LoadPage(ctx); err != nil {
		return err
	}
	for i := 1; i < page; i++ {
		before := p.State().PageNum
		if err := p.Advance(ctx); err != nil {
			return err
		}
		if p.State().PageNum == before {
			break
		}
	}

	st := p.State()
	if isJSON() {
		return printJSON(w, pageJSON{
			Page:     st.PageNum + 1,
			Order:    st.Order,
			PageSize: st.PageSize,
			Comments: st.Comments,
		})
	}
	if st.PageNum+1 < page {
		if _, err := fmt.Fprintf(w, "Only %d page(s) of comments.\n", st.PageNum+1); err != nil {
			return err
		}
	}
	return printCommentPage(w, st)
}
