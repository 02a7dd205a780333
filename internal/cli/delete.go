package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a comment",
		Long:  "Delete one of your comments. The site admin may delete any comment.",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid comment ID: %s", args[0])
	}

	if err := newAPIClient().DeleteComment(cmd.Context(), id); err != nil {
		return err
	}

	if isJSON() {
		return printJSON(cmd.OutOrStdout(), map[string]int64{"deleted": id})
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Comment #%d deleted.\n", id)
	return err
}
