package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/portfolio/internal/client"
)

func newUsernameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "username <name>",
		Short: "Choose the name shown on your comments",
		Args:  cobra.ExactArgs(1),
		RunE:  runUsername,
	}
}

func runUsername(cmd *cobra.Command, args []string) error {
	name := args[0]
	err := newAPIClient().ChooseUsername(cmd.Context(), name)
	switch {
	case errors.Is(err, client.ErrUsernameTaken):
		return fmt.Errorf("username %q is already taken", name)
	case errors.Is(err, client.ErrNotLoggedIn):
		return fmt.Errorf("you must be logged in to choose a username (run 'pf login')")
	case err != nil:
		return err
	}

	if isJSON() {
		return printJSON(cmd.OutOrStdout(), map[string]string{"username": name})
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "✓ Username set to %s.\n", name)
	return err
}
