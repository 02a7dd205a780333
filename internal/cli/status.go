package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/portfolio/internal/client"
)

const statusTimeout = 5 * time.Second

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection and auth status",
		Long:  "Tests the connection to the server and checks if the stored API key is valid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runStatus(ctx context.Context, w io.Writer) error {
	serverURL := getServerURL()
	apiKey := getAPIKey()

	fmt.Fprintf(w, "Server:  %s\n", serverURL)

	if apiKey == "" {
		fmt.Fprintln(w, "API Key: not configured")
		fmt.Fprintln(w, "\nRun 'pf login' to authenticate.")
		return nil
	}

	prefix := apiKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	fmt.Fprintf(w, "API Key: %s…\n", prefix)

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	st, err := client.New(serverURL, apiKey).LoginStatus(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintln(w, "Status:  ✗ server timed out")
	case err != nil && !errors.Is(err, client.ErrNotLoggedIn):
		fmt.Fprintf(w, "Status:  ✗ cannot reach server (%v)\n", err)
	case err != nil || !st.LoggedIn():
		fmt.Fprintln(w, "Status:  ✗ invalid API key")
		fmt.Fprintln(w, "\nRun 'pf login' to re-authenticate.")
	default:
		fmt.Fprintf(w, "Status:  ✓ connected as %s\n", st.Email)
	}

	return nil
}
