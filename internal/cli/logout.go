package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored API key",
		Long: `Forgets the API key saved by 'pf login'. Other settings in the config
file are kept. The key itself stays valid until it is revoked on the
settings page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogout(cmd.OutOrStdout())
		},
	}
}

func runLogout(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.APIKey == "" {
		fmt.Fprintln(w, "Not logged in.")
	} else {
		server := cfg.ServerURL
		cfg.APIKey = ""
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		if server == "" {
			server = defaultServerURL
		}
		fmt.Fprintf(w, "✓ Forgot API key for %s.\n", server)
	}

	if os.Getenv("PF_API_KEY") != "" {
		fmt.Fprintln(w, "PF_API_KEY is still set and will be used.")
	}
	return nil
}
