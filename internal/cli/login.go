package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/evcraddock/portfolio/internal/auth"
)

func newLoginCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an API key",
		Long:  "Opens a browser to authenticate and generate an API key for CLI access.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.OutOrStdout(), cmd.InOrStdin(), server, openBrowser)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or http://localhost:8080)")

	return cmd
}

func runLogin(w io.Writer, in io.Reader, serverFlag string, open func(string) error) error {
	serverURL := serverFlag
	if serverURL == "" {
		serverURL = getServerURL()
	}

	authURL := strings.TrimRight(serverURL, "/") + "/cli/auth"

	fmt.Fprintln(w, "Opening browser for authentication...")
	fmt.Fprintf(w, "If the browser doesn't open, visit: %s\n\n", authURL)

	if err := open(authURL); err != nil {
		fmt.Fprintf(os.Stderr, "Could not open browser: %v\n", err)
	}

	fmt.Fprint(w, "Paste your API key: ")
	key, err := readKey(in)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if err := validateAPIKey(key); err != nil {
		return err
	}

	// Keep server_url, order and page_size.
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}

	cfg.APIKey = key
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintln(w, "✓ API key saved. You're logged in!")
	return nil
}

// readKey reads one line, without echo when in is a terminal.
func readKey(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// validateAPIKey checks that the key is non-empty and has the expected prefix.
func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("no API key provided")
	}
	if !strings.HasPrefix(key, auth.APIKeyPrefix) {
		return fmt.Errorf("invalid API key format (should start with %s)", auth.APIKeyPrefix)
	}
	return nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
