package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/mela/internal/auth"
	"github.com/evcraddock/mela/internal/client"
)

func newLoginCmd() *cobra.Command {
	var server, email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an API key",
		Long:  "Emails you a one-time login link. Opening the link shows an API key; paste it here to store it for later commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, server, email)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or "+defaultServerURL+")")
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted if empty)")

	return cmd
}

func runLogin(cmd *cobra.Command, serverFlag, email string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	serverURL := serverFlag
	if serverURL == "" {
		serverURL = getServerURL()
	}

	if email == "" {
		var err error
		if email, err = prompt(in, out, "Email: "); err != nil {
			return err
		}
	}
	if email == "" {
		return fmt.Errorf("no email provided")
	}

	msg, err := client.New(serverURL, "").RequestCLILogin(cmd.Context(), email)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n\n", msg)

	key, err := prompt(in, out, "Paste your API key: ")
	if err != nil {
		return err
	}
	if err := validateAPIKey(key); err != nil {
		return err
	}

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

	fmt.Fprintln(out, "✓ API key saved. You're logged in!")
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
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
