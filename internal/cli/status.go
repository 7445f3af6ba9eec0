package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/mela/internal/client"
)

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

func runStatus(ctx context.Context, out io.Writer) error {
	cfg := settings()

	fmt.Fprintf(out, "Server:  %s\n", cfg.ServerURL)

	if cfg.APIKey == "" {
		fmt.Fprintln(out, "API Key: not configured")
		fmt.Fprintln(out, "\nRun 'mela login' to authenticate.")
		return nil
	}

	prefix := cfg.APIKey
	if len(prefix) > 11 {
		prefix = prefix[:11]
	}
	fmt.Fprintf(out, "API Key: %s…\n", prefix)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	u, err := client.New(cfg.ServerURL, cfg.APIKey).Me(ctx)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Status:  ✓ connected as %s (%s)\n", u.Username, u.Role)
	case client.IsUnauthorized(err):
		fmt.Fprintln(out, "Status:  ✗ invalid API key")
		fmt.Fprintln(out, "\nRun 'mela login' to re-authenticate.")
	default:
		fmt.Fprintf(out, "Status:  ✗ %v\n", err)
	}

	return nil
}
