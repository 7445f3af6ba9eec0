package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API key",
		Long:  "Removes the stored API key from ~/.config/mela/config.yaml. The server URL is kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.OutOrStdout())
		},
	}
}

func runLogout(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.APIKey == "" {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	cfg.APIKey = ""
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintln(out, "✓ Logged out. API key removed.")
	return nil
}
