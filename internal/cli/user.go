package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/evcraddock/mela/internal/auth"
	"github.com/evcraddock/mela/internal/config"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts in the local database",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

type userAddOptions struct {
	email      string
	username   string
	name       string
	localities []string
	role       string
	withKey    bool
}

func newUserAddCmd() *cobra.Command {
	var opts userAddOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Long:  "Create an account directly in the server database, bypassing the email signup flow. Use --key to also mint an API key for the CLI.",
		Example: `  mela user add --email maria@example.com --username maria --locality Sliema
  mela user add --email mod@mela.mt --username mod --role moderator --key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.username, "username", "", "username (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name")
	cmd.Flags().StringSliceVar(&opts.localities, "locality", nil, "home localities")
	cmd.Flags().StringVar(&opts.role, "role", string(auth.RoleUser), "user, moderator or admin")
	cmd.Flags().BoolVar(&opts.withKey, "key", false, "create an API key for the new account")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func runUserAdd(cmd *cobra.Command, opts userAddOptions) error {
	role := auth.Role(opts.role)
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", opts.role)
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	database, err := openDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer closeDB(database)

	ctx := cmd.Context()
	users := auth.NewUserStore(database, cfg.Auth.AdminEmail)
	u, err := users.Create(ctx, auth.SignupInput{
		Email:      opts.email,
		Username:   opts.username,
		Name:       opts.name,
		Localities: opts.localities,
	})
	if err != nil {
		return err
	}
	if err := users.MarkVerified(ctx, u.ID); err != nil {
		return err
	}
	u.IsVerified = true
	if cmd.Flags().Changed("role") && role != u.Role {
		if u, err = users.SetRole(ctx, u.ID, role); err != nil {
			return err
		}
	}

	var key string
	if opts.withKey {
		if key, _, err = auth.NewAPIKeyStore(database).Create(ctx, u.ID, "CLI"); err != nil {
			return err
		}
	}

	return printCreatedUser(cmd.OutOrStdout(), u, key)
}

func printCreatedUser(w io.Writer, u *auth.User, key string) error {
	if isJSON() {
		return printJSON(w, struct {
			User *auth.User `json:"user"`
			Key  string     `json:"key,omitempty"`
		}{u, key})
	}
	if _, err := fmt.Fprintf(w, "✓ Created %s (%s) as %s\n", u.Username, u.Email, u.Role); err != nil {
		return err
	}
	if key != "" {
		_, err := fmt.Fprintf(w, "API key: %s\nThis key is shown only once.\n", key)
		return err
	}
	return nil
}
