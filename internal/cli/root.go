// Package cli defines the cobra command tree for mela.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/mela/internal/client"
	"github.com/evcraddock/mela/internal/db"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mela",
		Short:         "Buy, sell and swap in your Maltese neighbourhood",
		Long:          "Mela is a community marketplace. Run the API server, browse listings and wanted ads, manage brand alerts and read notifications from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: ~/.mela/mela.db)")

	root.AddCommand(
		newServeCmd(),
		newListingsCmd(),
		newListingCmd(),
		newWantedCmd(),
		newSchoolsCmd(),
		newNotificationsCmd(),
		newMatchCmd(),
		newBrandsCmd(),
		newRecommendCmd(),
		newUserCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// openDB opens the SQLite database at path, falling back to the --db
// flag and then the default location.
func openDB(path string) (*sql.DB, error) {
	if flagDB != "" {
		path = flagDB
	}
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

// newAPIClient creates an HTTP client for the mela API.
func newAPIClient() *client.Client {
	return client.New(getServerURL(), getAPIKey())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
