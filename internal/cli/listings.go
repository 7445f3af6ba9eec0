package cli

import (
	"github.com/spf13/cobra"

	"github.com/evcraddock/mela/internal/client"
)

// listingFlags are the filters shared by listings and wanted.
type listingFlags struct {
	category string
	locality string
	query    string
	limit    int
}

func (f *listingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "filter by category (e.g. Clothing)")
	cmd.Flags().StringVar(&f.locality, "locality", "", "filter by locality (e.g. Sliema)")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "search title and description")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of results")
}

func (f *listingFlags) options() client.ListingOptions {
	return client.ListingOptions{
		Category: f.category,
		Locality: f.locality,
		Query:    f.query,
		Limit:    f.limit,
	}
}

func newListingsCmd() *cobra.Command {
	var (
		flags    listingFlags
		schoolID string
	)

	cmd := &cobra.Command{
		Use:   "listings",
		Short: "List items for sale",
		Long:  "List active items for sale, optionally filtered by category, locality, school or a search query.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options()
			opts.School = schoolID
			listings, err := newAPIClient().ListListings(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), listings)
			}
			return printListingTable(cmd.OutOrStdout(), listings)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&schoolID, "school", "", "only uniforms for this school ID (see 'mela schools')")

	return cmd
}

func newSchoolsCmd() *cobra.Command {
	var city string

	cmd := &cobra.Command{
		Use:   "schools",
		Short: "List schools",
		Long:  "List the schools that uniform listings can be linked to.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schools, err := newAPIClient().Schools(cmd.Context(), city)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), schools)
			}
			return printSchoolTable(cmd.OutOrStdout(), schools)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "filter by locality (e.g. Birgu)")

	return cmd
}

func newListingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Work with a single listing",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show listing details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := newAPIClient().GetListing(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), l)
			}
			printListing(cmd.OutOrStdout(), l)
			return nil
		},
	})

	return cmd
}

func newWantedCmd() *cobra.Command {
	var flags listingFlags

	cmd := &cobra.Command{
		Use:   "wanted",
		Short: "List wanted ads",
		Long:  "List active wanted ads posted by members looking for an item.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ads, err := newAPIClient().ListWanted(cmd.Context(), flags.options())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), ads)
			}
			return printWantedTable(cmd.OutOrStdout(), ads)
		},
	}
	flags.register(cmd)

	return cmd
}
