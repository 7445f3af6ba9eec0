package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/mela/internal/brand"
)

func newBrandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brands",
		Short: "Show your owned and wishlist brands",
		Long:  "Show the brands you own and the brands on your wishlist. New listings from wishlist brands, and wanted ads for brands you own, trigger a notification.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := newAPIClient().GetBrands(cmd.Context())
			if err != nil {
				return err
			}
			return printBrands(cmd.OutOrStdout(), prefs)
		},
	}

	cmd.AddCommand(newBrandsSetCmd(), newBrandsCatalogCmd())
	return cmd
}

func newBrandsSetCmd() *cobra.Command {
	var owned, wishlist []string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace your owned or wishlist brands",
		Long:  "Replace one or both brand sets. A set whose flag is not given is kept; pass an empty value (--owned=) to clear it.",
		Example: `  mela brands set --wishlist "Zara,Hugo Boss"
  mela brands set --owned Nike --wishlist=`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ownedSet, wishSet := cmd.Flags().Changed("owned"), cmd.Flags().Changed("wishlist")
			if !ownedSet && !wishSet {
				return fmt.Errorf("give --owned, --wishlist or both")
			}

			c := newAPIClient()
			prefs, err := c.GetBrands(cmd.Context())
			if err != nil {
				return err
			}
			if ownedSet {
				prefs.Owned = owned
			}
			if wishSet {
				prefs.Wishlist = wishlist
			}

			saved, err := c.SetBrands(cmd.Context(), *prefs)
			if err != nil {
				return err
			}
			return printBrands(cmd.OutOrStdout(), saved)
		},
	}
	cmd.Flags().StringSliceVar(&owned, "owned", nil, "comma separated brands you own")
	cmd.Flags().StringSliceVar(&wishlist, "wishlist", nil, "comma separated brands you want")

	return cmd
}

func newBrandsCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the brands mela recognizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := newAPIClient().BrandCatalog(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), names)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return err
		},
	}
}

func printBrands(w io.Writer, prefs *brand.Preferences) error {
	if isJSON() {
		return printJSON(w, prefs)
	}
	_, err := fmt.Fprintf(w, "Owned:    %s\nWishlist: %s\n", brandList(prefs.Owned), brandList(prefs.Wishlist))
	return err
}

func brandList(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
