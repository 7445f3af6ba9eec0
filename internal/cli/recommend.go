package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <query>",
		Short: "Find local services for a need",
		Long:  "Suggest community services (tailors, cleaners, tutors...) matching a free-text description.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := newAPIClient().Recommend(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"recommendation": text})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}
