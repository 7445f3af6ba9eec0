package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/mela/internal/matcher"
)

func newMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "match <listing|wanted> <id>",
		Short:     "Run a brand match now",
		Long:      "Detect the brand of a listing or wanted ad and notify the members whose brand preferences match.",
		Args:      cobra.MatchAll(cobra.ExactArgs(2), matchSourceArg),
		ValidArgs: []string{string(matcher.SourceListing), string(matcher.SourceWanted)},
		RunE: func(cmd *cobra.Command, args []string) error {
			req := matchRequest(matcher.Source(args[0]), args[1])
			res, err := newAPIClient().Match(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, res)
			}
			if res.Message != "" {
				_, err = fmt.Fprintln(out, res.Message)
				return err
			}
			_, err = fmt.Fprintf(out, "Brand:    %s\nNotified: %d members\n", res.Brand, res.MatchedUsersCount)
			return err
		},
	}
}

func matchSourceArg(_ *cobra.Command, args []string) error {
	switch matcher.Source(args[0]) {
	case matcher.SourceListing, matcher.SourceWanted:
		return nil
	}
	return fmt.Errorf("invalid match type %q (want listing or wanted)", args[0])
}

func matchRequest(source matcher.Source, id string) matcher.Request {
	req := matcher.Request{Type: source}
	if source == matcher.SourceWanted {
		req.WantedAdID = id
	} else {
		req.ItemID = id
	}
	return req
}
