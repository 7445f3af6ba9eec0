package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newNotificationsCmd() *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List your notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := newAPIClient().Notifications(cmd.Context(), unread)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), notes)
			}
			return printNotificationTable(cmd.OutOrStdout(), notes)
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only show unread notifications")

	cmd.AddCommand(newNotificationsReadCmd(), newDigestCmd())
	return cmd
}

func newNotificationsReadCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "read [id]",
		Short: "Mark notifications as read",
		Long:  "Mark one notification as read, or every notification with --all.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give a notification ID or --all")
			}

			c := newAPIClient()
			out := cmd.OutOrStdout()
			if all {
				n, err := c.MarkAllRead(cmd.Context())
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(out, map[string]int64{"updated": n})
				}
				_, err = fmt.Fprintf(out, "Marked %d notifications as read.\n", n)
				return err
			}

			if err := c.MarkRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			if isJSON() {
				return printJSON(out, map[string]string{"read": args[0]})
			}
			_, err := fmt.Fprintln(out, "✓ Marked as read.")
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "mark every notification as read")

	return cmd
}

func newDigestCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Email your unread notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newAPIClient().Digest(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, resp)
			}

			switch {
			case resp.Count == 0:
				_, err = fmt.Fprintln(out, "Nothing to send.")
			case resp.Sent:
				_, err = fmt.Fprintf(out, "✓ Sent %d notifications to %s.\n", resp.Count, resp.To)
			default:
				_, err = fmt.Fprintf(out, "To: %s\nSubject: %s\n\n%s\n", resp.To, resp.Subject, resp.Body)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the email without sending it")

	return cmd
}
