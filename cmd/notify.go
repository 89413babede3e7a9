package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newNotifyCmd creates and configures the 'notify' subcommand.
func newNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify [recipient]",
		Short: "E-mails the most recent report",
		Long: `Composes an e-mail from the most recent report and archives it as an
.eml draft under notify.archive_dir. When SMTP_SERVER, SMTP_EMAIL and
SMTP_PASSWORD are set the message is also delivered. The recipient defaults
to notify.recipient.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			recipient := ""
			if len(args) == 1 {
				recipient = args[0]
			}
			return sendNotification(cmd, appInstance, recipient)
		},
	}
}

func sendNotification(cmd *cobra.Command, appInstance App, recipient string) error {
	res, err := appInstance.Notify(cmd.Context(), recipient)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Draft saved to %s\n", res.ArchiveURI)
	if res.Delivered {
		fmt.Fprintf(out, "Sent to %s\n", res.Recipient)
	} else {
		fmt.Fprintln(out, "SMTP is not configured; send the draft manually.")
	}
	return nil
}
