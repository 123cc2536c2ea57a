package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/vanguard-reports/internal/mailer"
)

type sendFlags struct {
	to      string
	subject string
	message string
	format  string
}

func (f *sendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.to, "to", "", "recipient address")
	cmd.Flags().StringVar(&f.subject, "subject", "", "subject line (defaults to the report title)")
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "note shown under the report cover")
	cmd.Flags().StringVarP(&f.format, "format", "f", "pdf", "attached report format: pdf, docx or html")
	_ = cmd.MarkFlagRequired("to")
}

var (
	issueFlags   sendFlags
	projectFlags sendFlags
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Email a report",
	Long: `Send emails a finding or project report through the configured SMTP
server. Transient network failures are retried; authentication and address
errors are reported at once.`,
}

var sendIssueCmd = &cobra.Command{
	Use:   "issue <project-id> <issue-id>",
	Short: "Email a single finding report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			result, err := a.dispatcher.SendIssueReport(cmd.Context(), mailer.IssueRequest{
				ProjectID: args[0],
				IssueID:   args[1],
				To:        issueFlags.to,
				Subject:   issueFlags.subject,
				Message:   issueFlags.message,
				Format:    issueFlags.format,
			})
			if err != nil {
				return err
			}
			a.remember(cmd.Context(), result)
			return printSendResult(cmd.OutOrStdout(), result)
		})
	},
}

var sendProjectCmd = &cobra.Command{
	Use:   "project <project-id>",
	Short: "Email a project report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			result, err := a.dispatcher.SendProjectReport(cmd.Context(), mailer.ProjectRequest{
				ProjectID: args[0],
				To:        projectFlags.to,
				Subject:   projectFlags.subject,
				Message:   projectFlags.message,
				Format:    projectFlags.format,
			})
			if err != nil {
				return err
			}
			a.remember(cmd.Context(), result)
			return printSendResult(cmd.OutOrStdout(), result)
		})
	},
}

func init() {
	issueFlags.register(sendIssueCmd)
	projectFlags.register(sendProjectCmd)
	sendCmd.AddCommand(sendIssueCmd)
	sendCmd.AddCommand(sendProjectCmd)
}

func printSendResult(w io.Writer, result *mailer.Result) error {
	if !result.OK {
		return errors.New(result.Error)
	}
	fmt.Fprintf(w, "Sent to %s\n", result.Recipient)
	return nil
}
