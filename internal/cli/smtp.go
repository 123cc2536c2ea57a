package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

var smtpSettings types.SmtpSettings

var smtpCmd = &cobra.Command{
	Use:   "smtp",
	Short: "Manage the outgoing mail server",
}

var smtpSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save the SMTP settings",
	Long: `Set saves the SMTP host, port, login and display address. Mail is sent
from the login address; a different --from is used as Reply-To.

Without --pass the password is read from the terminal, or from the first line
of stdin when it is not a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := smtpSettings
		if settings.Pass == "" {
			pass, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			settings.Pass = pass
		}
		if !settings.Complete() {
			return &InputError{Message: "host, port, user, password and from are all required"}
		}

		return withApp(func(a *app) error {
			saved, err := a.store.SaveSmtpSettings(cmd.Context(), &settings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved SMTP settings for %s@%s:%d\n", saved.User, saved.Host, saved.Port)
			return nil
		})
	},
}

var smtpShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the SMTP settings without the password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			s, err := a.store.GetSmtpSettings(cmd.Context())
			if errors.IsType(err, errors.ErrorTypeNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "SMTP is not configured.")
				return nil
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Host:     %s\n", s.Host)
			fmt.Fprintf(w, "Port:     %d\n", s.Port)
			fmt.Fprintf(w, "User:     %s\n", s.User)
			fmt.Fprintf(w, "From:     %s\n", s.From)
			if s.Pass != "" {
				fmt.Fprintln(w, "Password: set")
			} else {
				fmt.Fprintln(w, "Password: not set")
			}
			return nil
		})
	},
}

func init() {
	f := smtpSetCmd.Flags()
	f.StringVar(&smtpSettings.Host, "host", "", "SMTP host")
	f.IntVar(&smtpSettings.Port, "port", 587, "SMTP port (465 uses implicit TLS)")
	f.StringVar(&smtpSettings.User, "user", "", "login, also the sender address")
	f.StringVar(&smtpSettings.Pass, "pass", "", "password (prompted when omitted)")
	f.StringVar(&smtpSettings.From, "from", "", "display address used as Reply-To")

	smtpCmd.AddCommand(smtpSetCmd)
	smtpCmd.AddCommand(smtpShowCmd)
}

func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "SMTP password: ")
		pass, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pass), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
