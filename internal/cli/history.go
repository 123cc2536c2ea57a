package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/vanguard-reports/internal/database"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

var (
	historyLimit  int
	historyOffset int
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List sent report emails, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			entries, err := a.store.ListEmailHistory(cmd.Context(), &database.Pagination{
				Limit:  historyLimit,
				Offset: historyOffset,
			})
			if err != nil {
				return err
			}

			if historyJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			return printHistory(cmd.OutOrStdout(), entries)
		})
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", database.DefaultHistoryLimit, "entries per page")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "entries to skip")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")
}

func printHistory(w io.Writer, entries []*types.EmailHistoryEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No emails sent yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SENT\tRECIPIENT\tFORMAT\tSTATUS\tSUBJECT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.SentAt.Local().Format(time.DateTime), e.Recipient, e.Format, e.Status, e.Subject)
	}
	return tw.Flush()
}
