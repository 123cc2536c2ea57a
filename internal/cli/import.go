package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/vanguard-reports/internal/fixtures"
)

var importCmd = &cobra.Command{
	Use:   "import <fixtures.yaml>",
	Short: "Import projects and findings from a YAML file",
	Long: `Import loads projects and their findings from a YAML fixture file.
Parents are written before children and records are upserted by id, so the
same file can be imported again after editing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := fixtures.LoadFromFile(args[0])
		if err != nil {
			return &InputError{Message: err.Error()}
		}

		return withApp(func(a *app) error {
			summary, err := fixtures.Import(cmd.Context(), a.store, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d projects and %d findings\n", summary.Projects, summary.Findings)
			return nil
		})
	},
}
