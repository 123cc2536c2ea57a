package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var previewOut string

var previewCmd = &cobra.Command{
	Use:   "preview <project-id>",
	Short: "Render the project report preview HTML",
	Long: `Preview renders the project report as self-contained HTML, with images
inlined and videos embedded, and writes it to stdout or --out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			result, err := a.exporter.GetReportPreview(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result.Error != "" {
				return errors.New(result.Error)
			}

			if previewOut == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), result.HTML)
				return err
			}
			if err := os.WriteFile(previewOut, []byte(result.HTML), 0o644); err != nil {
				return fmt.Errorf("failed to write preview: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), previewOut)
			return nil
		})
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "", "write the HTML to this file")
}
