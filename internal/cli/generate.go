package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/NikhilSetiya/vanguard-reports/internal/report"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

var (
	generateFormat string
	generateOut    string
)

var generateCmd = &cobra.Command{
	Use:   "generate <project-id>",
	Short: "Generate a project report",
	Long: `Generate composes the project report, including findings of every
descendant project, and writes it as PDF, DOCX or HTML.

Without --out on a terminal, the destination is asked for. Answering y saves
to the suggested path, a path saves there, and an empty answer or n cancels.
Without a terminal the report goes to the export directory.

Example:
  vanguard generate acme --format docx
  vanguard generate acme --out ./deliverables/`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateFormat, "format", "f", "pdf", "report format: pdf, docx or html")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "output file or directory")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		target := saveTarget(generateOut, a.cfg.Report.ExportDir, cmd.InOrStdin(), cmd.ErrOrStderr())

		result, err := a.exporter.GenerateReport(cmd.Context(), args[0], generateFormat, target)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	})
}

func printResult(w io.Writer, result *report.Result) error {
	if result == nil {
		fmt.Fprintln(w, "canceled")
		return nil
	}
	if result.Error != "" {
		return errors.New(result.Error)
	}
	fmt.Fprintln(w, result.Path)
	return nil
}

// saveTarget picks where a generated report goes: an explicit --out, an
// interactive prompt on a terminal, or the export directory
func saveTarget(out, exportDir string, in io.Reader, prompt io.Writer) report.SaveTarget {
	if out != "" {
		return report.PathTarget{Path: out}
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return promptTarget(exportDir, in, prompt)
	}
	return report.SaveTargetFunc(func(ctx context.Context, suggested string, format types.Format) (string, bool, error) {
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return "", false, err
		}
		return report.PathTarget{Dir: exportDir}.SavePath(ctx, suggested, format)
	})
}

// promptTarget asks for the destination on prompt and reads one line from in
func promptTarget(dir string, in io.Reader, prompt io.Writer) report.SaveTarget {
	return report.SaveTargetFunc(func(ctx context.Context, suggested string, format types.Format) (string, bool, error) {
		def := filepath.Join(dir, suggested)
		fmt.Fprintf(prompt, "Save %s report to %s? [y/N or path]: ", strings.ToUpper(string(format)), def)

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", false, err
		}

		answer := strings.TrimSpace(line)
		switch strings.ToLower(answer) {
		case "", "n", "no":
			return "", false, nil
		case "y", "yes":
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", false, err
			}
			return def, true, nil
		}
		return report.PathTarget{Path: answer}.SavePath(ctx, suggested, format)
	})
}
