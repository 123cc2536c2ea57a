// Package cli implements the vanguard command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
)

const (
	ExitOK           = 0
	ExitFailure      = 1 // A report or email could not be produced
	ExitInvalidInput = 2 // Bad flags or fixture files
)

var (
	buildVersion = "dev"

	cfg        *config.Config
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vanguard",
	Short: "Vanguard - penetration test report compiler",
	Long: `Vanguard compiles penetration test findings into PDF, DOCX and HTML
reports and emails them to stakeholders.

Quick start:
  vanguard import findings.yaml
  vanguard generate <project-id> --format pdf
  vanguard smtp set --host smtp.example.com --port 587 --user me@example.com --from team@example.com
  vanguard send project <project-id> --to client@example.com

Other commands:
  vanguard serve
  vanguard preview <project-id>
  vanguard history
  vanguard migrate up|down|version`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		return nil
	},
}

// SetVersion sets the version reported by the version command and the logs
func SetVersion(v string) {
	buildVersion = v
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(HandleError(err))
	}
}

// HandleError determines the exit code for an error
func HandleError(err error) int {
	if err == nil {
		return ExitOK
	}
	if _, ok := err.(*InputError); ok {
		return ExitInvalidInput
	}
	return ExitFailure
}

// InputError is a usage or input file problem
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (defaults come from the environment and .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(smtpCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Vanguard Reports %s\n", buildVersion)
	},
}

// withApp wires the application for one command and releases it afterwards
func withApp(fn func(a *app) error) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
