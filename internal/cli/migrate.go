package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/vanguard-reports/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Migrate applies or rolls back the embedded schema migrations for the
configured driver. Other commands migrate up automatically.`,
}

func init() {
	migrateCmd.AddCommand(
		migrateRun("up", "Run all available migrations", cobra.NoArgs,
			func(m *database.Migrator, _ []string) (string, error) {
				return "Migrations completed successfully", m.Up()
			}),
		migrateRun("down", "Roll back all migrations", cobra.NoArgs,
			func(m *database.Migrator, _ []string) (string, error) {
				return "Rollback completed successfully", m.Down()
			}),
		migrateRun("steps <n>", "Run n migrations up (positive) or down (negative)", cobra.ExactArgs(1),
			func(m *database.Migrator, args []string) (string, error) {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return "", &InputError{Message: "invalid steps argument: " + args[0]}
				}
				return "Migration steps completed successfully", m.Steps(n)
			}),
		migrateRun("version", "Show current migration version", cobra.NoArgs,
			func(m *database.Migrator, _ []string) (string, error) {
				version, dirty, err := m.Version()
				if err != nil {
					return "", err
				}
				msg := fmt.Sprintf("Current migration version: %d", version)
				if dirty {
					msg += " (dirty)"
				}
				return msg, nil
			}),
		migrateRun("force <version>", "Set the migration version without running migrations", cobra.ExactArgs(1),
			func(m *database.Migrator, args []string) (string, error) {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return "", &InputError{Message: "invalid version argument: " + args[0]}
				}
				return fmt.Sprintf("Forced migration version to %d", v), m.Force(v)
			}),
	)
}

func migrateRun(use, short string, args cobra.PositionalArgs, fn func(m *database.Migrator, args []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := database.NewMigrator(&cfg.Database)
			if err != nil {
				return err
			}
			defer m.Close()

			msg, err := fn(m, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
