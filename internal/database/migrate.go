package database

import (
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Migrator handles database migrations
type Migrator struct {
	migrate *migrate.Migrate
	db      *sql.DB
}

// NewMigrator opens a dedicated connection and loads the embedded migrations
// for the configured driver.
func NewMigrator(cfg *config.DatabaseConfig) (*Migrator, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("database configuration is required")
	}

	driverName, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.NewInternalError("failed to open database connection").WithCause(err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to ping database").WithCause(err)
	}

	var driver database.Driver
	switch driverName {
	case DriverPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		db.Close()
		return nil, errors.NewInternalError(fmt.Sprintf("failed to create %s migration driver", driverName)).WithCause(err)
	}

	source, err := iofs.New(migrationFS, "migrations/"+driverName)
	if err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to load embedded migrations").WithCause(err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to create migrate instance").WithCause(err)
	}

	return &Migrator{
		migrate: m,
		db:      db,
	}, nil
}

// Migrate applies every pending migration for cfg and closes the migrator
func Migrate(cfg *config.DatabaseConfig) error {
	m, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

// Close releases the migration source and the dedicated connection
func (m *Migrator) Close() error {
	var errs []error
	if m.migrate != nil {
		srcErr, dbErr := m.migrate.Close()
		errs = append(errs, srcErr, dbErr)
	}
	if m.db != nil {
		errs = append(errs, m.db.Close())
	}
	return stderrors.Join(errs...)
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.apply("apply migrations", m.migrate.Up)
}

// Down reverts every applied migration
func (m *Migrator) Down() error {
	return m.apply("revert migrations", m.migrate.Down)
}

// Steps applies n migrations, or reverts -n when n is negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("move %d migration steps", n), func() error { return m.migrate.Steps(n) })
}

// apply runs fn; a schema that is already where it should be is not an error
func (m *Migrator) apply(action string, fn func() error) error {
	err := fn()
	if err == nil || stderrors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return errors.NewInternalError("failed to " + action).WithCause(err)
}

// Version reports the applied schema version; an empty schema is version 0
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	switch {
	case stderrors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, errors.NewInternalError("failed to read schema version").WithCause(err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without
// running anything
func (m *Migrator) Force(version int) error {
	if err := m.migrate.Force(version); err != nil {
		return errors.NewInternalError("failed to force schema version").WithCause(err)
	}
	return nil
}
