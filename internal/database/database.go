package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/metrics"
	"github.com/NikhilSetiya/vanguard-reports/pkg/tracing"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB wraps the database connection with additional functionality
type DB struct {
	*sqlx.DB
	config  *config.DatabaseConfig
	metrics *metrics.Metrics
	tracer  *tracing.TracingService
}

// New opens the configured store and verifies the connection
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("database configuration is required")
	}

	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.NewInternalError("failed to connect to database").WithCause(err)
	}

	if driver == DriverSQLite {
		// One writer at a time keeps SQLite from returning SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		db.SetConnMaxIdleTime(10 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to ping database").WithCause(err)
	}

	return &DB{
		DB:     db,
		config: cfg,
		tracer: tracing.Noop(),
	}, nil
}

// dataSource returns the driver name and DSN for cfg. SQLite parent
// directories are created on demand.
func dataSource(cfg *config.DatabaseConfig) (string, string, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		if cfg.Path == "" {
			return "", "", errors.NewValidationError("database path is required for sqlite")
		}
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", "", errors.NewInternalError("failed to create database directory").WithCause(err)
			}
		}
		return DriverSQLite, cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
	case DriverPostgres:
		return DriverPostgres, fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=10",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
		), nil
	default:
		return "", "", errors.NewValidationError(fmt.Sprintf("unsupported database driver: %s", cfg.Driver))
	}
}

// Instrument attaches metrics and tracing to every repository query
func (db *DB) Instrument(m *metrics.Metrics, ts *tracing.TracingService) {
	db.metrics = m
	m.WatchDatabase(db.DB.DB, db.DriverName())
	if ts != nil {
		db.tracer = ts
	}
}

// observe runs fn inside a database span and records its duration
func (db *DB) observe(ctx context.Context, operation, table string, fn func(ctx context.Context) error) error {
	ctx, span := db.tracer.StartDatabaseSpan(ctx, db.DriverName(), operation, table)
	start := time.Now()
	err := fn(ctx)
	db.metrics.RecordDatabaseQuery(operation, table, time.Since(start))
	db.tracer.End(span, err)
	return err
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// Health pings the store
func (db *DB) Health(ctx context.Context) error {
	if db.DB == nil {
		return errors.NewInternalError("database is not open")
	}
	if err := db.PingContext(ctx); err != nil {
		return errors.NewInternalError("database is unreachable").WithCause(err)
	}
	return nil
}

// WithTransaction runs fn in a transaction that commits when fn returns nil
// and rolls back otherwise, including when fn panics
func (db *DB) WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.NewInternalError("failed to begin transaction").WithCause(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.NewInternalError("failed to roll back transaction").WithCause(stderrors.Join(err, rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternalError("failed to commit transaction").WithCause(err)
	}
	return nil
}

// Stats returns connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// Config returns the configuration the store was opened with
func (db *DB) Config() *config.DatabaseConfig {
	return db.config
}
