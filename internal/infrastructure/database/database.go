package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/asakaida/reviewlab/internal/infrastructure/config"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Database wraps a SQL connection pool together with its driver name
type Database struct {
	DB     *sql.DB
	Driver string
}

// Open creates a new connection for the configured driver
func Open(cfg *config.DatabaseConfig) (*Database, error) {
	db, err := sql.Open(cfg.Driver, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		// SQLite allows a single writer; an in-memory database also lives
		// only as long as its one connection.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, Driver: cfg.Driver}, nil
}

// NewMigrateDriver wraps db in the golang-migrate driver for driverName
func NewMigrateDriver(db *sql.DB, driverName string) (migratedb.Driver, error) {
	switch driverName {
	case config.DriverPostgres:
		return postgres.WithInstance(db, &postgres.Config{})
	case config.DriverSQLite:
		return sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported driver %q", driverName)
	}
}

// NewMigrate creates a migrate instance over the embedded migrations for the
// database's driver
func (d *Database) NewMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations/"+d.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := NewMigrateDriver(d.DB, d.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.Driver, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, nil
}

// RunMigrations applies all pending migrations
func (d *Database) RunMigrations() error {
	m, err := d.NewMigrate()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck checks if the database connection is healthy
func (d *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
