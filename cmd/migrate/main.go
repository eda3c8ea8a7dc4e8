package main

import (
	"errors"
	"strconv"

	"github.com/asakaida/reviewlab/internal/infrastructure/config"
	"github.com/asakaida/reviewlab/internal/infrastructure/database"
	"github.com/asakaida/reviewlab/internal/infrastructure/logging"
	"github.com/golang-migrate/migrate/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	envFlag string
	db      *database.Database
	log     = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for Review Lab",
	Long: `Database migration tool for Review Lab.
Manages SQLite and PostgreSQL schema migrations using golang-migrate.
Migrations are embedded in the binary; DB_DRIVER selects the set.`,
	PersistentPreRun: setupDatabase,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Long:  `Apply all pending migrations to the database.`,
	Run:   runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Long:  `Migrate to a specific version number.`,
	Args:  cobra.ExactArgs(1),
	Run:   runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Long:  `Display the current migration version of the database.`,
	Run:   runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	Run:   runForce,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) {
	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if configured, err := logging.New(cfg.Log); err == nil {
		log = configured
	} else {
		log.Warnf("Ignoring log settings: %v", err)
	}
	log.WithField("env", envFlag).Info("Using environment")

	db, err = database.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.WithField("driver", cfg.Database.Driver).Info("Connected to database")
}

// newMigrate opens the embedded migrations; closing it also closes the database
func newMigrate() *migrate.Migrate {
	m, err := db.NewMigrate()
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	return m
}

func parseArg(arg, name string) int {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		log.Fatalf("Invalid %s %q: must be a non-negative integer", name, arg)
	}
	return n
}

func runUp(cmd *cobra.Command, args []string) {
	m := newMigrate()
	defer m.Close()

	err := m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("No migrations to apply")
	case err != nil:
		log.Fatalf("Migration up failed: %v", err)
	default:
		log.Info("Migration up completed successfully")
	}
}

func runDown(cmd *cobra.Command, args []string) {
	steps := 1
	if len(args) > 0 {
		steps = parseArg(args[0], "steps")
	}

	m := newMigrate()
	defer m.Close()

	err := m.Steps(-steps)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("No migrations to rollback")
	case err != nil:
		log.Fatalf("Migration down failed: %v", err)
	default:
		log.Infof("Migration down completed successfully (rolled back %d migration(s))", steps)
	}
}

func runGoto(cmd *cobra.Command, args []string) {
	version := uint(parseArg(args[0], "version"))

	m := newMigrate()
	defer m.Close()

	err := m.Migrate(version)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Infof("Already at version %d", version)
	case err != nil:
		log.Fatalf("Migration goto failed: %v", err)
	default:
		log.Infof("Migration goto %d completed successfully", version)
	}
}

func runVersion(cmd *cobra.Command, args []string) {
	m := newMigrate()
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("Current version: No migrations applied yet")
		return
	}
	if err != nil {
		log.Fatalf("Failed to get version: %v", err)
	}

	if dirty {
		log.Warnf("Current version: %d (dirty - migration may have failed)", version)
	} else {
		log.Infof("Current version: %d", version)
	}
}

func runForce(cmd *cobra.Command, args []string) {
	version := parseArg(args[0], "version")

	m := newMigrate()
	defer m.Close()

	if err := m.Force(version); err != nil {
		log.Fatalf("Migration force failed: %v", err)
	}

	log.Infof("Migration forced to version %d", version)
}
