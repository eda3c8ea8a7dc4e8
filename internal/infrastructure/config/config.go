package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Log      LogConfig
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host        string
	Port        int // HTTP API port
	GRPCPort    int // gRPC record service port
	MetricsPort int // Port for Prometheus metrics HTTP server
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled        bool
	MaxMemoryBytes int64 // Maximum memory usage in bytes (e.g., 104857600 = 100MB)
	Metrics        bool
	TTLMinutes     int // Time-to-live for cache entries in minutes
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string // logrus level name (debug, info, warn, error)
	Format string // text or json
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver     string // sqlite or postgres
	SQLitePath string // SQLite file path or ":memory:"
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	// Set config file name based on environment
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")

	// The project root is optional: a deployed binary has no go.mod nearby
	if projectRoot, err := findProjectRoot(); err == nil {
		viper.AddConfigPath(projectRoot)
	}
	viper.AddConfigPath(".")

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 5555)
	viper.SetDefault("GRPC_PORT", 50051)
	viper.SetDefault("METRICS_PORT", 9090)

	viper.SetDefault("DB_DRIVER", DriverSQLite)
	viper.SetDefault("SQLITE_PATH", "app.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "reviewlab")
	viper.SetDefault("DB_NAME", "reviewlab_dev")
	viper.SetDefault("DB_SSLMODE", "disable")

	// Cache defaults
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_MAX_MEMORY_BYTES", 16*1024*1024) // 16MB
	viper.SetDefault("CACHE_METRICS", true)
	viper.SetDefault("CACHE_TTL_MINUTES", 5)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	return nil
}

// Load loads configuration from viper
func Load() (*Config, error) {
	driver := strings.ToLower(viper.GetString("DB_DRIVER"))
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", driver, DriverSQLite, DriverPostgres)
	}

	// DB_PASSWORD is required for postgres
	dbPassword := viper.GetString("DB_PASSWORD")
	if driver == DriverPostgres && dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required for postgres (set via environment variable or .env file)")
	}

	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			Port:        viper.GetInt("SERVER_PORT"),
			GRPCPort:    viper.GetInt("GRPC_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
		},
		Database: DatabaseConfig{
			Driver:     driver,
			SQLitePath: viper.GetString("SQLITE_PATH"),
			Host:       viper.GetString("DB_HOST"),
			Port:       viper.GetInt("DB_PORT"),
			User:       viper.GetString("DB_USER"),
			Password:   dbPassword,
			Database:   viper.GetString("DB_NAME"),
			SSLMode:    viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:        viper.GetBool("CACHE_ENABLED"),
			MaxMemoryBytes: viper.GetInt64("CACHE_MAX_MEMORY_BYTES"),
			Metrics:        viper.GetBool("CACHE_METRICS"),
			TTLMinutes:     viper.GetInt("CACHE_TTL_MINUTES"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	return config, nil
}

// ConnectionString returns the driver-specific data source name
func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == DriverPostgres {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host,
			c.Port,
			c.User,
			c.Password,
			c.Database,
			c.SSLMode,
		)
	}

	if c.SQLitePath == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", c.SQLitePath)
}

// Address returns host:port for the given port
func (s *ServerConfig) Address(port int) string {
	return fmt.Sprintf("%s:%d", s.Host, port)
}
