package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"resumekit/internal/gateway"
)

type Config struct {
	// SQLitePath is the embedded store. Ignored when a remote driver is set.
	SQLitePath string

	// Remote gateway; Driver empty means local SQLite.
	Driver     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	MaxBlocksPerDocument int
	ReconcileSpec        string
	OverridesPath        string
	LogLevel             string
}

// Load reads environment variables, optionally from a .env file if present.
func Load() Config {
	// Try to load .env if it exists; ignore error if file not found
	_ = godotenv.Load()

	return Config{
		SQLitePath:           getEnv("RESUMEKIT_SQLITE_PATH", "data/resumekit.db"),
		Driver:               os.Getenv("RESUMEKIT_DB_DRIVER"),
		DBHost:               getEnv("RESUMEKIT_DB_HOST", "localhost"),
		DBPort:               getEnvInt("RESUMEKIT_DB_PORT", 0),
		DBUser:               os.Getenv("RESUMEKIT_DB_USER"),
		DBPassword:           os.Getenv("RESUMEKIT_DB_PASSWORD"),
		DBName:               getEnv("RESUMEKIT_DB_NAME", "resumekit"),
		DBSSLMode:            os.Getenv("RESUMEKIT_DB_SSLMODE"),
		MaxBlocksPerDocument: getEnvInt("RESUMEKIT_MAX_BLOCKS", 100),
		ReconcileSpec:        getEnv("RESUMEKIT_RECONCILE_SPEC", "@every 30s"),
		OverridesPath:        os.Getenv("RESUMEKIT_OVERRIDES_PATH"),
		LogLevel:             getEnv("RESUMEKIT_LOG_LEVEL", "info"),
	}
}

// GatewayConfig converts the env fields into a remote gateway config.
func (c Config) GatewayConfig() *gateway.Config {
	return &gateway.Config{
		Driver:   gateway.Driver(c.Driver),
		Host:     c.DBHost,
		Port:     c.DBPort,
		Username: c.DBUser,
		Database: c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
