package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"resumekit/internal/config"
	"resumekit/internal/gateway"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "data/resumekit.db", cfg.SQLitePath)
	assert.Empty(t, cfg.Driver, "no remote driver unless configured")
	assert.Equal(t, 100, cfg.MaxBlocksPerDocument)
	assert.Equal(t, "@every 30s", cfg.ReconcileSpec)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RESUMEKIT_SQLITE_PATH", "/tmp/test.db")
	t.Setenv("RESUMEKIT_DB_DRIVER", "postgres")
	t.Setenv("RESUMEKIT_DB_HOST", "db.internal")
	t.Setenv("RESUMEKIT_DB_PORT", "5433")
	t.Setenv("RESUMEKIT_DB_USER", "app")
	t.Setenv("RESUMEKIT_DB_PASSWORD", "s3cret")
	t.Setenv("RESUMEKIT_DB_SSLMODE", "require")
	t.Setenv("RESUMEKIT_MAX_BLOCKS", "50")

	cfg := config.Load()
	assert.Equal(t, "/tmp/test.db", cfg.SQLitePath)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 50, cfg.MaxBlocksPerDocument)

	gw := cfg.GatewayConfig()
	assert.Equal(t, &gateway.Config{
		Driver:   gateway.DriverPostgres,
		Host:     "db.internal",
		Port:     5433,
		Username: "app",
		Database: "resumekit",
		SSLMode:  "require",
	}, gw)
	assert.Equal(t, "s3cret", cfg.DBPassword, "password stays out of the gateway config")
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	t.Setenv("RESUMEKIT_MAX_BLOCKS", "lots")
	cfg := config.Load()
	assert.Equal(t, 100, cfg.MaxBlocksPerDocument)
}
